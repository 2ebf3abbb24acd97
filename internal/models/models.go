package models

import (
	"bytes"
	"encoding/json"
)

// Listen is one normalized playback event from the watch history.
// The JSON shape matches the formatted-test.json snapshot artifact;
// ExternalID and IsLibraryUpload are internal-only and are stripped
// from the final output via FormattedListen.
type Listen struct {
	ArtistName      string `json:"artistName"`
	TrackName       string `json:"trackName"`
	Timestamp       string `json:"ts"`
	ExternalID      string `json:"id"`
	IsLibraryUpload bool   `json:"isLibraryUpload"`
	AlbumName       string `json:"albumName,omitempty"`
}

// FormattedListen is the output view of a Listen with internal fields removed.
type FormattedListen struct {
	ArtistName string `json:"artistName"`
	TrackName  string `json:"trackName"`
	Timestamp  string `json:"ts"`
	AlbumName  string `json:"albumName,omitempty"`
}

// Formatted strips the internal fields from l.
func (l Listen) Formatted() FormattedListen {
	return FormattedListen{
		ArtistName: l.ArtistName,
		TrackName:  l.TrackName,
		Timestamp:  l.Timestamp,
		AlbumName:  l.AlbumName,
	}
}

// CacheEntry is a previously resolved enrichment result, keyed by external id.
type CacheEntry struct {
	AlbumName  string `json:"albumName"`
	ArtistName string `json:"artistName"`
}

// ArtistRef is an artist reference as the catalog returns it.
type ArtistRef struct {
	Name string `json:"name"`
}

// AlbumRef carries an album name that may arrive as {"name": ...}, as a bare
// string, or as null, depending on the record's age and origin.
type AlbumRef struct {
	Name string
}

func (a *AlbumRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		a.Name = ""
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &a.Name)
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	a.Name = obj.Name
	return nil
}

func (a AlbumRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name string `json:"name"`
	}{Name: a.Name})
}

// UploadRecord is one track from the personal library snapshot.
type UploadRecord struct {
	VideoID string      `json:"videoId"`
	Title   string      `json:"title"`
	Artists []ArtistRef `json:"artists"`
	Album   AlbumRef    `json:"album"`
}

// FirstArtist returns the primary artist name, or "" when none is listed.
func (u UploadRecord) FirstArtist() string {
	if len(u.Artists) == 0 {
		return ""
	}
	return u.Artists[0].Name
}

// SearchResult is one catalog search hit, reduced to the fields the
// enrichment engine consumes.
type SearchResult struct {
	Title     string      `json:"title"`
	Artists   []ArtistRef `json:"artists"`
	AlbumName string      `json:"albumName,omitempty"`
}

// FirstArtist returns the primary artist name, or "" when none is listed.
func (r SearchResult) FirstArtist() string {
	if len(r.Artists) == 0 {
		return ""
	}
	return r.Artists[0].Name
}
