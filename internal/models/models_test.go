package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAlbumRefUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"object", `{"videoId":"v","album":{"name":"Album A","id":"b123"}}`, "Album A"},
		{"bare string", `{"videoId":"v","album":"Album B"}`, "Album B"},
		{"null", `{"videoId":"v","album":null}`, ""},
		{"absent", `{"videoId":"v"}`, ""},
		{"object without name", `{"videoId":"v","album":{"id":"b123"}}`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var rec UploadRecord
			if err := json.Unmarshal([]byte(tc.raw), &rec); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if rec.Album.Name != tc.want {
				t.Errorf("album name = %q, want %q", rec.Album.Name, tc.want)
			}
		})
	}
}

func TestAlbumRefUnmarshalRejectsGarbage(t *testing.T) {
	var rec UploadRecord
	if err := json.Unmarshal([]byte(`{"album":42}`), &rec); err == nil {
		t.Error("expected an error for a numeric album")
	}
}

func TestAlbumRefMarshalAlwaysObject(t *testing.T) {
	data, err := json.Marshal(UploadRecord{VideoID: "v", Album: AlbumRef{Name: "X"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"album":{"name":"X"}`) {
		t.Errorf("marshal = %s, want object album", data)
	}
}

func TestFormattedStripsInternalFields(t *testing.T) {
	l := Listen{
		ArtistName:      "A",
		TrackName:       "T",
		Timestamp:       "ts",
		ExternalID:      "secret",
		IsLibraryUpload: true,
		AlbumName:       "Al",
	}

	data, err := json.Marshal(l.Formatted())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") || strings.Contains(string(data), "isLibraryUpload") {
		t.Errorf("formatted view leaked internal fields: %s", data)
	}
	if string(data) != `{"artistName":"A","trackName":"T","ts":"ts","albumName":"Al"}` {
		t.Errorf("formatted = %s", data)
	}
}

func TestListenAlbumOmittedWhenEmpty(t *testing.T) {
	data, err := json.Marshal(Listen{ArtistName: "A", TrackName: "T", Timestamp: "ts"}.Formatted())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "albumName") {
		t.Errorf("empty albumName not omitted: %s", data)
	}
}

func TestFirstArtist(t *testing.T) {
	if got := (UploadRecord{}).FirstArtist(); got != "" {
		t.Errorf("FirstArtist on empty = %q", got)
	}
	rec := UploadRecord{Artists: []ArtistRef{{Name: "First"}, {Name: "Second"}}}
	if got := rec.FirstArtist(); got != "First" {
		t.Errorf("FirstArtist = %q, want First", got)
	}
	res := SearchResult{Artists: []ArtistRef{{Name: "Only"}}}
	if got := res.FirstArtist(); got != "Only" {
		t.Errorf("SearchResult.FirstArtist = %q, want Only", got)
	}
}
