// Package mbrainz looks up album titles on MusicBrainz for listens the
// catalog search could not place. Strictly best effort: any failure along
// the way is reported as "no album" and the caller moves on.
package mbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hashicorp/go-hclog"
	mb "github.com/michiwend/gomusicbrainz"
	"golang.org/x/time/rate"
)

const (
	wsBase     = "https://musicbrainz.org/ws/2"
	appName    = "ytm-history-scrobbler"
	appVersion = "1.0"
)

type Resolver struct {
	HTTPClient *http.Client
	SearchBase string
	Limiter    *rate.Limiter

	ws        *mb.WS2Client
	logger    hclog.Logger
	userAgent string
}

// NewResolver builds a resolver. contact identifies this tool's operator in
// the User-Agent, as MusicBrainz asks of API consumers; when empty the
// project URL is sent instead.
func NewResolver(contact string, logger hclog.Logger) (*Resolver, error) {
	if contact == "" {
		contact = "https://github.com/Laesx/ytm-history-scrobbler"
	}
	ws, err := mb.NewWS2Client(wsBase, appName, appVersion, contact)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz client: %w", err)
	}
	return &Resolver{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		SearchBase: wsBase,
		// 1 req/s per MB guidelines
		Limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		ws:        ws,
		logger:    logger,
		userAgent: fmt.Sprintf("%s/%s (%s)", appName, appVersion, contact),
	}, nil
}

// recordingResponse is the recording search result, reduced to the fields
// the resolver reads.
type recordingResponse struct {
	Recordings []struct {
		ID       string `json:"id"`
		Score    int    `json:"score"`
		Releases []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"releases"`
	} `json:"recordings"`
}

// AlbumFor searches for a confidently matching recording and returns the
// title of its first release. The score gate keeps short or vague queries
// from matching garbage.
func (r *Resolver) AlbumFor(ctx context.Context, artist, track string) (string, bool) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return "", false
	}

	query := fmt.Sprintf("artist:%q AND recording:%q", artist, track)
	searchURL := fmt.Sprintf("%s/recording?query=%s&fmt=json&limit=5", r.SearchBase, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", false
	}
	// MusicBrainz requires a descriptive User-Agent
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		r.logger.Debug("musicbrainz search failed", "error", err)
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("musicbrainz search failed", "status", resp.StatusCode)
		return "", false
	}

	var decoded recordingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		r.logger.Debug("musicbrainz search response unreadable", "error", err)
		return "", false
	}

	for _, rec := range decoded.Recordings {
		if rec.Score <= 80 || len(rec.Releases) == 0 {
			continue
		}
		if title := r.releaseTitle(rec.Releases[0].ID, rec.Releases[0].Title); title != "" {
			return title, true
		}
	}
	return "", false
}

// releaseTitle resolves the canonical release title with a full lookup,
// keeping the title the search already carried when the lookup gives
// nothing better.
func (r *Resolver) releaseTitle(id, fromSearch string) string {
	var release *mb.Release
	lookup := func() error {
		var err error
		release, err = r.ws.LookupRelease(mb.MBID(id), "artists")
		return err
	}
	if err := backoff.Retry(lookup, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)); err != nil {
		r.logger.Debug("release lookup failed, keeping search title", "release", id, "error", err)
		return fromSearch
	}
	if release.Title == "" {
		return fromSearch
	}
	return release.Title
}
