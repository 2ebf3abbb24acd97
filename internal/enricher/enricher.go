// Package enricher resolves album metadata for parsed listens, one at a
// time, from the personal upload library or the public catalog, with a
// persistent match cache in front of both.
package enricher

import (
	"context"
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/Laesx/ytm-history-scrobbler/internal/models"
)

const (
	progressEvery = 5
	persistEvery  = 25

	// releaseSentinel is the artist label the export uses when a track had
	// no real channel page; the search result's artist replaces it.
	releaseSentinel = "Release"
	unknownArtist   = "Unknown"
)

// Catalog is the slice of the music service the engine needs.
type Catalog interface {
	SearchSongs(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
	LibraryUploads(ctx context.Context) ([]models.UploadRecord, error)
}

// Store is the slice of the match cache the engine needs.
type Store interface {
	Get(id string) (models.CacheEntry, bool)
	Put(id string, entry models.CacheEntry)
	Persist() error
	Snapshot() ([]models.UploadRecord, bool)
	PutSnapshot(records []models.UploadRecord) error
}

// Fallback is an optional secondary album source consulted when the catalog
// search comes up empty.
type Fallback interface {
	AlbumFor(ctx context.Context, artist, track string) (string, bool)
}

// Enricher owns all mutable state of one enrichment pass: the set of ids
// already tried this run, the resolution counter and the library snapshot
// memo. Nothing lives at package scope.
type Enricher struct {
	catalog Catalog
	store   Store
	logger  hclog.Logger

	fallback       Fallback
	refreshLibrary bool

	attempted    map[string]struct{}
	resolved     int
	pending      int
	snapshot     []models.UploadRecord
	snapshotErr  error
	snapshotDone bool
}

type Option func(*Enricher)

// WithFallback adds a secondary album resolver for catalog search misses.
func WithFallback(f Fallback) Option {
	return func(e *Enricher) { e.fallback = f }
}

// WithRefreshLibrary makes the engine refetch the upload library even when
// a stored snapshot exists.
func WithRefreshLibrary(refresh bool) Option {
	return func(e *Enricher) { e.refreshLibrary = refresh }
}

func New(catalog Catalog, store Store, logger hclog.Logger, opts ...Option) *Enricher {
	e := &Enricher{
		catalog:   catalog,
		store:     store,
		logger:    logger,
		attempted: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run resolves album metadata for every listen, in place and in input
// order. A failure on one listen never stops the pass; that listen just
// keeps an empty album. Returns how many listens ended up resolved.
func (e *Enricher) Run(ctx context.Context, listens []models.Listen) int {
	total := len(listens)
	for i := range listens {
		e.enrichOne(ctx, i, &listens[i])
		if completed := i + 1; completed%progressEvery == 0 || completed == total {
			e.logger.Info("progress", "completed", completed, "total", total, "resolved", e.resolved)
		}
	}
	e.flush()
	return e.resolved
}

func (e *Enricher) enrichOne(ctx context.Context, index int, listen *models.Listen) {
	id := listen.ExternalID
	if id != "" {
		if entry, ok := e.store.Get(id); ok {
			listen.AlbumName = entry.AlbumName
			listen.ArtistName = entry.ArtistName
			e.resolved++
			return
		}
		if _, tried := e.attempted[id]; tried {
			e.logger.Debug("skipping already queried id", "id", id)
			return
		}
	}

	ok, err := e.resolve(ctx, listen)
	if err != nil {
		e.logger.Warn("enrichment failed", "index", index, "track", listen.TrackName, "error", err)
		// The failure may be the first sign of a dying network; get what we
		// have onto disk while we still can.
		e.flush()
		return
	}
	if id != "" {
		e.attempted[id] = struct{}{}
	}
	if !ok {
		return
	}
	e.resolved++
	if id != "" {
		e.store.Put(id, models.CacheEntry{AlbumName: listen.AlbumName, ArtistName: listen.ArtistName})
		e.pending++
		if e.pending >= persistEvery {
			e.flush()
		}
	}
}

func (e *Enricher) flush() {
	if err := e.store.Persist(); err != nil {
		e.logger.Warn("cache flush failed", "error", err)
		return
	}
	e.pending = 0
}

// resolve enriches a single listen. The recover guard turns a panic in any
// resolution path into a per-item error so one malformed response cannot
// abort the batch.
func (e *Enricher) resolve(ctx context.Context, listen *models.Listen) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("resolver panic: %v", r)
		}
	}()
	if listen.IsLibraryUpload {
		return e.resolveUpload(ctx, listen)
	}
	return e.resolveFromSearch(ctx, listen)
}

func (e *Enricher) resolveUpload(ctx context.Context, listen *models.Listen) (bool, error) {
	uploads, err := e.libraryUploads(ctx)
	if err != nil {
		return false, err
	}

	var match *models.UploadRecord
	if listen.ExternalID != "" {
		match = matchUploadByID(uploads, listen.ExternalID)
	} else {
		match = matchUploadFuzzy(uploads, listen.ArtistName, listen.TrackName)
	}
	if match == nil {
		return false, nil
	}

	listen.AlbumName = match.Album.Name
	if artist := match.FirstArtist(); artist != "" {
		listen.ArtistName = artist
	} else {
		listen.ArtistName = unknownArtist
	}
	return true, nil
}

func (e *Enricher) resolveFromSearch(ctx context.Context, listen *models.Listen) (bool, error) {
	query := listen.ArtistName + " - " + listen.TrackName
	results, err := e.catalog.SearchSongs(ctx, query, 1)
	if err != nil {
		return false, err
	}

	if len(results) > 0 && results[0].AlbumName != "" {
		listen.AlbumName = results[0].AlbumName
		if listen.ArtistName == releaseSentinel {
			if artist := results[0].FirstArtist(); artist != "" {
				listen.ArtistName = artist
			}
		}
		return true, nil
	}

	if e.fallback != nil {
		if album, found := e.fallback.AlbumFor(ctx, listen.ArtistName, listen.TrackName); found {
			listen.AlbumName = album
			return true, nil
		}
	}
	return false, nil
}

// libraryUploads returns the upload snapshot, fetching it at most once per
// run. A snapshot stored by a previous run is reused unless the engine was
// told to refresh. A failed fetch is remembered too, so a dead catalog is
// hit once rather than once per upload listen.
func (e *Enricher) libraryUploads(ctx context.Context) ([]models.UploadRecord, error) {
	if e.snapshotDone {
		return e.snapshot, e.snapshotErr
	}
	e.snapshotDone = true

	if !e.refreshLibrary {
		if records, ok := e.store.Snapshot(); ok {
			e.logger.Info("using stored library snapshot", "tracks", len(records))
			e.snapshot = records
			return records, nil
		}
	}

	records, err := e.catalog.LibraryUploads(ctx)
	if err != nil {
		e.snapshotErr = fmt.Errorf("library snapshot: %w", err)
		return nil, e.snapshotErr
	}
	e.snapshot = records
	if err := e.store.PutSnapshot(records); err != nil {
		e.logger.Warn("could not store library snapshot", "error", err)
	}
	return records, nil
}

func matchUploadByID(uploads []models.UploadRecord, id string) *models.UploadRecord {
	for i := range uploads {
		if uploads[i].VideoID == id {
			return &uploads[i]
		}
	}
	return nil
}

// matchUploadFuzzy is the legacy id-less path: case-insensitive containment
// in both directions on artist and title. Containment alone multi-matches
// on short names, so Jaro-Winkler similarity picks among the candidates.
func matchUploadFuzzy(uploads []models.UploadRecord, artist, track string) *models.UploadRecord {
	wantArtist := strings.ToLower(artist)
	wantTrack := strings.ToLower(track)
	want := wantArtist + " " + wantTrack

	jw := metrics.NewJaroWinkler()
	var best *models.UploadRecord
	bestScore := -1.0
	for i := range uploads {
		upload := &uploads[i]
		haveArtist := strings.ToLower(upload.FirstArtist())
		haveTrack := strings.ToLower(upload.Title)
		if !containsEitherWay(wantArtist, haveArtist) || !containsEitherWay(wantTrack, haveTrack) {
			continue
		}
		score := strutil.Similarity(want, haveArtist+" "+haveTrack, jw)
		if score > bestScore {
			bestScore = score
			best = upload
		}
	}
	return best
}

func containsEitherWay(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
