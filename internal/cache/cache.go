// Package cache is the persistent match cache: previously resolved
// enrichment results keyed by video id, plus the library upload snapshot
// under a reserved sentinel key. Backed by sqlite so an interrupted run
// loses at most the entries added since the last flush.
package cache

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Laesx/ytm-history-scrobbler/internal/models"
)

//go:embed schema.sql
var schema string

// snapshotKey is the reserved snapshot_cache key for the library uploads.
const snapshotKey = "library_uploads"

// Cache holds the full match cache in memory and flushes dirty entries to
// sqlite on Persist. A missing or corrupt database never fails the run: the
// cache degrades to memory-only and logs what happened.
type Cache struct {
	db      *sql.DB
	logger  hclog.Logger
	entries map[string]models.CacheEntry
	dirty   map[string]struct{}
}

// Open opens (or creates) the cache database at path. A corrupt database is
// moved aside and recreated empty; if sqlite cannot be used at all the cache
// runs memory-only for this process.
func Open(path string, logger hclog.Logger) *Cache {
	c := &Cache{
		logger:  logger,
		entries: make(map[string]models.CacheEntry),
		dirty:   make(map[string]struct{}),
	}

	db, err := openDatabase(path)
	if err != nil {
		logger.Warn("cache database unusable, retiring it", "file", path, "error", err)
		if renameErr := os.Rename(path, path+".corrupt"); renameErr != nil {
			logger.Warn("could not move corrupt cache aside", "error", renameErr)
		}
		db, err = openDatabase(path)
	}
	if err != nil {
		logger.Warn("running with memory-only cache", "error", err)
		return c
	}
	c.db = db
	return c
}

func openDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return db, nil
}

// Load populates the in-memory cache from disk. Any read failure leaves the
// cache empty; the run proceeds as if this were a first run.
func (c *Cache) Load() {
	if c.db == nil {
		return
	}
	rows, err := c.db.Query("SELECT video_id, artist_name, album_name FROM match_cache")
	if err != nil {
		c.logger.Warn("could not load match cache, starting empty", "error", err)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var entry models.CacheEntry
		if err := rows.Scan(&id, &entry.ArtistName, &entry.AlbumName); err != nil {
			c.logger.Warn("skipping unreadable cache row", "error", err)
			continue
		}
		c.entries[id] = entry
	}
	if err := rows.Err(); err != nil {
		c.logger.Warn("match cache load ended early", "error", err)
	}
	c.logger.Info("loaded match cache", "entries", len(c.entries))
}

// Get returns the cached entry for id, if any.
func (c *Cache) Get(id string) (models.CacheEntry, bool) {
	entry, ok := c.entries[id]
	return entry, ok
}

// Put records an entry for id. Last write wins; nothing ever removes a key.
// The entry reaches disk on the next Persist.
func (c *Cache) Put(id string, entry models.CacheEntry) {
	if id == "" {
		return
	}
	c.entries[id] = entry
	c.dirty[id] = struct{}{}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Persist flushes entries added or changed since the last flush in one
// transaction. Safe to call repeatedly; a no-op when nothing is dirty.
func (c *Cache) Persist() error {
	if c.db == nil || len(c.dirty) == 0 {
		return nil
	}
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("persist match cache: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO match_cache (video_id, artist_name, album_name, last_updated)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(video_id) DO UPDATE SET
			artist_name  = excluded.artist_name,
			album_name   = excluded.album_name,
			last_updated = CURRENT_TIMESTAMP;`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("persist match cache: %w", err)
	}
	defer stmt.Close()

	for id := range c.dirty {
		entry := c.entries[id]
		if _, err := stmt.Exec(id, entry.ArtistName, entry.AlbumName); err != nil {
			tx.Rollback()
			return fmt.Errorf("persist match cache entry %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persist match cache: %w", err)
	}
	c.logger.Debug("flushed match cache", "entries", len(c.dirty))
	c.dirty = make(map[string]struct{})
	return nil
}

// Snapshot returns the persisted library upload snapshot, if one exists.
func (c *Cache) Snapshot() ([]models.UploadRecord, bool) {
	if c.db == nil {
		return nil, false
	}
	var payload string
	err := c.db.QueryRow("SELECT payload FROM snapshot_cache WHERE cache_key = ?", snapshotKey).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("could not read library snapshot from cache", "error", err)
		return nil, false
	}
	var records []models.UploadRecord
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		c.logger.Warn("stored library snapshot is unreadable, ignoring it", "error", err)
		return nil, false
	}
	return records, true
}

// PutSnapshot stores the library upload snapshot under the sentinel key,
// replacing any previous one. Written through immediately: the snapshot is
// fetched once per run and is worth keeping even if the run dies early.
func (c *Cache) PutSnapshot(records []models.UploadRecord) error {
	if c.db == nil {
		return nil
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode library snapshot: %w", err)
	}
	_, err = c.db.Exec(`
		INSERT INTO snapshot_cache (cache_key, payload, fetched_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload    = excluded.payload,
			fetched_at = CURRENT_TIMESTAMP;`, snapshotKey, string(payload))
	if err != nil {
		return fmt.Errorf("store library snapshot: %w", err)
	}
	return nil
}

// Close flushes anything still dirty and closes the database.
func (c *Cache) Close() {
	if err := c.Persist(); err != nil {
		c.logger.Warn("final cache flush failed", "error", err)
	}
	if c.db != nil {
		c.db.Close()
	}
}
