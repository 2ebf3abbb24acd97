// Package export writes the dataset files consumed by Last.fm Scrubbler WPF's
// JSON file parser.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Laesx/ytm-history-scrobbler/internal/models"
)

// chunkSize is the largest listen count the Scrubbler import handles
// comfortably in one file.
const chunkSize = 2800

// WriteFormatted writes the final dataset under dir: a single formatted.json
// below the chunk threshold, numbered formatted-<n>.json files at or above
// it. Internal fields are stripped and input order is preserved. Returns the
// paths written.
func WriteFormatted(dir string, listens []models.Listen) ([]string, error) {
	formatted := make([]models.FormattedListen, len(listens))
	for i, l := range listens {
		formatted[i] = l.Formatted()
	}

	if len(formatted) < chunkSize {
		path := filepath.Join(dir, "formatted.json")
		if err := writeJSON(path, formatted); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	var paths []string
	for start := 0; start < len(formatted); start += chunkSize {
		end := min(start+chunkSize, len(formatted))
		path := filepath.Join(dir, fmt.Sprintf("formatted-%d.json", len(paths)+1))
		if err := writeJSON(path, formatted[start:end]); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteSnapshot writes the pre-enrichment snapshot, internal fields included,
// so a run can be eyeballed before any network traffic happens.
func WriteSnapshot(dir string, listens []models.Listen) (string, error) {
	if listens == nil {
		listens = []models.Listen{}
	}
	path := filepath.Join(dir, "formatted-test.json")
	if err := writeJSON(path, listens); err != nil {
		return "", err
	}
	return path, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
