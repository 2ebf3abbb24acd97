package parser

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/Laesx/ytm-history-scrobbler/internal/models"
)

const (
	musicHeader   = "YouTube Music"
	topicMarker   = " - Topic"
	libraryMarker = "Music Library Uploads"
	watchedPrefix = "Watched "

	// carvePrefixLen is the width of the `{"name":"` framing the degraded
	// subtitle carve strips. Go's compact encoding has no space after the
	// colon, so this is one byte narrower than the original tool's offset.
	carvePrefixLen = 9
)

// historyRecord is the subset of a Takeout watch-history entry this tool
// reads. Extra fields are ignored.
type historyRecord struct {
	Header    string          `json:"header"`
	Title     string          `json:"title"`
	TitleURL  string          `json:"titleUrl"`
	Subtitles json.RawMessage `json:"subtitles"`
	Time      string          `json:"time"`
}

// ParseHistoryFile reads a watch-history.json export and returns the music
// listens it contains, in file order. An unreadable or malformed file logs a
// warning and yields an empty slice; the run continues with degraded output.
func ParseHistoryFile(path string, logger hclog.Logger) []models.Listen {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("could not read watch history", "file", path, "error", err)
		return nil
	}
	return ParseHistory(data, logger)
}

// ParseHistory converts raw export bytes into the ordered Listen sequence.
// A record survives only if its header is the YouTube Music category and its
// channel label identifies either a topic channel or a library upload.
func ParseHistory(data []byte, logger hclog.Logger) []models.Listen {
	var records []historyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		logger.Warn("could not parse watch history", "error", err)
		return nil
	}

	var listens []models.Listen
	for i, rec := range records {
		if rec.Header != musicHeader {
			continue
		}
		rawLabel := subtitleLabel(rec.Subtitles, logger, i)
		if rawLabel == "" {
			continue
		}
		if !strings.Contains(rawLabel, topicMarker) && !strings.Contains(rawLabel, libraryMarker) {
			continue
		}
		listens = append(listens, models.Listen{
			ArtistName:      artistName(rawLabel),
			TrackName:       strings.TrimPrefix(rec.Title, watchedPrefix),
			Timestamp:       rec.Time,
			ExternalID:      ExternalID(rec.TitleURL),
			IsLibraryUpload: strings.Contains(rawLabel, libraryMarker),
		})
	}
	logger.Info("parsed watch history", "music listens", len(listens))
	return listens
}

// subtitleLabel extracts the channel label from the polymorphic subtitles
// field: a non-empty list of {name} objects, a bare {name} object, or, in
// degraded exports, an opaque value the label is carved out of.
func subtitleLabel(raw json.RawMessage, logger hclog.Logger, index int) string {
	if len(raw) == 0 {
		return ""
	}
	var list []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return ""
		}
		return list[0].Name
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Name
	}
	label := carveLabel(raw)
	if label == "" {
		logger.Warn("unparseable subtitle shape, skipping record", "index", index)
	} else {
		logger.Warn("subtitle shape unrecognized, carved label from raw JSON", "index", index, "label", label)
	}
	return label
}

// carveLabel is the last-resort label extraction: compact the raw JSON, cut
// at the first comma and strip the `{"name":"` framing. Best effort only;
// a comma inside the name truncates it, same as the tool this replaces.
func carveLabel(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return ""
	}
	s := buf.String()
	i := strings.Index(s, ",")
	if i < 0 {
		return ""
	}
	seg := []rune(s[:i])
	if len(seg) <= carvePrefixLen+1 {
		return ""
	}
	return string(seg[carvePrefixLen : len(seg)-1])
}

// artistName derives the display artist from the raw channel label: topic
// channels drop the fixed-width " - Topic" tail, library uploads keep the
// label unchanged. Escaped quotes from the export are unescaped either way.
func artistName(rawLabel string) string {
	name := rawLabel
	if strings.Contains(rawLabel, topicMarker) {
		r := []rune(rawLabel)
		name = string(r[:len(r)-len(topicMarker)])
	}
	return strings.ReplaceAll(name, `\"`, `"`)
}

// ExternalID keeps the final "="-separated segment of the title URL, which
// for music.youtube.com watch URLs is the video id. No URL means no id, and
// a bare id passes through unchanged.
func ExternalID(titleURL string) string {
	if titleURL == "" {
		return ""
	}
	parts := strings.Split(titleURL, "=")
	return parts[len(parts)-1]
}
