package ytmusic

import (
	"context"
	"regexp"

	"github.com/Laesx/ytm-history-scrobbler/internal/models"
)

// songsFilterParams restricts search results to the Songs shelf.
const songsFilterParams = "EgWKAQIIAWoMEA4QChADEAQQCRAF"

var durationRe = regexp.MustCompile(`^\d+:\d{2}$`)

// SearchSongs runs a catalog search restricted to song results and returns
// at most limit parsed hits, in shelf order. limit <= 0 returns everything
// the first response page carries.
func (c *Client) SearchSongs(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	response, err := c.call(ctx, "search", map[string]any{
		"query":  query,
		"params": songsFilterParams,
	}, nil)
	if err != nil {
		return nil, err
	}

	var results []models.SearchResult
	for _, shelf := range searchShelves(response) {
		for _, item := range getSlice(shelf, "contents") {
			renderer := getMap(asMap(item), "musicResponsiveListItemRenderer")
			if len(renderer) == 0 {
				continue
			}
			parsed := parseSongItem(renderer)
			if parsed.Title == "" {
				continue
			}
			results = append(results, parsed)
			if limit > 0 && len(results) >= limit {
				return results, nil
			}
		}
	}
	return results, nil
}

func searchShelves(response map[string]any) []map[string]any {
	tabs := getSlice(getMap(getMap(response, "contents"), "tabbedSearchResultsRenderer"), "tabs")
	tab := getMap(mapAt(tabs, 0), "tabRenderer")
	sections := getSlice(getMap(getMap(tab, "content"), "sectionListRenderer"), "contents")

	var shelves []map[string]any
	for _, section := range sections {
		if shelf := getMap(asMap(section), "musicShelfRenderer"); len(shelf) > 0 {
			shelves = append(shelves, shelf)
		}
	}
	return shelves
}

// parseSongItem reduces a song list item to title, artists and album. The
// secondary line is "Artist • Album • 3:42"; artist and album runs carry
// browse endpoints, separators and the duration do not.
func parseSongItem(item map[string]any) models.SearchResult {
	result := models.SearchResult{Title: flexColumnText(item, 0)}

	secondary := flexColumnRuns(item, 1)
	for _, r := range secondary {
		run := asMap(r)
		switch runPageType(run) {
		case "MUSIC_PAGE_TYPE_ARTIST", "MUSIC_PAGE_TYPE_USER_CHANNEL":
			result.Artists = append(result.Artists, models.ArtistRef{Name: getString(run, "text")})
		case "MUSIC_PAGE_TYPE_ALBUM":
			result.AlbumName = getString(run, "text")
		}
	}
	if len(result.Artists) == 0 && result.AlbumName == "" {
		// Older shape without browse endpoints: positional runs. Guard the
		// album slot against "Artist • 3:42" single results.
		if name := getString(mapAt(secondary, 0), "text"); name != "" {
			result.Artists = append(result.Artists, models.ArtistRef{Name: name})
		}
		if album := getString(mapAt(secondary, 2), "text"); album != "" && !durationRe.MatchString(album) {
			result.AlbumName = album
		}
	}
	return result
}
