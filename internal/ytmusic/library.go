package ytmusic

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Laesx/ytm-history-scrobbler/internal/models"
)

// uploadsBrowseID is the browse target for the account's uploaded tracks.
const uploadsBrowseID = "FEmusic_library_privately_owned_tracks"

// LibraryUploads fetches every privately-owned track in the account's
// library, following shelf continuations until the last page.
func (c *Client) LibraryUploads(ctx context.Context) ([]models.UploadRecord, error) {
	response, err := c.call(ctx, "browse", map[string]any{"browseId": uploadsBrowseID}, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch library uploads: %w", err)
	}

	shelf := uploadsShelf(response)
	if len(shelf) == 0 {
		return nil, fmt.Errorf("library uploads: no shelf in response")
	}
	records := parseUploadItems(getSlice(shelf, "contents"))

	token := continuationToken(shelf)
	for token != "" {
		query := url.Values{"ctoken": {token}, "continuation": {token}}
		response, err := c.call(ctx, "browse", map[string]any{}, query)
		if err != nil {
			return nil, fmt.Errorf("fetch library uploads page: %w", err)
		}
		continuation := getMap(getMap(response, "continuationContents"), "musicShelfContinuation")
		records = append(records, parseUploadItems(getSlice(continuation, "contents"))...)
		token = continuationToken(continuation)
		c.logger.Debug("fetched library uploads page", "total", len(records))
	}

	c.logger.Info("fetched library uploads", "tracks", len(records))
	return records, nil
}

func uploadsShelf(response map[string]any) map[string]any {
	tabs := getSlice(getMap(getMap(response, "contents"), "singleColumnBrowseResultsRenderer"), "tabs")
	tab := getMap(mapAt(tabs, 0), "tabRenderer")
	sections := getSlice(getMap(getMap(tab, "content"), "sectionListRenderer"), "contents")
	for _, section := range sections {
		if shelf := getMap(asMap(section), "musicShelfRenderer"); len(shelf) > 0 {
			return shelf
		}
	}
	return nil
}

// parseUploadItems converts shelf rows into upload records. Upload rows put
// the title in flex column 0, the artist in 1 and the album in 2; any of
// them may be missing on untagged files.
func parseUploadItems(items []any) []models.UploadRecord {
	var records []models.UploadRecord
	for _, item := range items {
		renderer := getMap(asMap(item), "musicResponsiveListItemRenderer")
		if len(renderer) == 0 {
			continue
		}
		record := models.UploadRecord{
			VideoID: getString(getMap(renderer, "playlistItemData"), "videoId"),
			Title:   flexColumnText(renderer, 0),
			Album:   models.AlbumRef{Name: flexColumnText(renderer, 2)},
		}
		if artist := flexColumnText(renderer, 1); artist != "" {
			record.Artists = []models.ArtistRef{{Name: artist}}
		}
		if record.VideoID == "" && record.Title == "" {
			continue
		}
		records = append(records, record)
	}
	return records
}
