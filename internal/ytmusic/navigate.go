package ytmusic

// Innertube responses nest renderers a dozen levels deep and reshuffle them
// between client versions. Everything below navigates them as loose maps:
// a missing node yields a zero value, never a panic.

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func getString(m map[string]any, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

func getMap(m map[string]any, key string) map[string]any {
	if val, ok := m[key].(map[string]any); ok {
		return val
	}
	return map[string]any{}
}

func getSlice(m map[string]any, key string) []any {
	if val, ok := m[key].([]any); ok {
		return val
	}
	return nil
}

func mapAt(s []any, index int) map[string]any {
	if index < 0 || index >= len(s) {
		return map[string]any{}
	}
	return asMap(s[index])
}

// flexColumnRuns returns the text runs of the index-th flex column of a
// musicResponsiveListItemRenderer.
func flexColumnRuns(item map[string]any, index int) []any {
	cols := getSlice(item, "flexColumns")
	col := getMap(mapAt(cols, index), "musicResponsiveListItemFlexColumnRenderer")
	return getSlice(getMap(col, "text"), "runs")
}

// flexColumnText returns the first run's text of the index-th flex column.
func flexColumnText(item map[string]any, index int) string {
	return getString(mapAt(flexColumnRuns(item, index), 0), "text")
}

// runPageType reports what a secondary-line run links to (artist page,
// album page, ...); empty for plain text runs like separators and durations.
func runPageType(run map[string]any) string {
	endpoint := getMap(getMap(run, "navigationEndpoint"), "browseEndpoint")
	configs := getMap(endpoint, "browseEndpointContextSupportedConfigs")
	return getString(getMap(configs, "browseEndpointContextMusicConfig"), "pageType")
}

// continuationToken pulls the next-page token out of a shelf or a shelf
// continuation; empty when this was the last page.
func continuationToken(shelf map[string]any) string {
	conts := getSlice(shelf, "continuations")
	return getString(getMap(mapAt(conts, 0), "nextContinuationData"), "continuation")
}
