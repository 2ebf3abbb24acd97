package parser

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/Laesx/ytm-history-scrobbler/internal/models"
)

func parse(t *testing.T, raw string) []models.Listen {
	t.Helper()
	return ParseHistory([]byte(raw), hclog.NewNullLogger())
}

func TestParseHistory_SingleTopicRecord(t *testing.T) {
	raw := `[{
		"header": "YouTube Music",
		"subtitles": [{"name": "Foo - Topic"}],
		"title": "Watched Bar",
		"titleUrl": "http://x?v=abc",
		"time": "t1"
	}]`

	listens := parse(t, raw)
	if len(listens) != 1 {
		t.Fatalf("len = %d, want 1", len(listens))
	}

	want := models.Listen{
		ArtistName:      "Foo",
		TrackName:       "Bar",
		Timestamp:       "t1",
		ExternalID:      "abc",
		IsLibraryUpload: false,
	}
	if listens[0] != want {
		t.Errorf("listen = %+v, want %+v", listens[0], want)
	}
}

func TestParseHistory_Filtering(t *testing.T) {
	tests := []struct {
		name   string
		record string
		kept   bool
	}{
		{
			name:   "wrong header",
			record: `{"header": "YouTube", "subtitles": [{"name": "Foo - Topic"}], "title": "Watched X"}`,
			kept:   false,
		},
		{
			name:   "plain channel without marker",
			record: `{"header": "YouTube Music", "subtitles": [{"name": "Some Vlogger"}], "title": "Watched X"}`,
			kept:   false,
		},
		{
			name:   "topic channel",
			record: `{"header": "YouTube Music", "subtitles": [{"name": "Foo - Topic"}], "title": "Watched X"}`,
			kept:   true,
		},
		{
			name:   "library upload",
			record: `{"header": "YouTube Music", "subtitles": [{"name": "Music Library Uploads"}], "title": "Watched X"}`,
			kept:   true,
		},
		{
			name:   "missing subtitles",
			record: `{"header": "YouTube Music", "title": "Watched X"}`,
			kept:   false,
		},
		{
			name:   "empty subtitle list",
			record: `{"header": "YouTube Music", "subtitles": [], "title": "Watched X"}`,
			kept:   false,
		},
		{
			name:   "subtitle list entry with no name",
			record: `{"header": "YouTube Music", "subtitles": [{"url": "u"}], "title": "Watched X"}`,
			kept:   false,
		},
		{
			name:   "unrecognized subtitle shape",
			record: `{"header": "YouTube Music", "subtitles": ["just", "strings"], "title": "Watched X"}`,
			kept:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			listens := parse(t, "["+tc.record+"]")
			if got := len(listens) == 1; got != tc.kept {
				t.Errorf("kept = %v, want %v (listens: %+v)", got, tc.kept, listens)
			}
		})
	}
}

func TestParseHistory_ArtistDerivation(t *testing.T) {
	tests := []struct {
		name       string
		label      string
		wantArtist string
		wantUpload bool
	}{
		{"topic suffix stripped", "Artist X - Topic", "Artist X", false},
		{"library label kept verbatim", "Music Library Uploads", "Music Library Uploads", true},
		{"escaped quotes unescaped", `ab\"cd - Topic`, `ab"cd`, false},
		{"multibyte artist", "Sigur Rós - Topic", "Sigur Rós", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sub, err := json.Marshal([]map[string]string{{"name": tc.label}})
			if err != nil {
				t.Fatal(err)
			}
			raw := `[{"header": "YouTube Music", "subtitles": ` + string(sub) + `, "title": "Watched X", "time": "t"}]`
			listens := parse(t, raw)
			if len(listens) != 1 {
				t.Fatalf("len = %d, want 1", len(listens))
			}
			if listens[0].ArtistName != tc.wantArtist {
				t.Errorf("artist = %q, want %q", listens[0].ArtistName, tc.wantArtist)
			}
			if listens[0].IsLibraryUpload != tc.wantUpload {
				t.Errorf("isLibraryUpload = %v, want %v", listens[0].IsLibraryUpload, tc.wantUpload)
			}
		})
	}
}

func TestParseHistory_BareObjectSubtitle(t *testing.T) {
	raw := `[{"header": "YouTube Music", "subtitles": {"name": "Solo - Topic"}, "title": "Watched Y", "time": "t"}]`
	listens := parse(t, raw)
	if len(listens) != 1 {
		t.Fatalf("len = %d, want 1", len(listens))
	}
	if listens[0].ArtistName != "Solo" {
		t.Errorf("artist = %q, want Solo", listens[0].ArtistName)
	}
}

func TestParseHistory_ExternalID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"watch url", "https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"multiple params keeps last segment", "https://x/watch?v=abc&list=def", "def"},
		{"no url", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := map[string]any{
				"header":    "YouTube Music",
				"subtitles": []map[string]string{{"name": "A - Topic"}},
				"title":     "Watched X",
				"time":      "t",
			}
			if tc.url != "" {
				rec["titleUrl"] = tc.url
			}
			raw, err := json.Marshal([]any{rec})
			if err != nil {
				t.Fatal(err)
			}
			listens := parse(t, string(raw))
			if len(listens) != 1 {
				t.Fatalf("len = %d, want 1", len(listens))
			}
			if listens[0].ExternalID != tc.want {
				t.Errorf("externalId = %q, want %q", listens[0].ExternalID, tc.want)
			}
		})
	}
}

func TestParseHistory_TitlePrefix(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Watched Bar", "Bar"},
		{"Bar", "Bar"},
		{"", ""},
	}
	for _, tc := range tests {
		raw := `[{"header": "YouTube Music", "subtitles": [{"name": "A - Topic"}], "title": ` + string(mustJSON(tc.title)) + `, "time": "t"}]`
		listens := parse(t, raw)
		if len(listens) != 1 {
			t.Fatalf("title %q: len = %d, want 1", tc.title, len(listens))
		}
		if listens[0].TrackName != tc.want {
			t.Errorf("title %q: track = %q, want %q", tc.title, listens[0].TrackName, tc.want)
		}
	}
}

func TestParseHistory_PreservesOrder(t *testing.T) {
	raw := `[
		{"header": "YouTube Music", "subtitles": [{"name": "A - Topic"}], "title": "Watched One", "time": "t1"},
		{"header": "YouTube", "subtitles": [{"name": "Noise"}], "title": "Watched skip"},
		{"header": "YouTube Music", "subtitles": [{"name": "B - Topic"}], "title": "Watched Two", "time": "t2"},
		{"header": "YouTube Music", "subtitles": [{"name": "Music Library Uploads"}], "title": "Watched Three", "time": "t3"}
	]`
	listens := parse(t, raw)
	if len(listens) != 3 {
		t.Fatalf("len = %d, want 3", len(listens))
	}
	for i, want := range []string{"One", "Two", "Three"} {
		if listens[i].TrackName != want {
			t.Errorf("listens[%d].TrackName = %q, want %q", i, listens[i].TrackName, want)
		}
	}
}

func TestParseHistory_MalformedInput(t *testing.T) {
	if got := parse(t, `{not json`); len(got) != 0 {
		t.Errorf("malformed input: len = %d, want 0", len(got))
	}
	if got := parse(t, `{"an": "object, not a list"}`); len(got) != 0 {
		t.Errorf("non-list input: len = %d, want 0", len(got))
	}
}

func TestParseHistoryFile_MissingFile(t *testing.T) {
	listens := ParseHistoryFile(filepath.Join(t.TempDir(), "nope.json"), hclog.NewNullLogger())
	if len(listens) != 0 {
		t.Errorf("len = %d, want 0", len(listens))
	}
}

func TestParseHistoryFile_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watch-history.json")
	raw := `[{"header": "YouTube Music", "subtitles": [{"name": "A - Topic"}], "title": "Watched X", "titleUrl": "u?v=id1", "time": "t"}]`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}
	listens := ParseHistoryFile(path, hclog.NewNullLogger())
	if len(listens) != 1 || listens[0].ExternalID != "id1" {
		t.Errorf("listens = %+v, want one entry with id1", listens)
	}
}

func TestCarveLabel(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"name-first object", `{"name":"Foo - Topic","url":"x"}`, "Foo - Topic"},
		{"spaced input is compacted first", `{ "name" : "Foo - Topic" , "url" : "x" }`, "Foo - Topic"},
		{"no comma", `{"name":"Foo"}`, ""},
		{"too short", `{"a":1,"b":2}`, ""},
		{"invalid json", `{{{`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := carveLabel([]byte(tc.raw)); got != tc.want {
				t.Errorf("carveLabel(%s) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
