package parser

import (
	"regexp"
	"strings"
)

var (
	videoNoiseRe = regexp.MustCompile(`(?i)[(\[](official (music )?video|official audio|audio|video|lyrics?( video)?|visuali[sz]er|hd|remaster(ed)?)[)\]]`)
	featRe       = regexp.MustCompile(`(?i)\bfeat\b\.?`)
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	titleSplitRe = regexp.MustCompile(`\s+[-–—|:]\s+`)
)

// SplitVideoTitle breaks a raw video title into artist and track for a
// catalog query. Uploads rarely follow one convention, so this is heuristic:
// bracketed noise goes first, then an "Artist - Title" split is attempted,
// and the uploader channel fills in when no split exists.
func SplitVideoTitle(rawTitle, uploader string) (artist, track string) {
	t := videoNoiseRe.ReplaceAllString(rawTitle, "")
	t = featRe.ReplaceAllString(t, "ft.")
	t = strings.TrimSpace(multiSpaceRe.ReplaceAllString(t, " "))

	if parts := titleSplitRe.Split(t, 2); len(parts) == 2 {
		left, right := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if looksLikeArtist(left, right) {
			return left, right
		}
		return right, left
	}

	if uploader != "" {
		return artistName(uploader), t
	}
	return "", t
}

// looksLikeArtist guesses which side of a split names the artist: comma or
// feature lists read as artist credits, as does a short left side next to a
// longer right side.
func looksLikeArtist(left, right string) bool {
	lower := strings.ToLower(left)
	if strings.Contains(left, ",") || strings.Contains(lower, "ft.") || strings.Contains(lower, "feat") {
		return true
	}
	return len(strings.Fields(left)) <= 4 && len(strings.Fields(right)) >= 2
}
