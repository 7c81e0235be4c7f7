package archive

import (
	"fmt"
	"strings"
)

// maxFilenameLen bounds sanitized archive entry names, matching the bound
// the original exports were produced with.
const maxFilenameLen = 100

// SanitizeFilename turns a video title into a filesystem-safe archive entry
// name. Characters illegal in paths are replaced with underscores and the
// result is truncated. When the title is empty it falls back to the video
// id, then to a positional transcript_<n> placeholder.
func SanitizeFilename(title, videoID string, position int) string {
	name := title
	if name == "" {
		name = videoID
	}
	if name == "" {
		name = fmt.Sprintf("transcript_%d", position+1)
	}

	name = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)

	runes := []rune(name)
	if len(runes) > maxFilenameLen {
		name = string(runes[:maxFilenameLen])
	}
	return name
}
