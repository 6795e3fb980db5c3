// Package media classifies file paths and URL locators into the media
// kinds the pipeline knows how to process. Classification is by extension
// allow-list only; content sniffing is a backend concern.
package media

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Kind is the coarse media classification driving backend selection.
type Kind string

const (
	KindAudio   Kind = "audio"
	KindVideo   Kind = "video"
	KindImage   Kind = "image"
	KindUnknown Kind = "unknown"
)

func (k Kind) String() string { return string(k) }

// Default extension allow-lists. Overridable via the file_types config
// section; extensions are matched case-insensitively and without the dot.
var (
	defaultAudio = []string{"mp3", "wav", "flac", "aac", "ogg", "m4a", "webm"}
	defaultVideo = []string{"mp4", "avi", "mov", "mkv", "wmv", "m4v", "ogv"}
	defaultImage = []string{"jpg", "jpeg", "png", "gif", "bmp", "svg", "webp"}
)

// Table maps file extensions to media kinds.
type Table struct {
	byExt map[string]Kind
}

// NewTable builds a classification table from explicit extension lists.
// Empty lists fall back to the defaults for that kind. When an extension
// appears in more than one list the first kind (audio, video, image order)
// wins.
func NewTable(audio, video, image []string) *Table {
	if len(audio) == 0 {
		audio = defaultAudio
	}
	if len(video) == 0 {
		video = defaultVideo
	}
	if len(image) == 0 {
		image = defaultImage
	}

	byExt := make(map[string]Kind, len(audio)+len(video)+len(image))
	add := func(exts []string, kind Kind) {
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
			if ext == "" {
				continue
			}
			if _, taken := byExt[ext]; taken {
				continue
			}
			byExt[ext] = kind
		}
	}
	add(audio, KindAudio)
	add(video, KindVideo)
	add(image, KindImage)
	return &Table{byExt: byExt}
}

// DefaultTable returns a table over the built-in extension lists.
func DefaultTable() *Table {
	return NewTable(nil, nil, nil)
}

// KindForPath classifies a filesystem path by its extension.
func (t *Table) KindForPath(path string) Kind {
	return t.kindForExt(filepath.Ext(path))
}

// KindForLocator classifies a URL or plain path, ignoring any query string
// or fragment when the locator parses as a URL.
func (t *Table) KindForLocator(locator string) Kind {
	if u, err := url.Parse(locator); err == nil && u.Scheme != "" {
		return t.kindForExt(filepath.Ext(u.Path))
	}
	return t.KindForPath(locator)
}

// Supported reports whether the locator maps to any known media kind.
func (t *Table) Supported(locator string) bool {
	return t.KindForLocator(locator) != KindUnknown
}

func (t *Table) kindForExt(ext string) Kind {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return KindUnknown
	}
	if kind, ok := t.byExt[ext]; ok {
		return kind
	}
	return KindUnknown
}
