// Package mediatype classifies remote files for display and streaming.
package mediatype

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the coarse category of a file.
type Kind int

const (
	Other Kind = iota
	Image
	Video
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Video:
		return "video"
	default:
		return "other"
	}
}

var imageExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {}, "webp": {}, "heic": {}, "heif": {},
}

var videoExtensions = map[string]struct{}{
	"mp4": {}, "mkv": {}, "avi": {}, "mov": {}, "wmv": {}, "flv": {}, "webm": {}, "m4v": {}, "3gp": {},
}

// Classify returns the kind of name based on its extension alone.
// Matching is case-insensitive.
func Classify(name string) Kind {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if _, ok := imageExtensions[ext]; ok {
		return Image
	}
	if _, ok := videoExtensions[ext]; ok {
		return Video
	}
	return Other
}

func IsImage(name string) bool { return Classify(name) == Image }
func IsVideo(name string) bool { return Classify(name) == Video }

// IsMedia reports whether name is an image or a video.
func IsMedia(name string) bool { return Classify(name) != Other }

// Detect sniffs the leading bytes of a file. It returns the MIME type and
// the kind implied by it. The first 3 KiB are enough for every format
// Classify knows about.
func Detect(data []byte) (string, Kind) {
	m := mimetype.Detect(data)
	return m.String(), kindOf(m)
}

// Resolve prefers content sniffing and falls back to the extension when
// the content is not recognised as media.
func Resolve(name string, head []byte) Kind {
	if len(head) > 0 {
		if _, k := Detect(head); k != Other {
			return k
		}
	}
	return Classify(name)
}

func kindOf(m *mimetype.MIME) Kind {
	for ; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "image/"):
			return Image
		case strings.HasPrefix(m.String(), "video/"):
			return Video
		}
	}
	return Other
}
