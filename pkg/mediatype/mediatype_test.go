package mediatype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"photo.jpg", Image},
		{"PHOTO.JPEG", Image},
		{"/dcim/IMG_0001.HEIC", Image},
		{"clip.mp4", Video},
		{"movie.MKV", Video},
		{"phone.3gp", Video},
		{"readme.md", Other},
		{"archive.tar.gz", Other},
		{"noext", Other},
		{".jpg.txt", Other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.name))
		})
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsImage("a.png"))
	assert.False(t, IsImage("a.mov"))
	assert.True(t, IsVideo("a.mov"))
	assert.True(t, IsMedia("a.webp"))
	assert.False(t, IsMedia("a.json"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "image", Image.String())
	assert.Equal(t, "video", Video.String())
	assert.Equal(t, "other", Other.String())
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestDetect(t *testing.T) {
	mime, kind := Detect(pngHeader)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, Image, kind)

	mime, kind = Detect([]byte("This is sample file content from the NFS server."))
	assert.Contains(t, mime, "text/plain")
	assert.Equal(t, Other, kind)
}

func TestResolve(t *testing.T) {
	// Content wins over a misleading name.
	assert.Equal(t, Image, Resolve("download.bin", pngHeader))
	// Unrecognised content falls back to the extension.
	assert.Equal(t, Video, Resolve("clip.mp4", []byte("not really a video")))
	assert.Equal(t, Video, Resolve("clip.mp4", nil))
}
