package upload

import (
	"fmt"
	"path/filepath"
	"strings"
)

const GifMIMEType = "image/gif"

// MediaKind decides which preview element a selected file gets.
type MediaKind int

const (
	KindGIF MediaKind = iota
	KindVideo
)

func (k MediaKind) String() string {
	switch k {
	case KindGIF:
		return "gif"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

func (k MediaKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *MediaKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "gif":
		*k = KindGIF
	case "video":
		*k = KindVideo
	default:
		return fmt.Errorf("unknown media kind %q", text)
	}
	return nil
}

// KindFromMIME matches the declared type exactly; everything that is not a
// gif is treated as video.
func KindFromMIME(mimeType string) MediaKind {
	if mimeType == GifMIMEType {
		return KindGIF
	}
	return KindVideo
}

// AcceptedExtensions mirrors the file picker filter of the upload page.
var AcceptedExtensions = []string{".gif", ".mp4", ".mov"}

func AcceptedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, accepted := range AcceptedExtensions {
		if ext == accepted {
			return true
		}
	}
	return false
}
