package validate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Limits shared by the upload handler and the upload page script.
const (
	MaxFileNameLength = 255
	MaxUploadBytes    = 100 << 20
	MaxSlugLength     = 200
	MaxUsernameLength = 100
	MaxGifIDLength    = 100
)

var (
	slugPattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	gifIDPattern    = regexp.MustCompile(`^[A-Za-z0-9]+$`)
)

var uploadExtensions = []string{".gif", ".mp4", ".mov"}

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func checkPattern(value string, max int, pattern *regexp.Regexp, field string) string {
	if value == "" {
		return field + " is required"
	}
	if msg := checkLen(value, max, field); msg != "" {
		return msg
	}
	if !pattern.MatchString(value) {
		return "invalid " + field
	}
	return ""
}

func FileName(s string) string {
	if strings.TrimSpace(s) == "" {
		return "file name is required"
	}
	if msg := checkLen(s, MaxFileNameLength, "file name"); msg != "" {
		return msg
	}
	ext := strings.ToLower(filepath.Ext(s))
	for _, accepted := range uploadExtensions {
		if ext == accepted {
			return ""
		}
	}
	return "only " + strings.Join(uploadExtensions, ", ") + " files can be uploaded"
}

// UploadSize checks n against max, falling back to MaxUploadBytes when max is not positive.
func UploadSize(n, max int64) string {
	if max <= 0 {
		max = MaxUploadBytes
	}
	if n <= 0 {
		return "file is empty"
	}
	if n > max {
		return fmt.Sprintf("file must be %d MB or smaller", max>>20)
	}
	return ""
}

func Slug(s string) string { return checkPattern(s, MaxSlugLength, slugPattern, "slug") }
func Username(s string) string {
	return checkPattern(s, MaxUsernameLength, usernamePattern, "username")
}
func GifID(s string) string { return checkPattern(s, MaxGifIDLength, gifIDPattern, "gif id") }

// FieldLimits returns a map of field names to limits for the /api/limits endpoint.
func FieldLimits() map[string]any {
	return map[string]any{
		"fileName":         MaxFileNameLength,
		"uploadBytes":      MaxUploadBytes,
		"uploadExtensions": uploadExtensions,
	}
}
