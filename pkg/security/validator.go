package security

import (
	"errors"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxFileNameLength is the longest base name kept, in bytes. Most
	// filesystems cap a path component at 255 bytes and the stored name
	// also carries a 37 byte uuid prefix.
	MaxFileNameLength = 200
)

var (
	// ErrEmptyFileName is returned when nothing usable remains of a file name.
	ErrEmptyFileName = errors.New("file name is empty")
	// ErrInvalidFileName is returned for names with control characters.
	ErrInvalidFileName = errors.New("file name contains control characters")
)

// SanitizeFileName reduces an uploaded file name to its base name.
// Directory components from either separator style are dropped, so
// "../../etc/passwd" becomes "passwd" and "C:\\img\\a.png" becomes "a.png".
// Names longer than MaxFileNameLength are shortened, keeping the extension.
func SanitizeFileName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))

	if name == "" || name == "." || name == ".." || name == "/" {
		return "", ErrEmptyFileName
	}

	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return "", ErrInvalidFileName
	}

	return truncate(name, MaxFileNameLength), nil
}

// truncate cuts the stem of name so the whole name fits in limit bytes
// without splitting a UTF-8 sequence.
func truncate(name string, limit int) string {
	if len(name) <= limit {
		return name
	}

	ext := path.Ext(name)
	if len(ext) >= limit/2 {
		ext = ""
	}
	stem := name[:limit-len(ext)]
	for !utf8.ValidString(stem) {
		stem = stem[:len(stem)-1]
	}
	return stem + ext
}
