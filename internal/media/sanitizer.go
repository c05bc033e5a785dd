package media

import (
	"net/url"
	"path"
	"strings"
)

const unnamedFile = "image"

type FileSanitizer struct{}

func NewFileSanitizer() *FileSanitizer {
	return &FileSanitizer{}
}

// FilenameFromURL returns the sanitised last path segment of rawURL. Query
// strings and fragments are ignored.
func (s *FileSanitizer) FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return s.SanitizeFilename(rawURL)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = ""
	}
	return s.SanitizeFilename(name)
}

// SanitizeFilename makes name safe for a Content-Disposition header and for
// the destination's uploads directory.
func (s *FileSanitizer) SanitizeFilename(name string) string {
	// Only the final element survives path traversal attempts.
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return unnamedFile
	}

	// Replace characters that break headers or filesystems
	unsafe := []string{":", "*", "?", "\"", "<", ">", "|", ";", "\r", "\n", "\t"}
	for _, char := range unsafe {
		name = strings.ReplaceAll(name, char, "_")
	}

	name = strings.TrimSpace(name)
	name = strings.Join(strings.Fields(name), "-")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return unnamedFile
	}
	return name
}

// Extension returns the lower-cased extension of name without the dot.
func (s *FileSanitizer) Extension(name string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
}
