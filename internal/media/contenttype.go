package media

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const octetStream = "application/octet-stream"

var contentTypeByExtension = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"pdf":  "application/pdf",
}

// DetectContentType infers the MIME type of an upload. The bytes win over the
// filename extension, which wins over the header the source sent.
func DetectContentType(filename string, body []byte, header string) string {
	if len(body) > 0 {
		detected := mimetype.Detect(body)
		if !detected.Is(octetStream) && !detected.Is("text/plain") {
			return baseType(detected.String())
		}
	}

	if ct, ok := contentTypeByExtension[NewFileSanitizer().Extension(filename)]; ok {
		return ct
	}

	if header != "" {
		if mediaType, _, err := mime.ParseMediaType(header); err == nil && mediaType != octetStream {
			return mediaType
		}
	}

	return octetStream
}

// ExtensionFor returns a filename extension, including the dot, for a
// content type, or "" when none is known.
func ExtensionFor(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil {
		return m.Extension()
	}
	for ext, ct := range contentTypeByExtension {
		if ct == contentType && ext != "jpeg" {
			return "." + ext
		}
	}
	return ""
}

func baseType(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(base)
}
