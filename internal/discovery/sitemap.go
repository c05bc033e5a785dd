package discovery

import (
	"bytes"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// ErrMalformedSitemap marks a document that is neither a urlset nor a
// sitemapindex.
var ErrMalformedSitemap = errors.New("malformed sitemap")

type location struct {
	Loc string `xml:"loc"`
}

type sitemapDocument struct {
	XMLName  xml.Name
	URLs     []location `xml:"url"`
	Sitemaps []location `xml:"sitemap"`
}

func (d *sitemapDocument) isIndex() bool {
	return d.XMLName.Local == "sitemapindex"
}

func parseSitemap(data []byte) (*sitemapDocument, error) {
	var doc sitemapDocument
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, errors.Errorf("%w: %s", ErrMalformedSitemap, err.Error())
	}
	switch doc.XMLName.Local {
	case "urlset", "sitemapindex":
		return &doc, nil
	default:
		return nil, errors.Errorf("%w: unexpected root element <%s>", ErrMalformedSitemap, doc.XMLName.Local)
	}
}

func locs(entries []location) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

// matchesAny reports whether the path of rawURL matches one of the doublestar
// patterns. Matching ignores case.
func matchesAny(patterns []string, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(strings.TrimPrefix(u.Path, "/"))
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(strings.ToLower(pattern), path); err == nil && ok {
			return true
		}
	}
	return false
}
