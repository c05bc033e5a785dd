// Package content rewrites post HTML for its new home.
package content

import (
	"net/url"
	"strings"

	"github.com/dlclark/regexp2"
	"gitlab.com/tozd/go/errors"
)

// LinkRewriter points absolute links at the source site to the destination.
// Links into /wp-content/ are kept, since they reference media files that
// still live on the source.
type LinkRewriter struct {
	pattern *regexp2.Regexp
	target  string
}

func NewLinkRewriter(sourceBase, destinationBase string) (*LinkRewriter, error) {
	src, err := url.Parse(strings.TrimRight(sourceBase, "/"))
	if err != nil || src.Host == "" {
		return nil, errors.Errorf("invalid source URL %q", sourceBase)
	}
	dst, err := url.Parse(strings.TrimRight(destinationBase, "/"))
	if err != nil || dst.Host == "" {
		return nil, errors.Errorf("invalid destination URL %q", destinationBase)
	}

	host := strings.TrimPrefix(strings.ToLower(src.Host), "www.")
	expr := `(?:https?:)?//(?:www\.)?` + regexp2.Escape(host) + regexp2.Escape(src.Path) +
		`(?![\w.:-])` + // whole host only
		`(?!/wp-content/)`

	pattern, err := regexp2.Compile(expr, regexp2.IgnoreCase)
	if err != nil {
		return nil, errors.Errorf("compiling link pattern: %w", err)
	}

	return &LinkRewriter{
		pattern: pattern,
		target:  dst.Scheme + "://" + dst.Host + dst.Path,
	}, nil
}

// Rewrite returns html with source links replaced and the number of links
// changed.
func (r *LinkRewriter) Rewrite(html string) (string, int) {
	if html == "" {
		return html, 0
	}

	count := 0
	result, err := r.pattern.ReplaceFunc(html, func(regexp2.Match) string {
		count++
		return r.target
	}, -1, -1)
	if err != nil {
		return html, 0
	}
	return result, count
}
