package migration

import (
	"maps"

	"github.com/exileum/wp-content-migrate/internal/content"
	"github.com/exileum/wp-content-migrate/internal/wordpress"
)

// Transformer maps a source post onto the destination's create request.
type Transformer struct {
	rewriter *content.LinkRewriter
}

// NewTransformer returns a Transformer. A nil rewriter leaves HTML untouched.
func NewTransformer(rewriter *content.LinkRewriter) *Transformer {
	return &Transformer{rewriter: rewriter}
}

// Build returns the create request for detail, plus the number of links
// rewritten in its content and excerpt.
func (t *Transformer) Build(detail *wordpress.PostDetail, categoryIDs, tagIDs []int, featuredMedia int) (wordpress.CreatePostRequest, int) {
	body, excerpt := detail.Content, detail.Excerpt

	var rewritten int
	if t.rewriter != nil {
		var n int
		body, n = t.rewriter.Rewrite(body)
		rewritten += n
		excerpt, n = t.rewriter.Rewrite(excerpt)
		rewritten += n
	}

	var meta map[string]string
	if len(detail.Meta) > 0 {
		meta = maps.Clone(detail.Meta)
	}

	return wordpress.CreatePostRequest{
		Title:         detail.Title,
		Content:       body,
		Excerpt:       excerpt,
		Slug:          detail.Slug,
		Status:        "publish",
		Date:          detail.Date,
		Categories:    categoryIDs,
		Tags:          tagIDs,
		Meta:          meta,
		FeaturedMedia: featuredMedia,
	}, rewritten
}
