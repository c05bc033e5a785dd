package wordpress

import (
	"context"

	"gitlab.com/tozd/go/errors"
)

// GetPostDetail fetches a post and flattens it into a PostDetail. Term names
// come from the embed when present, otherwise from the taxonomy endpoints.
func (c *Client) GetPostDetail(ctx context.Context, id int) (*PostDetail, error) {
	post, err := c.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &PostDetail{
		ID:               post.ID,
		Link:             post.Link,
		Title:            post.DecodedTitle(),
		Content:          post.Content.Rendered,
		Excerpt:          post.Excerpt.Rendered,
		Slug:             post.Slug,
		Date:             post.Date,
		Meta:             post.MetaValues(),
		FeaturedImageURL: post.FeaturedImageURL(),
	}

	categories, tags, ok := post.EmbeddedTermNames()
	if !ok {
		categories, err = c.termNames(ctx, Categories, post.Categories)
		if err != nil {
			return nil, err
		}
		tags, err = c.termNames(ctx, Tags, post.Tags)
		if err != nil {
			return nil, err
		}
	}
	detail.CategoryNames = categories
	detail.TagNames = tags

	return detail, nil
}

func (c *Client) termNames(ctx context.Context, taxonomy Taxonomy, ids []int) ([]string, error) {
	terms, err := c.GetTermsByID(ctx, taxonomy, ids)
	if err != nil {
		return nil, errors.Errorf("failed to resolve %s of post: %w", taxonomy, err)
	}

	byID := make(map[int]string, len(terms))
	for _, term := range terms {
		byID[term.ID] = term.DecodedName()
	}

	// Keep the post's own ordering.
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}
	return names, nil
}
