package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"gitlab.com/tozd/go/errors"
)

// Ping checks that the site exposes the REST API index and accepts the
// credentials attached to every request.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.retryableRequest(ctx, "ping", func() (*resty.Response, error) {
		return c.request(ctx).Get(c.baseURL + "/wp-json/")
	})
	if err != nil {
		return errors.Errorf("connection failed: %w", err)
	}
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return err
	}
	return nil
}

// CurrentUser returns the authenticated account. It fails with ErrUnauthorized
// when the username or application password is wrong.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := c.retryableRequest(ctx, "get current user", func() (*resty.Response, error) {
		return c.request(ctx).
			SetQueryParam("context", "edit").
			Get(c.apiURL("/users/me"))
	})
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(resp.Body(), &user); err != nil {
		return nil, errors.Errorf("failed to parse user response: %w", err)
	}
	return &user, nil
}

// ListPosts fetches one page of published posts. A page past the end yields an
// empty page rather than an error.
func (c *Client) ListPosts(ctx context.Context, page, perPage int) (*PostsPage, error) {
	return c.postsPage(ctx, fmt.Sprintf("list posts page %d", page), page, map[string]string{
		"status":   "publish",
		"per_page": strconv.Itoa(perPage),
		"orderby":  "id",
		"order":    "asc",
	})
}

func (c *Client) postsPage(ctx context.Context, op string, page int, params map[string]string) (*PostsPage, error) {
	resp, err := c.retryableRequest(ctx, op, func() (*resty.Response, error) {
		return c.request(ctx).
			SetQueryParams(params).
			SetQueryParam("page", strconv.Itoa(page)).
			Get(c.apiURL("/posts"))
	})
	if err != nil {
		return nil, err
	}

	// WordPress answers 400 once page exceeds the last page.
	if resp.StatusCode() == http.StatusBadRequest {
		if apiErr := newAPIError(resp); apiErr.Code == "rest_post_invalid_page_number" {
			return &PostsPage{}, nil
		}
	}
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var posts []Post
	if err := json.Unmarshal(resp.Body(), &posts); err != nil {
		return nil, errors.Errorf("failed to parse posts page %d: %w", page, err)
	}

	total, _ := strconv.Atoi(resp.Header().Get("X-WP-Total"))
	totalPages, _ := strconv.Atoi(resp.Header().Get("X-WP-TotalPages"))
	return &PostsPage{Posts: posts, Total: total, TotalPages: totalPages}, nil
}

// FindPostsBySlug looks a post up by its slug.
func (c *Client) FindPostsBySlug(ctx context.Context, slug string) ([]Post, error) {
	return c.queryPosts(ctx, "find post by slug", map[string]string{"slug": slug})
}

// SearchPosts runs the API's search over post titles and returns every page of
// hits. The match is fuzzy; callers compare titles themselves. Sites older
// than WordPress 6.2 ignore search_columns and also match content.
func (c *Client) SearchPosts(ctx context.Context, search string) ([]Post, error) {
	params := map[string]string{
		"search":         search,
		"search_columns": "post_title",
		"per_page":       "100",
		"orderby":        "id",
		"order":          "asc",
	}

	var posts []Post
	for page := 1; ; page++ {
		result, err := c.postsPage(ctx, fmt.Sprintf("search posts page %d", page), page, params)
		if err != nil {
			return nil, err
		}
		posts = append(posts, result.Posts...)
		if len(result.Posts) == 0 || result.TotalPages == 0 || page >= result.TotalPages {
			return posts, nil
		}
	}
}

func (c *Client) queryPosts(ctx context.Context, op string, params map[string]string) ([]Post, error) {
	resp, err := c.retryableRequest(ctx, op, func() (*resty.Response, error) {
		return c.request(ctx).SetQueryParams(params).Get(c.apiURL("/posts"))
	})
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var posts []Post
	if err := json.Unmarshal(resp.Body(), &posts); err != nil {
		return nil, errors.Errorf("failed to parse posts response: %w", err)
	}
	return posts, nil
}

// GetPost fetches a single post with its featured media and terms embedded.
func (c *Client) GetPost(ctx context.Context, id int) (*Post, error) {
	resp, err := c.retryableRequest(ctx, fmt.Sprintf("get post %d", id), func() (*resty.Response, error) {
		return c.request(ctx).
			SetQueryParam("_embed", "1").
			Get(c.apiURL("/posts/" + strconv.Itoa(id)))
	})
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var post Post
	if err := json.Unmarshal(resp.Body(), &post); err != nil {
		return nil, errors.Errorf("failed to parse post %d: %w", id, err)
	}
	return &post, nil
}

// CreatePost submits a new post. The returned APIError for a 400 carries the
// per-parameter messages so rejected meta keys can be identified.
func (c *Client) CreatePost(ctx context.Context, req CreatePostRequest) (*Post, error) {
	resp, err := c.retryableRequest(ctx, "create post", func() (*resty.Response, error) {
		return c.request(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(req).
			Post(c.apiURL("/posts"))
	})
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}

	var post Post
	if err := json.Unmarshal(resp.Body(), &post); err != nil {
		return nil, errors.Errorf("failed to parse created post: %w", err)
	}
	return &post, nil
}

// SearchTerms lists terms of a taxonomy matching search.
func (c *Client) SearchTerms(ctx context.Context, taxonomy Taxonomy, search string) ([]Term, error) {
	return c.queryTerms(ctx, taxonomy, map[string]string{
		"search":     search,
		"per_page":   "100",
		"hide_empty": "false",
	})
}

// GetTermsByID fetches the named terms in one request.
func (c *Client) GetTermsByID(ctx context.Context, taxonomy Taxonomy, ids []int) ([]Term, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	include := make([]string, len(ids))
	for i, id := range ids {
		include[i] = strconv.Itoa(id)
	}
	return c.queryTerms(ctx, taxonomy, map[string]string{
		"include":  strings.Join(include, ","),
		"per_page": "100",
	})
}

func (c *Client) queryTerms(ctx context.Context, taxonomy Taxonomy, params map[string]string) ([]Term, error) {
	resp, err := c.retryableRequest(ctx, "list "+string(taxonomy), func() (*resty.Response, error) {
		return c.request(ctx).SetQueryParams(params).Get(c.apiURL("/" + string(taxonomy)))
	})
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var terms []Term
	if err := json.Unmarshal(resp.Body(), &terms); err != nil {
		return nil, errors.Errorf("failed to parse %s response: %w", taxonomy, err)
	}
	return terms, nil
}

// CreateTerm adds a term to the taxonomy. A clash with an existing term
// surfaces as an APIError with Code "term_exists" and TermID set.
func (c *Client) CreateTerm(ctx context.Context, taxonomy Taxonomy, name string) (*Term, error) {
	resp, err := c.retryableRequest(ctx, "create "+string(taxonomy), func() (*resty.Response, error) {
		return c.request(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(map[string]string{"name": name}).
			Post(c.apiURL("/" + string(taxonomy)))
	})
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}

	var term Term
	if err := json.Unmarshal(resp.Body(), &term); err != nil {
		return nil, errors.Errorf("failed to parse created term: %w", err)
	}
	return &term, nil
}

// UploadMedia sends a raw file body to the media endpoint.
func (c *Client) UploadMedia(ctx context.Context, upload MediaUpload) (*Media, error) {
	resp, err := c.retryableRequest(ctx, "upload media "+upload.Filename, func() (*resty.Response, error) {
		return c.request(ctx).
			SetHeader("Content-Type", upload.ContentType).
			SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", upload.Filename)).
			SetBody(upload.Body).
			Post(c.apiURL("/media"))
	})
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}

	var media Media
	if err := json.Unmarshal(resp.Body(), &media); err != nil {
		return nil, errors.Errorf("failed to parse media response: %w", err)
	}
	return &media, nil
}

// Download fetches an arbitrary URL. Credentials are only sent when the URL
// points at this client's own host.
func (c *Client) Download(ctx context.Context, rawURL string) (*Download, error) {
	resp, err := c.retryableRequest(ctx, "download "+rawURL, func() (*resty.Response, error) {
		req := c.anonymousRequest(ctx)
		if c.sameHost(rawURL) {
			req = c.request(ctx)
		}
		return req.SetHeader("Accept", "*/*").Get(rawURL)
	})
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}

	return &Download{
		URL:         rawURL,
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}, nil
}

// FetchSitemap downloads an XML document relative to the site root, or an
// absolute URL. A missing document yields ErrNotFound.
func (c *Client) FetchSitemap(ctx context.Context, location string) ([]byte, error) {
	target := location
	if strings.HasPrefix(location, "/") {
		target = c.baseURL + location
	}

	resp, err := c.retryableRequest(ctx, "fetch sitemap "+target, func() (*resty.Response, error) {
		return c.anonymousRequest(ctx).
			SetHeader("Accept", "application/xml, text/xml;q=0.9, */*;q=0.8").
			Get(target)
	})
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp, http.StatusOK); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}
