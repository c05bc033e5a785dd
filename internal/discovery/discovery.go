// Package discovery enumerates the published posts of a source site. Sitemaps
// are tried first; when they produce nothing usable the REST API is paged.
package discovery

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/exileum/wp-content-migrate/internal/wordpress"
)

// Method names how a set of posts was discovered.
type Method string

const (
	MethodSitemap Method = "sitemap"
	MethodAPI     Method = "api"
)

// maxIndexDepth bounds how many nested sitemap indexes are followed.
const maxIndexDepth = 2

var DefaultSitemapPaths = []string{
	"/sitemap.xml",
	"/wp-sitemap.xml",
	"/post-sitemap.xml",
	"/wp-sitemap-posts-post-1.xml",
}

var DefaultPostSitemapPatterns = []string{
	"**/*post*sitemap*.xml",
	"**/wp-sitemap-posts-post-*.xml",
}

// Source is the read side of a WordPress site used for discovery.
type Source interface {
	FetchSitemap(ctx context.Context, location string) ([]byte, error)
	FindPostsBySlug(ctx context.Context, slug string) ([]wordpress.Post, error)
	ListPosts(ctx context.Context, page, perPage int) (*wordpress.PostsPage, error)
}

type DiscoveredPost struct {
	ID    int
	URL   string
	Title string
}

type Result struct {
	Posts  []DiscoveredPost
	Method Method
}

type Options struct {
	SitemapPaths        []string
	PostSitemapPatterns []string
	PageSize            int
}

func DefaultOptions() Options {
	return Options{
		SitemapPaths:        DefaultSitemapPaths,
		PostSitemapPatterns: DefaultPostSitemapPatterns,
		PageSize:            100,
	}
}

type Discoverer struct {
	source Source
	opts   Options
}

func New(source Source, opts Options) *Discoverer {
	defaults := DefaultOptions()
	if len(opts.SitemapPaths) == 0 {
		opts.SitemapPaths = defaults.SitemapPaths
	}
	if len(opts.PostSitemapPatterns) == 0 {
		opts.PostSitemapPatterns = defaults.PostSitemapPatterns
	}
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = defaults.PageSize
	}
	return &Discoverer{source: source, opts: opts}
}

// Discover returns every published post exactly once. The API is paged at
// most once, and only when the sitemaps resolve to no posts.
func (d *Discoverer) Discover(ctx context.Context) (*Result, error) {
	logger := zerolog.Ctx(ctx)

	posts, err := d.FromSitemaps(ctx)
	if err != nil {
		return nil, err
	}
	if len(posts) > 0 {
		logger.Info().Int("posts", len(posts)).Msg("✓ Discovered posts from sitemaps")
		return &Result{Posts: posts, Method: MethodSitemap}, nil
	}

	logger.Warn().Msg("⚠ Sitemaps yielded no posts, falling back to the REST API")

	posts, err = d.FromAPI(ctx)
	if err != nil {
		return nil, errors.Errorf("API fallback failed: %w", err)
	}
	logger.Info().Int("posts", len(posts)).Msg("✓ Discovered posts via the REST API")
	return &Result{Posts: posts, Method: MethodAPI}, nil
}

// FromSitemaps resolves the post URLs listed in the site's sitemaps. Missing
// or malformed sitemaps are skipped. Exhausted sitemap retries and failed slug
// lookups are returned as errors.
func (d *Discoverer) FromSitemaps(ctx context.Context) ([]DiscoveredPost, error) {
	urls, err := d.collectSitemapURLs(ctx)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, nil
	}
	zerolog.Ctx(ctx).Debug().Int("urls", len(urls)).Msg("Resolving sitemap URLs")

	seen := make(map[int]bool)
	var posts []DiscoveredPost
	for _, rawURL := range urls {
		post, ok, err := d.resolve(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !ok || seen[post.ID] {
			continue
		}
		seen[post.ID] = true
		posts = append(posts, post)
	}
	return posts, nil
}

func (d *Discoverer) collectSitemapURLs(ctx context.Context) ([]string, error) {
	logger := zerolog.Ctx(ctx)

	visited := make(map[string]bool)
	seen := make(map[string]bool)
	var urls []string

	var walk func(location string, depth int) error
	walk = func(location string, depth int) error {
		// Default sitemap paths are site-relative while index entries are absolute.
		key := location
		if u, err := url.Parse(location); err == nil {
			key = u.RequestURI()
		}
		if visited[key] {
			return nil
		}
		visited[key] = true

		data, err := d.source.FetchSitemap(ctx, location)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Errorf("reading sitemap %s: %w", location, ctx.Err())
			}
			switch {
			case errors.Is(err, wordpress.ErrMaxAttemptsExceeded):
				return errors.Errorf("reading sitemap %s: %w", location, err)
			case errors.Is(err, wordpress.ErrNotFound):
				logger.Debug().Str("sitemap", location).Msg("Sitemap not found")
			default:
				logger.Warn().Err(err).Str("sitemap", location).Msg("⚠ Could not fetch sitemap")
			}
			return nil
		}

		doc, err := parseSitemap(data)
		if err != nil {
			logger.Warn().Err(err).Str("sitemap", location).Msg("⚠ Skipping unreadable sitemap")
			return nil
		}

		if !doc.isIndex() {
			for _, loc := range locs(doc.URLs) {
				if !seen[loc] {
					seen[loc] = true
					urls = append(urls, loc)
				}
			}
			return nil
		}

		if depth >= maxIndexDepth {
			logger.Warn().Str("sitemap", location).Msg("⚠ Sitemap index nested too deeply")
			return nil
		}
		for _, child := range locs(doc.Sitemaps) {
			if !matchesAny(d.opts.PostSitemapPatterns, child) {
				logger.Debug().Str("sitemap", child).Msg("Skipping non-post sitemap")
				continue
			}
			if err := walk(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, path := range d.opts.SitemapPaths {
		if err := walk(path, 0); err != nil {
			return nil, err
		}
	}
	return urls, nil
}

// resolve maps a sitemap URL to a post. ok is false for URLs that are not
// posts, such as pages or archives.
func (d *Discoverer) resolve(ctx context.Context, rawURL string) (DiscoveredPost, bool, error) {
	logger := zerolog.Ctx(ctx)

	u, err := url.Parse(rawURL)
	if err != nil {
		logger.Debug().Str("url", rawURL).Msg("Dropping unparsable sitemap URL")
		return DiscoveredPost{}, false, nil
	}

	if id, err := strconv.Atoi(u.Query().Get("p")); err == nil && id > 0 {
		return DiscoveredPost{ID: id, URL: rawURL}, true, nil
	}

	slug := lastSegment(u.EscapedPath())
	if slug == "" {
		logger.Debug().Str("url", rawURL).Msg("Dropping URL without a slug")
		return DiscoveredPost{}, false, nil
	}

	posts, err := d.source.FindPostsBySlug(ctx, slug)
	if err != nil {
		if ctx.Err() != nil {
			return DiscoveredPost{}, false, errors.Errorf("resolving %s: %w", rawURL, ctx.Err())
		}
		if errors.Is(err, wordpress.ErrNotFound) {
			logger.Debug().Str("url", rawURL).Msg("Dropping URL that is not a post")
			return DiscoveredPost{}, false, nil
		}
		return DiscoveredPost{}, false, errors.Errorf("resolving %s: %w", rawURL, err)
	}
	if len(posts) == 0 {
		logger.Debug().Str("url", rawURL).Msg("Dropping URL that is not a post")
		return DiscoveredPost{}, false, nil
	}

	post := posts[0]
	return DiscoveredPost{ID: post.ID, URL: rawURL, Title: post.DecodedTitle()}, true, nil
}

func lastSegment(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	slug := segments[len(segments)-1]
	if decoded, err := url.PathUnescape(slug); err == nil {
		slug = decoded
	}
	return slug
}

// FromAPI pages through the published posts listing until an empty page or
// the last page reported by X-WP-TotalPages.
func (d *Discoverer) FromAPI(ctx context.Context) ([]DiscoveredPost, error) {
	var posts []DiscoveredPost
	seen := make(map[int]bool)

	for page := 1; ; page++ {
		result, err := d.source.ListPosts(ctx, page, d.opts.PageSize)
		if err != nil {
			return nil, errors.Errorf("listing posts page %d: %w", page, err)
		}
		if len(result.Posts) == 0 {
			break
		}

		for _, post := range result.Posts {
			if seen[post.ID] {
				continue
			}
			seen[post.ID] = true
			posts = append(posts, DiscoveredPost{ID: post.ID, URL: post.Link, Title: post.DecodedTitle()})
		}

		zerolog.Ctx(ctx).Debug().
			Int("page", page).
			Int("total_pages", result.TotalPages).
			Msg("Fetched posts page")

		if result.TotalPages > 0 && page >= result.TotalPages {
			break
		}
	}
	return posts, nil
}
