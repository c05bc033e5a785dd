package wordpress

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exileum/wp-content-migrate/internal/testutil"
)

func newTestClient(t *testing.T, site *testutil.FakeSite, username, password string) *Client {
	t.Helper()

	client, err := NewClient(Credentials{
		BaseURL:     site.URL("/"),
		Username:    username,
		AppPassword: password,
	}, Options{
		Timeout:      5 * time.Second,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
		wantErr bool
	}{
		{name: "trailing slash trimmed", baseURL: "https://example.com/", want: "https://example.com"},
		{name: "whitespace trimmed", baseURL: "  https://example.com  ", want: "https://example.com"},
		{name: "subdirectory install", baseURL: "https://example.com/blog/", want: "https://example.com/blog"},
		{name: "missing scheme", baseURL: "example.com", wantErr: true},
		{name: "empty", baseURL: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(Credentials{BaseURL: tt.baseURL}, Options{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, client.BaseURL())
		})
	}
}

func TestRetryableRequest_RecoversFromTransientStatus(t *testing.T) {
	site := testutil.NewFakeSite("", "")
	defer site.Close()

	id := site.AddPost(testutil.FakePost{Slug: "hello", Title: "Hello"})
	path := "/wp-json/wp/v2/posts/" + strconv.Itoa(id)
	site.FailNext(http.MethodGet, path, http.StatusServiceUnavailable, http.StatusTooManyRequests)

	client := newTestClient(t, site, "", "")
	post, err := client.GetPost(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, "hello", post.Slug)
	assert.Equal(t, 3, site.Hits(http.MethodGet, path))
}

func TestRetryableRequest_StopsAtMaxAttempts(t *testing.T) {
	site := testutil.NewFakeSite("", "")
	defer site.Close()

	id := site.AddPost(testutil.FakePost{Slug: "hello", Title: "Hello"})
	path := "/wp-json/wp/v2/posts/" + strconv.Itoa(id)
	site.FailNext(http.MethodGet, path,
		http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway,
		http.StatusBadGateway, http.StatusBadGateway)

	client := newTestClient(t, site, "", "")
	_, err := client.GetPost(context.Background(), id)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.Equal(t, 3, site.Hits(http.MethodGet, path))

	apiErr, ok := AsAPIError(err)
	require.True(t, ok, "last failure should be surfaced")
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestRetryableRequest_DoesNotRetryClientErrors(t *testing.T) {
	site := testutil.NewFakeSite("", "")
	defer site.Close()

	client := newTestClient(t, site, "", "")
	_, err := client.GetPost(context.Background(), 4242)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrMaxAttemptsExceeded)
	assert.Equal(t, 1, site.Hits(http.MethodGet, "/wp-json/wp/v2/posts/4242"))
}

func TestRetryableRequest_HonoursCancellation(t *testing.T) {
	site := testutil.NewFakeSite("", "")
	defer site.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(t, site, "", "")
	err := client.Ping(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCurrentUser(t *testing.T) {
	site := testutil.NewFakeSite("editor", "abcd efgh ijkl mnop")
	defer site.Close()

	t.Run("valid application password", func(t *testing.T) {
		client := newTestClient(t, site, "editor", "abcd efgh ijkl mnop")
		user, err := client.CurrentUser(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "editor", user.Name)
	})

	t.Run("invalid application password", func(t *testing.T) {
		client := newTestClient(t, site, "editor", "wrong")
		_, err := client.CurrentUser(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("anonymous", func(t *testing.T) {
		client := newTestClient(t, site, "", "")
		_, err := client.CurrentUser(context.Background())
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestListPosts(t *testing.T) {
	site := testutil.NewFakeSite("", "")
	defer site.Close()

	for _, slug := range []string{"one", "two", "three"} {
		site.AddPost(testutil.FakePost{Slug: slug, Title: slug})
	}
	site.AddPost(testutil.FakePost{Slug: "draft", Title: "draft", Status: "draft"})

	client := newTestClient(t, site, "", "")
	ctx := context.Background()

	first, err := client.ListPosts(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, first.Posts, 2)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 2, first.TotalPages)

	second, err := client.ListPosts(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, second.Posts, 1)
	assert.Equal(t, "three", second.Posts[0].Slug)

	beyond, err := client.ListPosts(ctx, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond.Posts)
}

func TestSearchPosts_PagesThroughTitleMatches(t *testing.T) {
	site := testutil.NewFakeSite("", "")
	defer site.Close()

	for i := range 130 {
		site.AddPost(testutil.FakePost{Slug: "update-" + strconv.Itoa(i), Title: "Weekly update " + strconv.Itoa(i)})
	}
	site.AddPost(testutil.FakePost{Slug: "digest", Title: "Digest", Content: "Weekly update roundup"})

	posts, err := newTestClient(t, site, "", "").SearchPosts(context.Background(), "Weekly update")
	require.NoError(t, err)

	assert.Len(t, posts, 130, "content-only matches are excluded")
	assert.Equal(t, "Weekly update 129", posts[len(posts)-1].Title.Rendered)
	assert.Equal(t, 2, site.Hits(http.MethodGet, "/wp-json/wp/v2/posts"))
}

func TestGetPostDetail(t *testing.T) {
	site := testutil.NewFakeSite("", "")
	defer site.Close()

	news := site.AddTerm("categories", "News &amp; Events")
	golang := site.AddTerm("tags", "Go")
	id := site.AddPost(testutil.FakePost{
		Slug:             "release-notes",
		Title:            "Release notes &#8211; v2",
		Content:          "<p>Body</p>",
		Excerpt:          "<p>Short</p>",
		Date:             "2024-03-01T10:00:00",
		Categories:       []int{news},
		Tags:             []int{golang},
		Meta:             map[string]any{"subtitle": "Second", "views": 12, "flags": []string{"a"}},
		FeaturedImageURL: site.URL("/wp-content/uploads/cover.png"),
	})

	client := newTestClient(t, site, "", "")

	t.Run("embedded terms", func(t *testing.T) {
		detail, err := client.GetPostDetail(context.Background(), id)
		require.NoError(t, err)

		assert.Equal(t, "Release notes – v2", detail.Title)
		assert.Equal(t, "<p>Body</p>", detail.Content)
		assert.Equal(t, "<p>Short</p>", detail.Excerpt)
		assert.Equal(t, "release-notes", detail.Slug)
		assert.Equal(t, "2024-03-01T10:00:00", detail.Date)
		assert.Equal(t, []string{"News & Events"}, detail.CategoryNames)
		assert.Equal(t, []string{"Go"}, detail.TagNames)
		assert.Equal(t, map[string]string{"subtitle": "Second", "views": "12"}, detail.Meta)
		assert.Equal(t, site.URL("/wp-content/uploads/cover.png"), detail.FeaturedImageURL)
	})

	t.Run("term lookup fallback", func(t *testing.T) {
		site.OmitTermEmbed()

		detail, err := client.GetPostDetail(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, []string{"News & Events"}, detail.CategoryNames)
		assert.Equal(t, []string{"Go"}, detail.TagNames)
		assert.Equal(t, 1, site.Hits(http.MethodGet, "/wp-json/wp/v2/categories"))
		assert.Equal(t, 1, site.Hits(http.MethodGet, "/wp-json/wp/v2/tags"))
	})
}

func TestCreatePost_RejectedMeta(t *testing.T) {
	site := testutil.NewFakeSite("editor", "secret")
	defer site.Close()
	site.RejectMeta("legacy_counter")

	client := newTestClient(t, site, "editor", "secret")
	_, err := client.CreatePost(context.Background(), CreatePostRequest{
		Title:  "Hello",
		Status: "publish",
		Meta:   map[string]string{"legacy_counter": "x"},
	})

	require.Error(t, err)
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "rest_invalid_param", apiErr.Code)
	assert.Contains(t, apiErr.Params["meta"], "meta.legacy_counter")
}

func TestCreateTerm_Exists(t *testing.T) {
	site := testutil.NewFakeSite("editor", "secret")
	defer site.Close()
	existing := site.AddTerm("tags", "Golang")

	client := newTestClient(t, site, "editor", "secret")
	_, err := client.CreateTerm(context.Background(), Tags, "golang")

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "term_exists", apiErr.Code)
	assert.Equal(t, existing, apiErr.TermID)
}

func TestDownload_CredentialsStayOnOwnHost(t *testing.T) {
	own := testutil.NewFakeSite("editor", "secret")
	defer own.Close()
	other := testutil.NewFakeSite("", "")
	defer other.Close()

	own.AddFile("/wp-content/uploads/a.png", "image/png", []byte("own"))
	other.AddFile("/cdn/b.png", "image/png", []byte("other"))

	client := newTestClient(t, own, "editor", "secret")
	ctx := context.Background()

	download, err := client.Download(ctx, own.URL("/wp-content/uploads/a.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("own"), download.Body)
	assert.Equal(t, "image/png", download.ContentType)

	_, err = client.Download(ctx, other.URL("/cdn/b.png"))
	require.NoError(t, err)

	requests := other.Requests()
	require.Len(t, requests, 1)
	assert.False(t, requests[0].Authenticated)

	_, err = client.Download(ctx, other.URL("/missing.png"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchSitemap(t *testing.T) {
	site := testutil.NewFakeSite("", "")
	defer site.Close()
	site.SetSitemap("/sitemap.xml", "<urlset></urlset>")

	client := newTestClient(t, site, "", "")

	body, err := client.FetchSitemap(context.Background(), "/sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, "<urlset></urlset>", string(body))

	_, err = client.FetchSitemap(context.Background(), site.URL("/wp-sitemap.xml"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostMetaValues(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty array", raw: `[]`, want: nil},
		{name: "missing", raw: ``, want: nil},
		{name: "scalars", raw: `{"a":"x","b":2.5,"c":true}`, want: map[string]string{"a": "x", "b": "2.5", "c": "true"}},
		{name: "non-scalar skipped", raw: `{"a":"x","b":["y"],"c":{"d":1}}`, want: map[string]string{"a": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := Post{Meta: []byte(tt.raw)}
			assert.Equal(t, tt.want, post.MetaValues())
		})
	}
}

func TestPostMetaKeys(t *testing.T) {
	assert.Nil(t, Post{Meta: []byte(`[]`)}.MetaKeys())
	assert.Equal(t, map[string]bool{"a": true, "b": true}, Post{Meta: []byte(`{"a":"x","b":["y"]}`)}.MetaKeys())
}
