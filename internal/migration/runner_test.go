package migration

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exileum/wp-content-migrate/internal/config"
	"github.com/exileum/wp-content-migrate/internal/content"
	"github.com/exileum/wp-content-migrate/internal/discovery"
	"github.com/exileum/wp-content-migrate/internal/progress"
	"github.com/exileum/wp-content-migrate/internal/wordpress"
)

type stubSource struct {
	details map[int]*wordpress.PostDetail
}

func (s *stubSource) GetPostDetail(_ context.Context, id int) (*wordpress.PostDetail, error) {
	if detail, ok := s.details[id]; ok {
		return detail, nil
	}
	return nil, &wordpress.APIError{StatusCode: http.StatusNotFound}
}

type stubDestination struct {
	created []wordpress.CreatePostRequest
	search  []wordpress.Post
	create  func(req wordpress.CreatePostRequest) (*wordpress.Post, error)
}

func (s *stubDestination) SearchPosts(context.Context, string) ([]wordpress.Post, error) {
	return s.search, nil
}

func (s *stubDestination) CreatePost(_ context.Context, req wordpress.CreatePostRequest) (*wordpress.Post, error) {
	s.created = append(s.created, req)
	if s.create != nil {
		return s.create(req)
	}
	return &wordpress.Post{ID: 1000 + len(s.created)}, nil
}

type stubTerms struct{ err error }

func (s stubTerms) ResolveAll(_ context.Context, _ wordpress.Taxonomy, names []string) ([]int, error) {
	if s.err != nil {
		return nil, s.err
	}
	ids := make([]int, len(names))
	for i := range names {
		ids[i] = i + 1
	}
	return ids, nil
}

type stubImages struct {
	err   error
	calls *int
}

func (s stubImages) Migrate(context.Context, string) (int, error) {
	if s.calls != nil {
		*s.calls++
	}
	if s.err != nil {
		return 0, s.err
	}
	return 55, nil
}

func newStubRunner(source *stubSource, dest *stubDestination, tracker *progress.Tracker) *Runner {
	return NewRunner(source, dest, stubTerms{}, stubImages{}, nil, tracker, nil, RunnerOptions{})
}

func TestRunner_OneResultPerPost(t *testing.T) {
	source := &stubSource{details: map[int]*wordpress.PostDetail{
		1: {ID: 1, Title: "A", CategoryNames: []string{"x", "y"}, FeaturedImageURL: "https://old.example.com/a.png"},
		3: {ID: 3, Title: "C"},
	}}
	dest := &stubDestination{}
	tracker := progress.NewTracker(false)

	posts := []discovery.DiscoveredPost{{ID: 1}, {ID: 2}, {ID: 3}}
	require.NoError(t, newStubRunner(source, dest, tracker).Run(context.Background(), posts))

	results := tracker.Results()
	require.Len(t, results, len(posts))
	assert.Equal(t, progress.StatusSuccess, results[0].Status)
	assert.Equal(t, progress.StatusFailed, results[1].Status)
	assert.Equal(t, progress.StatusSuccess, results[2].Status)

	require.Len(t, dest.created, 2)
	assert.Equal(t, []int{1, 2}, dest.created[0].Categories)
	assert.Equal(t, 55, dest.created[0].FeaturedMedia)
	assert.Equal(t, "publish", dest.created[0].Status)
}

func TestRunner_CancelledRecordsRemaining(t *testing.T) {
	tracker := progress.NewTracker(false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := newStubRunner(&stubSource{}, &stubDestination{}, tracker)
	err := runner.Run(ctx, []discovery.DiscoveredPost{{ID: 1}, {ID: 2}})

	assert.ErrorIs(t, err, context.Canceled)
	results := tracker.Results()
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, progress.StatusSkipped, r.Status)
		assert.Equal(t, "run cancelled", r.Reason)
	}
}

func TestRunner_ImageFailureStillCreates(t *testing.T) {
	source := &stubSource{details: map[int]*wordpress.PostDetail{
		1: {ID: 1, Title: "A", FeaturedImageURL: "https://old.example.com/a.png"},
	}}
	dest := &stubDestination{}
	tracker := progress.NewTracker(false)

	runner := NewRunner(source, dest, stubTerms{}, stubImages{err: assert.AnError}, nil, tracker, nil, RunnerOptions{})
	require.NoError(t, runner.Run(context.Background(), []discovery.DiscoveredPost{{ID: 1}}))

	require.Len(t, dest.created, 1)
	assert.Zero(t, dest.created[0].FeaturedMedia)
	result := tracker.Results()[0]
	assert.Equal(t, progress.StatusSuccess, result.Status)
	assert.Equal(t, assert.AnError.Error(), result.ImageError)
}

func TestRunner_DuplicateTitleMatchIsExact(t *testing.T) {
	source := &stubSource{details: map[int]*wordpress.PostDetail{
		1: {ID: 1, Title: "Tom & Jerry"},
		2: {ID: 2, Title: "tom & jerry"},
	}}
	dest := &stubDestination{search: []wordpress.Post{{ID: 9, Title: wordpress.Rendered{Rendered: "Tom &amp; Jerry"}}}}
	tracker := progress.NewTracker(false)

	runner := NewRunner(source, dest, stubTerms{}, stubImages{}, nil, tracker, nil,
		RunnerOptions{DuplicatePolicy: config.DuplicateSkip})
	require.NoError(t, runner.Run(context.Background(), []discovery.DiscoveredPost{{ID: 1}, {ID: 2}}))

	results := tracker.Results()
	assert.Equal(t, progress.StatusSkipped, results[0].Status)
	assert.Contains(t, results[0].Reason, "destination post #9")
	assert.Equal(t, progress.StatusSuccess, results[1].Status)
}

func TestRunner_UnrelatedCreateErrorFails(t *testing.T) {
	source := &stubSource{details: map[int]*wordpress.PostDetail{
		1: {ID: 1, Title: "A", Meta: map[string]string{"k": "v"}},
	}}
	dest := &stubDestination{create: func(wordpress.CreatePostRequest) (*wordpress.Post, error) {
		return nil, &wordpress.APIError{StatusCode: http.StatusBadRequest, Code: "rest_invalid_param",
			Params: map[string]string{"date": "Invalid date."}}
	}}
	tracker := progress.NewTracker(false)

	require.NoError(t, newStubRunner(source, dest, tracker).Run(context.Background(), []discovery.DiscoveredPost{{ID: 1}}))

	assert.Len(t, dest.created, 1, "no retry when no sent meta key is named")
	result := tracker.Results()[0]
	assert.Equal(t, progress.StatusFailed, result.Status)
	assert.Contains(t, result.Reason, "create post 1")
}

func TestRunner_TermFailureSkipsImageUpload(t *testing.T) {
	source := &stubSource{details: map[int]*wordpress.PostDetail{
		1: {ID: 1, Title: "A", CategoryNames: []string{"x"}, FeaturedImageURL: "https://old.example.com/a.png"},
	}}
	dest := &stubDestination{}
	tracker := progress.NewTracker(false)
	uploads := 0

	runner := NewRunner(source, dest, stubTerms{err: assert.AnError}, stubImages{calls: &uploads}, nil, tracker, nil, RunnerOptions{})
	require.NoError(t, runner.Run(context.Background(), []discovery.DiscoveredPost{{ID: 1}}))

	assert.Zero(t, uploads)
	assert.Empty(t, dest.created)
	assert.Equal(t, progress.StatusFailed, tracker.Results()[0].Status)
}

func TestRunner_CreateFailureNamesUploadedMedia(t *testing.T) {
	source := &stubSource{details: map[int]*wordpress.PostDetail{
		1: {ID: 1, Title: "A", FeaturedImageURL: "https://old.example.com/a.png"},
	}}
	dest := &stubDestination{create: func(wordpress.CreatePostRequest) (*wordpress.Post, error) {
		return nil, &wordpress.APIError{StatusCode: http.StatusInternalServerError}
	}}
	tracker := progress.NewTracker(false)

	require.NoError(t, newStubRunner(source, dest, tracker).Run(context.Background(), []discovery.DiscoveredPost{{ID: 1}}))

	result := tracker.Results()[0]
	assert.Equal(t, progress.StatusFailed, result.Status)
	assert.Contains(t, result.Reason, "uploaded media #55 left unattached")
}

func TestRejectedMetaKeys(t *testing.T) {
	sent := map[string]string{"legacy_counter": "x", "views": "1", "seo:title": "t"}

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "param message",
			err: &wordpress.APIError{StatusCode: 400, Code: "rest_invalid_param",
				Params: map[string]string{"meta": "meta.legacy_counter is not of type integer."}},
			want: []string{"legacy_counter"},
		},
		{
			name: "param key and message",
			err: &wordpress.APIError{StatusCode: 400, Code: "rest_invalid_param",
				Params: map[string]string{"meta.seo:title": "Invalid", "meta": "meta.views is not of type boolean."}},
			want: []string{"seo:title", "views"},
		},
		{
			name: "unknown key ignored",
			err: &wordpress.APIError{StatusCode: 400, Code: "rest_invalid_param",
				Params: map[string]string{"meta": "meta.other is not of type integer."}},
			want: []string{},
		},
		{
			name: "other code",
			err:  &wordpress.APIError{StatusCode: 400, Code: "rest_invalid_json", Message: "meta.views"},
		},
		{
			name: "server error",
			err:  &wordpress.APIError{StatusCode: 500, Code: "rest_invalid_param", Message: "meta.views"},
		},
		{name: "not an API error", err: assert.AnError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rejectedMetaKeys(tt.err, sent)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransformerBuild(t *testing.T) {
	detail := &wordpress.PostDetail{
		Title:   "Title",
		Content: `<a href="https://old.example.com/about/">About</a>`,
		Excerpt: `See https://www.old.example.com/`,
		Slug:    "title",
		Date:    "2023-05-06T07:08:09",
		Meta:    map[string]string{"views": "3"},
	}

	req, n := NewTransformer(nil).Build(detail, []int{4}, nil, 0)
	assert.Zero(t, n)
	assert.Equal(t, detail.Content, req.Content)
	assert.Equal(t, "publish", req.Status)
	assert.Equal(t, "2023-05-06T07:08:09", req.Date)
	assert.Equal(t, []int{4}, req.Categories)

	req.Meta["views"] = "changed"
	assert.Equal(t, "3", detail.Meta["views"], "request meta is a copy")

	rewriter, err := content.NewLinkRewriter("https://old.example.com", "https://new.example.com")
	require.NoError(t, err)

	req, n = NewTransformer(rewriter).Build(detail, nil, nil, 7)
	assert.Equal(t, 2, n)
	assert.Equal(t, `<a href="https://new.example.com/about/">About</a>`, req.Content)
	assert.Equal(t, `See https://new.example.com/`, req.Excerpt)
	assert.Equal(t, 7, req.FeaturedMedia)
}

func TestErrors(t *testing.T) {
	postErr := NewPostError(PhaseMedia, 12, assert.AnError)
	assert.Equal(t, "media post 12: "+assert.AnError.Error(), postErr.Error())
	assert.ErrorIs(t, postErr, assert.AnError)

	phase, ok := PhaseOf(postErr)
	assert.True(t, ok)
	assert.Equal(t, PhaseMedia, phase)

	fatal := newFatalError(ErrDiscovery, postErr)
	assert.True(t, IsFatal(fatal))
	assert.ErrorIs(t, fatal, ErrDiscovery)
	assert.ErrorIs(t, fatal, assert.AnError)
	assert.False(t, IsFatal(postErr))
}
