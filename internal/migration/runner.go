package migration

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/exileum/wp-content-migrate/internal/config"
	"github.com/exileum/wp-content-migrate/internal/discovery"
	"github.com/exileum/wp-content-migrate/internal/progress"
	"github.com/exileum/wp-content-migrate/internal/wordpress"
)

type SourceSite interface {
	GetPostDetail(ctx context.Context, id int) (*wordpress.PostDetail, error)
}

type DestinationSite interface {
	SearchPosts(ctx context.Context, search string) ([]wordpress.Post, error)
	CreatePost(ctx context.Context, req wordpress.CreatePostRequest) (*wordpress.Post, error)
}

type TermResolver interface {
	ResolveAll(ctx context.Context, taxonomy wordpress.Taxonomy, names []string) ([]int, error)
}

type ImageMigrator interface {
	Migrate(ctx context.Context, imageURL string) (int, error)
}

// metaKeyPattern pulls key names out of WordPress's "meta.<key> is not of
// type ..." parameter messages.
var metaKeyPattern = regexp2.MustCompile(`meta\.([A-Za-z0-9_\-:]+)`, regexp2.None)

type RunnerOptions struct {
	DuplicatePolicy config.DuplicatePolicy
	DryRun          bool
}

// Runner migrates discovered posts one at a time. Every post handed to Run
// ends up as exactly one result in the tracker.
type Runner struct {
	source      SourceSite
	destination DestinationSite
	terms       TermResolver
	images      ImageMigrator
	transformer *Transformer
	tracker     *progress.Tracker
	reporter    progress.Reporter
	opts        RunnerOptions
}

func NewRunner(
	source SourceSite,
	destination DestinationSite,
	terms TermResolver,
	images ImageMigrator,
	transformer *Transformer,
	tracker *progress.Tracker,
	reporter progress.Reporter,
	opts RunnerOptions,
) *Runner {
	if transformer == nil {
		transformer = NewTransformer(nil)
	}
	if reporter == nil {
		reporter = progress.NopReporter{}
	}
	if opts.DuplicatePolicy == "" {
		opts.DuplicatePolicy = config.DuplicateSkip
	}
	return &Runner{
		source:      source,
		destination: destination,
		terms:       terms,
		images:      images,
		transformer: transformer,
		tracker:     tracker,
		reporter:    reporter,
		opts:        opts,
	}
}

// Run processes posts in order. Cancelling ctx stops the loop; posts not yet
// started are recorded as skipped and the context error is returned.
func (r *Runner) Run(ctx context.Context, posts []discovery.DiscoveredPost) error {
	for i, post := range posts {
		if err := ctx.Err(); err != nil {
			for _, rest := range posts[i:] {
				r.tracker.Record(progress.Result{
					SourceID:  rest.ID,
					SourceURL: rest.URL,
					Title:     rest.Title,
					Status:    progress.StatusSkipped,
					Reason:    "run cancelled",
				})
			}
			zerolog.Ctx(ctx).Warn().Int("remaining", len(posts)-i).Msg("⚠ Migration interrupted")
			return err
		}

		started := progress.Result{SourceID: post.ID, Title: post.Title}
		r.reporter.PostStarted(i+1, len(posts), started.Label())

		result := r.migratePost(ctx, post)
		r.tracker.Record(result)
		r.reporter.PostFinished(result)
	}
	return ctx.Err()
}

func (r *Runner) migratePost(ctx context.Context, post discovery.DiscoveredPost) progress.Result {
	logger := zerolog.Ctx(ctx).With().Int("source_post", post.ID).Logger()
	ctx = logger.WithContext(ctx)

	result := progress.Result{
		SourceID:  post.ID,
		SourceURL: post.URL,
		Title:     post.Title,
	}
	fail := func(err error) progress.Result {
		logger.Error().Err(err).Msg("✗ Post migration failed")
		result.Status = progress.StatusFailed
		result.Reason = err.Error()
		return result
	}

	detail, err := r.source.GetPostDetail(ctx, post.ID)
	if err != nil {
		return fail(NewPostError(PhaseFetch, post.ID, err))
	}
	result.Title = detail.Title

	if r.opts.DuplicatePolicy == config.DuplicateSkip {
		existing, err := r.findDuplicate(ctx, detail.Title)
		if err != nil {
			return fail(NewPostError(PhaseCreate, post.ID, errors.Errorf("duplicate check: %w", err)))
		}
		if existing > 0 {
			logger.Info().Int("destination_post", existing).Msg("Skipping post with an existing title")
			result.Status = progress.StatusSkipped
			result.Reason = fmt.Sprintf("%s (destination post #%d)", ErrDuplicatePost, existing)
			return result
		}
	}

	if r.opts.DryRun {
		logger.Info().
			Int("categories", len(detail.CategoryNames)).
			Int("tags", len(detail.TagNames)).
			Bool("featured_image", detail.FeaturedImageURL != "").
			Msgf("  [DRY-RUN] Would create post: %s", detail.Title)
		result.Status = progress.StatusSkipped
		result.Reason = "dry run"
		return result
	}

	categoryIDs, err := r.terms.ResolveAll(ctx, wordpress.Categories, detail.CategoryNames)
	if err != nil {
		return fail(NewPostError(PhaseTransform, post.ID, errors.Errorf("categories: %w", err)))
	}
	tagIDs, err := r.terms.ResolveAll(ctx, wordpress.Tags, detail.TagNames)
	if err != nil {
		return fail(NewPostError(PhaseTransform, post.ID, errors.Errorf("tags: %w", err)))
	}

	// Media is uploaded only once the terms have resolved.
	var featuredMedia int
	if detail.FeaturedImageURL != "" {
		featuredMedia, err = r.images.Migrate(ctx, detail.FeaturedImageURL)
		if err != nil {
			imageErr := NewPostError(PhaseMedia, post.ID, err)
			logger.Warn().Err(imageErr).Msg("⚠ Creating post without its featured image")
			result.ImageError = err.Error()
			featuredMedia = 0
		}
	}

	req, rewritten := r.transformer.Build(detail, categoryIDs, tagIDs, featuredMedia)
	if rewritten > 0 {
		logger.Debug().Int("links", rewritten).Msg("Rewrote source links")
	}

	created, dropped, err := r.createPost(ctx, req)
	if err != nil {
		if featuredMedia > 0 {
			err = errors.Errorf("%w (uploaded media #%d left unattached)", err, featuredMedia)
		}
		return fail(NewPostError(PhaseCreate, post.ID, err))
	}

	result.Status = progress.StatusSuccess
	result.DestinationID = created.ID
	result.DroppedMeta = dropped
	return result
}

// findDuplicate returns the ID of a destination post whose decoded title
// equals title exactly, or 0.
func (r *Runner) findDuplicate(ctx context.Context, title string) (int, error) {
	if strings.TrimSpace(title) == "" {
		return 0, nil
	}
	candidates, err := r.destination.SearchPosts(ctx, title)
	if err != nil {
		return 0, err
	}
	for _, candidate := range candidates {
		if candidate.DecodedTitle() == title {
			return candidate.ID, nil
		}
	}
	return 0, nil
}

// createPost submits req, dropping every meta key the destination rejects and
// resubmitting. Keys sent but missing from the created post are reported as
// dropped too.
func (r *Runner) createPost(ctx context.Context, req wordpress.CreatePostRequest) (*wordpress.Post, []string, error) {
	logger := zerolog.Ctx(ctx)
	var dropped []string

	for {
		created, err := r.destination.CreatePost(ctx, req)
		if err == nil {
			for _, key := range silentlyDroppedMeta(req.Meta, created) {
				logger.Warn().Str("meta_key", key).Msg("⚠ Destination did not store meta key")
				dropped = append(dropped, key)
			}
			slices.Sort(dropped)
			return created, dropped, nil
		}

		rejected := rejectedMetaKeys(err, req.Meta)
		if len(rejected) == 0 {
			return nil, dropped, err
		}

		meta := maps.Clone(req.Meta)
		for _, key := range rejected {
			delete(meta, key)
		}
		if len(meta) == 0 {
			meta = nil
		}
		req.Meta = meta
		dropped = append(dropped, rejected...)
		logger.Warn().Strs("meta_keys", rejected).Msg("⚠ Destination rejected meta keys, resubmitting without them")
	}
}

// rejectedMetaKeys returns the sent meta keys a 400 rest_invalid_param
// response names.
func rejectedMetaKeys(err error, sent map[string]string) []string {
	apiErr, ok := wordpress.AsAPIError(err)
	if !ok || apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "rest_invalid_param" || len(sent) == 0 {
		return nil
	}

	found := make(map[string]bool)
	collect := func(text string) {
		match, _ := metaKeyPattern.FindStringMatch(text)
		for match != nil {
			if key := match.GroupByNumber(1).String(); hasKey(sent, key) {
				found[key] = true
			}
			match, _ = metaKeyPattern.FindNextMatch(match)
		}
	}

	for param, message := range apiErr.Params {
		collect(param)
		collect(message)
	}
	collect(apiErr.Message)

	keys := slices.Collect(maps.Keys(found))
	slices.Sort(keys)
	return keys
}

func hasKey(m map[string]string, key string) bool {
	_, ok := m[key]
	return ok
}

func silentlyDroppedMeta(sent map[string]string, created *wordpress.Post) []string {
	if len(sent) == 0 || created == nil {
		return nil
	}
	stored := created.MetaKeys()

	var missing []string
	for key := range sent {
		if !stored[key] {
			missing = append(missing, key)
		}
	}
	return missing
}
