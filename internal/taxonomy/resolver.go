// Package taxonomy maps category and tag names onto term IDs of the
// destination site, creating terms that do not exist yet.
package taxonomy

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/exileum/wp-content-migrate/internal/wordpress"
)

const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = time.Hour
)

type TermAPI interface {
	SearchTerms(ctx context.Context, taxonomy wordpress.Taxonomy, search string) ([]wordpress.Term, error)
	CreateTerm(ctx context.Context, taxonomy wordpress.Taxonomy, name string) (*wordpress.Term, error)
}

// Resolver looks names up by exact, case-sensitive equality with the decoded
// term name. Resolved IDs are cached per taxonomy.
type Resolver struct {
	api    TermAPI
	caches map[wordpress.Taxonomy]*expirable.LRU[string, int]
}

func NewResolver(api TermAPI, size int, ttl time.Duration) *Resolver {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Resolver{
		api: api,
		caches: map[wordpress.Taxonomy]*expirable.LRU[string, int]{
			wordpress.Categories: expirable.NewLRU[string, int](size, nil, ttl),
			wordpress.Tags:       expirable.NewLRU[string, int](size, nil, ttl),
		},
	}
}

// Resolve returns the destination term ID for name, creating the term when no
// exact match exists.
func (r *Resolver) Resolve(ctx context.Context, taxonomy wordpress.Taxonomy, name string) (int, error) {
	cache, ok := r.caches[taxonomy]
	if !ok {
		return 0, errors.Errorf("unknown taxonomy %q", taxonomy)
	}
	if id, ok := cache.Get(name); ok {
		return id, nil
	}

	logger := zerolog.Ctx(ctx).With().Str("taxonomy", string(taxonomy)).Str("term", name).Logger()

	candidates, err := r.api.SearchTerms(ctx, taxonomy, name)
	if err != nil {
		return 0, errors.Errorf("searching %s for %q: %w", taxonomy, name, err)
	}
	for _, term := range candidates {
		if term.DecodedName() == name {
			cache.Add(name, term.ID)
			return term.ID, nil
		}
	}

	created, err := r.api.CreateTerm(ctx, taxonomy, name)
	if err != nil {
		// WordPress compares names case-insensitively on insert.
		if apiErr, ok := wordpress.AsAPIError(err); ok && apiErr.Code == "term_exists" && apiErr.TermID > 0 {
			logger.Warn().Int("term_id", apiErr.TermID).Msg("⚠ Destination already has this term under a different spelling, reusing it")
			cache.Add(name, apiErr.TermID)
			return apiErr.TermID, nil
		}
		return 0, errors.Errorf("creating %s %q: %w", taxonomy, name, err)
	}

	logger.Info().Int("term_id", created.ID).Msg("✓ Created term")
	cache.Add(name, created.ID)
	return created.ID, nil
}

// ResolveAll resolves names in order, skipping blanks and duplicate IDs.
func (r *Resolver) ResolveAll(ctx context.Context, taxonomy wordpress.Taxonomy, names []string) ([]int, error) {
	ids := make([]int, 0, len(names))
	seen := make(map[int]bool, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		id, err := r.Resolve(ctx, taxonomy, name)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}
