package records

import (
	"context"
	"encoding/json"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gradpath/advisor/internal/model"
)

// cacheEntries bounds the per-kind snapshot cache. Distinct filter
// combinations beyond the cap evict the least recently used snapshot.
const cacheEntries = 256

// CachedStore wraps a Store and remembers the last successful result per
// filter. When the inner store is unavailable it serves the remembered
// snapshot, marked stale, together with ErrServedStale so callers can
// degrade their outcome instead of failing the turn.
type CachedStore struct {
	inner Store

	faculty  *lru.Cache[string, []model.FacultyRecord]
	programs *lru.Cache[string, []model.ProgramRecord]
}

// NewCached wraps a store with a stale-read fallback cache.
func NewCached(inner Store) *CachedStore {
	faculty, _ := lru.New[string, []model.FacultyRecord](cacheEntries)
	programs, _ := lru.New[string, []model.ProgramRecord](cacheEntries)
	return &CachedStore{
		inner:    inner,
		faculty:  faculty,
		programs: programs,
	}
}

func (c *CachedStore) QueryFaculty(ctx context.Context, filter FacultyFilter) ([]model.FacultyRecord, error) {
	key := filterKey(filter)

	recs, err := c.inner.QueryFaculty(ctx, filter)
	if err == nil {
		c.faculty.Add(key, recs)
		return recs, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	cached, ok := c.faculty.Get(key)
	if !ok {
		return nil, err
	}

	zap.L().Warn("records: store unavailable, serving cached faculty",
		zap.Int("records", len(cached)),
		zap.Error(err),
	)
	out := make([]model.FacultyRecord, len(cached))
	for i, f := range cached {
		f.IsStale = true
		out[i] = f
	}
	return out, eris.Wrap(ErrServedStale, "faculty")
}

func (c *CachedStore) QueryPrograms(ctx context.Context, filter ProgramFilter) ([]model.ProgramRecord, error) {
	key := filterKey(filter)

	recs, err := c.inner.QueryPrograms(ctx, filter)
	if err == nil {
		c.programs.Add(key, recs)
		return recs, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	cached, ok := c.programs.Get(key)
	if !ok {
		return nil, err
	}

	zap.L().Warn("records: store unavailable, serving cached programs",
		zap.Int("records", len(cached)),
		zap.Error(err),
	)
	out := make([]model.ProgramRecord, len(cached))
	for i, p := range cached {
		p.IsStale = true
		out[i] = p
	}
	return out, eris.Wrap(ErrServedStale, "programs")
}

func (c *CachedStore) Migrate(ctx context.Context) error { return c.inner.Migrate(ctx) }
func (c *CachedStore) Close() error                      { return c.inner.Close() }

func filterKey(filter any) string {
	b, _ := json.Marshal(filter)
	return string(b)
}
