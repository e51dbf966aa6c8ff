package records

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/gradpath/advisor/internal/model"
)

// MemoryStore is an in-memory Store used in tests and for fixture-backed
// local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	faculty  []model.FacultyRecord
	programs []model.ProgramRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) QueryFaculty(ctx context.Context, filter FacultyFilter) ([]model.FacultyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.FacultyRecord
	for _, f := range s.faculty {
		if !matchUniversity(f.UniversityName, filter.Universities) {
			continue
		}
		if !matchAreas(f.ResearchAreas, filter.ResearchAreas) {
			continue
		}
		if filter.HiringOnly && f.Hiring != model.HiringYes && f.Hiring != model.HiringMaybe {
			continue
		}
		out = append(out, f)
	}
	sortFaculty(out)
	return capFaculty(out, filter.Limit), nil
}

func (s *MemoryStore) QueryPrograms(ctx context.Context, filter ProgramFilter) ([]model.ProgramRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ProgramRecord
	for _, p := range s.programs {
		if !matchUniversity(p.UniversityName, filter.Universities) {
			continue
		}
		if !matchAreas(p.ResearchAreas, filter.ResearchAreas) {
			continue
		}
		if len(filter.DegreeTypes) > 0 && !containsFold(filter.DegreeTypes, p.DegreeType) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) SeedFaculty(ctx context.Context, recs []model.FacultyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faculty = append(s.faculty, recs...)
	return nil
}

func (s *MemoryStore) SeedPrograms(ctx context.Context, recs []model.ProgramRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs = append(s.programs, recs...)
	return nil
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                      { return nil }

// filter helpers shared by the memory store

func matchUniversity(name string, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	ln := strings.ToLower(name)
	for _, w := range wanted {
		if strings.Contains(ln, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func matchAreas(areas, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, a := range areas {
		la := strings.ToLower(a)
		for _, w := range wanted {
			lw := strings.ToLower(w)
			if strings.Contains(la, lw) || strings.Contains(lw, la) {
				return true
			}
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func sortFaculty(recs []model.FacultyRecord) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })
}

func capFaculty(recs []model.FacultyRecord, limit int) []model.FacultyRecord {
	if limit <= 0 {
		limit = defaultLimit
	}
	if len(recs) > limit {
		return recs[:limit]
	}
	return recs
}
