// Package records reads faculty and program snapshots collected by the
// external data pipeline. The engine treats it as read-only; seeding is a
// maintenance operation used by the seed command.
package records

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/gradpath/advisor/internal/model"
)

// FacultyFilter narrows a faculty query.
type FacultyFilter struct {
	Universities  []string `json:"universities,omitempty"`
	ResearchAreas []string `json:"research_areas,omitempty"`
	HiringOnly    bool     `json:"hiring_only,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// ProgramFilter narrows a program query.
type ProgramFilter struct {
	Universities  []string `json:"universities,omitempty"`
	ResearchAreas []string `json:"research_areas,omitempty"`
	DegreeTypes   []string `json:"degree_types,omitempty"`
	Limit         int      `json:"limit,omitempty"`
}

// Store is the candidate-record read interface. Results may be fewer than
// requested and always carry staleness metadata.
type Store interface {
	QueryFaculty(ctx context.Context, filter FacultyFilter) ([]model.FacultyRecord, error)
	QueryPrograms(ctx context.Context, filter ProgramFilter) ([]model.ProgramRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Seeder loads fixture records; implemented by the SQL-backed stores.
type Seeder interface {
	SeedFaculty(ctx context.Context, records []model.FacultyRecord) error
	SeedPrograms(ctx context.Context, records []model.ProgramRecord) error
}

// ErrServedStale is returned (wrapped) by CachedStore alongside results
// when the underlying store was unavailable and a cached snapshot was
// served instead. Callers treat it as a degradation note, not a failure.
var ErrServedStale = eris.New("records: served stale cached results")

const defaultLimit = 50
