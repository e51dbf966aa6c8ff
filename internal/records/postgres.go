package records

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/gradpath/advisor/internal/db"
	"github.com/gradpath/advisor/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "records: postgres parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "records: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "records: postgres ping")
	}
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

// NewPostgresWithPool wires an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS faculty (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	title          TEXT,
	email          TEXT,
	university     TEXT NOT NULL,
	department     TEXT,
	research_areas JSONB NOT NULL DEFAULT '[]',
	homepage_url   TEXT,
	hiring_status  TEXT NOT NULL DEFAULT 'unknown',
	hiring_prob    DOUBLE PRECISION NOT NULL DEFAULT 0,
	h_index        INTEGER NOT NULL DEFAULT 0,
	last_scraped   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS programs (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	degree_type       TEXT NOT NULL,
	university        TEXT NOT NULL,
	department        TEXT,
	research_areas    JSONB NOT NULL DEFAULT '[]',
	deadline          TEXT,
	gre_required      BOOLEAN NOT NULL DEFAULT false,
	funding_available BOOLEAN NOT NULL DEFAULT false,
	tuition_annual    DOUBLE PRECISION NOT NULL DEFAULT 0,
	acceptance_rate   DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_scraped      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_faculty_university ON faculty(university);
CREATE INDEX IF NOT EXISTS idx_faculty_hiring ON faculty(hiring_status);
CREATE INDEX IF NOT EXISTS idx_programs_university ON programs(university);
CREATE INDEX IF NOT EXISTS idx_programs_degree ON programs(degree_type);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "records: postgres migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) QueryFaculty(ctx context.Context, filter FacultyFilter) ([]model.FacultyRecord, error) {
	query := `SELECT id, name, COALESCE(title,''), COALESCE(email,''), university,
		COALESCE(department,''), research_areas, COALESCE(homepage_url,''),
		hiring_status, hiring_prob, h_index, last_scraped
		FROM faculty WHERE 1=1`
	var args []any

	query, args = appendILikeAny(query, args, "university", filter.Universities)
	query, args = appendILikeAny(query, args, "research_areas::text", filter.ResearchAreas)
	if filter.HiringOnly {
		query += ` AND hiring_status IN ('hiring', 'maybe')`
	}
	query += ` ORDER BY name ASC LIMIT ` + placeholder(len(args)+1)
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "records: postgres query faculty")
	}
	defer rows.Close()

	var out []model.FacultyRecord
	for rows.Next() {
		var f model.FacultyRecord
		if err := rows.Scan(&f.ID, &f.Name, &f.Title, &f.Email, &f.UniversityName,
			&f.Department, &f.ResearchAreas, &f.HomepageURL,
			&f.Hiring, &f.HiringProb, &f.HIndex, &f.LastScraped); err != nil {
			return nil, eris.Wrap(err, "records: postgres scan faculty")
		}
		f.IsStale = s.now().Sub(f.LastScraped) > staleAfter
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "records: postgres iterate faculty")
}

func (s *PostgresStore) QueryPrograms(ctx context.Context, filter ProgramFilter) ([]model.ProgramRecord, error) {
	query := `SELECT id, name, degree_type, university, COALESCE(department,''),
		research_areas, COALESCE(deadline,''), gre_required, funding_available,
		tuition_annual, acceptance_rate, last_scraped
		FROM programs WHERE 1=1`
	var args []any

	query, args = appendILikeAny(query, args, "university", filter.Universities)
	query, args = appendILikeAny(query, args, "research_areas::text", filter.ResearchAreas)
	if len(filter.DegreeTypes) > 0 {
		query += ` AND degree_type = ANY(` + placeholder(len(args)+1) + `)`
		args = append(args, filter.DegreeTypes)
	}
	query += ` ORDER BY name ASC LIMIT ` + placeholder(len(args)+1)
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "records: postgres query programs")
	}
	defer rows.Close()

	var out []model.ProgramRecord
	for rows.Next() {
		var p model.ProgramRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.DegreeType, &p.UniversityName, &p.Department,
			&p.ResearchAreas, &p.Deadline, &p.GRERequired, &p.FundingAvailable,
			&p.TuitionAnnual, &p.AcceptanceRate, &p.LastScraped); err != nil {
			return nil, eris.Wrap(err, "records: postgres scan program")
		}
		p.IsStale = s.now().Sub(p.LastScraped) > staleAfter
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "records: postgres iterate programs")
}

func (s *PostgresStore) SeedFaculty(ctx context.Context, recs []model.FacultyRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, f := range recs {
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		if f.LastScraped.IsZero() {
			f.LastScraped = s.now()
		}
		rows = append(rows, []any{
			f.ID, f.Name, f.Title, f.Email, f.UniversityName, f.Department,
			f.ResearchAreas, f.HomepageURL, string(f.Hiring), f.HiringProb, f.HIndex, f.LastScraped,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "faculty",
		[]string{"id", "name", "title", "email", "university", "department",
			"research_areas", "homepage_url", "hiring_status", "hiring_prob", "h_index", "last_scraped"},
		rows)
	return eris.Wrap(err, "records: seed faculty")
}

func (s *PostgresStore) SeedPrograms(ctx context.Context, recs []model.ProgramRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, p := range recs {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.LastScraped.IsZero() {
			p.LastScraped = s.now()
		}
		rows = append(rows, []any{
			p.ID, p.Name, p.DegreeType, p.UniversityName, p.Department,
			p.ResearchAreas, p.Deadline, p.GRERequired, p.FundingAvailable,
			p.TuitionAnnual, p.AcceptanceRate, p.LastScraped,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "programs",
		[]string{"id", "name", "degree_type", "university", "department",
			"research_areas", "deadline", "gre_required", "funding_available",
			"tuition_annual", "acceptance_rate", "last_scraped"},
		rows)
	return eris.Wrap(err, "records: seed programs")
}

func appendILikeAny(query string, args []any, column string, values []string) (string, []any) {
	if len(values) == 0 {
		return query, args
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = column + " ILIKE " + placeholder(len(args)+1)
		args = append(args, "%"+v+"%")
	}
	return query + " AND (" + strings.Join(parts, " OR ") + ")", args
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
