package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/gradpath/advisor/internal/model"
)

// staleAfter is the age past which a record snapshot is flagged stale.
const staleAfter = 30 * 24 * time.Hour

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "records: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "records: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS faculty (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	title          TEXT,
	email          TEXT,
	university     TEXT NOT NULL,
	department     TEXT,
	research_areas TEXT NOT NULL DEFAULT '[]',
	homepage_url   TEXT,
	hiring_status  TEXT NOT NULL DEFAULT 'unknown',
	hiring_prob    REAL NOT NULL DEFAULT 0,
	h_index        INTEGER NOT NULL DEFAULT 0,
	last_scraped   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS programs (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	degree_type      TEXT NOT NULL,
	university       TEXT NOT NULL,
	department       TEXT,
	research_areas   TEXT NOT NULL DEFAULT '[]',
	deadline         TEXT,
	gre_required     INTEGER NOT NULL DEFAULT 0,
	funding_available INTEGER NOT NULL DEFAULT 0,
	tuition_annual   REAL NOT NULL DEFAULT 0,
	acceptance_rate  REAL NOT NULL DEFAULT 0,
	last_scraped     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_faculty_university ON faculty(university);
CREATE INDEX IF NOT EXISTS idx_faculty_hiring ON faculty(hiring_status);
CREATE INDEX IF NOT EXISTS idx_programs_university ON programs(university);
CREATE INDEX IF NOT EXISTS idx_programs_degree ON programs(degree_type);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "records: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) QueryFaculty(ctx context.Context, filter FacultyFilter) ([]model.FacultyRecord, error) {
	query := `SELECT id, name, title, email, university, department, research_areas,
		homepage_url, hiring_status, hiring_prob, h_index, last_scraped
		FROM faculty WHERE 1=1`
	var args []any

	if clause, cargs := likeAnyClause("university", filter.Universities); clause != "" {
		query += clause
		args = append(args, cargs...)
	}
	if clause, cargs := likeAnyClause("research_areas", filter.ResearchAreas); clause != "" {
		query += clause
		args = append(args, cargs...)
	}
	if filter.HiringOnly {
		query += ` AND hiring_status IN ('hiring', 'maybe')`
	}
	query += ` ORDER BY name ASC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "records: sqlite query faculty")
	}
	defer rows.Close()

	var out []model.FacultyRecord
	for rows.Next() {
		var f model.FacultyRecord
		var title, email, dept, homepage sql.NullString
		var areasJSON string
		if err := rows.Scan(&f.ID, &f.Name, &title, &email, &f.UniversityName, &dept,
			&areasJSON, &homepage, &f.Hiring, &f.HiringProb, &f.HIndex, &f.LastScraped); err != nil {
			return nil, eris.Wrap(err, "records: sqlite scan faculty")
		}
		f.Title, f.Email, f.Department, f.HomepageURL = title.String, email.String, dept.String, homepage.String
		if err := json.Unmarshal([]byte(areasJSON), &f.ResearchAreas); err != nil {
			return nil, eris.Wrap(err, "records: unmarshal faculty areas")
		}
		f.IsStale = s.now().Sub(f.LastScraped) > staleAfter
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "records: sqlite iterate faculty")
}

func (s *SQLiteStore) QueryPrograms(ctx context.Context, filter ProgramFilter) ([]model.ProgramRecord, error) {
	query := `SELECT id, name, degree_type, university, department, research_areas,
		deadline, gre_required, funding_available, tuition_annual, acceptance_rate, last_scraped
		FROM programs WHERE 1=1`
	var args []any

	if clause, cargs := likeAnyClause("university", filter.Universities); clause != "" {
		query += clause
		args = append(args, cargs...)
	}
	if clause, cargs := likeAnyClause("research_areas", filter.ResearchAreas); clause != "" {
		query += clause
		args = append(args, cargs...)
	}
	if len(filter.DegreeTypes) > 0 {
		query += ` AND degree_type IN (?` + strings.Repeat(",?", len(filter.DegreeTypes)-1) + `)`
		for _, d := range filter.DegreeTypes {
			args = append(args, d)
		}
	}
	query += ` ORDER BY name ASC LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "records: sqlite query programs")
	}
	defer rows.Close()

	var out []model.ProgramRecord
	for rows.Next() {
		var p model.ProgramRecord
		var dept, deadline sql.NullString
		var areasJSON string
		if err := rows.Scan(&p.ID, &p.Name, &p.DegreeType, &p.UniversityName, &dept,
			&areasJSON, &deadline, &p.GRERequired, &p.FundingAvailable,
			&p.TuitionAnnual, &p.AcceptanceRate, &p.LastScraped); err != nil {
			return nil, eris.Wrap(err, "records: sqlite scan program")
		}
		p.Department, p.Deadline = dept.String, deadline.String
		if err := json.Unmarshal([]byte(areasJSON), &p.ResearchAreas); err != nil {
			return nil, eris.Wrap(err, "records: unmarshal program areas")
		}
		p.IsStale = s.now().Sub(p.LastScraped) > staleAfter
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "records: sqlite iterate programs")
}

func (s *SQLiteStore) SeedFaculty(ctx context.Context, recs []model.FacultyRecord) error {
	for _, f := range recs {
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		if f.LastScraped.IsZero() {
			f.LastScraped = s.now()
		}
		areasJSON, err := json.Marshal(f.ResearchAreas)
		if err != nil {
			return eris.Wrap(err, "records: marshal faculty areas")
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO faculty
			 (id, name, title, email, university, department, research_areas,
			  homepage_url, hiring_status, hiring_prob, h_index, last_scraped)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.Name, f.Title, f.Email, f.UniversityName, f.Department,
			string(areasJSON), f.HomepageURL, string(f.Hiring), f.HiringProb, f.HIndex, f.LastScraped,
		)
		if err != nil {
			return eris.Wrapf(err, "records: seed faculty %s", f.Name)
		}
	}
	return nil
}

func (s *SQLiteStore) SeedPrograms(ctx context.Context, recs []model.ProgramRecord) error {
	for _, p := range recs {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if p.LastScraped.IsZero() {
			p.LastScraped = s.now()
		}
		areasJSON, err := json.Marshal(p.ResearchAreas)
		if err != nil {
			return eris.Wrap(err, "records: marshal program areas")
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO programs
			 (id, name, degree_type, university, department, research_areas,
			  deadline, gre_required, funding_available, tuition_annual, acceptance_rate, last_scraped)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.DegreeType, p.UniversityName, p.Department,
			string(areasJSON), p.Deadline, p.GRERequired, p.FundingAvailable,
			p.TuitionAnnual, p.AcceptanceRate, p.LastScraped,
		)
		if err != nil {
			return eris.Wrapf(err, "records: seed program %s", p.Name)
		}
	}
	return nil
}

// likeAnyClause builds an OR-of-LIKE clause over one column.
func likeAnyClause(column string, values []string) (string, []any) {
	if len(values) == 0 {
		return "", nil
	}
	parts := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		parts[i] = column + " LIKE ?"
		args[i] = "%" + v + "%"
	}
	return " AND (" + strings.Join(parts, " OR ") + ")", args
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}
