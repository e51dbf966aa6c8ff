package convo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/gradpath/advisor/internal/model"
)

// SQLiteStore implements ContextStore using modernc.org/sqlite. Turns are
// stored as JSON payloads ordered by a per-conversation sequence number.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "convo: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "convo: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	preferences TEXT NOT NULL DEFAULT '{}',
	version     INTEGER NOT NULL DEFAULT 0,
	archived    INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	seq             INTEGER NOT NULL,
	payload         TEXT NOT NULL,
	UNIQUE (conversation_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, seq);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "convo: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context) (*model.Conversation, error) {
	now := s.now()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, preferences, version, archived, created_at, updated_at)
		 VALUES (?, '{}', 0, 0, ?, ?)`,
		conv.ID, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "convo: sqlite create")
	}
	return conv, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	var prefsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, preferences, version, created_at, updated_at
		 FROM conversations WHERE id = ? AND archived = 0`, id,
	).Scan(&conv.ID, &prefsJSON, &conv.Version, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "convo: sqlite load")
	}
	if err := json.Unmarshal([]byte(prefsJSON), &conv.Preferences); err != nil {
		return nil, eris.Wrap(err, "convo: unmarshal preferences")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM turns WHERE conversation_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, eris.Wrap(err, "convo: sqlite load turns")
	}
	defer rows.Close()

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "convo: sqlite scan turn")
		}
		var turn model.Turn
		if err := json.Unmarshal([]byte(payload), &turn); err != nil {
			return nil, eris.Wrap(err, "convo: unmarshal turn")
		}
		conv.Turns = append(conv.Turns, turn)
	}
	return &conv, eris.Wrap(rows.Err(), "convo: sqlite iterate turns")
}

func (s *SQLiteStore) Append(ctx context.Context, id string, turns []model.Turn, prefs model.Preferences, expectedVersion int) error {
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return eris.Wrap(err, "convo: marshal preferences")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "convo: sqlite begin")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET preferences = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? AND archived = 0`,
		string(prefsJSON), s.now(), id, expectedVersion,
	)
	if err != nil {
		return eris.Wrap(err, "convo: sqlite bump version")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "convo: sqlite rows affected")
	}
	if affected == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM conversations WHERE id = ? AND archived = 0`, id,
		).Scan(&exists); err != nil {
			return eris.Wrap(err, "convo: sqlite check exists")
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrConcurrentModification
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM turns WHERE conversation_id = ?`, id,
	).Scan(&seq); err != nil {
		return eris.Wrap(err, "convo: sqlite next seq")
	}
	for _, turn := range turns {
		seq++
		payload, err := json.Marshal(turn)
		if err != nil {
			return eris.Wrap(err, "convo: marshal turn")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (id, conversation_id, seq, payload) VALUES (?, ?, ?, ?)`,
			turn.ID, id, seq, string(payload),
		); err != nil {
			return eris.Wrap(err, "convo: sqlite insert turn")
		}
	}
	return eris.Wrap(tx.Commit(), "convo: sqlite commit")
}

func (s *SQLiteStore) Archive(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET archived = 1, updated_at = ? WHERE id = ?`,
		s.now(), id,
	)
	if err != nil {
		return eris.Wrap(err, "convo: sqlite archive")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "convo: sqlite rows affected")
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
