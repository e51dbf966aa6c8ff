package convo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/gradpath/advisor/internal/db"
	"github.com/gradpath/advisor/internal/model"
)

// PostgresStore implements ContextStore using pgxpool.
type PostgresStore struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "convo: postgres parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "convo: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "convo: postgres ping")
	}
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

// NewPostgresWithPool wires an existing pool; used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS conversations (
	id          TEXT PRIMARY KEY,
	preferences JSONB NOT NULL DEFAULT '{}',
	version     INTEGER NOT NULL DEFAULT 0,
	archived    BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES conversations(id),
	seq             INTEGER NOT NULL,
	payload         JSONB NOT NULL,
	UNIQUE (conversation_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_turns_conversation ON turns(conversation_id, seq);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "convo: postgres migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Create(ctx context.Context) (*model.Conversation, error) {
	now := s.now()
	conv := &model.Conversation{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, preferences, version, archived, created_at, updated_at)
		 VALUES ($1, '{}', 0, false, $2, $3)`,
		conv.ID, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "convo: postgres create")
	}
	return conv, nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*model.Conversation, error) {
	var conv model.Conversation
	var prefsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, preferences, version, created_at, updated_at
		 FROM conversations WHERE id = $1 AND NOT archived`, id,
	).Scan(&conv.ID, &prefsJSON, &conv.Version, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "convo: postgres load")
	}
	if err := json.Unmarshal(prefsJSON, &conv.Preferences); err != nil {
		return nil, eris.Wrap(err, "convo: unmarshal preferences")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM turns WHERE conversation_id = $1 ORDER BY seq ASC`, id)
	if err != nil {
		return nil, eris.Wrap(err, "convo: postgres load turns")
	}
	defer rows.Close()

	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "convo: postgres scan turn")
		}
		var turn model.Turn
		if err := json.Unmarshal(payload, &turn); err != nil {
			return nil, eris.Wrap(err, "convo: unmarshal turn")
		}
		conv.Turns = append(conv.Turns, turn)
	}
	return &conv, eris.Wrap(rows.Err(), "convo: postgres iterate turns")
}

func (s *PostgresStore) Append(ctx context.Context, id string, turns []model.Turn, prefs model.Preferences, expectedVersion int) error {
	prefsJSON, err := json.Marshal(prefs)
	if err != nil {
		return eris.Wrap(err, "convo: marshal preferences")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET preferences = $1, version = version + 1, updated_at = $2
		 WHERE id = $3 AND version = $4 AND NOT archived`,
		prefsJSON, s.now(), id, expectedVersion,
	)
	if err != nil {
		return eris.Wrap(err, "convo: postgres bump version")
	}
	if tag.RowsAffected() == 0 {
		var exists int
		if err := s.pool.QueryRow(ctx,
			`SELECT COUNT(1) FROM conversations WHERE id = $1 AND NOT archived`, id,
		).Scan(&exists); err != nil {
			return eris.Wrap(err, "convo: postgres check exists")
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrConcurrentModification
	}

	var seq int
	if err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM turns WHERE conversation_id = $1`, id,
	).Scan(&seq); err != nil {
		return eris.Wrap(err, "convo: postgres next seq")
	}
	for _, turn := range turns {
		seq++
		payload, err := json.Marshal(turn)
		if err != nil {
			return eris.Wrap(err, "convo: marshal turn")
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO turns (id, conversation_id, seq, payload) VALUES ($1, $2, $3, $4)`,
			turn.ID, id, seq, payload,
		); err != nil {
			return eris.Wrap(err, "convo: postgres insert turn")
		}
	}
	return nil
}

func (s *PostgresStore) Archive(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET archived = true, updated_at = $1 WHERE id = $2`,
		s.now(), id,
	)
	if err != nil {
		return eris.Wrap(err, "convo: postgres archive")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
