package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per clip plus a small key/value table for
// settings and credentials.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS clips (
			id TEXT PRIMARY KEY,
			provider TEXT NOT NULL,
			title TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			settings JSONB NOT NULL,
			text TEXT NOT NULL,
			audio_data TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			transcript JSONB,
			group_id TEXT NOT NULL DEFAULT '',
			part_number INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_clips_created ON clips (created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const clipColumns = `id, provider, title, created_at, settings, text, audio_data, mime_type, transcript, group_id, part_number`

func (s *PostgresStore) ListClips(ctx context.Context) ([]Clip, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+clipColumns+` FROM clips ORDER BY created_at DESC, part_number ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query clips: %w", err)
	}
	defer rows.Close()

	var out []Clip
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clip rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetClip(ctx context.Context, id string) (Clip, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+clipColumns+` FROM clips WHERE id=$1`, id)
	c, err := scanClip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Clip{}, ErrNotFound
	}
	return c, err
}

func (s *PostgresStore) PutClips(ctx context.Context, clips []Clip) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range clips {
		settings, err := json.Marshal(c.Settings)
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		var transcript []byte
		if c.Transcript != nil {
			if transcript, err = json.Marshal(c.Transcript); err != nil {
				return fmt.Errorf("encode transcript: %w", err)
			}
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO clips (`+clipColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (id) DO UPDATE SET
				provider = EXCLUDED.provider,
				title = EXCLUDED.title,
				created_at = EXCLUDED.created_at,
				settings = EXCLUDED.settings,
				text = EXCLUDED.text,
				audio_data = EXCLUDED.audio_data,
				mime_type = EXCLUDED.mime_type,
				transcript = EXCLUDED.transcript,
				group_id = EXCLUDED.group_id,
				part_number = EXCLUDED.part_number`,
			c.ID, string(c.Provider), c.Title, c.CreatedAt, settings, c.Text,
			c.AudioData, c.MimeType, transcript, c.GroupID, c.PartNumber,
		)
		if err != nil {
			return fmt.Errorf("upsert clip %s: %w", c.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) DeleteClips(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM clips WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete clips: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadSettings(ctx context.Context) (AppSettings, error) {
	settings := DefaultAppSettings()
	if err := s.getKV(ctx, keySettings, &settings); err != nil {
		return AppSettings{}, err
	}
	return settings, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, settings AppSettings) error {
	return s.setKV(ctx, keySettings, settings)
}

func (s *PostgresStore) LoadCredentials(ctx context.Context) (Credentials, error) {
	var creds Credentials
	if err := s.getKV(ctx, keyCredentials, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func (s *PostgresStore) SaveCredentials(ctx context.Context, creds Credentials) error {
	return s.setKV(ctx, keyCredentials, creds)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) getKV(ctx context.Context, key string, dst any) error {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key=$1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) setKV(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, raw,
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func scanClip(row pgx.Row) (Clip, error) {
	var (
		c          Clip
		provider   string
		settings   []byte
		transcript []byte
	)
	err := row.Scan(&c.ID, &provider, &c.Title, &c.CreatedAt, &settings, &c.Text,
		&c.AudioData, &c.MimeType, &transcript, &c.GroupID, &c.PartNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Clip{}, err
		}
		return Clip{}, fmt.Errorf("scan clip row: %w", err)
	}
	c.Provider = Provider(provider)
	if err := json.Unmarshal(settings, &c.Settings); err != nil {
		return Clip{}, fmt.Errorf("decode clip settings: %w", err)
	}
	if len(transcript) > 0 {
		if err := json.Unmarshal(transcript, &c.Transcript); err != nil {
			return Clip{}, fmt.Errorf("decode clip transcript: %w", err)
		}
	}
	return c, nil
}
