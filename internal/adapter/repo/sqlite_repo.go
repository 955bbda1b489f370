package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"kiosk/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS generations (
    id TEXT PRIMARY KEY,
    voice_id TEXT NOT NULL,
    name TEXT NOT NULL,
    text_prompt TEXT NOT NULL,
    generated_video_url TEXT NOT NULL,
    generated_image_url TEXT NOT NULL,
    generated_audio_url TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS voices (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    voice_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);`

// SQLiteStore keeps the history on the kiosk itself, for venues without a
// reliable uplink.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and creates) the database file.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordGeneration(ctx context.Context, rec domain.GenerationRecord) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO generations (id, voice_id, name, text_prompt, generated_video_url, generated_image_url, generated_audio_url, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), rec.VoiceID, rec.VoiceName, rec.Text, rec.VideoURL,
		domain.ArtifactPlaceholder, domain.ArtifactPlaceholder, s.now().UTC())
	if err != nil {
		return domain.PersistenceError("history", fmt.Errorf("sqlite: insert generation: %w", err))
	}
	return nil
}

func (s *SQLiteStore) RegisterVoice(ctx context.Context, name, voiceID string) (*domain.RegisteredVoice, error) {
	v := domain.RegisteredVoice{ID: uuid.NewString(), Name: name, VoiceID: voiceID, CreatedAt: s.now().UTC()}
	_, err := s.db.ExecContext(ctx, `INSERT INTO voices (id, name, voice_id, created_at) VALUES (?, ?, ?, ?)`,
		v.ID, v.Name, v.VoiceID, v.CreatedAt)
	if err != nil {
		return nil, domain.PersistenceError("voice registry", fmt.Errorf("sqlite: insert voice: %w", err))
	}
	return &v, nil
}

func (s *SQLiteStore) ListVoices(ctx context.Context) ([]domain.RegisteredVoice, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, voice_id, created_at FROM voices ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, domain.PersistenceError("voice registry", fmt.Errorf("sqlite: list voices: %w", err))
	}
	defer rows.Close()

	var items []domain.RegisteredVoice
	for rows.Next() {
		var v domain.RegisteredVoice
		if err := rows.Scan(&v.ID, &v.Name, &v.VoiceID, &v.CreatedAt); err != nil {
			return nil, domain.PersistenceError("voice registry", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.PersistenceError("voice registry", err)
	}
	return items, nil
}

// CountGenerations is used by operators to check the local history.
func (s *SQLiteStore) CountGenerations(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generations`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var (
	_ domain.HistoryRecorder = (*SQLiteStore)(nil)
	_ domain.VoiceRegistry   = (*SQLiteStore)(nil)
)
