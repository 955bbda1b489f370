package repo

import (
	"context"
	"fmt"

	"kiosk/internal/domain"
	"kiosk/internal/infra"
	"kiosk/internal/sqlinline"
)

// PostgresStore implements the history and the voice registry on a direct
// Postgres connection (for self-hosted Supabase databases).
type PostgresStore struct {
	sql infra.SQLExecutor
}

func NewPostgresStore(sql infra.SQLExecutor) *PostgresStore {
	return &PostgresStore{sql: sql}
}

// RecordGeneration inserts one generations row.
func (s *PostgresStore) RecordGeneration(ctx context.Context, rec domain.GenerationRecord) error {
	_, err := s.sql.Exec(ctx, sqlinline.QInsertGeneration,
		rec.VoiceID, rec.VoiceName, rec.Text, rec.VideoURL, domain.ArtifactPlaceholder)
	if err != nil {
		return domain.PersistenceError("history", fmt.Errorf("postgres: insert generation: %w", err))
	}
	return nil
}

// RegisterVoice inserts a registry row.
func (s *PostgresStore) RegisterVoice(ctx context.Context, name, voiceID string) (*domain.RegisteredVoice, error) {
	var v domain.RegisteredVoice
	row := s.sql.QueryRow(ctx, sqlinline.QInsertVoice, name, voiceID)
	if err := row.Scan(&v.ID, &v.Name, &v.VoiceID, &v.CreatedAt); err != nil {
		return nil, domain.PersistenceError("voice registry", fmt.Errorf("postgres: insert voice: %w", err))
	}
	return &v, nil
}

// ListVoices returns the registry ordered by creation time.
func (s *PostgresStore) ListVoices(ctx context.Context) ([]domain.RegisteredVoice, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListVoices)
	if err != nil {
		return nil, domain.PersistenceError("voice registry", fmt.Errorf("postgres: list voices: %w", err))
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

var (
	_ domain.HistoryRecorder = (*PostgresStore)(nil)
	_ domain.VoiceRegistry   = (*PostgresStore)(nil)
)
