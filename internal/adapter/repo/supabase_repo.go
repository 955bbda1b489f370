package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"kiosk/internal/domain"
)

// PostgrestClient is the table access the Supabase client offers.
type PostgrestClient interface {
	From(table string) *postgrest.QueryBuilder
}

// SupabaseStore writes history rows and voice registrations through the
// Supabase REST API.
type SupabaseStore struct {
	client PostgrestClient
}

// NewSupabaseStore connects with the project URL and service key.
func NewSupabaseStore(url, key string) (*SupabaseStore, error) {
	if url == "" || key == "" {
		return nil, domain.ConfigurationError("history", errors.New("supabase: SUPABASE_URL and SUPABASE_KEY are required"))
	}
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase: new client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// NewSupabaseStoreWithClient is used with a bare PostgREST client.
func NewSupabaseStoreWithClient(client PostgrestClient) *SupabaseStore {
	return &SupabaseStore{client: client}
}

type generationRow struct {
	VoiceID           string `json:"voice_id"`
	Name              string `json:"name"`
	TextPrompt        string `json:"text_prompt"`
	GeneratedVideoURL string `json:"generated_video_url"`
	GeneratedImageURL string `json:"generated_image_url"`
	GeneratedAudioURL string `json:"generated_audio_url"`
}

func newGenerationRow(rec domain.GenerationRecord) generationRow {
	return generationRow{
		VoiceID:           rec.VoiceID,
		Name:              rec.VoiceName,
		TextPrompt:        rec.Text,
		GeneratedVideoURL: rec.VideoURL,
		GeneratedImageURL: domain.ArtifactPlaceholder,
		GeneratedAudioURL: domain.ArtifactPlaceholder,
	}
}

// RecordGeneration inserts one row into generations.
func (s *SupabaseStore) RecordGeneration(ctx context.Context, rec domain.GenerationRecord) error {
	if err := ctx.Err(); err != nil {
		return domain.PersistenceError("history", err)
	}
	_, _, err := s.client.From("generations").
		Insert(newGenerationRow(rec), false, "", "minimal", "").
		Execute()
	if err != nil {
		return domain.PersistenceError("history", fmt.Errorf("supabase: insert generation: %w", err))
	}
	return nil
}

type voiceRow struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	VoiceID   string    `json:"voice_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func (r voiceRow) toDomain() domain.RegisteredVoice {
	return domain.RegisteredVoice{ID: r.ID, Name: r.Name, VoiceID: r.VoiceID, CreatedAt: r.CreatedAt}
}

// RegisterVoice inserts a registry row and returns it as stored.
func (s *SupabaseStore) RegisterVoice(ctx context.Context, name, voiceID string) (*domain.RegisteredVoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []voiceRow
	_, err := s.client.From("voices").
		Insert(map[string]string{"name": name, "voice_id": voiceID}, false, "", "representation", "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, domain.PersistenceError("voice registry", fmt.Errorf("supabase: insert voice: %w", err))
	}
	if len(rows) == 0 {
		return &domain.RegisteredVoice{Name: name, VoiceID: voiceID}, nil
	}
	v := rows[0].toDomain()
	return &v, nil
}

// ListVoices returns the registry ordered by creation time.
func (s *SupabaseStore) ListVoices(ctx context.Context) ([]domain.RegisteredVoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []voiceRow
	_, err := s.client.From("voices").
		Select("id,name,voice_id,created_at", "", false).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows)
	if err != nil {
		return nil, domain.PersistenceError("voice registry", fmt.Errorf("supabase: list voices: %w", err))
	}
	out := make([]domain.RegisteredVoice, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

var (
	_ domain.HistoryRecorder = (*SupabaseStore)(nil)
	_ domain.VoiceRegistry   = (*SupabaseStore)(nil)
)
