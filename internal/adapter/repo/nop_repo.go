package repo

import (
	"context"

	"kiosk/internal/domain"
	"kiosk/internal/infra"
)

// NopHistory drops records and only logs them. Used with HISTORY_DRIVER=none.
type NopHistory struct {
	Logger *infra.Logger
}

func (n NopHistory) RecordGeneration(ctx context.Context, rec domain.GenerationRecord) error {
	infra.LoggerOrNop(n.Logger).Info().
		Str("voice_id", rec.VoiceID).
		Str("video_url", rec.VideoURL).
		Msg("history disabled, generation not recorded")
	return nil
}

// Unconfigured stands in for a store whose credentials are missing. Every
// call fails with Err so the caller's persistence policy decides.
type Unconfigured struct {
	Err error
}

func (u Unconfigured) RecordGeneration(ctx context.Context, rec domain.GenerationRecord) error {
	return u.Err
}

func (u Unconfigured) RegisterVoice(ctx context.Context, name, voiceID string) (*domain.RegisteredVoice, error) {
	return nil, u.Err
}

func (u Unconfigured) ListVoices(ctx context.Context) ([]domain.RegisteredVoice, error) {
	return nil, u.Err
}
