package domain

import "context"

// HistoryRecorder appends generation records to the history store.
type HistoryRecorder interface {
	RecordGeneration(ctx context.Context, rec GenerationRecord) error
}

// VoiceRegistry stores the voices cleared for kiosk use.
type VoiceRegistry interface {
	RegisterVoice(ctx context.Context, name, voiceID string) (*RegisteredVoice, error)
	ListVoices(ctx context.Context) ([]RegisteredVoice, error)
}
