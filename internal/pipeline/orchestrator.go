// Package pipeline runs the kiosk generation flow: photo, styled portrait,
// speech and talking video. Each Session owns its state; the Orchestrator
// only carries the shared clients.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"kiosk/internal/domain"
	"kiosk/internal/infra"
)

type ImageSynthesizer interface {
	SynthesizeImage(ctx context.Context, source domain.SourceImage, opts domain.Options) (domain.GeneratedImage, error)
}

type SpeechSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text, voiceID string) (domain.Audio, error)
}

type VideoSynthesizer interface {
	SynthesizeVideo(ctx context.Context, img domain.GeneratedImage, audio domain.Audio) (domain.VideoReference, error)
}

// VoiceCatalog lists the selectable voices. Refresh bypasses any cache.
type VoiceCatalog interface {
	ListVoices(ctx context.Context) (domain.Catalog, error)
	Refresh(ctx context.Context) (domain.Catalog, error)
}

// Notifier receives operator notifications. Implementations must not block
// for long; they are called from the stage goroutine.
type Notifier interface {
	VideoReady(ctx context.Context, sessionID, voiceName, videoURL string)
	StageFailed(ctx context.Context, sessionID, stage, kind string, err error)
}

// Translator resolves user-facing message ids for a language.
type Translator interface {
	Message(lang, id string) string
}

// Deps are the collaborators of every session. Images, Speech, Video, Voices
// and History are required.
type Deps struct {
	Images   ImageSynthesizer
	Speech   SpeechSynthesizer
	Video    VideoSynthesizer
	Voices   VoiceCatalog
	History  domain.HistoryRecorder
	Notifier Notifier
	Messages Translator

	// PersistenceFatal makes a failed history write revert the session to
	// voice input. By default the video is shown anyway.
	PersistenceFatal bool

	Logger *infra.Logger
	Now    func() time.Time
}

type Orchestrator struct {
	deps   Deps
	logger *infra.Logger
	now    func() time.Time
}

func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Images == nil:
		return nil, errors.New("pipeline: image synthesizer is required")
	case deps.Speech == nil:
		return nil, errors.New("pipeline: speech synthesizer is required")
	case deps.Video == nil:
		return nil, errors.New("pipeline: video synthesizer is required")
	case deps.Voices == nil:
		return nil, errors.New("pipeline: voice catalog is required")
	case deps.History == nil:
		return nil, errors.New("pipeline: history recorder is required")
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Messages == nil {
		deps.Messages = idTranslator{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{deps: deps, logger: infra.LoggerOrNop(deps.Logger), now: now}, nil
}

// NewSession starts a fresh session at the capture step. lang selects the
// language of failure messages.
func (o *Orchestrator) NewSession(lang string) *Session {
	return newSession(o, uuid.NewString(), lang)
}

type nopNotifier struct{}

func (nopNotifier) VideoReady(context.Context, string, string, string)          {}
func (nopNotifier) StageFailed(context.Context, string, string, string, error) {}

type idTranslator struct{}

func (idTranslator) Message(_, id string) string { return id }
