package pipeline

import (
	"errors"

	"kiosk/internal/domain"
	"kiosk/internal/locale"
	"kiosk/internal/session"
)

const (
	stageImage = "image"
	stageVideo = "video"
)

var (
	// ErrInvalidTransition is returned when an action does not apply to the
	// current step. The session is left untouched.
	ErrInvalidTransition = errors.New("action not allowed in current step")
	ErrEmptyText         = errors.New("spoken text is empty")
	ErrUnknownVoice      = errors.New("voice is not in the catalog")
	ErrClosed            = errors.New("session closed")
	// ErrSuperseded is returned by a blocking stage whose result was dropped
	// because the session was restarted while it ran.
	ErrSuperseded = errors.New("session restarted while stage was running")
)

func (o *Orchestrator) failure(lang, stage string, err error) *session.Failure {
	kind := domain.KindOf(err)
	id := locale.ImageFailed
	if stage == stageVideo {
		id = locale.VideoFailed
	}
	switch kind {
	case domain.KindConfiguration:
		id = locale.ConfigurationMissing
	case domain.KindTimeout:
		id = locale.VideoTimeout
	case domain.KindPersistence:
		id = locale.PersistenceFailed
	}
	return &session.Failure{
		Kind:    kind,
		Message: o.deps.Messages.Message(lang, id),
		Detail:  err.Error(),
	}
}
