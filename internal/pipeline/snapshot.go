package pipeline

import (
	"kiosk/internal/domain"
	"kiosk/internal/locale"
	"kiosk/internal/session"
)

// Snapshot is the read-only view of a session sent to the kiosk UI. Audio is
// never part of it.
type Snapshot struct {
	SessionID      string           `json:"session_id"`
	Step           session.Step     `json:"step"`
	Busy           bool             `json:"busy"`
	Version        uint64           `json:"version"`
	SourceImage    string           `json:"source_image,omitempty"`
	Options        *domain.Options  `json:"options,omitempty"`
	GeneratedImage string           `json:"generated_image,omitempty"`
	Voice          *domain.Voice    `json:"voice,omitempty"`
	Text           string           `json:"text,omitempty"`
	VideoURL       string           `json:"video_url,omitempty"`
	LastError      *session.Failure `json:"last_error,omitempty"`
	CatalogWarning string           `json:"catalog_warning,omitempty"`
	VoicesError    *session.Failure `json:"voices_error,omitempty"`
	Closed         bool             `json:"closed,omitempty"`
}

func (s *Session) snapshotLocked() Snapshot {
	step := s.state.Step()
	snap := Snapshot{
		SessionID: s.id,
		Step:      step,
		Busy:      step.Busy(),
		Version:   s.version,
		Closed:    s.closed,
	}
	switch st := s.state.(type) {
	case session.Selection:
		snap.SourceImage = st.Source.DataURI()
		snap.LastError = st.LastError
	case session.GeneratingImage:
		snap.SourceImage = st.Source.DataURI()
		snap.Options = optionsPtr(st.Options)
	case session.VoiceInput:
		snap.SourceImage = st.Source.DataURI()
		snap.Options = optionsPtr(st.Options)
		snap.GeneratedImage = st.Image.DataURI()
		snap.LastError = st.LastError
	case session.GeneratingVideo:
		snap.SourceImage = st.Source.DataURI()
		snap.Options = optionsPtr(st.Options)
		snap.GeneratedImage = st.Image.DataURI()
		snap.Voice = voicePtr(st.Voice)
		snap.Text = st.Text
	case session.Result:
		snap.SourceImage = st.Source.DataURI()
		snap.Options = optionsPtr(st.Options)
		snap.GeneratedImage = st.Image.DataURI()
		snap.Voice = voicePtr(st.Voice)
		snap.Text = st.Text
		snap.VideoURL = string(st.Video)
	}
	if s.catalog != nil && s.catalog.Unfiltered {
		snap.CatalogWarning = s.o.deps.Messages.Message(s.lang, locale.CatalogUnfiltered)
	}
	snap.VoicesError = s.voicesErr
	return snap
}

func optionsPtr(o domain.Options) *domain.Options { return &o }
func voicePtr(v domain.Voice) *domain.Voice       { return &v }
