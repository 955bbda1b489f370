package handlers

import (
	"errors"
	"net/http"

	"kiosk/internal/domain"
	"kiosk/internal/locale"
	"kiosk/internal/middleware"
	"kiosk/internal/pipeline"
)

type captureRequest struct {
	Image string `json:"image"`
}

type voiceRequest struct {
	VoiceID string `json:"voice_id"`
	Text    string `json:"text"`
}

type voicesResponse struct {
	Voices  []domain.Voice `json:"voices"`
	Warning string         `json:"warning,omitempty"`
}

func (a *App) OptionsCatalog(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Options)
}

// SessionStart replaces the caller's session with a fresh one.
func (a *App) SessionStart(w http.ResponseWriter, r *http.Request) {
	cookie, _ := a.Cookies.Get(r, cookieName)
	if old, ok := cookie.Values[cookieKey].(string); ok && old != "" {
		a.Sessions.Remove(old)
	}

	lang := middleware.LocaleFromContext(r.Context())
	if lang == "" {
		lang = a.Locale.Default()
	}
	s := a.Sessions.Create(lang)
	cookie.Values[cookieKey] = s.ID()
	if err := cookie.Save(r, w); err != nil {
		a.Sessions.Remove(s.ID())
		a.Logger.Error().Err(err).Msg("save session cookie failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to start session")
		return
	}
	a.Logger.Info().Str("session_id", s.ID()).Str("lang", lang).Msg("session started")
	a.json(w, http.StatusCreated, s.Snapshot())
}

func (a *App) SessionGet(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, s.Snapshot())
}

func (a *App) SessionCapture(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req captureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	data, mime, err := domain.ParseDataURI(req.Image, domain.DefaultImageMIME)
	if err != nil {
		a.error(w, http.StatusBadRequest, "invalid_image", err.Error())
		return
	}
	if err := s.Capture(domain.SourceImage{Data: data, MIMEType: mime}); err != nil {
		a.sessionError(w, err)
		return
	}
	a.json(w, http.StatusOK, s.Snapshot())
}

// SessionOptions starts the portrait generation. The result arrives through
// the event stream or the next snapshot.
func (a *App) SessionOptions(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var opts domain.Options
	if err := decodeJSON(w, r, &opts); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := s.SubmitOptions(r.Context(), opts); err != nil {
		a.sessionError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, s.Snapshot())
}

func (a *App) SessionVoices(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	cat, err := s.Voices(r.Context())
	if err != nil {
		a.Logger.Warn().Err(err).Str("session_id", s.ID()).Msg("voice catalog unavailable")
		a.error(w, http.StatusBadGateway, "voices_unavailable", a.Locale.Message(s.Lang(), locale.VoicesUnavailable))
		return
	}
	resp := voicesResponse{Voices: cat.Voices}
	if resp.Voices == nil {
		resp.Voices = []domain.Voice{}
	}
	if cat.Unfiltered {
		resp.Warning = a.Locale.Message(s.Lang(), locale.CatalogUnfiltered)
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) SessionVoice(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req voiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := s.SubmitVoice(r.Context(), req.VoiceID, req.Text); err != nil {
		a.sessionError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, s.Snapshot())
}

func (a *App) SessionBack(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.Back(); err != nil {
		a.sessionError(w, err)
		return
	}
	a.json(w, http.StatusOK, s.Snapshot())
}

func (a *App) SessionRestart(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := s.Restart(); err != nil {
		a.sessionError(w, err)
		return
	}
	a.json(w, http.StatusOK, s.Snapshot())
}

func (a *App) session(w http.ResponseWriter, r *http.Request) (*pipeline.Session, bool) {
	cookie, err := a.Cookies.Get(r, cookieName)
	if err == nil {
		if id, ok := cookie.Values[cookieKey].(string); ok {
			if s, ok := a.Sessions.Get(id); ok {
				return s, true
			}
		}
	}
	a.error(w, http.StatusNotFound, "no_session", "start a session first")
	return nil, false
}

func (a *App) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidTransition):
		a.error(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, pipeline.ErrClosed):
		a.error(w, http.StatusGone, "session_closed", err.Error())
	case errors.Is(err, domain.ErrInvalidOptions):
		a.error(w, http.StatusBadRequest, "invalid_options", err.Error())
	case errors.Is(err, domain.ErrEmptyImage):
		a.error(w, http.StatusBadRequest, "invalid_image", err.Error())
	case errors.Is(err, pipeline.ErrEmptyText):
		a.error(w, http.StatusBadRequest, "empty_text", err.Error())
	case errors.Is(err, pipeline.ErrUnknownVoice):
		a.error(w, http.StatusBadRequest, "unknown_voice", err.Error())
	case domain.KindOf(err) != domain.KindUnknown:
		a.error(w, http.StatusBadGateway, string(domain.KindOf(err)), err.Error())
	default:
		a.Logger.Error().Err(err).Msg("session action failed")
		a.error(w, http.StatusInternalServerError, "internal", "unexpected error")
	}
}
