package handlers

import (
	"net/http"
	"strings"

	"kiosk/internal/domain"
	"kiosk/internal/middleware"
)

type registerVoiceRequest struct {
	Name    string `json:"name"`
	VoiceID string `json:"voice_id"`
}

// RegistryCreate adds a voice to the operator registry.
func (a *App) RegistryCreate(w http.ResponseWriter, r *http.Request) {
	var req registerVoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.VoiceID = strings.TrimSpace(req.VoiceID)
	if req.Name == "" || req.VoiceID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "name and voice_id are required")
		return
	}

	v, err := a.Voices.RegisterVoice(r.Context(), req.Name, req.VoiceID)
	if err != nil {
		a.Logger.Error().Err(err).Str("voice_id", req.VoiceID).Msg("register voice failed")
		a.error(w, http.StatusBadGateway, string(domain.KindOf(err)), "failed to register voice")
		return
	}
	a.Logger.Info().
		Str("operator", middleware.OperatorFromContext(r.Context())).
		Str("voice_id", v.VoiceID).
		Str("name", v.Name).
		Msg("voice registered")
	a.json(w, http.StatusCreated, v)
}

func (a *App) RegistryList(w http.ResponseWriter, r *http.Request) {
	items, err := a.Voices.ListVoices(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("list registry failed")
		a.error(w, http.StatusBadGateway, string(domain.KindOf(err)), "failed to list voices")
		return
	}
	if items == nil {
		items = []domain.RegisteredVoice{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
