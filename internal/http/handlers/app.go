package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"

	"kiosk/internal/domain"
	"kiosk/internal/domain/optioncfg"
	"kiosk/internal/infra"
	"kiosk/internal/locale"
	"kiosk/internal/pipeline"
)

const (
	cookieName = "kiosk_session"
	cookieKey  = "sid"
)

// Deps are the collaborators of the HTTP layer. Voices is only needed in
// registration mode.
type Deps struct {
	Sessions *pipeline.Registry
	Options  *optioncfg.Catalog
	Locale   *locale.Translator
	Voices   domain.VoiceRegistry
}

type App struct {
	Config   *infra.Config
	Logger   infra.Logger
	Sessions *pipeline.Registry
	Options  *optioncfg.Catalog
	Locale   *locale.Translator
	Voices   domain.VoiceRegistry
	Cookies  sessions.Store
	Upgrader websocket.Upgrader

	// wsWriteTimeout bounds a single websocket frame write.
	wsWriteTimeout time.Duration
	wsPing         time.Duration
}

func NewApp(cfg *infra.Config, logger infra.Logger, deps Deps) (*App, error) {
	if deps.Sessions == nil || deps.Options == nil || deps.Locale == nil {
		return nil, errors.New("handlers: sessions, options and locale are required")
	}
	if cfg.Registration() && deps.Voices == nil {
		return nil, errors.New("handlers: voice registry is required in registration mode")
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
		logger.Warn().Msg("SESSION_SECRET not set, kiosk cookies will not survive a restart")
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((12 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   cfg.AppEnv == "production",
		SameSite: http.SameSiteLaxMode,
	}

	a := &App{
		Config:         cfg,
		Logger:         logger,
		Sessions:       deps.Sessions,
		Options:        deps.Options,
		Locale:         deps.Locale,
		Voices:         deps.Voices,
		Cookies:        store,
		wsWriteTimeout: 10 * time.Second,
		wsPing:         30 * time.Second,
	}
	a.Upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     a.checkOrigin,
	}
	return a, nil
}

// checkOrigin admits same-host origins and the configured CORS origins.
func (a *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.Config.CORSOrigins {
		if origin == allowed {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 20<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
