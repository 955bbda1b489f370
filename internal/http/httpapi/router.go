package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"kiosk/internal/http/handlers"
	"kiosk/internal/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(app.Config.CORSOrigins),
		middleware.I18N(app.Locale),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Route("/api", func(r chi.Router) {
		r.Get("/options", app.OptionsCatalog)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", app.SessionGet)
			r.Get("/voices", app.SessionVoices)
			r.Get("/events", app.SessionEvents)
			r.Post("/back", app.SessionBack)
			r.Post("/restart", app.SessionRestart)

			// Paid provider calls start here.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute))
				r.Post("/", app.SessionStart)
				r.Post("/capture", app.SessionCapture)
				r.Post("/options", app.SessionOptions)
				r.Post("/voice", app.SessionVoice)
			})
		})

		if app.Config.Registration() {
			r.Route("/registry", func(r chi.Router) {
				r.Use(middleware.OperatorAuth(app.Config.OperatorSecret))
				r.Get("/voices", app.RegistryList)
				r.Post("/voices", app.RegistryCreate)
			})
		}
	})

	return r
}
