package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"kiosk/internal/adapter/repo"
	"kiosk/internal/domain/optioncfg"
	"kiosk/internal/http/handlers"
	httpapi "kiosk/internal/http/httpapi"
	"kiosk/internal/infra"
	"kiosk/internal/infra/credentials"
	"kiosk/internal/locale"
	"kiosk/internal/notify"
	"kiosk/internal/pipeline"
	"kiosk/internal/providers/image"
	"kiosk/internal/providers/speech"
	"kiosk/internal/providers/video"
	"kiosk/internal/providers/voices"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ctx := context.Background()

	// The pool is optional: it backs the postgres history driver and the
	// stored provider keys.
	var (
		pool  *pgxpool.Pool
		sql   infra.SQLExecutor
		creds *credentials.Store
	)
	if cfg.DatabaseURL != "" {
		pool, err = infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		sql = infra.NewSQLRunner(pool, logger)
		creds = credentials.NewStore(sql)
	}

	resolve := func(provider, env string) string {
		v, err := creds.Resolve(ctx, provider, env)
		if err != nil {
			logger.Warn().Err(err).Str("provider", provider).Msg("stored credential lookup failed")
		}
		if v == "" {
			logger.Warn().Str("provider", provider).Msg("no credentials configured, stage will fail until provided")
		}
		return v
	}

	images, err := image.NewClient(ctx, image.Options{
		APIKey:  resolve(credentials.ProviderGemini, cfg.GeminiAPIKey),
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiImageModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build image client")
	}
	elevenKey := resolve(credentials.ProviderElevenLabs, cfg.ElevenLabsAPIKey)
	tts, err := speech.NewClient(speech.Options{
		APIKey:  elevenKey,
		BaseURL: cfg.ElevenLabsBaseURL,
		ModelID: cfg.ElevenLabsModelID,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build speech client")
	}
	clips, err := video.NewClient(video.Options{
		APIToken:     resolve(credentials.ProviderReplicate, cfg.ReplicateAPIToken),
		BaseURL:      cfg.ReplicateBaseURL,
		Model:        cfg.ReplicateVideoModel,
		PollInterval: cfg.VideoPollInterval,
		MaxPolls:     cfg.VideoPollMaxPolls,
		PollTimeout:  cfg.VideoPollTimeout,
		Backoff:      cfg.VideoPollBackoff,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build video client")
	}

	stores, err := repo.Open(cfg, sql, &logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.HistoryDriver).Msg("failed to open history store")
	}
	defer stores.Close()

	var source voices.Source
	switch cfg.VoiceSource {
	case infra.VoiceSourceRegistry:
		if stores.Registry == nil {
			logger.Fatal().Str("driver", cfg.HistoryDriver).Msg("VOICE_SOURCE=registry needs a history driver with a voice registry")
		}
		source = voices.NewRegistrySource(stores.Registry)
	default:
		source = voices.NewElevenLabsSource(voices.ElevenLabsOptions{
			APIKey:  elevenKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			Tags:    cfg.VoiceFilterTags,
			Logger:  &logger,
		})
	}
	catalog := voices.NewCachedCatalog(source, cfg.VoiceCacheTTL)

	tr, err := locale.New(cfg.DefaultLocale)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load messages")
	}

	deps := pipeline.Deps{
		Images:           images,
		Speech:           tts,
		Video:            clips,
		Voices:           catalog,
		History:          stores.History,
		Messages:         tr,
		PersistenceFatal: cfg.HistoryFailureFatal,
		Logger:           &logger,
	}
	if slack := notify.NewSlack(cfg.SlackWebhookURL, &logger); slack.Enabled() {
		deps.Notifier = slack
	}
	orch, err := pipeline.New(deps)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}
	sessions := pipeline.NewRegistry(orch, cfg.SessionIdleTTL)

	options, err := optioncfg.Default()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load option catalog")
	}

	app, err := handlers.NewApp(cfg, logger, handlers.Deps{
		Sessions: sessions,
		Options:  options,
		Locale:   tr,
		Voices:   stores.Registry,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build http app")
	}
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("mode", cfg.AppMode).Str("history", cfg.HistoryDriver).Msgf("kiosk listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	// Abandon open sessions so running stages are cancelled.
	sessions.Close()
	logger.Info().Msg("server stopped")
}
