package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ModeKiosk        = "kiosk"
	ModeRegistration = "registration"

	HistorySupabase = "supabase"
	HistoryPostgres = "postgres"
	HistorySQLite   = "sqlite"
	HistoryNone     = "none"

	VoiceSourceElevenLabs = "elevenlabs"
	VoiceSourceRegistry   = "registry"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv          string
	AppMode         string
	Port            string
	DefaultLocale   string
	SessionSecret   string
	OperatorSecret  string
	CORSOrigins     []string
	SessionIdleTTL  time.Duration
	RateLimitPerMin int

	GeminiAPIKey     string
	GeminiImageModel string
	GeminiBaseURL    string

	ElevenLabsAPIKey  string
	ElevenLabsModelID string
	ElevenLabsBaseURL string

	ReplicateAPIToken   string
	ReplicateBaseURL    string
	ReplicateVideoModel string
	VideoPollInterval   time.Duration
	VideoPollMaxPolls   int
	VideoPollTimeout    time.Duration
	VideoPollBackoff    string

	HistoryDriver       string
	HistoryFailureFatal bool
	SupabaseURL         string
	SupabaseKey         string
	DatabaseURL         string
	SQLitePath          string

	VoiceSource     string
	VoiceFilterTags []string
	VoiceCacheTTL   time.Duration

	SlackWebhookURL string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// Provider credentials are optional here; a client without credentials fails
// with a configuration error when it is first used.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		AppMode:         strings.ToLower(getEnv("APP_MODE", ModeKiosk)),
		Port:            getEnv("PORT", "8080"),
		DefaultLocale:   strings.ToLower(getEnv("DEFAULT_LOCALE", "de")),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		OperatorSecret:  os.Getenv("OPERATOR_SECRET"),
		CORSOrigins:     getEnvList("CORS_ALLOWED_ORIGINS", nil),
		SessionIdleTTL:  getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		GeminiAPIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:    os.Getenv("GEMINI_BASE_URL"),

		ElevenLabsAPIKey:  strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")),
		ElevenLabsModelID: getEnv("ELEVENLABS_MODEL_ID", "eleven_multilingual_v2"),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),

		ReplicateAPIToken:   strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:    getEnv("REPLICATE_BASE_URL", "https://api.replicate.com"),
		ReplicateVideoModel: getEnv("REPLICATE_VIDEO_MODEL", "wan-video/wan-2.2-s2v"),
		VideoPollInterval:   getEnvDuration("VIDEO_POLL_INTERVAL", 2*time.Second),
		VideoPollMaxPolls:   getEnvInt("VIDEO_POLL_MAX_ATTEMPTS", 300),
		VideoPollTimeout:    getEnvDuration("VIDEO_POLL_TIMEOUT", 10*time.Minute),
		VideoPollBackoff:    strings.ToLower(getEnv("VIDEO_POLL_BACKOFF", "constant")),

		HistoryDriver:       strings.ToLower(getEnv("HISTORY_DRIVER", HistorySupabase)),
		HistoryFailureFatal: getEnvBool("HISTORY_FAILURE_FATAL", false),
		SupabaseURL:         os.Getenv("SUPABASE_URL"),
		SupabaseKey:         os.Getenv("SUPABASE_KEY"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SQLitePath:          getEnv("SQLITE_PATH", "kiosk.db"),

		VoiceSource:     strings.ToLower(getEnv("VOICE_SOURCE", VoiceSourceElevenLabs)),
		VoiceFilterTags: getEnvList("VOICE_FILTER_TAGS", []string{"ki event", "ki-event"}),
		VoiceCacheTTL:   getEnvDuration("VOICE_CACHE_TTL", 30*time.Second),

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	switch cfg.AppMode {
	case ModeKiosk, ModeRegistration:
	default:
		return nil, fmt.Errorf("APP_MODE must be %q or %q, got %q", ModeKiosk, ModeRegistration, cfg.AppMode)
	}

	switch cfg.HistoryDriver {
	case HistorySupabase, HistoryNone, HistorySQLite:
	case HistoryPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for HISTORY_DRIVER=%s", HistoryPostgres)
		}
	default:
		return nil, fmt.Errorf("unsupported HISTORY_DRIVER %q", cfg.HistoryDriver)
	}

	switch cfg.VoiceSource {
	case VoiceSourceElevenLabs, VoiceSourceRegistry:
	default:
		return nil, fmt.Errorf("unsupported VOICE_SOURCE %q", cfg.VoiceSource)
	}

	if cfg.AppMode == ModeRegistration && cfg.OperatorSecret == "" {
		return nil, fmt.Errorf("OPERATOR_SECRET is required in registration mode")
	}

	if cfg.VideoPollInterval <= 0 {
		return nil, fmt.Errorf("VIDEO_POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

// Registration reports whether the operator registration surface is enabled.
func (c *Config) Registration() bool {
	return c.AppMode == ModeRegistration
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("2s") or plain seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if i, err := strconv.Atoi(v); err == nil {
		return time.Duration(i) * time.Second
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
