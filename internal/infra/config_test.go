package infra

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func clearKioskEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_MODE", "HISTORY_DRIVER", "DATABASE_URL", "VOICE_SOURCE", "VOICE_FILTER_TAGS",
		"OPERATOR_SECRET", "VIDEO_POLL_INTERVAL", "VIDEO_POLL_MAX_ATTEMPTS", "VIDEO_POLL_TIMEOUT",
		"GEMINI_API_KEY", "ELEVENLABS_API_KEY", "REPLICATE_API_TOKEN", "DEFAULT_LOCALE",
		"HISTORY_FAILURE_FATAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearKioskEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AppMode != ModeKiosk {
		t.Fatalf("AppMode = %q, want %q", cfg.AppMode, ModeKiosk)
	}
	if cfg.HistoryDriver != HistorySupabase {
		t.Fatalf("HistoryDriver = %q, want %q", cfg.HistoryDriver, HistorySupabase)
	}
	if cfg.VideoPollInterval != 2*time.Second {
		t.Fatalf("VideoPollInterval = %s, want 2s", cfg.VideoPollInterval)
	}
	if cfg.VideoPollMaxPolls != 300 {
		t.Fatalf("VideoPollMaxPolls = %d, want 300", cfg.VideoPollMaxPolls)
	}
	if cfg.DefaultLocale != "de" {
		t.Fatalf("DefaultLocale = %q, want de", cfg.DefaultLocale)
	}
	if cfg.HistoryFailureFatal {
		t.Fatalf("HistoryFailureFatal should default to false")
	}
	if diff := cmp.Diff([]string{"ki event", "ki-event"}, cfg.VoiceFilterTags); diff != "" {
		t.Fatalf("VoiceFilterTags mismatch (-want +got):\n%s", diff)
	}
	if cfg.GeminiImageModel != "gemini-2.5-flash-image" {
		t.Fatalf("GeminiImageModel = %q", cfg.GeminiImageModel)
	}
}

func TestLoadConfigMissingCredentialsDoNotFail(t *testing.T) {
	clearKioskEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.GeminiAPIKey != "" || cfg.ElevenLabsAPIKey != "" || cfg.ReplicateAPIToken != "" {
		t.Fatalf("expected empty credentials, got %+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	clearKioskEnv(t)
	t.Setenv("VIDEO_POLL_INTERVAL", "500ms")
	t.Setenv("VIDEO_POLL_TIMEOUT", "90")
	t.Setenv("VOICE_FILTER_TAGS", " booth , , expo ")
	t.Setenv("HISTORY_FAILURE_FATAL", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.VideoPollInterval != 500*time.Millisecond {
		t.Fatalf("VideoPollInterval = %s, want 500ms", cfg.VideoPollInterval)
	}
	if cfg.VideoPollTimeout != 90*time.Second {
		t.Fatalf("VideoPollTimeout = %s, want 90s", cfg.VideoPollTimeout)
	}
	if diff := cmp.Diff([]string{"booth", "expo"}, cfg.VoiceFilterTags); diff != "" {
		t.Fatalf("VoiceFilterTags mismatch (-want +got):\n%s", diff)
	}
	if !cfg.HistoryFailureFatal {
		t.Fatalf("HistoryFailureFatal should be true")
	}
}

func TestLoadConfigRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown mode", env: map[string]string{"APP_MODE": "admin"}},
		{name: "unknown history driver", env: map[string]string{"HISTORY_DRIVER": "mongo"}},
		{name: "postgres without url", env: map[string]string{"HISTORY_DRIVER": "postgres"}},
		{name: "registration without operator secret", env: map[string]string{"APP_MODE": "registration"}},
		{name: "unknown voice source", env: map[string]string{"VOICE_SOURCE": "file"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearKioskEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadConfigRegistrationMode(t *testing.T) {
	clearKioskEnv(t)
	t.Setenv("APP_MODE", "registration")
	t.Setenv("OPERATOR_SECRET", "s3cret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.Registration() {
		t.Fatalf("expected registration mode")
	}
}
