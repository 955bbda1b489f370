// Package voices lists the voices a visitor may pick.
package voices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kiosk/internal/domain"
	"kiosk/internal/infra"
)

const catalogOp = "voice catalog"

// ErrMissingAPIKey indicates that the source was configured without credentials.
var ErrMissingAPIKey = errors.New("elevenlabs: api key is required")

// Source produces an uncached catalog.
type Source interface {
	ListVoices(ctx context.Context) (domain.Catalog, error)
}

// ElevenLabsOptions configures the ElevenLabs voice listing.
type ElevenLabsOptions struct {
	APIKey     string
	BaseURL    string
	Tags       []string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// ElevenLabsSource lists the account voices and keeps the tagged ones.
type ElevenLabsSource struct {
	apiKey     string
	baseURL    string
	tags       []string
	httpClient *http.Client
	logger     *infra.Logger
}

func NewElevenLabsSource(opts ElevenLabsOptions) *ElevenLabsSource {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	tags := opts.Tags
	if len(tags) == 0 {
		tags = DefaultTags
	}
	return &ElevenLabsSource{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		tags:       tags,
		httpClient: httpClient,
		logger:     infra.LoggerOrNop(opts.Logger),
	}
}

func (s *ElevenLabsSource) ListVoices(ctx context.Context) (domain.Catalog, error) {
	if s.apiKey == "" {
		return domain.Catalog{}, domain.ConfigurationError(catalogOp, ErrMissingAPIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/voices", nil)
	if err != nil {
		return domain.Catalog{}, domain.SynthesisError(catalogOp, err)
	}
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.Catalog{}, domain.SynthesisError(catalogOp, fmt.Errorf("elevenlabs: list voices: %w", err))
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Catalog{}, domain.SynthesisError(catalogOp, fmt.Errorf("elevenlabs: read voices: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("elevenlabs: list voices: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		if resp.StatusCode == http.StatusUnauthorized {
			return domain.Catalog{}, domain.ConfigurationError(catalogOp, err)
		}
		return domain.Catalog{}, domain.SynthesisError(catalogOp, err)
	}

	all, err := decodeVoices(raw)
	if err != nil {
		return domain.Catalog{}, domain.SynthesisError(catalogOp, err)
	}
	matched, fellBack := FilterByTags(all, s.tags)
	if fellBack {
		s.logger.Warn().Strs("tags", s.tags).Int("voices", len(all)).Msg("no tagged voices found, offering all voices")
	}
	return domain.Catalog{Voices: matched, Unfiltered: fellBack}, nil
}

func decodeVoices(raw []byte) ([]RawVoice, error) {
	var envelope struct {
		Voices []json.RawMessage `json:"voices"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode voices: %w", err)
	}
	out := make([]RawVoice, 0, len(envelope.Voices))
	for _, item := range envelope.Voices {
		var v struct {
			VoiceID string `json:"voice_id"`
			Name    string `json:"name"`
		}
		if err := json.Unmarshal(item, &v); err != nil || v.VoiceID == "" {
			continue
		}
		out = append(out, RawVoice{
			Voice: domain.Voice{ID: v.VoiceID, DisplayName: v.Name, ProviderVoiceID: v.VoiceID},
			Raw:   item,
		})
	}
	return out, nil
}

// RegistrySource serves the operator-maintained registry as the catalog.
type RegistrySource struct {
	registry domain.VoiceRegistry
}

func NewRegistrySource(registry domain.VoiceRegistry) *RegistrySource {
	return &RegistrySource{registry: registry}
}

func (s *RegistrySource) ListVoices(ctx context.Context) (domain.Catalog, error) {
	rows, err := s.registry.ListVoices(ctx)
	if err != nil {
		if domain.KindOf(err) == domain.KindUnknown {
			return domain.Catalog{}, domain.PersistenceError(catalogOp, fmt.Errorf("voice registry: %w", err))
		}
		return domain.Catalog{}, fmt.Errorf("voice registry: %w", err)
	}
	voices := make([]domain.Voice, 0, len(rows))
	for _, r := range rows {
		voices = append(voices, r.AsVoice())
	}
	return domain.Catalog{Voices: voices}, nil
}
