// Package speech synthesizes the visitor's text with an ElevenLabs voice.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kiosk/internal/domain"
	"kiosk/internal/infra"
)

const op = "speech synthesis"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("elevenlabs: api key is required")

// Options configures the ElevenLabs text-to-speech client.
type Options struct {
	APIKey          string
	BaseURL         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	HTTPClient      *http.Client
	Logger          *infra.Logger
	RequestTimeout  time.Duration
}

type Client struct {
	apiKey          string
	baseURL         string
	modelID         string
	stability       float64
	similarityBoost float64
	httpClient      *http.Client
	logger          *infra.Logger
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io"
	}
	modelID := strings.TrimSpace(opts.ModelID)
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	stability := opts.Stability
	if stability <= 0 {
		stability = 0.5
	}
	similarity := opts.SimilarityBoost
	if similarity <= 0 {
		similarity = 0.75
	}
	return &Client{
		apiKey:          strings.TrimSpace(opts.APIKey),
		baseURL:         baseURL,
		modelID:         modelID,
		stability:       stability,
		similarityBoost: similarity,
		httpClient:      httpClient,
		logger:          infra.LoggerOrNop(opts.Logger),
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// SynthesizeSpeech renders text with the given provider voice. One attempt,
// no retries.
func (c *Client) SynthesizeSpeech(ctx context.Context, text, voiceID string) (domain.Audio, error) {
	if !c.HasCredentials() {
		return domain.Audio{}, domain.ConfigurationError(op, ErrMissingAPIKey)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Audio{}, domain.SynthesisError(op, errors.New("elevenlabs: text is required"))
	}
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" {
		return domain.Audio{}, domain.SynthesisError(op, errors.New("elevenlabs: voice id is required"))
	}

	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       c.stability,
			SimilarityBoost: c.similarityBoost,
		},
	})
	if err != nil {
		return domain.Audio{}, domain.SynthesisError(op, err)
	}

	endpoint := c.baseURL + "/v1/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Audio{}, domain.SynthesisError(op, err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Audio{}, domain.SynthesisError(op, fmt.Errorf("elevenlabs: request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Audio{}, domain.SynthesisError(op, fmt.Errorf("elevenlabs: read body: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("voice_id", voiceID).Msg("elevenlabs tts rejected")
		return domain.Audio{}, domain.SynthesisError(op, fmt.Errorf("elevenlabs error: %d %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if len(raw) == 0 {
		return domain.Audio{}, domain.SynthesisError(op, errors.New("elevenlabs: empty audio"))
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	if mime = strings.TrimSpace(mime); mime == "" || !strings.HasPrefix(mime, "audio/") {
		mime = domain.DefaultAudioMIME
	}
	c.logger.Debug().Str("voice_id", voiceID).Int("bytes", len(raw)).Dur("took", time.Since(start)).Msg("speech synthesized")
	return domain.Audio{Data: raw, MIMEType: mime}, nil
}
