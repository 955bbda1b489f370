// Package image turns the visitor photo into a stylized portrait with Gemini.
package image

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"kiosk/internal/domain"
	"kiosk/internal/imagegen"
	"kiosk/internal/infra"
)

const (
	DefaultModel = "gemini-2.5-flash-image"
	op           = "image synthesis"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("gemini: api key is required")

// Options configures the Gemini image client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs one image-conditioned generation per call. It never retries.
type Client struct {
	model   string
	genai   *genai.Client
	logger  *infra.Logger
	timeout time.Duration
}

// NewClient constructs the client. Without an API key it still succeeds, and
// SynthesizeImage reports a configuration error instead.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	c := &Client{
		model:   model,
		logger:  infra.LoggerOrNop(opts.Logger),
		timeout: timeout,
	}
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return c, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base + "/"}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	c.genai = client
	return c, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.genai != nil
}

// SynthesizeImage sends the source photo together with the portrait
// instruction and returns the first image part of the first candidate.
func (c *Client) SynthesizeImage(ctx context.Context, source domain.SourceImage, opts domain.Options) (domain.GeneratedImage, error) {
	if !c.HasCredentials() {
		return domain.GeneratedImage{}, domain.ConfigurationError(op, ErrMissingAPIKey)
	}
	if source.Empty() {
		return domain.GeneratedImage{}, domain.SynthesisError(op, domain.ErrEmptyImage)
	}
	mime := source.MIMEType
	if mime == "" {
		mime = domain.DefaultImageMIME
	}
	aspect := opts.AspectRatio
	if aspect == "" {
		aspect = domain.DefaultAspectRatio
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(source.Data, mime),
			genai.NewPartFromText(imagegen.BuildInstruction(opts)),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
		ImageConfig:        &genai.ImageConfig{AspectRatio: string(aspect)},
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		c.logger.Warn().Err(err).Str("model", c.model).Msg("gemini generate content failed")
		return domain.GeneratedImage{}, domain.SynthesisError(op, fmt.Errorf("gemini: %w", err))
	}
	img, err := firstInlineImage(resp)
	if err != nil {
		return domain.GeneratedImage{}, domain.SynthesisError(op, err)
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("aspect_ratio", string(aspect)).
		Int("bytes", len(img.Data)).
		Dur("took", time.Since(start)).
		Msg("gemini image generated")
	return img, nil
}

func firstInlineImage(resp *genai.GenerateContentResponse) (domain.GeneratedImage, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return domain.GeneratedImage{}, errors.New("gemini: response has no candidates")
	}
	var text []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = domain.DefaultImageMIME
			}
			return domain.GeneratedImage{Data: part.InlineData.Data, MIMEType: mime}, nil
		}
		if t := strings.TrimSpace(part.Text); t != "" {
			text = append(text, t)
		}
	}
	if len(text) > 0 {
		return domain.GeneratedImage{}, fmt.Errorf("gemini: no image in response: %s", strings.Join(text, " "))
	}
	return domain.GeneratedImage{}, errors.New("gemini: no image in response")
}
