// Package video animates the generated portrait with the synthesized speech
// through a Replicate prediction job.
package video

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

	"github.com/cenkalti/backoff/v4"

	"kiosk/internal/domain"
	"kiosk/internal/infra"
)

const (
	op = "video synthesis"

	DefaultModel  = "wan-video/wan-2.2-s2v"
	DefaultPrompt = "Person talking, looking at camera, realistic movement"

	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

// ErrMissingAPIToken indicates that the client was configured without credentials.
var ErrMissingAPIToken = errors.New("replicate: api token is required")

// Status is the provider-reported job state. Unknown values are treated as
// still running.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Options configures the Replicate client and its polling policy.
type Options struct {
	APIToken string
	BaseURL  string
	Model    string
	Prompt   string

	// PollInterval is the wait before every status request. MaxPolls bounds the
	// number of status requests after the job was created and PollTimeout
	// bounds the total polling time. Either limit yields a timeout error.
	PollInterval time.Duration
	MaxPolls     int
	PollTimeout  time.Duration
	Backoff      string

	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

type Client struct {
	apiToken     string
	baseURL      string
	model        string
	prompt       string
	pollInterval time.Duration
	maxPolls     int
	pollTimeout  time.Duration
	backoffKind  string
	httpClient   *http.Client
	logger       *infra.Logger
}

type createRequest struct {
	Input predictionInput `json:"input"`
}

type predictionInput struct {
	Image             string `json:"image"`
	Audio             string `json:"audio"`
	Prompt            string `json:"prompt"`
	Interpolate       bool   `json:"interpolate"`
	NumFramesPerChunk int    `json:"num_frames_per_chunk"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status Status          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			// Prefer: wait holds the create call open for up to a minute.
			timeout = 90 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com"
	}
	model := strings.Trim(strings.TrimSpace(opts.Model), "/")
	if model == "" {
		model = DefaultModel
	}
	prompt := strings.TrimSpace(opts.Prompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	kind := strings.ToLower(strings.TrimSpace(opts.Backoff))
	switch kind {
	case "", BackoffConstant:
		kind = BackoffConstant
	case BackoffExponential:
	default:
		return nil, fmt.Errorf("replicate: unsupported poll backoff %q", opts.Backoff)
	}
	return &Client{
		apiToken:     strings.TrimSpace(opts.APIToken),
		baseURL:      baseURL,
		model:        model,
		prompt:       prompt,
		pollInterval: interval,
		maxPolls:     opts.MaxPolls,
		pollTimeout:  opts.PollTimeout,
		backoffKind:  kind,
		httpClient:   httpClient,
		logger:       infra.LoggerOrNop(opts.Logger),
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiToken != ""
}

// SynthesizeVideo creates the prediction and polls it until it reaches a
// terminal status. Cancelling ctx stops polling right away; the remote job is
// left alone.
func (c *Client) SynthesizeVideo(ctx context.Context, img domain.GeneratedImage, audio domain.Audio) (domain.VideoReference, error) {
	if !c.HasCredentials() {
		return "", domain.ConfigurationError(op, ErrMissingAPIToken)
	}
	if img.Empty() {
		return "", domain.SynthesisError(op, errors.New("replicate: image is required"))
	}
	if len(audio.Data) == 0 {
		return "", domain.SynthesisError(op, errors.New("replicate: audio is required"))
	}

	pred, err := c.create(ctx, img, audio)
	if err != nil {
		return "", err
	}
	log := c.logger.With().Str("prediction_id", pred.ID).Logger()
	log.Info().Str("status", string(pred.Status)).Msg("replicate prediction created")

	pred, err = c.await(ctx, pred, &log)
	if err != nil {
		return "", err
	}
	return c.result(pred)
}

func (c *Client) create(ctx context.Context, img domain.GeneratedImage, audio domain.Audio) (*prediction, error) {
	body, err := json.Marshal(createRequest{Input: predictionInput{
		Image:             img.DataURI(),
		Audio:             audio.DataURI(),
		Prompt:            c.prompt,
		Interpolate:       false,
		NumFramesPerChunk: 81,
	}})
	if err != nil {
		return nil, domain.SynthesisError(op, err)
	}
	endpoint := c.baseURL + "/v1/models/" + c.model + "/predictions"
	var pred prediction
	if err := c.do(ctx, http.MethodPost, endpoint, body, true, &pred); err != nil {
		return nil, domain.SynthesisError(op, fmt.Errorf("replicate: create prediction: %w", err))
	}
	if pred.ID == "" && !pred.Status.Terminal() {
		return nil, domain.SynthesisError(op, errors.New("replicate: create prediction: response has no id"))
	}
	return &pred, nil
}

// await polls until pred is terminal. It waits one policy interval before
// every status request.
func (c *Client) await(ctx context.Context, pred *prediction, log *infra.Logger) (*prediction, error) {
	if pred.Status.Terminal() {
		return pred, nil
	}

	pollCtx := ctx
	if c.pollTimeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, c.pollTimeout)
		defer cancel()
	}

	policy := c.newPolicy()
	polls := 0
	for !pred.Status.Terminal() {
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return nil, domain.TimeoutError(op, fmt.Errorf("replicate: prediction %s still %s after %d polls", pred.ID, pred.Status, polls))
		}
		timer := time.NewTimer(wait)
		select {
		case <-pollCtx.Done():
			timer.Stop()
			return nil, c.abandoned(ctx, pred, polls, log)
		case <-timer.C:
		}

		next, err := c.get(pollCtx, pred.ID)
		polls++
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, c.abandoned(ctx, pred, polls, log)
			}
			return nil, domain.SynthesisError(op, fmt.Errorf("replicate: poll prediction %s: %w", pred.ID, err))
		}
		if next.Status != pred.Status {
			log.Debug().Str("status", string(next.Status)).Int("poll", polls).Msg("replicate prediction status")
		}
		pred = next
	}
	log.Info().Str("status", string(pred.Status)).Int("polls", polls).Msg("replicate prediction finished")
	return pred, nil
}

// abandoned distinguishes caller cancellation from the polling deadline.
func (c *Client) abandoned(ctx context.Context, pred *prediction, polls int, log *infra.Logger) error {
	if err := ctx.Err(); err != nil {
		log.Info().Int("polls", polls).Msg("replicate polling abandoned")
		return fmt.Errorf("replicate: polling prediction %s abandoned: %w", pred.ID, err)
	}
	return domain.TimeoutError(op, fmt.Errorf("replicate: prediction %s still %s after %s", pred.ID, pred.Status, c.pollTimeout))
}

func (c *Client) newPolicy() backoff.BackOff {
	var policy backoff.BackOff
	if c.backoffKind == BackoffExponential {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = c.pollInterval
		eb.MaxInterval = 8 * c.pollInterval
		eb.MaxElapsedTime = 0
		eb.Reset()
		policy = eb
	} else {
		policy = backoff.NewConstantBackOff(c.pollInterval)
	}
	if c.maxPolls > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(c.maxPolls))
	}
	return policy
}

func (c *Client) get(ctx context.Context, id string) (*prediction, error) {
	var pred prediction
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/predictions/"+url.PathEscape(id), nil, false, &pred); err != nil {
		return nil, err
	}
	if pred.ID == "" {
		pred.ID = id
	}
	return &pred, nil
}

func (c *Client) result(pred *prediction) (domain.VideoReference, error) {
	switch pred.Status {
	case StatusSucceeded:
		ref := outputURL(pred.Output)
		if ref == "" {
			return "", domain.SynthesisError(op, fmt.Errorf("replicate: prediction %s succeeded without output", pred.ID))
		}
		return domain.VideoReference(ref), nil
	default:
		detail := errorText(pred.Error)
		if detail == "" {
			detail = "prediction " + string(pred.Status)
		}
		return "", domain.SynthesisError(op, fmt.Errorf("replicate: %s", detail))
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, wait bool, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if wait {
		req.Header.Set("Prefer", "wait")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// outputURL accepts a plain URL or a list of URLs and returns the first one.
func outputURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, u := range many {
			if u = strings.TrimSpace(u); u != "" {
				return u
			}
		}
	}
	return ""
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
