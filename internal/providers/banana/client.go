package banana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"stylize/internal/domain"
	"stylize/internal/infra"
	"stylize/internal/providers/image"
)

// ErrMissingCredentials indicates the client was configured without an API or model key.
var ErrMissingCredentials = errors.New("banana: api key and model key are required")

const (
	providerName        = "banana"
	defaultBaseURL      = "https://api.banana.dev"
	defaultModel        = "stable-diffusion-xl"
	defaultPollInterval = 2 * time.Second
	defaultPollAttempts = 30
	inferenceSteps      = 20
	guidanceScale       = 7.5
)

// Options configures the Banana client.
type Options struct {
	APIKey       string
	ModelKey     string
	BaseURL      string
	Model        string
	PollInterval time.Duration
	PollAttempts int
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// Client submits generation calls to Banana and polls them to completion.
type Client struct {
	apiKey       string
	modelKey     string
	baseURL      string
	model        string
	pollInterval time.Duration
	pollAttempts int
	httpClient   *http.Client
	logger       *infra.Logger
}

type startRequest struct {
	ModelKey string      `json:"modelKey"`
	Inputs   modelInputs `json:"inputs"`
}

type modelInputs struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	Seed              int64   `json:"seed"`
	RefImageURL       string  `json:"refImageUrl,omitempty"`
}

type checkRequest struct {
	ID string `json:"id"`
}

type callResponse struct {
	ID           string        `json:"id"`
	Message      string        `json:"message"`
	Finished     bool          `json:"finished"`
	Success      bool          `json:"success"`
	StartedAt    int64         `json:"startedAt"`
	FinishedAt   int64         `json:"finishedAt"`
	QueueTime    float64       `json:"queue_time"`
	ModelOutputs []modelOutput `json:"modelOutputs"`
}

type modelOutput struct {
	Image         string   `json:"image"`
	Seed          *int64   `json:"seed"`
	InferenceTime *float64 `json:"inference_time"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	modelKey := strings.TrimSpace(opts.ModelKey)
	if apiKey == "" || modelKey == "" {
		return nil, ErrMissingCredentials
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := opts.PollAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:       apiKey,
		modelKey:     modelKey,
		baseURL:      baseURL,
		model:        model,
		pollInterval: interval,
		pollAttempts: attempts,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// Generate submits req and blocks until the call finishes, fails, or the
// poll ceiling is reached.
func (c *Client) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	ctx, span := infra.StartSpan(ctx, "banana.generate", attribute.String("job_id", req.JobID))
	defer span.End()

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, image.ProviderError(providerName, "invalid prompt: empty", 0)
	}
	seed := int64(-1)
	if req.Seed != nil {
		seed = *req.Seed
	}
	payload := startRequest{
		ModelKey: c.modelKey,
		Inputs: modelInputs{
			Prompt:            prompt,
			NegativePrompt:    strings.TrimSpace(req.NegativePrompt),
			Width:             req.Width,
			Height:            req.Height,
			NumInferenceSteps: inferenceSteps,
			GuidanceScale:     guidanceScale,
			Seed:              seed,
			RefImageURL:       req.UploadRef,
		},
	}

	began := time.Now()
	started, err := c.start(ctx, payload)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	c.logger.Debug().Str("job_id", req.JobID).Str("call_id", started.ID).Msg("banana: call started")

	final := started
	if !started.Finished {
		final, err = c.poll(ctx, req.JobID, started.ID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}
	return c.toResult(final, time.Since(began))
}

func (c *Client) start(ctx context.Context, payload startRequest) (*callResponse, error) {
	status, raw, err := c.post(ctx, "/start/v4", payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, image.ProviderError(providerName, err.Error(), 0)
	}
	if status >= 300 {
		return nil, image.ProviderError(providerName, errorMessage(raw), status)
	}
	var decoded callResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("banana: decode start response: %w", err)
	}
	if decoded.ID == "" && !decoded.Finished {
		return nil, image.ProviderError(providerName, "start response missing call id", 0)
	}
	return &decoded, nil
}

// poll checks the call until it finishes. Transport failures and non-2xx
// responses are retried until the attempt ceiling is hit, which ends in a
// Timeout error.
func (c *Client) poll(ctx context.Context, jobID, callID string) (*callResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= c.pollAttempts; attempt++ {
		if err := sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
		status, raw, err := c.post(ctx, "/check/v4", checkRequest{ID: callID})
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr = err
		case status >= 300:
			lastErr = fmt.Errorf("polling error: status %d", status)
		default:
			var decoded callResponse
			if err := json.Unmarshal(raw, &decoded); err != nil {
				lastErr = fmt.Errorf("decode check response: %w", err)
				break
			}
			if !decoded.Finished {
				continue
			}
			if !decoded.Success {
				msg := decoded.Message
				if msg == "" {
					msg = "generation failed"
				}
				return nil, image.ProviderError(providerName, msg, 0)
			}
			return &decoded, nil
		}
		c.logger.Warn().Err(lastErr).Str("job_id", jobID).Int("attempt", attempt).Msg("banana: poll failed")
	}
	msg := "generation timeout: exceeded maximum polling attempts"
	if lastErr != nil {
		return nil, &domain.Error{Kind: domain.KindTimeout, Code: domain.CodeTimeout, Message: msg, Err: lastErr}
	}
	return nil, domain.NewError(domain.KindTimeout, msg)
}

func (c *Client) toResult(resp *callResponse, elapsed time.Duration) (*image.Result, error) {
	if !resp.Success && resp.Finished {
		return nil, image.ProviderError(providerName, resp.Message, 0)
	}
	if len(resp.ModelOutputs) == 0 || resp.ModelOutputs[0].Image == "" {
		return nil, image.ProviderError(providerName, "no image in response", 0)
	}
	out := resp.ModelOutputs[0]
	data, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, image.ProviderError(providerName, "image payload is not valid base64", 0)
	}
	duration := resp.FinishedAt - resp.StartedAt
	if resp.StartedAt == 0 || duration <= 0 {
		duration = elapsed.Milliseconds()
	}
	return &image.Result{
		Data:       data,
		MIME:       http.DetectContentType(data),
		Seed:       out.Seed,
		Model:      c.model,
		DurationMs: duration,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (int, []byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func errorMessage(raw []byte) string {
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil {
		if detail.Error != "" {
			return detail.Error
		}
		if detail.Message != "" {
			return detail.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ image.Generator = (*Client)(nil)
