package dalle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"stylize/internal/infra"
	"stylize/internal/providers/image"
)

// ErrMissingAPIKey indicates the provider was configured without credentials.
var ErrMissingAPIKey = errors.New("dalle: api key is required")

const providerName = "dalle"

// Options configures the OpenAI images provider.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Provider generates images through the OpenAI Images API. Calls are
// synchronous so there is no polling step.
type Provider struct {
	client *openai.Client
	model  string
	logger *infra.Logger
}

// New constructs a provider with defaults applied.
func New(opts Options) (*Provider, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := openai.DefaultConfig(key)
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		cfg.BaseURL = base
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	} else {
		cfg.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = openai.CreateImageModelDallE3
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Provider{client: openai.NewClientWithConfig(cfg), model: model, logger: logger}, nil
}

// Name identifies the provider.
func (p *Provider) Name() string { return providerName }

// Generate requests a single base64 image. The negative prompt and seed
// are not supported by the API; the requested seed is echoed back.
func (p *Provider) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, image.ProviderError(providerName, "invalid prompt: empty", 0)
	}
	began := time.Now()
	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          p.model,
		N:              1,
		Size:           p.size(req.Width, req.Height),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		User:           req.JobID,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classify(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, image.ProviderError(providerName, "no image in response", 0)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, image.ProviderError(providerName, "image payload is not valid base64", 0)
	}
	p.logger.Debug().Str("job_id", req.JobID).Str("model", p.model).Msg("dalle: image generated")
	return &image.Result{
		Data:       data,
		MIME:       http.DetectContentType(data),
		Seed:       req.Seed,
		Model:      p.model,
		DurationMs: time.Since(began).Milliseconds(),
	}, nil
}

// size picks the requested square resolution when the model supports it.
func (p *Provider) size(w, h int) string {
	token := fmt.Sprintf("%dx%d", w, h)
	switch p.model {
	case openai.CreateImageModelDallE2:
		switch token {
		case openai.CreateImageSize256x256, openai.CreateImageSize512x512, openai.CreateImageSize1024x1024:
			return token
		}
	}
	return openai.CreateImageSize1024x1024
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return image.ProviderError(providerName, apiErr.Message, apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return image.ProviderError(providerName, reqErr.Error(), reqErr.HTTPStatusCode)
	}
	return image.ProviderError(providerName, err.Error(), 0)
}

var _ image.Generator = (*Provider)(nil)
