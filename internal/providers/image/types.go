package image

import "context"

// Request is the provider-neutral generation input.
type Request struct {
	JobID          string
	Prompt         string
	NegativePrompt string
	Style          string
	Width          int
	Height         int
	// Seed is nil when the provider should pick one.
	Seed      *int64
	UploadRef string
}

// Result is a single generated image.
type Result struct {
	Data       []byte
	MIME       string
	Seed       *int64
	Model      string
	DurationMs int64
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Named is implemented by providers that report a stable identifier.
type Named interface {
	Name() string
}
