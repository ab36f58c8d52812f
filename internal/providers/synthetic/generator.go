// Package synthetic renders deterministic placeholder images so the pipeline
// can run end to end without provider credentials.
package synthetic

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	stdimage "image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"time"

	"github.com/rs/zerolog"

	"stylize/internal/infra"
	"stylize/internal/providers/image"
)

const (
	providerName = "synthetic"
	defaultModel = "synthetic-stripes-v1"
)

// Generator renders a striped PNG whose palette is a function of prompt and seed.
type Generator struct {
	model  string
	delay  time.Duration
	logger *infra.Logger
}

// New builds a generator. delay simulates provider latency and may be zero.
func New(delay time.Duration, logger *infra.Logger) *Generator {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Generator{model: defaultModel, delay: delay, logger: logger}
}

// Name identifies the provider.
func (g *Generator) Name() string { return providerName }

func (g *Generator) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	began := time.Now()
	if g.delay > 0 {
		t := time.NewTimer(g.delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	var seed int64
	if req.Seed != nil && *req.Seed >= 0 {
		seed = *req.Seed
	} else {
		seed = seedFrom(req.Prompt, req.JobID)
	}
	data, err := render(req.Width, req.Height, palette(req.Prompt, seed))
	if err != nil {
		return nil, fmt.Errorf("synthetic: encode png: %w", err)
	}

	g.logger.Debug().
		Str("job_id", req.JobID).
		Int64("seed", seed).
		Int("bytes", len(data)).
		Msg("synthetic: rendered image")

	return &image.Result{
		Data:       data,
		MIME:       "image/png",
		Seed:       &seed,
		Model:      g.model,
		DurationMs: time.Since(began).Milliseconds(),
	}, nil
}

func seedFrom(parts ...string) int64 {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'|'})
	}
	return int64(binary.BigEndian.Uint32(h.Sum(nil)[:4]) % 1_000_000)
}

func palette(prompt string, seed int64) [3]color.RGBA {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", prompt, seed)))
	var out [3]color.RGBA
	for i := range out {
		out[i] = color.RGBA{R: sum[i*3], G: sum[i*3+1], B: sum[i*3+2], A: 255}
	}
	return out
}

func render(width, height int, colors [3]color.RGBA) ([]byte, error) {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &stdimage.Uniform{colors[0]}, stdimage.Point{}, draw.Src)

	band := max(32, height/12)
	for y := 0; y < height; y += band * 2 {
		draw.Draw(img, stdimage.Rect(0, y, width, min(height, y+band)), &stdimage.Uniform{colors[1]}, stdimage.Point{}, draw.Over)
	}
	step := max(16, width/32)
	for x0 := 0; x0 < width; x0 += step {
		for y := 0; y < height && x0+y < width; y++ {
			img.Set(x0+y, y, colors[2])
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var _ image.Generator = (*Generator)(nil)
