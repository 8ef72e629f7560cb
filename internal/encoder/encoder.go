// Package encoder is the Encoder Facade: a uniform interface over the
// ColPali-family visual-text encoder and the sentence-level text encoder,
// both treated as black-box HTTP services per spec §1.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"docintel/internal/model"
)

// ErrEncoder is a persistent, fatal encoder failure (surfaced as the job's
// terminal error after the single automatic OOM retry is exhausted).
var ErrEncoder = errors.New("encoder: persistent failure")

// Device is the compute device an encoder runs on.
type Device string

const (
	DeviceAccelerated Device = "accelerated"
	DeviceCPU         Device = "cpu"
)

// PageImage is a rasterised page ready for the visual encoder.
type PageImage struct {
	Page int
	PNG  []byte
}

// Backend is the minimal black-box contract the Facade drives: embed a
// batch, report how it is currently failing (for OOM detection), and name
// itself for logging.
type Backend interface {
	EmbedImages(ctx context.Context, images [][]byte) ([]model.MultiVector, error)
	EmbedTexts(ctx context.Context, texts []string) ([]model.MultiVector, error)
	Name() string
}

// Facade wraps a Backend with batching, a single-writer lock (the GPU
// cannot safely host two batches at once, spec §5), device-downgrade
// logging, and the one-automatic-retry-at-half-batch OOM policy.
type Facade struct {
	backend Backend

	mu            sync.Mutex // serialises encoder invocations (single GPU writer)
	batchVisual   int
	batchText     int
	device        Device
	downgradeOnce sync.Once
	onDowngrade   func(from, to Device)
}

// Option configures a Facade.
type Option func(*Facade)

// WithBatchSizes overrides the default visual/text batch sizes.
func WithBatchSizes(visual, text int) Option {
	return func(f *Facade) {
		if visual > 0 {
			f.batchVisual = visual
		}
		if text > 0 {
			f.batchText = text
		}
	}
}

// WithDowngradeHook lets callers observe the one-time GPU->CPU downgrade log.
func WithDowngradeHook(fn func(from, to Device)) Option {
	return func(f *Facade) { f.onDowngrade = fn }
}

// New constructs a Facade. device is the requested device and is recorded
// as given; Downgrade switches it to CPU once. The Facade never calls
// Downgrade itself, so an accelerated failure does not change the device.
func New(backend Backend, device Device, opts ...Option) *Facade {
	f := &Facade{
		backend:     backend,
		batchVisual: 4,
		batchText:   32,
		device:      device,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// EmbedPages embeds a set of rasterised page images, preserving order.
func (f *Facade) EmbedPages(ctx context.Context, images []PageImage) ([]model.VisualEmbedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.VisualEmbedding, 0, len(images))
	for start := 0; start < len(images); start += f.batchVisual {
		end := min(start+f.batchVisual, len(images))
		batch := images[start:end]
		raw := make([][]byte, len(batch))
		for i, img := range batch {
			raw[i] = img.PNG
		}
		vecs, err := f.embedWithOOMRetry(ctx, raw, f.backend.EmbedImages)
		if err != nil {
			return nil, fmt.Errorf("encoder: embed pages: %w", err)
		}
		for i, v := range vecs {
			out = append(out, model.VisualEmbedding{Page: batch[i].Page, Vectors: v})
		}
	}
	return out, nil
}

// EmbedChunks embeds chunk texts, preserving order.
func (f *Facade) EmbedChunks(ctx context.Context, texts []string) ([]model.MultiVector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]model.MultiVector, 0, len(texts))
	for start := 0; start < len(texts); start += f.batchText {
		end := min(start+f.batchText, len(texts))
		batch := texts[start:end]
		vecs, err := f.embedTextWithOOMRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("encoder: embed chunks: %w", err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single query string for retrieval.
func (f *Facade) EmbedQuery(ctx context.Context, text string) (model.MultiVector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vecs, err := f.embedTextWithOOMRetry(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("encoder: embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("encoder: empty query embedding")
	}
	return vecs[0], nil
}

type imageEmbedFn func(ctx context.Context, images [][]byte) ([]model.MultiVector, error)

// embedWithOOMRetry implements spec §4.1: "out-of-memory on GPU triggers one
// automatic retry at half batch; persistent failure surfaces as
// EncoderError".
func (f *Facade) embedWithOOMRetry(ctx context.Context, images [][]byte, fn imageEmbedFn) ([]model.MultiVector, error) {
	vecs, err := fn(ctx, images)
	if err == nil {
		return vecs, nil
	}
	if !isOOM(err) || len(images) <= 1 {
		return nil, fmt.Errorf("%w: %v", ErrEncoder, err)
	}
	mid := len(images) / 2
	first, err1 := fn(ctx, images[:mid])
	if err1 != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoder, err1)
	}
	second, err2 := fn(ctx, images[mid:])
	if err2 != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoder, err2)
	}
	return append(first, second...), nil
}

func (f *Facade) embedTextWithOOMRetry(ctx context.Context, texts []string) ([]model.MultiVector, error) {
	vecs, err := f.backend.EmbedTexts(ctx, texts)
	if err == nil {
		return vecs, nil
	}
	if !isOOM(err) || len(texts) <= 1 {
		return nil, fmt.Errorf("%w: %v", ErrEncoder, err)
	}
	mid := len(texts) / 2
	first, err1 := f.backend.EmbedTexts(ctx, texts[:mid])
	if err1 != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoder, err1)
	}
	second, err2 := f.backend.EmbedTexts(ctx, texts[mid:])
	if err2 != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoder, err2)
	}
	return append(first, second...), nil
}

// isOOM recognises the out-of-memory signal an accelerated backend reports.
// Backends communicate this via a sentinel error rather than a typed
// exception, matching how the HTTP-based backends in this codebase surface
// remote failures.
func isOOM(err error) bool {
	return errors.Is(err, ErrOutOfMemory)
}

// ErrOutOfMemory is the sentinel a Backend wraps into its returned error to
// signal a retryable OOM, as opposed to a persistent failure.
var ErrOutOfMemory = errors.New("encoder: out of memory")

// Downgrade records a one-time accelerated->CPU fallback, logged once per
// process per spec §4.1.
func (f *Facade) Downgrade() {
	f.downgradeOnce.Do(func() {
		from := f.device
		f.device = DeviceCPU
		if f.onDowngrade != nil {
			f.onDowngrade(from, DeviceCPU)
		}
	})
}

// Device reports the encoder's current device.
func (f *Facade) Device() Device { return f.device }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
