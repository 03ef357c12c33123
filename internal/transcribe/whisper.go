package transcribe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// modelState tracks the one-shot lazy initialization of the whisper model
type modelState int

const (
	modelUninitialized modelState = iota
	modelReady
	modelFailed
)

// WhisperConfig contains local whisper engine configuration
type WhisperConfig struct {
	ModelDir  string
	ModelSize string
	Language  string
}

// Whisper is a local speech-to-text engine backed by whisper.cpp. The model
// is loaded on first use, exactly once: concurrent callers block on the init
// mutex rather than racing to load it twice, and a failed load is sticky so
// every later call fails fast.
type Whisper struct {
	config WhisperConfig
	logger *slog.Logger

	mu      sync.Mutex
	state   modelState
	model   whisper.Model
	loadErr error
}

// NewWhisper creates a local whisper engine. The model file is not touched
// until the first Transcribe call.
func NewWhisper(cfg WhisperConfig, logger *slog.Logger) *Whisper {
	if cfg.ModelSize == "" {
		cfg.ModelSize = "tiny"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	return &Whisper{
		config: cfg,
		logger: logger,
	}
}

// ensureModel loads the whisper model exactly once, selecting the model file
// variant by accelerator availability: the half-precision file when an
// accelerator is present, otherwise the quantized CPU file when it exists.
func (w *Whisper) ensureModel() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case modelReady:
		return nil
	case modelFailed:
		return w.loadErr
	}

	path := w.selectModelPath()

	w.logger.Info("Loading whisper model",
		slog.String("path", path),
		slog.String("size", w.config.ModelSize),
		slog.Bool("accelerated", hasAccelerator()),
	)

	model, err := whisper.New(path)
	if err != nil {
		w.state = modelFailed
		w.loadErr = fmt.Errorf("failed to load whisper model %s: %w", path, err)
		return w.loadErr
	}

	w.model = model
	w.state = modelReady
	return nil
}

// selectModelPath picks the model file for the configured size. On plain CPU
// hosts the quantized variant is preferred when present.
func (w *Whisper) selectModelPath() string {
	base := filepath.Join(w.config.ModelDir, fmt.Sprintf("ggml-%s.bin", w.config.ModelSize))
	if hasAccelerator() {
		return base
	}

	quantized := filepath.Join(w.config.ModelDir, fmt.Sprintf("ggml-%s-q5_1.bin", w.config.ModelSize))
	if _, err := os.Stat(quantized); err == nil {
		return quantized
	}

	return base
}

// hasAccelerator probes for a usable GPU. whisper.cpp offloads automatically
// when built with GPU support; this probe only drives model file selection.
func hasAccelerator() bool {
	if v := os.Getenv("CUDA_VISIBLE_DEVICES"); v != "" && v != "-1" {
		return true
	}

	if _, err := os.Stat("/dev/nvidia0"); err == nil {
		return true
	}

	return false
}

// Transcribe runs whisper inference over the given samples and returns the
// concatenated segment texts.
func (w *Whisper) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	if err := w.ensureModel(); err != nil {
		return "", err
	}

	if sampleRate != whisper.SampleRate {
		return "", fmt.Errorf("whisper requires %d Hz input, got %d", whisper.SampleRate, sampleRate)
	}

	data := make([]float32, len(samples))
	for i, s := range samples {
		data[i] = float32(s) / 32768.0
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create whisper context: %w", err)
	}

	if err := wctx.SetLanguage(w.config.Language); err != nil {
		return "", fmt.Errorf("failed to set language %q: %w", w.config.Language, err)
	}
	wctx.SetTranslate(false)
	wctx.SetThreads(uint(runtime.NumCPU()))

	if err := wctx.Process(data, nil, nil); err != nil {
		return "", fmt.Errorf("whisper inference failed: %w", err)
	}

	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read whisper segment: %w", err)
		}

		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}

// Close releases the whisper model if it was loaded
func (w *Whisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == modelReady && w.model != nil {
		err := w.model.Close()
		w.model = nil
		w.state = modelFailed
		w.loadErr = fmt.Errorf("engine is closed")
		return err
	}

	return nil
}
