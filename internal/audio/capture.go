package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// CaptureConfig contains microphone capture parameters
type CaptureConfig struct {
	SampleRate      int
	Duration        time.Duration
	FramesPerBuffer int
}

// PortAudioSource records fixed-duration mono chunks from the default input
// device using blocking stream reads. A single shared PortAudio runtime is
// initialized on first use and torn down when the last source closes.
type PortAudioSource struct {
	config CaptureConfig
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

var (
	paMu   sync.Mutex
	paRefs int
)

func acquirePortAudio() error {
	paMu.Lock()
	defer paMu.Unlock()

	if paRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize portaudio: %w", err)
		}
	}
	paRefs++
	return nil
}

func releasePortAudio() {
	paMu.Lock()
	defer paMu.Unlock()

	if paRefs > 0 {
		paRefs--
		if paRefs == 0 {
			_ = portaudio.Terminate()
		}
	}
}

// NewPortAudioSource creates a microphone source for the default input device
func NewPortAudioSource(cfg CaptureConfig, logger *slog.Logger) (*PortAudioSource, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", cfg.SampleRate)
	}

	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("capture duration must be positive, got %v", cfg.Duration)
	}

	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = 512
	}

	if err := acquirePortAudio(); err != nil {
		return nil, err
	}

	return &PortAudioSource{
		config: cfg,
		logger: logger,
	}, nil
}

// Record captures one fixed-duration chunk. It blocks for the full capture
// duration; cancellation of ctx stops the capture early and returns the
// samples collected so far only if at least one buffer was read.
func (s *PortAudioSource) Record(ctx context.Context) (*Chunk, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("source is closed")
	}
	s.mu.Unlock()

	totalSamples := int(float64(s.config.SampleRate) * s.config.Duration.Seconds())
	samples := make([]int16, 0, totalSamples)

	in := make([]int16, s.config.FramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.config.SampleRate), len(in), in)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recording: %w", err)
	}
	defer func() {
		if err := stream.Stop(); err != nil {
			s.logger.Warn("Failed to stop audio stream", slog.String("error", err.Error()))
		}
	}()

	for len(samples) < totalSamples {
		select {
		case <-ctx.Done():
			if len(samples) == 0 {
				return nil, ctx.Err()
			}
			return NewChunk(samples, s.config.SampleRate), nil
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("failed to read audio buffer: %w", err)
		}

		remaining := totalSamples - len(samples)
		if remaining >= len(in) {
			samples = append(samples, in...)
		} else {
			samples = append(samples, in[:remaining]...)
		}
	}

	s.logger.Debug("Captured audio chunk",
		slog.Int("samples", len(samples)),
		slog.Int("sample_rate", s.config.SampleRate),
		slog.Duration("duration", s.config.Duration),
	)

	return NewChunk(samples, s.config.SampleRate), nil
}

// Close releases the shared PortAudio runtime reference
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	releasePortAudio()
	return nil
}
