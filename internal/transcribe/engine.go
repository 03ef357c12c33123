package transcribe

import (
	"context"
)

// Engine converts raw PCM-16 samples into text. Implementations block until
// inference completes; the caller decides which goroutine that happens on.
type Engine interface {
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error)
	Close() error
}
