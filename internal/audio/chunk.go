package audio

import (
	"context"
	"time"
)

// Chunk represents a fixed-duration buffer of mono PCM-16 samples. Chunks are
// treated as immutable once produced: the pipeline consumes each chunk
// exactly once and never writes back into it.
type Chunk struct {
	Samples    []int16
	SampleRate int
	CapturedAt time.Time
}

// NewChunk wraps a sample buffer into a Chunk stamped with the current time
func NewChunk(samples []int16, sampleRate int) *Chunk {
	return &Chunk{
		Samples:    samples,
		SampleRate: sampleRate,
		CapturedAt: time.Now(),
	}
}

// Duration returns the wall-clock length of the chunk
func (c *Chunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Source captures a fixed-duration chunk of audio. Record blocks for the full
// capture duration; the pipeline runs it on a dedicated worker goroutine.
type Source interface {
	Record(ctx context.Context) (*Chunk, error)
	Close() error
}
