package audio

import (
	"math"
	"testing"

	"github.com/MiniGun1239/Speech-Regulator/internal/vad"
)

func newTestSegmenter(t *testing.T) *Segmenter {
	t.Helper()
	gate, err := vad.NewGate(vad.DefaultGateConfig())
	if err != nil {
		t.Fatalf("NewGate failed: %v", err)
	}
	return NewSegmenter(gate)
}

func appendTone(samples []int16, windows, windowSize int, amplitude float64) []int16 {
	for w := 0; w < windows; w++ {
		for i := 0; i < windowSize; i++ {
			samples = append(samples, int16(amplitude*32767.0*math.Sin(2*math.Pi*float64(i)/64.0)))
		}
	}
	return samples
}

func appendSilence(samples []int16, windows, windowSize int) []int16 {
	return append(samples, make([]int16, windows*windowSize)...)
}

func TestSplitSilentChunk(t *testing.T) {
	seg := newTestSegmenter(t)

	chunk := NewChunk(make([]int16, 24000), 16000)
	segments := seg.Split(chunk)

	if len(segments) != 0 {
		t.Errorf("Expected no segments for silence, got %d", len(segments))
	}
}

func TestSplitSpeechChunk(t *testing.T) {
	seg := newTestSegmenter(t)
	const windowSize = 512

	var samples []int16
	samples = appendSilence(samples, 4, windowSize)
	samples = appendTone(samples, 10, windowSize, 0.5)
	samples = appendSilence(samples, 12, windowSize)

	segments := seg.Split(NewChunk(samples, 16000))

	if len(segments) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segments))
	}

	if len(segments[0].Samples) == 0 {
		t.Error("Segment contains no samples")
	}

	if segments[0].StartIndex < 4*windowSize {
		t.Errorf("Segment starts inside leading silence at %d", segments[0].StartIndex)
	}
}

func TestSplitMultipleSegments(t *testing.T) {
	seg := newTestSegmenter(t)
	const windowSize = 512

	var samples []int16
	samples = appendTone(samples, 6, windowSize, 0.5)
	samples = appendSilence(samples, 12, windowSize)
	samples = appendTone(samples, 6, windowSize, 0.5)

	segments := seg.Split(NewChunk(samples, 16000))

	if len(segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(segments))
	}

	if segments[0].StartIndex >= segments[1].StartIndex {
		t.Error("Segments out of order")
	}
}
