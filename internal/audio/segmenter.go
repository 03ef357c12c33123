package audio

import (
	"github.com/MiniGun1239/Speech-Regulator/internal/vad"
)

// Segment is a run of consecutive voiced windows within one chunk
type Segment struct {
	Samples    []int16
	StartIndex int // sample offset within the chunk
}

// Segmenter splits a chunk into VAD windows and groups the voiced ones into
// speech segments. Pure-silence chunks yield no segments, which lets the
// transcriber skip model inference entirely.
type Segmenter struct {
	gate *vad.Gate
}

// NewSegmenter creates a segmenter around the given VAD gate
func NewSegmenter(gate *vad.Gate) *Segmenter {
	return &Segmenter{gate: gate}
}

// Split returns the speech segments of a chunk in order of appearance. The
// trailing partial window is evaluated as-is so short utterances at the end
// of a chunk are not dropped.
func (s *Segmenter) Split(chunk *Chunk) []Segment {
	s.gate.Reset()

	windowSize := s.gate.WindowSize()
	var segments []Segment
	var current *Segment

	for start := 0; start < len(chunk.Samples); start += windowSize {
		end := start + windowSize
		if end > len(chunk.Samples) {
			end = len(chunk.Samples)
		}
		window := chunk.Samples[start:end]

		if s.gate.Process(window) {
			if current == nil {
				current = &Segment{StartIndex: start}
			}
			current.Samples = append(current.Samples, window...)
		} else if current != nil {
			segments = append(segments, *current)
			current = nil
		}
	}

	if current != nil {
		segments = append(segments, *current)
	}

	return segments
}
