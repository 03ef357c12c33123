package transcribe

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MiniGun1239/Speech-Regulator/internal/audio"
)

// Transcriber is the VAD-filtered front end of the speech-to-text stage. It
// splits a chunk into speech segments, runs the engine only over voiced
// audio, and joins the segment texts. Failures never escape: any engine
// error yields an absent transcript, the same as silence. A missed
// transcription is an accepted false negative; a crashed pipeline is not.
type Transcriber struct {
	engine    Engine
	segmenter *audio.Segmenter
	logger    *slog.Logger
}

// NewTranscriber creates a transcriber over the given engine and segmenter
func NewTranscriber(engine Engine, segmenter *audio.Segmenter, logger *slog.Logger) *Transcriber {
	return &Transcriber{
		engine:    engine,
		segmenter: segmenter,
		logger:    logger,
	}
}

// Transcribe converts a chunk to text. The second return value is false when
// no speech was detected or transcription failed; the text is then empty.
func (t *Transcriber) Transcribe(ctx context.Context, chunk *audio.Chunk) (string, bool) {
	segments := t.segmenter.Split(chunk)
	if len(segments) == 0 {
		t.logger.Debug("No speech detected in chunk",
			slog.Duration("chunk_duration", chunk.Duration()),
		)
		return "", false
	}

	var parts []string
	for _, segment := range segments {
		text, err := t.engine.Transcribe(ctx, segment.Samples, chunk.SampleRate)
		if err != nil {
			t.logger.Error("Transcription failed, dropping chunk",
				slog.Int("segments", len(segments)),
				slog.String("error", err.Error()),
			)
			return "", false
		}

		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}

	joined := strings.TrimSpace(strings.Join(parts, " "))
	if joined == "" {
		return "", false
	}

	return joined, true
}
