package alert

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
)

// Player plays the alert sound through the default audio output and rings
// the terminal bell. The WAV file is decoded once into memory so playback
// never touches the disk.
type Player struct {
	buffer *beep.Buffer
	logger *slog.Logger

	initOnce sync.Once
	ready    bool
}

// NewPlayer creates a sound player for the given WAV file. An empty path or
// a file that fails to load degrades to the terminal bell alone.
func NewPlayer(soundPath string, logger *slog.Logger) *Player {
	p := &Player{logger: logger}
	if soundPath == "" {
		return p
	}

	buffer, err := loadSound(soundPath)
	if err != nil {
		logger.Warn("Alert sound unavailable, using terminal bell only",
			slog.String("path", soundPath),
			slog.String("error", err.Error()),
		)
		return p
	}

	p.buffer = buffer
	return p
}

// loadSound decodes the WAV file into a reusable sample buffer
func loadSound(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound file: %w", err)
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode sound file: %w", err)
	}
	defer streamer.Close()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	return buffer, nil
}

// Play triggers the alert sound without blocking. The speaker is opened
// lazily on the first play so headless environments only pay for it when a
// detection actually fires.
func (p *Player) Play() {
	// Terminal bell rings regardless of the audio device state
	fmt.Fprint(os.Stderr, "\a")

	if p.buffer == nil {
		return
	}

	p.initOnce.Do(func() {
		format := p.buffer.Format()
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			p.logger.Warn("Failed to open audio output",
				slog.String("error", err.Error()),
			)
			return
		}
		p.ready = true
	})

	if !p.ready {
		return
	}

	speaker.Play(p.buffer.Streamer(0, p.buffer.Len()))
}
