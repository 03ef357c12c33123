package vad

import (
	"fmt"
	"math"
)

// Gate is an energy-based voice activity detector with hysteresis. Speech
// starts after speechFrames consecutive windows above the speech threshold
// and ends after silenceFrames consecutive windows below the silence
// threshold.
type Gate struct {
	speechThreshold  float64 // normalized RMS level to start speech
	silenceThreshold float64 // normalized RMS level to end speech
	speechFrames     int     // consecutive voiced windows needed to trigger
	silenceFrames    int     // consecutive silent windows needed to release
	windowSize       int     // samples per window

	inSpeech     bool
	speechCount  int
	silenceCount int

	// Statistics
	totalWindows uint64
	voiceWindows uint64
}

// GateConfig contains VAD gate parameters
type GateConfig struct {
	SpeechThreshold  float64
	SilenceThreshold float64
	SpeechFrames     int
	SilenceFrames    int
	WindowSize       int
}

// DefaultGateConfig returns a gate tuned for 16kHz speech with 32ms windows
func DefaultGateConfig() GateConfig {
	return GateConfig{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		SpeechFrames:     2,
		SilenceFrames:    8,
		WindowSize:       512,
	}
}

// NewGate creates a VAD gate from the given configuration
func NewGate(cfg GateConfig) (*Gate, error) {
	if cfg.SpeechThreshold <= 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("speech threshold must be in (0, 1], got %f", cfg.SpeechThreshold)
	}

	if cfg.SilenceThreshold <= 0 || cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("silence threshold must be in (0, speech threshold], got %f", cfg.SilenceThreshold)
	}

	if cfg.SpeechFrames < 1 || cfg.SilenceFrames < 1 {
		return nil, fmt.Errorf("frame counts must be at least 1, got speech=%d silence=%d", cfg.SpeechFrames, cfg.SilenceFrames)
	}

	if cfg.WindowSize < 64 {
		return nil, fmt.Errorf("window size must be at least 64 samples, got %d", cfg.WindowSize)
	}

	return &Gate{
		speechThreshold:  cfg.SpeechThreshold,
		silenceThreshold: cfg.SilenceThreshold,
		speechFrames:     cfg.SpeechFrames,
		silenceFrames:    cfg.SilenceFrames,
		windowSize:       cfg.WindowSize,
	}, nil
}

// Process consumes one window of samples and reports whether the gate
// currently considers the stream to be speech.
func (g *Gate) Process(samples []int16) bool {
	level := rms(samples)
	g.totalWindows++

	if g.inSpeech {
		if level < g.silenceThreshold {
			g.silenceCount++
			g.speechCount = 0
			if g.silenceCount >= g.silenceFrames {
				g.inSpeech = false
				g.silenceCount = 0
			}
		} else {
			g.silenceCount = 0
		}
	} else {
		if level >= g.speechThreshold {
			g.speechCount++
			g.silenceCount = 0
			if g.speechCount >= g.speechFrames {
				g.inSpeech = true
				g.speechCount = 0
			}
		} else {
			g.speechCount = 0
		}
	}

	if g.inSpeech {
		g.voiceWindows++
	}

	return g.inSpeech
}

// WindowSize returns the number of samples the gate expects per window
func (g *Gate) WindowSize() int {
	return g.windowSize
}

// Reset clears the hysteresis state between chunks
func (g *Gate) Reset() {
	g.inSpeech = false
	g.speechCount = 0
	g.silenceCount = 0
}

// VoiceRatio returns the fraction of processed windows that were voiced
func (g *Gate) VoiceRatio() float64 {
	if g.totalWindows == 0 {
		return 0
	}
	return float64(g.voiceWindows) / float64(g.totalWindows)
}

// rms computes the normalized root-mean-square level of a window in [0, 1]
func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var energy float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		energy += f * f
	}

	return math.Sqrt(energy / float64(len(samples)))
}
