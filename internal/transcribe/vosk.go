package transcribe

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

// Vosk is an Engine backed by a Vosk/Kaldi model. Unlike the whisper engine
// the model is loaded eagerly at construction, matching the relay server's
// load-once-at-startup lifecycle.
type Vosk struct {
	model *vosk.VoskModel

	mu sync.Mutex
}

// voskResult is the subset of the recognizer result the engine consumes
type voskResult struct {
	Text string `json:"text"`
}

// NewVosk loads a Vosk model from the given directory
func NewVosk(modelPath string) (*Vosk, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("model path cannot be empty")
	}

	vosk.SetLogLevel(-1)

	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load vosk model from %s: %w", modelPath, err)
	}

	return &Vosk{model: model}, nil
}

// Transcribe runs recognition over the given samples
func (v *Vosk) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	return v.TranscribePCM(ctx, pcm, sampleRate)
}

// TranscribePCM runs recognition over header-stripped little-endian PCM-16
// bytes, the form the relay server receives payloads in.
func (v *Vosk) TranscribePCM(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.model == nil {
		return "", fmt.Errorf("engine is closed")
	}

	rec, err := vosk.NewRecognizer(v.model, float64(sampleRate))
	if err != nil {
		return "", fmt.Errorf("failed to create recognizer: %w", err)
	}
	defer rec.Free()

	rec.AcceptWaveform(pcm)

	var result voskResult
	if err := json.Unmarshal([]byte(rec.FinalResult()), &result); err != nil {
		return "", fmt.Errorf("failed to parse recognizer result: %w", err)
	}

	return strings.TrimSpace(result.Text), nil
}

// Close frees the underlying model
func (v *Vosk) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.model != nil {
		v.model.Free()
		v.model = nil
	}

	return nil
}
