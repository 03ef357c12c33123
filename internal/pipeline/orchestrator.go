package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MiniGun1239/Speech-Regulator/internal/alert"
	"github.com/MiniGun1239/Speech-Regulator/internal/audio"
	"github.com/MiniGun1239/Speech-Regulator/internal/classify"
	"github.com/MiniGun1239/Speech-Regulator/internal/metrics"
)

// Transcriber converts one audio chunk to text. The boolean is false when no
// usable transcript was produced, whether from silence or from failure.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk *audio.Chunk) (string, bool)
}

// DetectionEvent is the outcome of classifying one utterance
type DetectionEvent struct {
	ID        string
	Timestamp time.Time
	Text      string
	Scores    classify.ScoreMap
	Flagged   bool
}

// Options contains orchestrator tuning parameters
type Options struct {
	PollInterval time.Duration
	Threshold    float64
	StartEnabled bool
}

// Statistics is a point-in-time snapshot of the detection loop
type Statistics struct {
	Enabled       bool      `json:"enabled"`
	CyclesStarted uint64    `json:"cycles_started"`
	CyclesSkipped uint64    `json:"cycles_skipped"`
	Transcripts   uint64    `json:"transcripts"`
	Detections    uint64    `json:"detections"`
	LastText      string    `json:"last_text,omitempty"`
	LastDetection time.Time `json:"last_detection,omitempty"`
}

// Orchestrator runs the detection loop. Enable, Disable and HandleText are
// safe to call from any goroutine; Run must be called exactly once.
type Orchestrator struct {
	source      audio.Source
	transcriber Transcriber
	classifier  classify.Classifier
	sink        *alert.Sink
	metrics     *metrics.Metrics
	logger      *slog.Logger
	opts        Options

	enabled  atomic.Bool
	inFlight atomic.Bool
	results  chan DetectionEvent
	onResult func(DetectionEvent)

	cyclesStarted atomic.Uint64
	cyclesSkipped atomic.Uint64
	transcripts   atomic.Uint64
	detections    atomic.Uint64

	lastMu        sync.Mutex
	lastText      string
	lastDetection time.Time
}

// NewOrchestrator wires the detection loop stages together. onResult is
// invoked for every classified utterance, flagged or not: on the loop
// goroutine for capture cycles, and on the caller's goroutine for
// HandleText. It may be nil.
func NewOrchestrator(
	source audio.Source,
	transcriber Transcriber,
	classifier classify.Classifier,
	sink *alert.Sink,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts Options,
	onResult func(DetectionEvent),
) *Orchestrator {
	o := &Orchestrator{
		source:      source,
		transcriber: transcriber,
		classifier:  classifier,
		sink:        sink,
		metrics:     m,
		logger:      logger,
		opts:        opts,
		results:     make(chan DetectionEvent, 4),
		onResult:    onResult,
	}
	o.enabled.Store(opts.StartEnabled)
	return o
}

// Enable turns the detection loop on. The next poll tick starts capturing;
// the call itself returns immediately.
func (o *Orchestrator) Enable() {
	if o.enabled.CompareAndSwap(false, true) {
		o.logger.Info("Detection enabled")
	}
}

// Disable turns the detection loop off. A cycle already in flight runs to
// completion and its result is still processed; only future ticks stop.
func (o *Orchestrator) Disable() {
	if o.enabled.CompareAndSwap(true, false) {
		o.logger.Info("Detection disabled")
	}
}

// Enabled reports whether the loop is currently capturing
func (o *Orchestrator) Enabled() bool {
	return o.enabled.Load()
}

// Run blocks driving the detection loop until ctx is cancelled
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.opts.PollInterval)
	defer ticker.Stop()

	o.logger.Info("Detection loop started",
		slog.Duration("poll_interval", o.opts.PollInterval),
		slog.Bool("enabled", o.enabled.Load()),
		slog.String("classifier_mode", o.classifier.Mode().String()),
	)

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Detection loop stopped")
			return ctx.Err()
		case <-ticker.C:
			o.tick(ctx)
		case event := <-o.results:
			o.handleResult(event)
		}
	}
}

// tick starts one detection cycle unless one is already running
func (o *Orchestrator) tick(ctx context.Context) {
	if !o.enabled.Load() {
		return
	}

	if !o.inFlight.CompareAndSwap(false, true) {
		o.cyclesSkipped.Add(1)
		o.metrics.RecordCycleSkipped()
		return
	}

	o.cyclesStarted.Add(1)
	o.metrics.RecordCycleStarted()
	go o.cycle(ctx)
}

// cycle runs capture, transcription and classification on the worker
// goroutine and hands the result back to the loop.
func (o *Orchestrator) cycle(ctx context.Context) {
	started := time.Now()
	defer func() {
		o.inFlight.Store(false)
		o.metrics.RecordCycleComplete(time.Since(started).Seconds())
	}()

	chunk, err := o.source.Record(ctx)
	if err != nil {
		o.logger.Error("Audio capture failed",
			slog.String("error", err.Error()),
		)
		return
	}

	sttStarted := time.Now()
	o.metrics.RecordTranscriptionRequest()
	text, ok := o.transcriber.Transcribe(ctx, chunk)
	if !ok {
		o.metrics.RecordTranscriptionFailure(time.Since(sttStarted).Seconds())
		return
	}
	o.metrics.RecordTranscriptionSuccess(time.Since(sttStarted).Seconds())

	event := o.classifyText(text)

	select {
	case o.results <- event:
	case <-ctx.Done():
	}
}

// classifyText builds a DetectionEvent for one utterance
func (o *Orchestrator) classifyText(text string) DetectionEvent {
	scores := o.classifier.Predict(text)
	return DetectionEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Text:      text,
		Scores:    scores,
		Flagged:   classify.Flagged(scores, o.opts.Threshold),
	}
}

// handleResult records statistics and fires the alert for flagged events.
// Runs on the loop goroutine for events from cycles, or on the caller's
// goroutine for HandleText.
func (o *Orchestrator) handleResult(event DetectionEvent) {
	o.transcripts.Add(1)
	o.lastMu.Lock()
	o.lastText = event.Text
	if event.Flagged {
		o.lastDetection = event.Timestamp
	}
	o.lastMu.Unlock()

	topScore := 0.0
	if len(event.Scores) > 0 {
		topScore = classify.TopK(event.Scores, 1)[0].Value
	}
	o.metrics.RecordClassification(o.classifier.Mode().String(), topScore)

	if event.Flagged {
		o.detections.Add(1)
		o.metrics.RecordDetection()
		o.logger.Warn("Toxic speech detected",
			slog.String("event_id", event.ID),
			slog.String("text", event.Text),
			slog.String("top_scores", alert.FormatTopScores(event.Scores)),
		)
		o.sink.Record(event.Timestamp, event.Text, event.Scores)
	} else {
		o.logger.Info("Utterance classified clean",
			slog.String("event_id", event.ID),
			slog.String("text", event.Text),
		)
	}

	if o.onResult != nil {
		o.onResult(event)
	}
}

// HandleText classifies text that arrived outside the audio path, such as
// manual console input. It runs synchronously and feeds the same alerting
// and statistics as captured speech.
func (o *Orchestrator) HandleText(text string) DetectionEvent {
	event := o.classifyText(text)
	o.handleResult(event)
	return event
}

// Stats returns a snapshot of the loop counters
func (o *Orchestrator) Stats() Statistics {
	o.lastMu.Lock()
	lastText := o.lastText
	lastDetection := o.lastDetection
	o.lastMu.Unlock()

	return Statistics{
		Enabled:       o.enabled.Load(),
		CyclesStarted: o.cyclesStarted.Load(),
		CyclesSkipped: o.cyclesSkipped.Load(),
		Transcripts:   o.transcripts.Load(),
		Detections:    o.detections.Load(),
		LastText:      lastText,
		LastDetection: lastDetection,
	}
}
