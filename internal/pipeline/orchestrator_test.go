package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MiniGun1239/Speech-Regulator/internal/alert"
	"github.com/MiniGun1239/Speech-Regulator/internal/audio"
	"github.com/MiniGun1239/Speech-Regulator/internal/classify"
	"github.com/MiniGun1239/Speech-Regulator/internal/metrics"
)

var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.Metrics
)

// sharedMetrics returns a process-wide Metrics instance because promauto
// registers against the default registry and double registration panics.
func sharedMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = metrics.NewMetrics()
	})
	return testMetrics
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource returns a fixed chunk, optionally blocking until released
type fakeSource struct {
	block chan struct{}
}

func (f *fakeSource) Record(ctx context.Context) (*audio.Chunk, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return audio.NewChunk(make([]int16, 16000), 16000), nil
}

func (f *fakeSource) Close() error { return nil }

// fakeTranscriber returns a fixed transcript
type fakeTranscriber struct {
	text string
	ok   bool
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, chunk *audio.Chunk) (string, bool) {
	return f.text, f.ok
}

// fakeClassifier scores every input with a fixed value
type fakeClassifier struct {
	score float64
}

func (f *fakeClassifier) Predict(text string) classify.ScoreMap {
	if text == "" {
		return classify.ScoreMap{}
	}
	return classify.ScoreMap{{Label: "toxic", Value: f.score}}
}

func (f *fakeClassifier) Mode() classify.Mode { return classify.ModeFallback }

func newTestOrchestrator(t *testing.T, source audio.Source, tr Transcriber, score float64, onResult func(DetectionEvent)) *Orchestrator {
	t.Helper()
	sink := alert.NewSink(t.TempDir(), "", testLogger())
	opts := Options{
		PollInterval: 10 * time.Millisecond,
		Threshold:    0.5,
		StartEnabled: true,
	}
	return NewOrchestrator(source, tr, &fakeClassifier{score: score}, sink, sharedMetrics(), testLogger(), opts, onResult)
}

func TestTickSingleFlight(t *testing.T) {
	release := make(chan struct{})
	source := &fakeSource{block: release}
	o := newTestOrchestrator(t, source, &fakeTranscriber{ok: false}, 0.1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.tick(ctx)
	for i := 0; i < 5; i++ {
		o.tick(ctx)
	}

	stats := o.Stats()
	if stats.CyclesStarted != 1 {
		t.Errorf("cycles started = %d, want 1", stats.CyclesStarted)
	}
	if stats.CyclesSkipped != 5 {
		t.Errorf("cycles skipped = %d, want 5", stats.CyclesSkipped)
	}

	close(release)
}

func TestTickDisabled(t *testing.T) {
	o := newTestOrchestrator(t, &fakeSource{}, &fakeTranscriber{ok: false}, 0.1, nil)
	o.Disable()

	o.tick(context.Background())

	if stats := o.Stats(); stats.CyclesStarted != 0 {
		t.Errorf("cycles started = %d, want 0", stats.CyclesStarted)
	}
}

func TestEnableDisable(t *testing.T) {
	o := newTestOrchestrator(t, &fakeSource{}, &fakeTranscriber{ok: false}, 0.1, nil)

	if !o.Enabled() {
		t.Fatal("expected orchestrator to start enabled")
	}
	o.Disable()
	if o.Enabled() {
		t.Error("Disable() did not take effect")
	}
	o.Enable()
	if !o.Enabled() {
		t.Error("Enable() did not take effect")
	}
}

func TestHandleTextFlagged(t *testing.T) {
	o := newTestOrchestrator(t, &fakeSource{}, &fakeTranscriber{}, 0.9, nil)

	event := o.HandleText("some toxic text")
	if !event.Flagged {
		t.Fatal("expected event to be flagged")
	}
	if event.ID == "" {
		t.Error("event has no ID")
	}

	stats := o.Stats()
	if stats.Detections != 1 {
		t.Errorf("detections = %d, want 1", stats.Detections)
	}
	if stats.LastText != "some toxic text" {
		t.Errorf("last text = %q", stats.LastText)
	}
	if stats.LastDetection.IsZero() {
		t.Error("last detection time not set")
	}

	events, err := o.sink.ReadEvents()
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("audit log has %d events, want 1", len(events))
	}
	if events[0].Text != "some toxic text" {
		t.Errorf("audit text = %q", events[0].Text)
	}
}

func TestHandleTextClean(t *testing.T) {
	o := newTestOrchestrator(t, &fakeSource{}, &fakeTranscriber{}, 0.1, nil)

	event := o.HandleText("a perfectly fine sentence")
	if event.Flagged {
		t.Fatal("clean text was flagged")
	}

	stats := o.Stats()
	if stats.Detections != 0 {
		t.Errorf("detections = %d, want 0", stats.Detections)
	}
	if stats.Transcripts != 1 {
		t.Errorf("transcripts = %d, want 1", stats.Transcripts)
	}

	events, err := o.sink.ReadEvents()
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("audit log has %d events, want 0", len(events))
	}
}

func TestThresholdInclusive(t *testing.T) {
	o := newTestOrchestrator(t, &fakeSource{}, &fakeTranscriber{}, 0.5, nil)

	if event := o.HandleText("right at the line"); !event.Flagged {
		t.Error("score equal to threshold did not flag")
	}
}

func TestCycleSilenceProducesNoResult(t *testing.T) {
	o := newTestOrchestrator(t, &fakeSource{}, &fakeTranscriber{ok: false}, 0.9, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	o.inFlight.Store(true)
	o.cycle(ctx)

	select {
	case event := <-o.results:
		t.Fatalf("unexpected result %+v", event)
	default:
	}
	if o.inFlight.Load() {
		t.Error("in-flight flag not cleared")
	}
}

func TestRunEndToEnd(t *testing.T) {
	results := make(chan DetectionEvent, 1)
	o := newTestOrchestrator(t,
		&fakeSource{},
		&fakeTranscriber{text: "captured speech", ok: true},
		0.9,
		func(event DetectionEvent) {
			select {
			case results <- event:
			default:
			}
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	select {
	case event := <-results:
		if event.Text != "captured speech" {
			t.Errorf("text = %q", event.Text)
		}
		if !event.Flagged {
			t.Error("expected flagged event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a detection")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}
