package alert

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MiniGun1239/Speech-Regulator/internal/classify"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSink(t *testing.T) *Sink {
	t.Helper()
	return NewSink(t.TempDir(), "", testLogger())
}

func TestAppendAuditWritesHeaderOnce(t *testing.T) {
	s := testSink(t)
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	scores := classify.ScoreMap{{Label: "toxic", Value: 0.91}}

	if err := s.appendAudit(ts, "first", scores); err != nil {
		t.Fatalf("appendAudit() error = %v", err)
	}
	if err := s.appendAudit(ts, "second", scores); err != nil {
		t.Fatalf("appendAudit() error = %v", err)
	}

	data, err := os.ReadFile(s.AuditPath())
	if err != nil {
		t.Fatalf("failed to read audit log: %v", err)
	}

	content := string(data)
	if got := strings.Count(content, "timestamp,text,top_scores"); got != 1 {
		t.Errorf("header count = %d, want 1", got)
	}
	if !strings.Contains(content, "2025-03-14 09:26:53,first,toxic:0.91") {
		t.Errorf("missing first record in:\n%s", content)
	}
}

func TestReadEventsRoundTrip(t *testing.T) {
	s := testSink(t)
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.Local)
	scores := classify.ScoreMap{
		{Label: "toxic", Value: 0.9},
		{Label: "insult", Value: 0.4},
	}

	if err := s.appendAudit(ts, "some flagged text", scores); err != nil {
		t.Fatalf("appendAudit() error = %v", err)
	}

	events, err := s.ReadEvents()
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}

	ev := events[0]
	if !ev.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", ev.Timestamp, ts)
	}
	if ev.Text != "some flagged text" {
		t.Errorf("text = %q", ev.Text)
	}
	if ev.TopScores != "toxic:0.90; insult:0.40" {
		t.Errorf("top_scores = %q", ev.TopScores)
	}
}

func TestReadEventsMissingFile(t *testing.T) {
	s := testSink(t)

	events, err := s.ReadEvents()
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("len(events) = %d, want 0", len(events))
	}
}

func TestFormatTopScores(t *testing.T) {
	tests := []struct {
		name   string
		scores classify.ScoreMap
		want   string
	}{
		{
			name: "sorted descending and capped at three",
			scores: classify.ScoreMap{
				{Label: "a", Value: 0.1},
				{Label: "b", Value: 0.8},
				{Label: "c", Value: 0.3},
				{Label: "d", Value: 0.5},
			},
			want: "b:0.80; d:0.50; c:0.30",
		},
		{
			name:   "fewer than three labels",
			scores: classify.ScoreMap{{Label: "toxic", Value: 0.75}},
			want:   "toxic:0.75",
		},
		{
			name: "ties keep classifier order",
			scores: classify.ScoreMap{
				{Label: "x", Value: 0.5},
				{Label: "y", Value: 0.5},
			},
			want: "x:0.50; y:0.50",
		},
		{
			name:   "empty scores",
			scores: classify.ScoreMap{},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTopScores(tt.scores); got != tt.want {
				t.Errorf("FormatTopScores() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordSurvivesUnwritableDir(t *testing.T) {
	// A path that cannot be created must not panic or block
	s := NewSink("/proc/no-such-dir/logs", "", testLogger())
	s.Record(time.Now(), "text", classify.ScoreMap{{Label: "toxic", Value: 0.9}})
}
