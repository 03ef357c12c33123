package alert

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MiniGun1239/Speech-Regulator/internal/classify"
)

const (
	auditFileName = "events.csv"

	// timestampLayout is the audit log time format
	timestampLayout = "2006-01-02 15:04:05"

	// topScoreCount is how many labels the audit record keeps
	topScoreCount = 3
)

var auditHeader = []string{"timestamp", "text", "top_scores"}

// Event is one audit log record
type Event struct {
	Timestamp time.Time
	Text      string
	TopScores string
}

// Sink writes detection events to the audit log and plays the alert sound.
// Record is safe for concurrent use; writes are serialized so CSV rows
// never interleave.
type Sink struct {
	logDir string
	player *Player
	logger *slog.Logger

	mu sync.Mutex
}

// NewSink creates the alert sink. The log directory is created on first
// write, not here, so construction cannot fail on a read-only probe.
// soundPath may be empty, in which case only the terminal bell rings.
func NewSink(logDir, soundPath string, logger *slog.Logger) *Sink {
	return &Sink{
		logDir: logDir,
		player: NewPlayer(soundPath, logger),
		logger: logger,
	}
}

// Record persists the event and triggers the audible alert. Both paths are
// attempted regardless of the other failing; errors are logged and
// swallowed because an alert must never take the detection loop down.
func (s *Sink) Record(timestamp time.Time, text string, scores classify.ScoreMap) {
	if err := s.appendAudit(timestamp, text, scores); err != nil {
		s.logger.Error("Failed to write audit record",
			slog.String("error", err.Error()),
		)
	}

	s.player.Play()
}

// AuditPath returns the full path of the audit log file
func (s *Sink) AuditPath() string {
	return filepath.Join(s.logDir, auditFileName)
}

// appendAudit appends one CSV row, writing the header first when the file
// is new or empty.
func (s *Sink) appendAudit(timestamp time.Time, text string, scores classify.ScoreMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	path := s.AuditPath()
	needHeader := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		needHeader = false
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(auditHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := []string{
		timestamp.Format(timestampLayout),
		text,
		FormatTopScores(scores),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}

	w.Flush()
	return w.Error()
}

// ReadEvents loads the full audit log. A missing file is an empty log, not
// an error.
func (s *Sink) ReadEvents() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.AuditPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse audit log: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		ts, err := time.ParseInLocation(timestampLayout, row[0], time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp in row %d: %w", i, err)
		}
		events = append(events, Event{
			Timestamp: ts,
			Text:      row[1],
			TopScores: row[2],
		})
	}
	return events, nil
}

// FormatTopScores renders the highest scores as "label:score" pairs joined
// with "; ", descending by score. Equal scores keep the classifier's output
// order so the string is deterministic.
func FormatTopScores(scores classify.ScoreMap) string {
	top := classify.TopK(scores, topScoreCount)

	parts := make([]string, 0, len(top))
	for _, sc := range top {
		parts = append(parts, fmt.Sprintf("%s:%.2f", sc.Label, sc.Value))
	}
	return strings.Join(parts, "; ")
}
