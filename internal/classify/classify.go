package classify

import (
	"log/slog"
	"sort"
	"strings"
)

// Mode identifies which classification path an instance runs
type Mode int

const (
	// ModePrimary is the ONNX transformer path
	ModePrimary Mode = iota
	// ModeFallback is the lexical keyword path
	ModeFallback
)

// String returns the human-readable mode name
func (m Mode) String() string {
	switch m {
	case ModePrimary:
		return "primary"
	case ModeFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Score is one labeled score in [0, 1]
type Score struct {
	Label string
	Value float64
}

// ScoreMap is an ordered label-to-score mapping. Order is the insertion
// order of the model's output vector; it carries no meaning beyond breaking
// ties in top-K reporting.
type ScoreMap []Score

// Get returns the score for a label
func (s ScoreMap) Get(label string) (float64, bool) {
	for _, sc := range s {
		if sc.Label == label {
			return sc.Value, true
		}
	}
	return 0, false
}

// IsEmpty reports whether the map carries no scores
func (s ScoreMap) IsEmpty() bool {
	return len(s) == 0
}

// Classifier maps text to a ScoreMap. Implementations must never panic or
// return an error: an unclassifiable input yields an empty ScoreMap.
type Classifier interface {
	Predict(text string) ScoreMap
	Mode() Mode
}

// Config contains classifier construction parameters. The decision
// threshold is not part of the classifier: Flagged takes it explicitly so
// the same scores can be judged by any caller.
type Config struct {
	ModelDir string
}

// New probes the primary model assets and returns the primary classifier
// when they all load, otherwise the lexical fallback. The choice is final:
// assets appearing later do not promote a fallback instance.
func New(cfg Config, logger *slog.Logger) Classifier {
	primary, err := NewONNX(cfg.ModelDir, logger)
	if err != nil {
		logger.Warn("Primary classifier unavailable, using lexical fallback",
			slog.String("model_dir", cfg.ModelDir),
			slog.String("error", err.Error()),
		)
		return NewLexical()
	}

	logger.Info("Primary classifier loaded",
		slog.String("model_dir", cfg.ModelDir),
		slog.Int("labels", len(primary.labels)),
	)
	return primary
}

// Flagged reports whether any score meets or exceeds the threshold. An empty
// ScoreMap is never flagged: no signal means not toxic. The comparison is
// inclusive, so a score exactly at the threshold flags.
func Flagged(scores ScoreMap, threshold float64) bool {
	for _, sc := range scores {
		if sc.Value >= threshold {
			return true
		}
	}
	return false
}

// TopK returns the k highest scores in descending order. Ties keep the
// original vector order, which makes the result deterministic.
func TopK(scores ScoreMap, k int) ScoreMap {
	sorted := make(ScoreMap, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Value > sorted[j].Value
	})
	if k < len(sorted) {
		sorted = sorted[:k]
	}
	return sorted
}

// isBlank reports whether text carries no classifiable content
func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
