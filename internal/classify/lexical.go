package classify

import (
	"strings"
)

const (
	// lexicalLabel is the single synthetic label the fallback emits
	lexicalLabel = "toxic"

	// Fixed scores keep the threshold logic working identically across
	// modes; they are not probabilities.
	lexicalHitScore  = 0.8
	lexicalMissScore = 0.05
)

// lexicalTerms is the fixed set of flagged terms for the fallback path
var lexicalTerms = []string{"hate", "kill", "violence"}

// Lexical is the fallback classifier: a case-insensitive substring match
// against a fixed term list. It exists so the pipeline keeps functioning
// with the same interface contract when the model assets are missing.
type Lexical struct {
	terms []string
}

// NewLexical creates the lexical fallback classifier
func NewLexical() *Lexical {
	return &Lexical{terms: lexicalTerms}
}

// Predict returns a single-label ScoreMap: the hit score when any flagged
// term appears in the text, the miss score otherwise. Blank input yields an
// empty ScoreMap.
func (l *Lexical) Predict(text string) ScoreMap {
	if isBlank(text) {
		return ScoreMap{}
	}

	lowered := strings.ToLower(text)
	for _, term := range l.terms {
		if strings.Contains(lowered, term) {
			return ScoreMap{{Label: lexicalLabel, Value: lexicalHitScore}}
		}
	}

	return ScoreMap{{Label: lexicalLabel, Value: lexicalMissScore}}
}

// Mode returns ModeFallback
func (l *Lexical) Mode() Mode {
	return ModeFallback
}
