package intent

import (
	"strings"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/forecast"
)

// LiveData is the snapshot answer templates draw from. It is assembled at
// response time so identical questions asked minutes apart see fresh
// numbers.
type LiveData struct {
	Price        float64
	CO2          float64
	Mix          map[string]float64
	AveragePrice float64
	Forecast     []forecast.Point
}

// AnswerFunc renders an intent's answer from live data.
type AnswerFunc func(data *LiveData) string

// Intent is one recognized question category. Phrases trigger with full
// confidence on a near-exact (substring) hit; Keywords holds alternative
// keyword sets, each scored by the fraction of its words present.
type Intent struct {
	ID       string
	Phrases  []string
	Keywords [][]string
	Answer   AnswerFunc
}

// Match is a classification result.
type Match struct {
	Intent     *Intent
	Confidence float64
}

// Classifier matches free-text queries against a fixed, ordered intent
// set. Registration order breaks confidence ties: the first-registered
// intent wins, reproducibly.
type Classifier struct {
	intents []*Intent
}

// NewClassifier builds a classifier over the given intents in order.
func NewClassifier(intents ...*Intent) *Classifier {
	return &Classifier{intents: intents}
}

// Classify scores the query against every intent and returns the best
// match. The second return value is false when nothing matched at all.
// Classification is pure: the same text always yields the same result.
func (c *Classifier) Classify(text string) (Match, bool) {
	query := strings.ToLower(strings.TrimSpace(text))
	if query == "" {
		return Match{}, false
	}

	var best Match
	for _, in := range c.intents {
		conf := score(query, in)
		if conf > best.Confidence {
			best = Match{Intent: in, Confidence: conf}
		}
	}
	if best.Intent == nil {
		return Match{}, false
	}
	return best, true
}

func score(query string, in *Intent) float64 {
	for _, phrase := range in.Phrases {
		if strings.Contains(query, phrase) {
			return 1.0
		}
	}

	var best float64
	for _, set := range in.Keywords {
		if len(set) == 0 {
			continue
		}
		hits := 0
		for _, kw := range set {
			if strings.Contains(query, kw) {
				hits++
			}
		}
		if conf := float64(hits) / float64(len(set)); conf > best {
			best = conf
		}
	}
	return best
}
