package services

import (
	"math"
	"strings"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/domain/services/extraction"
	"honeypot-lab/pkg/logger"
)

// DefaultScamThreshold is the number of distinct keyword hits that marks a scam
const DefaultScamThreshold = 3

// ScamDetector scores a single message by counting suspicious keywords
type ScamDetector struct {
	keywords  []string
	threshold int
	logger    *logger.Logger
}

// NewScamDetector creates a detector over the shared suspicious keyword list
func NewScamDetector(log *logger.Logger) *ScamDetector {
	return &ScamDetector{
		keywords:  extraction.SuspiciousKeywords,
		threshold: DefaultScamThreshold,
		logger:    log.WithComponent("scam-detector"),
	}
}

// Detect counts keyword occurrences (substring, case-insensitive). Confidence is
// the share of the keyword list that matched, rounded to two decimals.
func (d *ScamDetector) Detect(text string) *models.ScamDetection {
	lower := strings.ToLower(text)

	var matched []string
	for _, kw := range d.keywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}

	score := len(matched)
	confidence := 0.0
	if len(d.keywords) > 0 {
		confidence = math.Min(float64(score)/float64(len(d.keywords)), 1)
		confidence = math.Round(confidence*100) / 100
	}

	result := &models.ScamDetection{
		IsScam:          score >= d.threshold,
		Confidence:      confidence,
		Score:           score,
		MatchedKeywords: matched,
	}

	d.logger.Debug().
		Int("score", score).
		Bool("is_scam", result.IsScam).
		Msg("message scored")

	return result
}
