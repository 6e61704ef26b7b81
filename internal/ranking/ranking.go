// Package ranking turns a classifier output vector into ordered, labelled predictions.
package ranking

import (
	"fmt"
	"math"
	"sort"
)

// TopK is the number of predictions reported alongside the primary one.
const TopK = 3

// Tier is the qualitative confidence bucket of the top prediction.
type Tier string

const (
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
)

// Ranked is one label with its score scaled to percent.
type Ranked struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
	ClassIndex int     `json:"class_index"`
}

// Summary is the ranked view of one model run.
type Summary struct {
	Primary         Ranked   `json:"primary_prediction"`
	Top             []Ranked `json:"top_3"`
	ConfidenceLevel Tier     `json:"confidence_level"`
	TotalChecked    int      `json:"total_diseases_checked"`
}

// Summarize pairs probs with labels, sorts descending and keeps the top three.
// Ties keep label order. NaN scores count as zero.
func Summarize(probs []float32, labels []string) (Summary, error) {
	if len(probs) == 0 {
		return Summary{}, fmt.Errorf("empty probability vector")
	}
	if len(probs) != len(labels) {
		return Summary{}, fmt.Errorf("probability vector length %d does not match %d labels", len(probs), len(labels))
	}

	ranked := make([]Ranked, len(probs))
	for i, p := range probs {
		pct := float64(p) * 100
		if math.IsNaN(pct) {
			pct = 0
		}
		ranked[i] = Ranked{Disease: labels[i], Confidence: pct, ClassIndex: i}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})

	top := ranked
	if len(top) > TopK {
		top = top[:TopK]
	}

	return Summary{
		Primary:         ranked[0],
		Top:             top,
		ConfidenceLevel: TierFor(ranked[0].Confidence),
		TotalChecked:    len(labels),
	}, nil
}

// TierFor buckets a percent score: High >= 80, Medium >= 50, otherwise Low.
func TierFor(percent float64) Tier {
	switch {
	case percent >= 80:
		return TierHigh
	case percent >= 50:
		return TierMedium
	default:
		return TierLow
	}
}

// BelowFloor reports whether the top score is under threshold percent, in
// which case no disease should be committed to.
func (s Summary) BelowFloor(threshold float64) bool {
	return s.Primary.Confidence < threshold
}

// FormatPercent renders a percent score the way it is shown to users, e.g. "85.00%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.2f%%", p)
}
