// Package policy turns a classifier's probability distribution into playlist assignments.
package policy

import (
	"fmt"
	"math"

	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
)

// DefaultThreshold is the minimum probability for a label to be assigned outright.
const DefaultThreshold = 0.70

// Policy is a multi-label thresholding rule with an argmax fallback.
type Policy struct {
	threshold float64
}

// New returns a Policy using threshold, which must lie in (0, 1].
func New(threshold float64) (*Policy, error) {
	if math.IsNaN(threshold) || threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v outside (0, 1]", shared.ErrInvalidArgument, threshold)
	}
	return &Policy{threshold: threshold}, nil
}

// Threshold returns the configured threshold.
func (p *Policy) Threshold() float64 { return p.threshold }

// Decide returns every label whose probability meets the threshold, in input order.
// When none does, it returns the single most probable label; ties go to the first seen.
// NaN entries are ignored. An empty distribution yields no assignments.
func (p *Policy) Decide(dist []models.Probability) []models.Assignment {
	var out []models.Assignment
	best := -1

	for i, pr := range dist {
		if math.IsNaN(pr.Value) {
			continue
		}
		if pr.Value >= p.threshold {
			out = append(out, models.Assignment{Label: pr.Label, Confidence: clamp(pr.Value)})
		}
		if best < 0 || pr.Value > dist[best].Value {
			best = i
		}
	}

	if len(out) > 0 || best < 0 {
		return out
	}
	return []models.Assignment{{Label: dist[best].Label, Confidence: clamp(dist[best].Value)}}
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
