package mood

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/dragfer/spot95/internal/domain"
)

// Picker selects an index in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// Score returns the best matching mood and its confidence in [0,1].
//
// Every profile feature present in the input scores 1 inside its range and decays linearly
// (slope 2) with the distance to the nearest bound outside it. Feature scores are averaged
// with the global weights; features missing from the input do not count towards the
// denominator.
func Score(features domain.FeatureVector) (string, float64) {
	if len(features) == 0 {
		return domain.MoodUnknown, 0
	}

	normalized := Normalize(features)

	best, bestScore, scored := "", 0.0, false
	for _, p := range profiles {
		score, ok := p.score(normalized)
		if !ok {
			continue
		}
		if !scored || score > bestScore {
			best, bestScore, scored = p.Name, score, true
		}
	}

	if !scored {
		return domain.MoodNeutral, 0
	}
	return best, bestScore
}

func (p Profile) score(normalized map[string]float64) (float64, bool) {
	var sum, totalWeight float64
	for _, fr := range p.Features {
		value, ok := normalized[fr.Feature]
		if !ok {
			continue
		}
		w := featureWeight(fr.Feature)
		sum += rangeScore(value, fr.Range) * w
		totalWeight += w
	}

	if totalWeight == 0 {
		return 0, false
	}
	return sum / totalWeight * p.Weight, true
}

func rangeScore(value float64, r Range) float64 {
	if value >= r.Min && value <= r.Max {
		return 1
	}
	distance := math.Min(math.Abs(value-r.Min), math.Abs(value-r.Max))
	return math.Max(0, 1-distance*2)
}

// Classifier wraps Score with emoji and description selection.
type Classifier struct {
	mu   sync.Mutex
	pick Picker
}

// NewClassifier returns a classifier drawing from pick, or from the global source when nil.
func NewClassifier(pick Picker) *Classifier {
	if pick == nil {
		pick = globalPicker{}
	}
	return &Classifier{pick: pick}
}

func (c *Classifier) Classify(features domain.FeatureVector) domain.MoodResult {
	mood, confidence := Score(features)

	emoji := domain.DefaultEmoji
	if candidates := emojisFor(mood); len(candidates) > 0 {
		emoji = candidates[c.intN(len(candidates))]
	}

	return domain.MoodResult{
		Mood:       mood,
		Confidence: confidence,
		Emoji:      emoji,
		Features:   features,
	}
}

func (c *Classifier) intN(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pick.IntN(n)
}
