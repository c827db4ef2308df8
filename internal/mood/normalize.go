package mood

import (
	"math"

	"github.com/dragfer/spot95/internal/domain"
)

const (
	maxTempo    = 200.0
	minLoudness = -60.0
)

// Normalize maps raw features onto [0,1]. Categorical fields and non-finite values are dropped.
func Normalize(features domain.FeatureVector) map[string]float64 {
	normalized := make(map[string]float64, len(features))
	for name, value := range features {
		if v, ok := normalizeValue(name, value); ok {
			normalized[name] = v
		}
	}
	return normalized
}

func normalizeValue(name string, value float64) (float64, bool) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}

	switch name {
	case "key", "mode", "time_signature":
		return 0, false
	case "tempo":
		return clamp01(value / maxTempo), true
	case "loudness":
		return clamp01((value - minLoudness) / -minLoudness), true
	default:
		return clamp01(value), true
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
