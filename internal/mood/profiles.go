package mood

// Range is an inclusive interval in the feature's raw unit (BPM for tempo, dB for loudness).
type Range struct {
	Min, Max float64
}

type FeatureRange struct {
	Feature string
	Range
}

// Profile describes one mood. Feature order is significant only for floating point summation.
type Profile struct {
	Name     string
	Weight   float64
	Features []FeatureRange
	Emojis   []string
}

// Declaration order breaks ties: the first profile with the highest score wins.
var rawProfiles = []Profile{
	{
		Name:   "Upbeat",
		Weight: 1.0,
		Features: []FeatureRange{
			{"valence", Range{0.7, 1.0}},
			{"energy", Range{0.7, 1.0}},
			{"danceability", Range{0.7, 1.0}},
			{"tempo", Range{120, 200}},
		},
		Emojis: []string{"🎉", "✨", "🥳", "😄", "🌟"},
	},
	{
		Name:   "Chill",
		Weight: 1.0,
		Features: []FeatureRange{
			{"energy", Range{0.1, 0.5}},
			{"valence", Range{0.5, 0.8}},
			{"acousticness", Range{0.5, 1.0}},
			{"tempo", Range{60, 100}},
		},
		Emojis: []string{"🌿", "🌊", "😌", "🧘", "🎧"},
	},
	{
		Name:   "Melancholic",
		Weight: 1.0,
		Features: []FeatureRange{
			{"valence", Range{0.0, 0.3}},
			{"energy", Range{0.0, 0.4}},
			{"danceability", Range{0.0, 0.4}},
			{"acousticness", Range{0.4, 1.0}},
		},
		Emojis: []string{"🌧️", "🖤", "🎻", "💔", "🎹"},
	},
	{
		Name:   "Energetic",
		Weight: 1.0,
		Features: []FeatureRange{
			{"energy", Range{0.8, 1.0}},
			{"loudness", Range{-5, 0}},
			{"danceability", Range{0.7, 1.0}},
			{"tempo", Range{100, 200}},
		},
		Emojis: []string{"⚡", "🔥", "💪", "🚀", "🤘"},
	},
	{
		Name:   "Focused",
		Weight: 1.0,
		Features: []FeatureRange{
			{"energy", Range{0.4, 0.7}},
			{"valence", Range{0.3, 0.7}},
			{"instrumentalness", Range{0.5, 1.0}},
			{"speechiness", Range{0.1, 0.5}},
		},
		Emojis: []string{"🎯", "📚", "🎧", "🧠", "✍️"},
	},
}

// featureWeights is the global per-feature weight table.
var featureWeights = map[string]float64{
	"valence":          0.3,
	"energy":           0.3,
	"danceability":     0.2,
	"tempo":            0.1,
	"acousticness":     0.1,
	"instrumentalness": 0.1,
	"loudness":         0.05,
	"speechiness":      0.05,
}

const defaultFeatureWeight = 0.1

func featureWeight(feature string) float64 {
	if w, ok := featureWeights[feature]; ok {
		return w
	}
	return defaultFeatureWeight
}

// profiles holds rawProfiles with every range mapped onto the normalized [0,1] scale.
var profiles = normalizeProfiles(rawProfiles)

func normalizeProfiles(raw []Profile) []Profile {
	out := make([]Profile, len(raw))
	for i, p := range raw {
		features := make([]FeatureRange, 0, len(p.Features))
		for _, fr := range p.Features {
			lo, _ := normalizeValue(fr.Feature, fr.Min)
			hi, _ := normalizeValue(fr.Feature, fr.Max)
			features = append(features, FeatureRange{Feature: fr.Feature, Range: Range{Min: lo, Max: hi}})
		}
		out[i] = Profile{Name: p.Name, Weight: p.Weight, Features: features, Emojis: p.Emojis}
	}
	return out
}

// ProfileNames returns the mood names in declaration order.
func ProfileNames() []string {
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
	}
	return names
}

func emojisFor(mood string) []string {
	for _, p := range profiles {
		if p.Name == mood {
			return p.Emojis
		}
	}
	return nil
}
