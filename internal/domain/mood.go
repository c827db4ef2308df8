package domain

const (
	MoodUnknown = "Unknown"
	MoodNeutral = "Neutral"

	DefaultEmoji = "🎵"
)

// MoodResult is the outcome of classifying one feature vector.
type MoodResult struct {
	Mood       string
	Confidence float64
	Emoji      string
	Features   FeatureVector
}
