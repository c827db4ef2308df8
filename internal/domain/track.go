package domain

// TrackSnapshot is the track identity and playback state observed in one poll.
type TrackSnapshot struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	AlbumName   string   `json:"album_name"`
	AlbumImage  *string  `json:"album_image"`
	DurationMs  int      `json:"duration_ms"`
	ProgressMs  int      `json:"progress_ms"`
	IsPlaying   bool     `json:"is_playing"`
	ExternalURL string   `json:"external_url"`
}

// FeatureVector holds named numeric audio descriptors (valence, energy, tempo, ...).
type FeatureVector map[string]float64

// TrackData is what the poller needs for one user per poll.
type TrackData struct {
	Track    TrackSnapshot
	Features FeatureVector
}
