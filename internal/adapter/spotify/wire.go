package spotify

import "github.com/dragfer/spot95/internal/domain"

type currentlyPlayingResponse struct {
	IsPlaying  bool         `json:"is_playing"`
	ProgressMs *int         `json:"progress_ms"`
	Item       *trackObject `json:"item"`
}

type recentlyPlayedResponse struct {
	Items []struct {
		Track *trackObject `json:"track"`
	} `json:"items"`
}

type trackObject struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Artists      []artistObject    `json:"artists"`
	Album        albumObject       `json:"album"`
	DurationMs   int               `json:"duration_ms"`
	ExternalURLs map[string]string `json:"external_urls"`
}

type artistObject struct {
	Name string `json:"name"`
}

type albumObject struct {
	Name   string        `json:"name"`
	Images []imageObject `json:"images"`
}

type imageObject struct {
	URL string `json:"url"`
}

func (t *trackObject) toSnapshot(isPlaying bool, progressMs int) *domain.TrackSnapshot {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	var albumImage *string
	if len(t.Album.Images) > 0 {
		url := t.Album.Images[0].URL
		albumImage = &url
	}

	return &domain.TrackSnapshot{
		ID:          t.ID,
		Name:        t.Name,
		Artists:     artists,
		AlbumName:   t.Album.Name,
		AlbumImage:  albumImage,
		DurationMs:  t.DurationMs,
		ProgressMs:  progressMs,
		IsPlaying:   isPlaying,
		ExternalURL: t.ExternalURLs["spotify"],
	}
}

// featuresFromWire keeps the numeric fields of an /audio-features object.
func featuresFromWire(raw map[string]any) domain.FeatureVector {
	features := make(domain.FeatureVector, len(raw))
	for name, v := range raw {
		if f, ok := v.(float64); ok {
			features[name] = f
		}
	}
	return features
}
