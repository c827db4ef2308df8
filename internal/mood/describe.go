package mood

import (
	"fmt"

	"github.com/dragfer/spot95/internal/domain"
)

const defaultDescription = "Enjoying your music! 🎶"

type describeFunc func(track, artist string) string

var descriptions = map[string][]describeFunc{
	"Upbeat": {
		func(t, a string) string { return fmt.Sprintf("Feeling the good vibes with %s by %s! Perfect for dancing! 💃", t, a) },
		func(t, a string) string { return fmt.Sprintf("Can't help but move to %s! %s knows how to keep it upbeat! 🎵", t, a) },
		func(t, _ string) string { return fmt.Sprintf("Your energy is contagious! %s is keeping the party alive! 🎉", t) },
	},
	"Chill": {
		func(t, a string) string { return fmt.Sprintf("Kicking back with %s by %s. Perfect chill vibes. 🌿", t, a) },
		func(t, a string) string {
			return fmt.Sprintf("Take a deep breath and relax with %s. %s always knows how to mellow things out. 😌", t, a)
		},
		func(t, a string) string {
			return fmt.Sprintf("Chill mode activated with %s. Let the smooth sounds of %s wash over you. 🌊", t, a)
		},
	},
	"Melancholic": {
		func(t, a string) string { return fmt.Sprintf("Getting in your feels with %s by %s. It's okay to feel. 💔", t, a) },
		func(t, a string) string { return fmt.Sprintf("%s hits different when you're in this mood. %s understands. 🖤", t, a) },
		func(t, _ string) string {
			return fmt.Sprintf("Let it out with %s. Sometimes you just need to sit with these emotions. 🌧️", t)
		},
	},
	"Energetic": {
		func(t, a string) string {
			return fmt.Sprintf("Pumping energy with %s! %s really knows how to get you moving! ⚡", t, a)
		},
		func(t, _ string) string { return fmt.Sprintf("Can't stop, won't stop! %s is your workout anthem! 💪", t) },
		func(t, a string) string { return fmt.Sprintf("Turn it up! %s by %s is pure energy! 🔥", t, a) },
	},
	"Focused": {
		func(t, a string) string { return fmt.Sprintf("In the zone with %s. %s helps you stay focused. 🎯", t, a) },
		func(t, a string) string {
			return fmt.Sprintf("Deep work mode activated with %s. %s keeps you in the flow. ✍️", t, a)
		},
		func(t, _ string) string { return fmt.Sprintf("Finding your rhythm with %s. Perfect concentration music. 🎧", t) },
	},
}

// Describe returns a short line about the track in the tone of the given mood.
func (c *Classifier) Describe(mood string, track domain.TrackSnapshot) string {
	candidates, ok := descriptions[mood]
	if !ok || len(candidates) == 0 {
		return defaultDescription
	}

	name := track.Name
	if name == "" {
		name = "this track"
	}
	artist := "your favorite artist"
	if len(track.Artists) > 0 && track.Artists[0] != "" {
		artist = track.Artists[0]
	}

	return candidates[c.intN(len(candidates))](name, artist)
}
