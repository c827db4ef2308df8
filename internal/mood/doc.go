// Package mood turns Spotify audio features into a discrete mood label.
//
// Score is a pure function over a static, ordered set of mood profiles. Classifier layers the
// cosmetic, randomized parts (emoji and description) on top, drawing from an injected Picker so
// tests can pin the selection.
package mood
