package proof

import (
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
)

// Spectrum bounds: hue sweeps from red (0) to violet (270).
const (
	spectrumHueMax     = 270.0
	spectrumSaturation = 0.9
	spectrumValue      = 0.75
)

// NumberColor maps a step's own number to a hex colour on a continuous
// spectrum scaled by the tree-wide maximum. Equal inputs give equal colours.
func NumberColor(number, max int) string {
	t := 0.0
	if max > 0 {
		t = float64(number) / float64(max)
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return colorful.Hsv(spectrumHueMax*t, spectrumSaturation, spectrumValue).Hex()
}

// NumberLabel is the displayed number, empty for unnumbered steps (≤ 0).
func NumberLabel(number int) string {
	if number <= 0 {
		return ""
	}
	return strconv.Itoa(number)
}
