package annlsh

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MagnitudeKey is a filesystem-safe, string-encoded L2 norm, rounded to one
// decimal place with the decimal point rendered as "d" (1.27 -> "1d3").
type MagnitudeKey string

// MagnitudeBucket discretises embedding norms into MagnitudeKeys and
// enumerates the neighbouring keys within a tolerance, so that a query can
// cheaply prune candidates whose magnitude cannot plausibly be close
// without computing a single distance.
//
// Two vectors close in Euclidean distance have nearly equal L2 norms
// (the reverse triangle inequality: |‖a‖-‖b‖| <= ‖a-b‖), so windowing on
// magnitude loses little recall for small query radii.
type MagnitudeBucket struct {
	// Radius records the radius this bucket was constructed with.
	// Neighbours takes its radius as an explicit argument and does not
	// read this field.
	Radius int
}

// NewMagnitudeBucket returns a MagnitudeBucket with the given default
// radius.
func NewMagnitudeBucket(radius int) *MagnitudeBucket {
	return &MagnitudeBucket{Radius: radius}
}

// KeyOf computes the MagnitudeKey for an embedding's L2 norm.
func (m *MagnitudeBucket) KeyOf(v Embedding) MagnitudeKey {
	return keyFromMagnitude(norm(v))
}

// Neighbours returns key and the 2*radius keys offset by ±0.1, ±0.2, ...,
// ±0.1*radius, each re-rounded and re-formatted. The result contains no
// duplicates; radius 0 returns exactly {key}.
func (m *MagnitudeBucket) Neighbours(key MagnitudeKey, radius int) []MagnitudeKey {
	mag, ok := magnitudeFromKey(key)
	if !ok {
		return []MagnitudeKey{key}
	}

	seen := make(map[MagnitudeKey]struct{}, 2*radius+1)
	out := make([]MagnitudeKey, 0, 2*radius+1)

	add := func(k MagnitudeKey) {
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}

	add(key)
	for i := 1; i <= radius; i++ {
		offset := 0.1 * float64(i)
		add(keyFromMagnitude(mag + offset))
		if mag-offset >= 0 {
			add(keyFromMagnitude(mag - offset))
		} else {
			// Magnitudes are never negative; the negative offset keys
			// collapse onto 0 and would otherwise duplicate "0d0".
			add(keyFromMagnitude(0))
		}
	}
	return out
}

func norm(v Embedding) float64 {
	var sumSq float64
	for _, x := range v {
		sumSq += x * x
	}
	return math.Sqrt(sumSq)
}

// keyFromMagnitude rounds to one decimal place (half away from zero, so
// 1.25 -> 1.3) and substitutes "." with "d". Round-half-to-even would be
// an equally acceptable tie-break; half-away-from-zero is the one chosen
// here, applied consistently.
func keyFromMagnitude(mag float64) MagnitudeKey {
	if mag < 0 {
		mag = 0
	}
	rounded := math.Round(mag*10) / 10
	s := strconv.FormatFloat(rounded, 'f', 1, 64)
	return MagnitudeKey(strings.Replace(s, ".", "d", 1))
}

func magnitudeFromKey(key MagnitudeKey) (float64, bool) {
	s := strings.Replace(string(key), "d", ".", 1)
	var mag float64
	if _, err := fmt.Sscanf(s, "%f", &mag); err != nil {
		return 0, false
	}
	return mag, true
}
