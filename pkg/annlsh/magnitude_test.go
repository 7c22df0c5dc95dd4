package annlsh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S6: magnitude key formatting matches the documented rounding rule.
func TestMagnitudeBucket_KeyOf_FormatsRoundedNorm(t *testing.T) {
	bucket := NewMagnitudeBucket(2)

	// Given a vector whose L2 norm is exactly 1.25
	v := Embedding{1.25, 0}
	assert.Equal(t, MagnitudeKey("1d3"), bucket.KeyOf(v))

	// And a vector whose L2 norm is exactly 0.04
	v2 := Embedding{0.04, 0}
	assert.Equal(t, MagnitudeKey("0d0"), bucket.KeyOf(v2))
}

// Property 3: neighbours(key_of(v), 0) == {key_of(v)}.
func TestMagnitudeBucket_Neighbours_ZeroRadiusIsIdentity(t *testing.T) {
	bucket := NewMagnitudeBucket(2)
	key := bucket.KeyOf(Embedding{3, 4})

	neighbours := bucket.Neighbours(key, 0)

	require.Len(t, neighbours, 1)
	assert.Equal(t, key, neighbours[0])
}

// Property 3: |neighbours(k, r)| == 2r+1 with no duplicates.
func TestMagnitudeBucket_Neighbours_CountAndUniqueness(t *testing.T) {
	bucket := NewMagnitudeBucket(2)
	key := bucket.KeyOf(Embedding{10, 0}) // norm 10.0, far from the zero floor

	for radius := 0; radius <= 4; radius++ {
		neighbours := bucket.Neighbours(key, radius)
		assert.Len(t, neighbours, 2*radius+1, "radius=%d", radius)

		seen := make(map[MagnitudeKey]struct{}, len(neighbours))
		for _, n := range neighbours {
			_, dup := seen[n]
			assert.False(t, dup, "duplicate neighbour %q at radius %d", n, radius)
			seen[n] = struct{}{}
		}
	}
}

// Property 4: magnitude prune soundness. Any u, v within 0.2 of each other
// in Euclidean distance must have key_of(v) among key_of(u)'s radius-2
// neighbours (the reverse triangle inequality bounds the norm gap by the
// same 0.2).
func TestMagnitudeBucket_Neighbours_PruneSoundness(t *testing.T) {
	bucket := NewMagnitudeBucket(2)
	u := Embedding{5.0, 0, 0}
	v := Embedding{5.15, 0, 0} // ‖u-v‖ = 0.15 <= 0.2

	neighbours := bucket.Neighbours(bucket.KeyOf(u), 2)

	assert.Contains(t, neighbours, bucket.KeyOf(v))
}

// Neighbours near the zero floor never produce a negative-magnitude key
// and never double up on "0d0".
func TestMagnitudeBucket_Neighbours_NearZeroFloor(t *testing.T) {
	bucket := NewMagnitudeBucket(2)
	key := bucket.KeyOf(Embedding{0.05, 0}) // norm 0.05 -> "0d1" (rounds up)

	neighbours := bucket.Neighbours(key, 2)

	seen := make(map[MagnitudeKey]struct{}, len(neighbours))
	for _, n := range neighbours {
		_, dup := seen[n]
		assert.False(t, dup)
		seen[n] = struct{}{}
	}
}
