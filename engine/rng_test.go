package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNG_Deterministic(t *testing.T) {
	rng1 := NewRNG(42)
	rng2 := NewRNG(42)

	for i := 0; i < 20; i++ {
		require.Equal(t, rng1.Roll(5), rng2.Roll(5), "roll %d", i)
	}
}

func TestRNG_Roll_Range(t *testing.T) {
	rng := NewRNG(99)
	seen := map[int]bool{}

	for i := 0; i < 1000; i++ {
		r := rng.Roll(5)
		require.GreaterOrEqual(t, r, 1)
		require.LessOrEqual(t, r, 5)
		seen[r] = true
	}
	assert.Len(t, seen, 5, "every face should come up in 1000 rolls")
}

func TestRNG_Roll_OneSided(t *testing.T) {
	rng := NewRNG(1)

	for i := 0; i < 10; i++ {
		assert.Equal(t, 1, rng.Roll(1))
	}
	assert.Zero(t, rng.Position(), "a one-sided die does not draw")
}

func TestRNG_RollDistribution(t *testing.T) {
	rng := NewRNG(12345)
	counts := map[int]int{}

	const trials = 10000
	for i := 0; i < trials; i++ {
		counts[rng.Roll(5)]++
	}

	require.Len(t, counts, 5)
	for face := 1; face <= 5; face++ {
		assert.InDelta(t, trials/5, counts[face], 300, "face %d", face)
	}
}

func TestRNG_Position_Tracks(t *testing.T) {
	rng := NewRNG(42)
	assert.Zero(t, rng.Position())

	rng.Roll(5)
	first := rng.Position()
	assert.Positive(t, first)

	rng.Roll(5)
	assert.Greater(t, rng.Position(), first)
}

func TestRNG_Restore_MatchesPosition(t *testing.T) {
	rng := NewRNG(42)
	for i := 0; i < 10; i++ {
		rng.Roll(5)
	}
	pos := rng.Position()

	var expected [5]int
	for i := range expected {
		expected[i] = rng.Roll(5)
	}

	restored := RestoreRNG(42, pos)
	assert.Equal(t, pos, restored.Position())
	assert.Equal(t, int64(42), restored.Seed())
	for i, want := range expected {
		assert.Equal(t, want, restored.Roll(5), "roll %d", i)
	}
}

func TestRNG_DifferentSeeds_DifferentResults(t *testing.T) {
	rng1 := NewRNG(1)
	rng2 := NewRNG(2)

	differs := false
	for i := 0; i < 20; i++ {
		if rng1.Roll(100) != rng2.Roll(100) {
			differs = true
			break
		}
	}
	assert.True(t, differs, "different seeds should produce different rolls")
}
