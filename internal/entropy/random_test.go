package entropy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/emergence/internal/entropy"
)

func draws(seed int64, tick, unit uint64) []int {
	src := entropy.ForUnit(seed, tick, unit)
	out := make([]int, 8)
	for i := range out {
		out[i] = src.Intn(1000)
	}
	return out
}

func TestForUnitIsReproducible(t *testing.T) {
	assert.Equal(t, draws(42, 7, 3), draws(42, 7, 3))
	assert.NotEqual(t, draws(42, 7, 3), draws(42, 7, 4), "units draw independently")
	assert.NotEqual(t, draws(42, 7, 3), draws(42, 8, 3), "ticks draw independently")
	assert.NotEqual(t, draws(42, 7, 3), draws(43, 7, 3), "seeds draw independently")
}

func TestCoin(t *testing.T) {
	src := entropy.Seeded(1)
	heads := 0
	for i := 0; i < 1000; i++ {
		if entropy.Coin(src) {
			heads++
		}
	}
	assert.InDelta(t, 500, heads, 100)
}

func TestCryptoSeed(t *testing.T) {
	assert.NotZero(t, entropy.CryptoSeed())
}
