// Package entropy provides the random sources injected into unit decisions.
// Every source is derived from the simulation seed so that a run can be
// reproduced exactly; crypto/rand is only used to pick a seed when none is given.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"hash/fnv"
	mrand "math/rand"
)

// Source is the randomness the resolver needs: uniform choice among n options
// and a fair coin.
type Source interface {
	Intn(n int) int
}

// Coin returns true with probability one half.
func Coin(src Source) bool {
	return src.Intn(2) == 0
}

// ForUnit returns a random source unique to one unit on one tick. Units can be
// resolved in any order, or in parallel, without changing their draws.
func ForUnit(seed int64, tick uint64, unit uint64) *mrand.Rand {
	h := fnv.New64a()
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:16], tick)
	binary.LittleEndian.PutUint64(buf[16:24], unit)
	_, _ = h.Write(buf[:])
	return mrand.New(mrand.NewSource(int64(h.Sum64())))
}

// Seeded returns a deterministic source for setup work such as unit placement.
func Seeded(seed int64) *mrand.Rand {
	return mrand.New(mrand.NewSource(seed))
}

// CryptoSeed returns a non-zero seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen but return a fixed seed as a safe default.
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		return 1
	}
	return seed
}
