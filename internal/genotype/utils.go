package genotype

import (
	"math/rand"
	"time"
)

// WeightedIndex samples an index in [0,n) with probability proportional to
// weights[i]. Missing or negative weights count as zero; when every weight is
// zero the draw is uniform.
func WeightedIndex(rng *rand.Rand, weights []float64, n int) int {
	rng = ensureRNG(rng)
	if n <= 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < n && i < len(weights); i++ {
		if weights[i] > 0 {
			total += weights[i]
		}
	}
	if total <= 0 {
		return rng.Intn(n)
	}
	target := rng.Float64() * total
	acc := 0.0
	last := 0
	for i := 0; i < n && i < len(weights); i++ {
		if weights[i] <= 0 {
			continue
		}
		acc += weights[i]
		last = i
		if target < acc {
			return i
		}
	}
	return last
}

// RandomBase draws a uniformly random alphabet symbol.
func RandomBase(rng *rand.Rand) byte {
	rng = ensureRNG(rng)
	return Alphabet[rng.Intn(len(Alphabet))]
}

// RandomBaseExcept draws a random alphabet symbol different from current.
func RandomBaseExcept(rng *rand.Rand, current byte) byte {
	rng = ensureRNG(rng)
	for {
		b := Alphabet[rng.Intn(len(Alphabet))]
		if b != current {
			return b
		}
	}
}

// RandomBases draws n uniformly random alphabet symbols.
func RandomBases(rng *rand.Rand, n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = RandomBase(rng)
	}
	return string(out)
}

func ensureRNG(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}
