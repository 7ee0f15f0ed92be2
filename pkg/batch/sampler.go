package batch

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"
)

// Sampler draws indices uniformly at random without replacement. Seeded
// implementations make batch construction reproducible.
type Sampler interface {
	// WithoutReplacement returns k distinct integers from [0, n)
	WithoutReplacement(n, k int) []int
}

// sourceSampler draws through gonum's sampleuv using a seeded source
type sourceSampler struct {
	src rand.Source
}

// NewSampler returns a Sampler whose draws are fully determined by seed
func NewSampler(seed uint64) Sampler {
	return &sourceSampler{src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
}

// WithoutReplacement implements Sampler
func (s *sourceSampler) WithoutReplacement(n, k int) []int {
	if k <= 0 || n <= 0 {
		return nil
	}
	if k > n {
		k = n
	}
	idxs := make([]int, k)
	sampleuv.WithoutReplacement(idxs, n, s.src)
	return idxs
}
