package epipolar

import (
	"fmt"
	"math/rand"
)

// SampleSize is the number of correspondences in a minimal sample
const SampleSize = 8

// Sampler draws distinct indices uniformly without replacement.
// It keeps an index pool and runs a partial Fisher-Yates shuffle over it, so
// each draw costs O(k) regardless of the store size. A Sampler is not safe
// for concurrent use; parallel workers each own one.
type Sampler struct {
	rng  *rand.Rand
	pool []int
}

// NewSampler creates a sampler backed by the given PRNG
func NewSampler(rng *rand.Rand) *Sampler {
	return &Sampler{rng: rng}
}

// Sample draws k distinct indices in [0, n) into dst (reallocated if too
// small) and returns it. Returns ErrInsufficientCorrespondences if n < k.
func (s *Sampler) Sample(n, k int, dst []int) ([]int, error) {
	if k <= 0 || n < k {
		return nil, fmt.Errorf("need %d correspondences, have %d: %w", k, n, ErrInsufficientCorrespondences)
	}
	if len(s.pool) != n {
		s.pool = make([]int, n)
		for i := range s.pool {
			s.pool[i] = i
		}
	}
	if cap(dst) < k {
		dst = make([]int, k)
	}
	dst = dst[:k]

	// The pool stays a permutation of [0, n) between draws, which keeps every
	// k-subset equally likely on each call.
	for i := 0; i < k; i++ {
		j := i + s.rng.Intn(n-i)
		s.pool[i], s.pool[j] = s.pool[j], s.pool[i]
		dst[i] = s.pool[i]
	}
	return dst, nil
}

// SampleStore draws a minimal sample of correspondences from the store
func (s *Sampler) SampleStore(store *Store, k int) ([]Correspondence, error) {
	idx, err := s.Sample(store.Len(), k, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Correspondence, k)
	for i, j := range idx {
		out[i] = store.At(j)
	}
	return out, nil
}
