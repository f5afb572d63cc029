package epipolar

import (
	"fmt"
	"math"
)

// Store holds the ordered correspondence list consumed by the estimator.
// It is read-only while an estimation runs; Retain is the only mutation.
type Store struct {
	matches []Correspondence
}

// NewStore validates and copies the given correspondences.
// Any non-finite coordinate rejects the whole input with ErrInvalidInput.
func NewStore(matches []Correspondence) (*Store, error) {
	for i, m := range matches {
		if !finite(m.X1) || !finite(m.Y1) || !finite(m.X2) || !finite(m.Y2) {
			return nil, fmt.Errorf("correspondence %d has non-finite coordinates: %w", i, ErrInvalidInput)
		}
	}
	cp := make([]Correspondence, len(matches))
	copy(cp, matches)
	return &Store{matches: cp}, nil
}

// Len returns the number of correspondences
func (s *Store) Len() int {
	return len(s.matches)
}

// At returns the i-th correspondence
func (s *Store) At(i int) Correspondence {
	return s.matches[i]
}

// Correspondences returns a copy of the stored list
func (s *Store) Correspondences() []Correspondence {
	out := make([]Correspondence, len(s.matches))
	copy(out, s.matches)
	return out
}

// Retain overwrites the store with the correspondences at the given indices,
// keeping their original relative order. Indices must be ascending and in range.
func (s *Store) Retain(indices []int) {
	kept := make([]Correspondence, 0, len(indices))
	for _, idx := range indices {
		kept = append(kept, s.matches[idx])
	}
	s.matches = kept
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
