package epipolar

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// constraintRow encodes p2ᵗ F p1 = 0 for one pair in terms of the row-major
// entries of F.
func constraintRow(c Correspondence) []float64 {
	return []float64{
		c.X2 * c.X1, c.X2 * c.Y1, c.X2,
		c.Y2 * c.X1, c.Y2 * c.Y1, c.Y2,
		c.X1, c.Y1, 1,
	}
}

// SolveEightPoint estimates F from exactly eight (already normalized) pairs.
// The 9x9 coefficient matrix has its ninth row left at zero and F is the right
// singular vector of the smallest singular value. The result is not rank 2 in
// general; see EnforceRank2.
func SolveEightPoint(pairs []Correspondence) (Matrix3, error) {
	if len(pairs) != SampleSize {
		return Matrix3{}, fmt.Errorf("eight-point solver got %d pairs: %w", len(pairs), ErrInvalidInput)
	}
	return SolveLinear(pairs)
}

// SolveLinear estimates F in the least-squares sense from n >= 8 pairs.
// With exactly eight pairs the system is padded with a zero row to 9x9.
// Degenerate configurations are not detected: the decomposition still yields
// a vector and the resulting matrix is simply a poor model. Non-finite input
// or a failed decomposition returns ErrDegenerateModel.
func SolveLinear(pairs []Correspondence) (Matrix3, error) {
	n := len(pairs)
	if n < SampleSize {
		return Matrix3{}, fmt.Errorf("linear solver needs %d pairs, got %d: %w", SampleSize, n, ErrInsufficientCorrespondences)
	}
	rows := n
	if rows < 9 {
		rows = 9
	}
	a := mat.NewDense(rows, 9, nil)
	for i, c := range pairs {
		if !finite(c.X1) || !finite(c.Y1) || !finite(c.X2) || !finite(c.Y2) {
			return Matrix3{}, fmt.Errorf("pair %d is not finite: %w", i, ErrDegenerateModel)
		}
		a.SetRow(i, constraintRow(c))
	}
	v, ok := smallestRightSingularVector(a)
	if !ok {
		return Matrix3{}, fmt.Errorf("SVD of %dx9 system did not converge: %w", rows, ErrDegenerateModel)
	}
	return matrixFromVector(v), nil
}

// smallestRightSingularVector returns the column of V paired with the
// smallest singular value of a (gonum orders singular values descending).
func smallestRightSingularVector(a *mat.Dense) ([]float64, bool) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, false
	}
	var v mat.Dense
	svd.VTo(&v)
	_, cols := v.Dims()
	return mat.Col(nil, cols-1, &v), true
}

// EnforceRank2 projects m onto the closest rank-2 matrix (Frobenius norm) by
// zeroing its smallest singular value.
func EnforceRank2(m Matrix3) Matrix3 {
	if !m.IsFinite() {
		return m
	}
	var svd mat.SVD
	if ok := svd.Factorize(m.Dense(), mat.SVDFull); !ok {
		return m
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)
	s[2] = 0

	var us, f mat.Dense
	us.Mul(&u, mat.NewDiagDense(3, s))
	f.Mul(&us, v.T())
	return matrixFromDense(&f)
}

// FitSample runs the full per-trial fit: normalize, linear solve, rank-2
// projection in the normalized frame, then denormalize. It fails only when
// no finite matrix comes out.
func FitSample(pairs []Correspondence, norm Normalizer) (Matrix3, error) {
	if norm == nil {
		norm = FixedScale{Scale: DefaultScale}
	}
	t1, t2 := norm.Transforms(pairs)
	fn, err := SolveLinear(normalizePairs(pairs, t1, t2))
	if err != nil {
		return Matrix3{}, err
	}
	f := Denormalize(EnforceRank2(fn), t1, t2)
	if !f.IsFinite() {
		return Matrix3{}, fmt.Errorf("denormalized model is not finite: %w", ErrDegenerateModel)
	}
	return f, nil
}
