package epipolar

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vec3 is a homogeneous 3-vector
type Vec3 [3]float64

// Dot returns the inner product of two vectors
func (v Vec3) Dot(o Vec3) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Matrix3 is a row-major 3x3 matrix. Fundamental matrices and homographies
// are both carried as Matrix3 values, defined up to scale.
type Matrix3 [3][3]float64

// FundamentalMatrix is a rank-2 Matrix3 relating two views: p2ᵗ F p1 = 0
type FundamentalMatrix = Matrix3

// Identity3 returns the 3x3 identity
func Identity3() Matrix3 {
	return Matrix3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Diag returns diag(a, b, c)
func Diag(a, b, c float64) Matrix3 {
	return Matrix3{{a, 0, 0}, {0, b, 0}, {0, 0, c}}
}

// Mul returns m * o
func (m Matrix3) Mul(o Matrix3) Matrix3 {
	var r Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j] + m[i][2]*o[2][j]
		}
	}
	return r
}

// MulVec returns m * v
func (m Matrix3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// T returns the transpose
func (m Matrix3) T() Matrix3 {
	return Matrix3{
		{m[0][0], m[1][0], m[2][0]},
		{m[0][1], m[1][1], m[2][1]},
		{m[0][2], m[1][2], m[2][2]},
	}
}

// Scale multiplies every entry by s
func (m Matrix3) Scale(s float64) Matrix3 {
	for i := range m {
		for j := range m[i] {
			m[i][j] *= s
		}
	}
	return m
}

// FrobeniusNorm returns sqrt(sum of squared entries)
func (m Matrix3) FrobeniusNorm() float64 {
	var sum float64
	for i := range m {
		for j := range m[i] {
			sum += m[i][j] * m[i][j]
		}
	}
	return math.Sqrt(sum)
}

// Normalized returns m scaled to unit Frobenius norm with the sign chosen so
// that the entry of largest magnitude is positive. Two matrices equal up to a
// nonzero scale have the same Normalized form.
func (m Matrix3) Normalized() Matrix3 {
	norm := m.FrobeniusNorm()
	if norm == 0 || math.IsNaN(norm) {
		return m
	}
	var maxAbs, pivot float64
	for i := range m {
		for j := range m[i] {
			if a := math.Abs(m[i][j]); a > maxAbs {
				maxAbs = a
				pivot = m[i][j]
			}
		}
	}
	if pivot < 0 {
		norm = -norm
	}
	return m.Scale(1 / norm)
}

// IsFinite reports whether every entry is a finite number
func (m Matrix3) IsFinite() bool {
	for i := range m {
		for j := range m[i] {
			if math.IsNaN(m[i][j]) || math.IsInf(m[i][j], 0) {
				return false
			}
		}
	}
	return true
}

// Dense converts m to a gonum matrix
func (m Matrix3) Dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		m[0][0], m[0][1], m[0][2],
		m[1][0], m[1][1], m[1][2],
		m[2][0], m[2][1], m[2][2],
	})
}

// matrixFromDense copies a 3x3 gonum matrix into a Matrix3
func matrixFromDense(d mat.Matrix) Matrix3 {
	var m Matrix3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] = d.At(i, j)
		}
	}
	return m
}

// matrixFromVector reshapes a 9-vector row by row
func matrixFromVector(v []float64) Matrix3 {
	return Matrix3{
		{v[0], v[1], v[2]},
		{v[3], v[4], v[5]},
		{v[6], v[7], v[8]},
	}
}

// SingularValues returns the singular values of m in descending order.
// Returns nil if the factorization fails (e.g. non-finite entries).
func (m Matrix3) SingularValues() []float64 {
	if !m.IsFinite() {
		return nil
	}
	var svd mat.SVD
	if ok := svd.Factorize(m.Dense(), mat.SVDNone); !ok {
		return nil
	}
	return svd.Values(nil)
}

// Project applies m as a homography to a point, dividing by the third
// homogeneous coordinate. Returns ok=false for points mapped to infinity.
func (m Matrix3) Project(p Point) (Point, bool) {
	v := m.MulVec(p.Homogeneous())
	if math.Abs(v[2]) < 1e-12 {
		return Point{}, false
	}
	return Point{X: v[0] / v[2], Y: v[1] / v[2]}, true
}
