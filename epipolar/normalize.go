package epipolar

import (
	"fmt"
	"math"
)

// DefaultScale is the fixed conditioning scale: pixel coordinates in the
// hundreds become values around unity.
const DefaultScale = 0.001

// Normalizer picks the conditioning transforms applied to image A and image B
// points before the linear solve. Both transforms must be affine (last row
// 0 0 1) and invertible.
type Normalizer interface {
	Transforms(pairs []Correspondence) (t1, t2 Matrix3)
}

// FixedScale applies the same diag(s, s, 1) to both images whatever the data
type FixedScale struct {
	Scale float64
}

// Transforms implements Normalizer
func (f FixedScale) Transforms(_ []Correspondence) (Matrix3, Matrix3) {
	s := f.Scale
	if s <= 0 {
		s = DefaultScale
	}
	t := Diag(s, s, 1)
	return t, t
}

// Isotropic moves each image's points to their centroid and scales them so
// the mean distance to the origin is sqrt(2) (Hartley normalization).
type Isotropic struct{}

// Transforms implements Normalizer
func (Isotropic) Transforms(pairs []Correspondence) (Matrix3, Matrix3) {
	a := make([]Point, len(pairs))
	b := make([]Point, len(pairs))
	for i, c := range pairs {
		a[i] = c.A()
		b[i] = c.B()
	}
	return isotropicTransform(a), isotropicTransform(b)
}

func isotropicTransform(pts []Point) Matrix3 {
	if len(pts) == 0 {
		return Identity3()
	}
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var mean float64
	for _, p := range pts {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= n
	if mean < 1e-12 {
		// All points coincide; translate only.
		return Matrix3{{1, 0, -cx}, {0, 1, -cy}, {0, 0, 1}}
	}
	s := math.Sqrt2 / mean
	return Matrix3{
		{s, 0, -s * cx},
		{0, s, -s * cy},
		{0, 0, 1},
	}
}

// NewNormalizer builds a normalizer by name: "fixed" (default) or "isotropic"
func NewNormalizer(name string, scale float64) (Normalizer, error) {
	switch name {
	case "", "fixed":
		return FixedScale{Scale: scale}, nil
	case "isotropic", "hartley":
		return Isotropic{}, nil
	}
	return nil, fmt.Errorf("unknown normalizer %q", name)
}

// applyAffine maps a point through an affine homogeneous transform
func applyAffine(t Matrix3, x, y float64) (float64, float64) {
	return t[0][0]*x + t[0][1]*y + t[0][2], t[1][0]*x + t[1][1]*y + t[1][2]
}

// normalizePairs maps image A points through t1 and image B points through t2
func normalizePairs(pairs []Correspondence, t1, t2 Matrix3) []Correspondence {
	out := make([]Correspondence, len(pairs))
	for i, c := range pairs {
		x1, y1 := applyAffine(t1, c.X1, c.Y1)
		x2, y2 := applyAffine(t2, c.X2, c.Y2)
		out[i] = Correspondence{X1: x1, Y1: y1, X2: x2, Y2: y2}
	}
	return out
}

// Denormalize maps a matrix estimated on normalized points back to pixel
// coordinates: F = t2ᵗ · fn · t1
func Denormalize(fn, t1, t2 Matrix3) Matrix3 {
	return t2.T().Mul(fn).Mul(t1)
}
