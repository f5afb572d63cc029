package epipolar

import "math"

// DefaultThreshold is the inlier distance in pixels
const DefaultThreshold = 1.5

// pointLineDistance returns the Euclidean distance of p to l, or +Inf when
// l has no direction (a = b = 0).
func pointLineDistance(p Vec3, l Vec3) float64 {
	norm := math.Hypot(l[0], l[1])
	if norm == 0 || math.IsNaN(norm) {
		return math.Inf(1)
	}
	d := math.Abs(p.Dot(l)) / norm
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}

// EpipolarDistance returns the distance, in image A pixels, between the image
// A point and the epipolar line Fᵗ·p2 of its image B partner.
func EpipolarDistance(f Matrix3, c Correspondence) float64 {
	p1 := c.A().Homogeneous()
	p2 := c.B().Homogeneous()
	return pointLineDistance(p1, f.T().MulVec(p2))
}

// SymmetricEpipolarDistance returns the larger of the image A distance and the
// image B distance (p2 against F·p1).
func SymmetricEpipolarDistance(f Matrix3, c Correspondence) float64 {
	p1 := c.A().Homogeneous()
	p2 := c.B().Homogeneous()
	dA := pointLineDistance(p1, f.T().MulVec(p2))
	dB := pointLineDistance(p2, f.MulVec(p1))
	return math.Max(dA, dB)
}

// Classify returns the ascending indices of correspondences whose epipolar
// distance under f is strictly below threshold.
func Classify(store *Store, f Matrix3, threshold float64, symmetric bool) []int {
	return appendInliers(nil, store, f, threshold, symmetric)
}

// appendInliers is Classify writing into a reusable buffer
func appendInliers(dst []int, store *Store, f Matrix3, threshold float64, symmetric bool) []int {
	dst = dst[:0]
	if !f.IsFinite() {
		return dst
	}
	ft := f.T()
	for i := 0; i < store.Len(); i++ {
		c := store.At(i)
		p1 := c.A().Homogeneous()
		p2 := c.B().Homogeneous()
		d := pointLineDistance(p1, ft.MulVec(p2))
		if symmetric && d < threshold {
			d = math.Max(d, pointLineDistance(p2, f.MulVec(p1)))
		}
		if d < threshold {
			dst = append(dst, i)
		}
	}
	return dst
}
