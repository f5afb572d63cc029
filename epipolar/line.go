package epipolar

import (
	"math"

	"github.com/paulmach/orb"
)

// EpipolarLine returns the line in the other image on which the partner of a
// point from src must lie. For a point in image A the line in image B is F·p;
// for a point in image B the line in image A is Fᵗ·p. The coefficients are
// scaled so that a² + b² = 1, making a*x + b*y + c a signed pixel distance.
func EpipolarLine(f Matrix3, p Point, src View) Line {
	var l Vec3
	if src == ViewA {
		l = f.MulVec(p.Homogeneous())
	} else {
		l = f.T().MulVec(p.Homogeneous())
	}
	norm := math.Hypot(l[0], l[1])
	if norm == 0 {
		return Line{A: l[0], B: l[1], C: l[2]}
	}
	return Line{A: l[0] / norm, B: l[1] / norm, C: l[2] / norm}
}

// Distance returns the distance from p to the line
func (l Line) Distance(p Point) float64 {
	return pointLineDistance(p.Homogeneous(), Vec3{l.A, l.B, l.C})
}

// ImageBound returns the pixel rectangle [0,width]x[0,height]
func ImageBound(width, height float64) orb.Bound {
	return orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{width, height}}
}

// ClipLine intersects a line with a rectangle and returns the visible segment
// as a two-point line string. ok is false when the line misses the rectangle.
func ClipLine(l Line, b orb.Bound) (orb.LineString, bool) {
	const eps = 1e-9
	var hits []orb.Point

	inside := func(p orb.Point) bool {
		return p[0] >= b.Min[0]-eps && p[0] <= b.Max[0]+eps &&
			p[1] >= b.Min[1]-eps && p[1] <= b.Max[1]+eps
	}
	add := func(p orb.Point) {
		if !inside(p) {
			return
		}
		for _, h := range hits {
			if math.Abs(h[0]-p[0]) < 1e-6 && math.Abs(h[1]-p[1]) < 1e-6 {
				return
			}
		}
		hits = append(hits, p)
	}

	if math.Abs(l.B) > eps {
		for _, x := range []float64{b.Min[0], b.Max[0]} {
			add(orb.Point{x, -(l.A*x + l.C) / l.B})
		}
	}
	if math.Abs(l.A) > eps {
		for _, y := range []float64{b.Min[1], b.Max[1]} {
			add(orb.Point{-(l.B*y + l.C) / l.A, y})
		}
	}
	if len(hits) < 2 {
		return nil, false
	}

	// A line through a corner can produce three hits; keep the farthest pair.
	best := orb.LineString{hits[0], hits[1]}
	bestDist := -1.0
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			d := math.Hypot(hits[i][0]-hits[j][0], hits[i][1]-hits[j][1])
			if d > bestDist {
				bestDist = d
				best = orb.LineString{hits[i], hits[j]}
			}
		}
	}
	return best, true
}
