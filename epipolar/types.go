package epipolar

// Point represents a 2D pixel coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Homogeneous returns the point as (x, y, 1)
func (p Point) Homogeneous() Vec3 {
	return Vec3{p.X, p.Y, 1}
}

// Correspondence is a matched pair of points: (X1, Y1) in image A and
// (X2, Y2) in image B.
type Correspondence struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// A returns the image A point of the pair
func (c Correspondence) A() Point {
	return Point{X: c.X1, Y: c.Y1}
}

// B returns the image B point of the pair
func (c Correspondence) B() Point {
	return Point{X: c.X2, Y: c.Y2}
}

// View identifies one of the two images
type View int

const (
	ViewA View = iota
	ViewB
)

// Other returns the opposite view
func (v View) Other() View {
	if v == ViewA {
		return ViewB
	}
	return ViewA
}

func (v View) String() string {
	if v == ViewB {
		return "B"
	}
	return "A"
}

// ParseView parses "A"/"B" (case-insensitive, also "1"/"2")
func ParseView(s string) (View, bool) {
	switch s {
	case "A", "a", "1":
		return ViewA, true
	case "B", "b", "2":
		return ViewB, true
	}
	return ViewA, false
}

// Line is an image line a*x + b*y + c = 0
type Line struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
	C float64 `json:"c"`
}

// Status is the advisory outcome of an estimation run
type Status string

const (
	// StatusConverged means the best model reached minimum support and the
	// adaptive budget was exhausted.
	StatusConverged Status = "converged"
	// StatusNoConvergence means the budget ran out before any model reached
	// minimum support. The best-effort model is still returned.
	StatusNoConvergence Status = "no_convergence"
	// StatusCancelled means the context or the hard trial cap stopped the run.
	StatusCancelled Status = "cancelled"
)
