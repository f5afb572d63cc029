package epipolar

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// EstimateHomography computes H mapping src[i] to dst[i] with h22 fixed to 1.
// Each pair contributes two rows to a 2n x 8 linear system solved in the
// least-squares sense; at least 4 pairs are required. This is a direct,
// non-robust fit.
func EstimateHomography(src, dst []Point) (Matrix3, error) {
	n := min(len(src), len(dst))
	if n < 4 {
		return Identity3(), fmt.Errorf("homography needs 4 point pairs, got %d: %w", n, ErrInsufficientCorrespondences)
	}

	a := mat.NewDense(2*n, 8, nil)
	b := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y
		if !finite(x) || !finite(y) || !finite(u) || !finite(v) {
			return Identity3(), fmt.Errorf("point pair %d has non-finite coordinates: %w", i, ErrInvalidInput)
		}
		// u = (h00 x + h01 y + h02) / (h20 x + h21 y + 1)
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		b.SetVec(2*i, u)
		// v = (h10 x + h11 y + h12) / (h20 x + h21 y + 1)
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i+1, v)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return Identity3(), fmt.Errorf("solving homography system: %w", err)
	}
	return Matrix3{
		{h.AtVec(0), h.AtVec(1), h.AtVec(2)},
		{h.AtVec(3), h.AtVec(4), h.AtVec(5)},
		{h.AtVec(6), h.AtVec(7), 1},
	}, nil
}

// TransferError returns the distance between H·src and dst, or +Inf when src
// maps to infinity.
func TransferError(h Matrix3, src, dst Point) float64 {
	p, ok := h.Project(src)
	if !ok {
		return math.Inf(1)
	}
	return math.Hypot(p.X-dst.X, p.Y-dst.Y)
}

// WarpBounds grows target to include the four corners of source mapped by H.
// With source the first image and target the second, the result is the
// panorama canvas covering both.
func WarpBounds(h Matrix3, source, target orb.Bound) orb.Bound {
	corners := []Point{
		{X: source.Min[0], Y: source.Min[1]},
		{X: source.Max[0], Y: source.Min[1]},
		{X: source.Max[0], Y: source.Max[1]},
		{X: source.Min[0], Y: source.Max[1]},
	}
	out := target
	for _, c := range corners {
		if p, ok := h.Project(c); ok {
			out = out.Extend(orb.Point{p.X, p.Y})
		}
	}
	return out
}

// HomographyResult is a direct homography fit from image A to image B
type HomographyResult struct {
	ID             string    `json:"id,omitempty"`
	H              Matrix3   `json:"h"`
	TransferErrors []float64 `json:"transferErrors"`
	RMSError       float64   `json:"rmsError"`
	CanvasMin      orb.Point `json:"canvasMin"` // Panorama canvas covering image B and warped image A
	CanvasMax      orb.Point `json:"canvasMax"`
}

// FitHomography fits H mapping each match's image A point onto its image B
// point and reports per-match transfer errors and the panorama canvas.
func FitHomography(req *Request) (*HomographyResult, error) {
	src := make([]Point, len(req.Matches))
	dst := make([]Point, len(req.Matches))
	for i, c := range req.Matches {
		src[i], dst[i] = c.A(), c.B()
	}
	h, err := EstimateHomography(src, dst)
	if err != nil {
		return nil, err
	}

	res := &HomographyResult{ID: req.ID, H: h, TransferErrors: make([]float64, len(src))}
	var sum float64
	for i := range src {
		e := TransferError(h, src[i], dst[i])
		res.TransferErrors[i] = e
		sum += e * e
	}
	res.RMSError = math.Sqrt(sum / float64(len(src)))

	canvas := WarpBounds(h, req.Bound(ViewA), req.Bound(ViewB))
	res.CanvasMin, res.CanvasMax = canvas.Min, canvas.Max
	return res, nil
}
