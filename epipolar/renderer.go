package epipolar

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// overlayLayout places image A and image B side by side
type overlayLayout struct {
	boundA, boundB orb.Bound
	offsetB        float64 // x offset of image B
	width, height  float64
}

// overlayGap separates the two image panels
const overlayGap = 10.0

func newOverlayLayout(tr *TrackedResult) overlayLayout {
	var bA, bB orb.Bound
	if tr.Request != nil {
		bA, bB = tr.Request.Bound(ViewA), tr.Request.Bound(ViewB)
	} else {
		bA, bB = PointsBound(tr.Inliers, ViewA), PointsBound(tr.Inliers, ViewB)
	}
	// Panels always start at the origin so pixel coordinates map directly.
	bA.Min, bB.Min = orb.Point{0, 0}, orb.Point{0, 0}
	wA, hA := math.Max(bA.Max[0], 1), math.Max(bA.Max[1], 1)
	wB, hB := math.Max(bB.Max[0], 1), math.Max(bB.Max[1], 1)
	return overlayLayout{
		boundA:  ImageBound(wA, hA),
		boundB:  ImageBound(wB, hB),
		offsetB: wA + overlayGap,
		width:   wA + overlayGap + wB,
		height:  math.Max(hA, hB),
	}
}

// matchColor returns a stable color per correspondence index
func matchColor(i int) color.RGBA {
	h := uint32(i)*2654435761 + 0x9e3779b9
	return color.RGBA{
		R: uint8(64 + (h>>16)%192),
		G: uint8(64 + (h>>8)%192),
		B: uint8(64 + h%192),
		A: 255,
	}
}

var (
	outlierColor = color.RGBA{170, 170, 170, 255}
	lineColor    = color.RGBA{220, 30, 30, 255}
	panelColor   = color.RGBA{245, 245, 245, 255}
)

// outlierPoints returns the request correspondences not in the inlier set
func outlierPoints(tr *TrackedResult) []Correspondence {
	if tr.Request == nil {
		return nil
	}
	in := make(map[int]bool, len(tr.Result.Inliers))
	for _, idx := range tr.Result.Inliers {
		in[idx] = true
	}
	var out []Correspondence
	for i, c := range tr.Request.Matches {
		if !in[i] {
			out = append(out, c)
		}
	}
	return out
}

// OverlayRenderer draws inliers, outliers and epipolar lines of a result as
// a raster image: image A on the left, image B on the right.
type OverlayRenderer struct {
	Result      *TrackedResult
	MaxLines    int // Epipolar lines drawn in image B, one per inlier
	PointRadius int
}

// NewOverlayRenderer creates a renderer with default settings
func NewOverlayRenderer(tr *TrackedResult) *OverlayRenderer {
	return &OverlayRenderer{Result: tr, MaxLines: 20, PointRadius: 2}
}

// Render produces the overlay image
func (r *OverlayRenderer) Render() *image.RGBA {
	tr := r.Result
	lay := newOverlayLayout(tr)
	img := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(lay.width)), int(math.Ceil(lay.height))))

	fillRect(img, 0, 0, int(lay.boundA.Max[0]), int(lay.boundA.Max[1]), panelColor)
	fillRect(img, int(lay.offsetB), 0, int(lay.offsetB+lay.boundB.Max[0]), int(lay.boundB.Max[1]), panelColor)

	for _, c := range outlierPoints(tr) {
		drawCircle(img, int(c.X1), int(c.Y1), r.PointRadius, outlierColor)
		drawCircle(img, int(c.X2+lay.offsetB), int(c.Y2), r.PointRadius, outlierColor)
	}

	for i, c := range tr.Inliers {
		if i >= r.MaxLines {
			break
		}
		seg, ok := ClipLine(EpipolarLine(tr.Result.F, c.A(), ViewA), lay.boundB)
		if !ok {
			continue
		}
		drawLine(img, seg[0][0]+lay.offsetB, seg[0][1], seg[1][0]+lay.offsetB, seg[1][1], lineColor)
	}

	for i, c := range tr.Inliers {
		col := matchColor(i)
		drawCircle(img, int(c.X1), int(c.Y1), r.PointRadius, col)
		drawCircle(img, int(c.X2+lay.offsetB), int(c.Y2), r.PointRadius, col)
	}

	caption := fmt.Sprintf("%d/%d inliers", tr.Result.InlierCount, tr.Result.Total)
	drawText(img, 10, 20, caption, color.RGBA{200, 0, 0, 255})

	return img
}

// fillRect fills [x0,x1)x[y0,y1)
func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	r := image.Rect(x0, y0, x1, y1).Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				x, y := cx+dx, cy+dy
				if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
					img.Set(x, y, c)
				}
			}
		}
	}
}

// drawLine draws a one-pixel line by stepping along its longer axis
func drawLine(img *image.RGBA, x0, y0, x1, y1 float64, c color.RGBA) {
	steps := int(math.Ceil(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))))
	if steps == 0 {
		steps = 1
	}
	b := img.Bounds()
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(x0 + t*(x1-x0)))
		y := int(math.Round(y0 + t*(y1-y0)))
		if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
			img.SetRGBA(x, y, c)
		}
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
