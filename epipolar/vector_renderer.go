package epipolar

import (
	"image/color"
	"image/png"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// canvasRenderer is the subset of canvas renderers used here
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// VectorOverlayRenderer draws the same overlay as OverlayRenderer as SVG
type VectorOverlayRenderer struct {
	Result      *TrackedResult
	MaxLines    int
	PointRadius float64
	LineWidth   float64
	Resolution  canvas.Resolution // PNG output; one canvas unit per pixel by default
}

// NewVectorOverlayRenderer creates a vector renderer with default settings
func NewVectorOverlayRenderer(tr *TrackedResult) *VectorOverlayRenderer {
	return &VectorOverlayRenderer{Result: tr, MaxLines: 20, PointRadius: 2.5, LineWidth: 1, Resolution: canvas.DPMM(1)}
}

// RenderToSVG writes the overlay as an SVG to the provided writer
func (r *VectorOverlayRenderer) RenderToSVG(w io.Writer) error {
	lay := newOverlayLayout(r.Result)
	svgRenderer := svg.New(w, lay.width, lay.height, nil)
	r.renderToCanvas(svgRenderer, lay)
	return svgRenderer.Close()
}

// RenderToPNG writes the overlay as a PNG to the provided writer
func (r *VectorOverlayRenderer) RenderToPNG(w io.Writer) error {
	lay := newOverlayLayout(r.Result)
	rast := rasterizer.New(lay.width, lay.height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, lay)
	return png.Encode(w, rast)
}

func (r *VectorOverlayRenderer) renderToCanvas(renderer canvasRenderer, lay overlayLayout) {
	tr := r.Result

	// canvas is y-up; image coordinates are y-down
	toCanvas := func(x, y float64) (float64, float64) {
		return x, lay.height - y
	}

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(lay.width, lay.height), bgStyle, canvas.Identity)

	panelStyle := canvas.DefaultStyle
	panelStyle.Fill = canvas.Paint{Color: panelColor}
	panelStyle.Stroke = canvas.Paint{Color: canvas.Gray}
	panelStyle.StrokeWidth = 0.5
	for _, p := range []struct{ x, w, h float64 }{
		{0, lay.boundA.Max[0], lay.boundA.Max[1]},
		{lay.offsetB, lay.boundB.Max[0], lay.boundB.Max[1]},
	} {
		x, y := toCanvas(p.x, p.h)
		renderer.RenderPath(canvas.Rectangle(p.w, p.h).Translate(x, y), panelStyle, canvas.Identity)
	}

	dot := func(x, y float64, c color.RGBA) {
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: c}
		style.Stroke = canvas.Paint{Color: canvas.Transparent}
		cx, cy := toCanvas(x, y)
		renderer.RenderPath(canvas.Circle(r.PointRadius).Translate(cx, cy), style, canvas.Identity)
	}

	for _, c := range outlierPoints(tr) {
		dot(c.X1, c.Y1, outlierColor)
		dot(c.X2+lay.offsetB, c.Y2, outlierColor)
	}

	lineStyle := canvas.DefaultStyle
	lineStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	lineStyle.Stroke = canvas.Paint{Color: lineColor}
	lineStyle.StrokeWidth = r.LineWidth
	for i, c := range tr.Inliers {
		if i >= r.MaxLines {
			break
		}
		seg, ok := ClipLine(EpipolarLine(tr.Result.F, c.A(), ViewA), lay.boundB)
		if !ok {
			continue
		}
		p := &canvas.Path{}
		x0, y0 := toCanvas(seg[0][0]+lay.offsetB, seg[0][1])
		x1, y1 := toCanvas(seg[1][0]+lay.offsetB, seg[1][1])
		p.MoveTo(x0, y0)
		p.LineTo(x1, y1)
		renderer.RenderPath(p, lineStyle, canvas.Identity)
	}

	for i, c := range tr.Inliers {
		col := matchColor(i)
		dot(c.X1, c.Y1, col)
		dot(c.X2+lay.offsetB, c.Y2, col)
	}
}
