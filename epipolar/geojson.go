package epipolar

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// EpipolarLineFeature returns the epipolar line of p (a point in src) clipped
// to the other image's bound, as a GeoJSON LineString feature in pixel
// coordinates. ok is false when the line misses the image.
func EpipolarLineFeature(f Matrix3, p Point, src View, bound orb.Bound) (*geojson.Feature, bool) {
	l := EpipolarLine(f, p, src)
	seg, ok := ClipLine(l, bound)
	if !ok {
		return nil, false
	}
	feat := geojson.NewFeature(seg)
	feat.Properties["view"] = src.Other().String()
	feat.Properties["sourceView"] = src.String()
	feat.Properties["source"] = []float64{p.X, p.Y}
	feat.Properties["line"] = []float64{l.A, l.B, l.C}
	return feat, true
}

// ResultFeatureCollection describes a tracked result in image A: one
// MultiPoint feature with the inlier points and, for up to maxLines inliers,
// the epipolar line of the image B partner clipped to image A.
func ResultFeatureCollection(tr *TrackedResult, maxLines int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	points := make(orb.MultiPoint, 0, len(tr.Inliers))
	for _, c := range tr.Inliers {
		points = append(points, orb.Point{c.X1, c.Y1})
	}
	pf := geojson.NewFeature(points)
	pf.Properties["kind"] = "inliers"
	pf.Properties["view"] = ViewA.String()
	pf.Properties["count"] = len(tr.Inliers)
	pf.Properties["total"] = tr.Result.Total
	pf.Properties["status"] = string(tr.Result.Status)
	fc.Append(pf)

	bound := PointsBound(tr.Inliers, ViewA)
	if tr.Request != nil {
		bound = tr.Request.Bound(ViewA)
	}
	for i, c := range tr.Inliers {
		if maxLines >= 0 && i >= maxLines {
			break
		}
		feat, ok := EpipolarLineFeature(tr.Result.F, c.B(), ViewB, bound)
		if !ok {
			continue
		}
		feat.Properties["kind"] = "epipolar_line"
		feat.Properties["index"] = tr.Result.Inliers[i]
		feat.Properties["distance"] = EpipolarDistance(tr.Result.F, c)
		fc.Append(feat)
	}
	return fc
}
