package epipolar

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEpipolarLineFeature(t *testing.T) {
	f := Matrix3{{0, 0, 0}, {0, 0, -1}, {0, 1, 0}}
	feat, ok := EpipolarLineFeature(f, Point{X: 10, Y: 120}, ViewA, ImageBound(640, 480))
	require.True(t, ok)

	ls, isLine := feat.Geometry.(orb.LineString)
	require.True(t, isLine, "geometry = %T", feat.Geometry)
	require.Len(t, ls, 2)
	assert.InDelta(t, 120, ls[0][1], 1e-9)
	assert.InDelta(t, 120, ls[1][1], 1e-9)
	assert.Equal(t, "B", feat.Properties["view"])
	assert.Equal(t, "A", feat.Properties["sourceView"])

	_, ok = EpipolarLineFeature(f, Point{X: 10, Y: 900}, ViewA, ImageBound(640, 480))
	assert.False(t, ok, "line below the image")
}

func TestResultFeatureCollection(t *testing.T) {
	tr := trackedFixture(t)

	fc := ResultFeatureCollection(tr, 5)
	require.NotEmpty(t, fc.Features)

	points := fc.Features[0]
	assert.Equal(t, "inliers", points.Properties["kind"])
	mp, ok := points.Geometry.(orb.MultiPoint)
	require.True(t, ok)
	assert.Len(t, mp, 40)

	lines := fc.Features[1:]
	assert.LessOrEqual(t, len(lines), 5)
	assert.NotEmpty(t, lines)
	for _, l := range lines {
		assert.Equal(t, "epipolar_line", l.Properties["kind"])
		assert.Less(t, l.Properties["distance"].(float64), 1e-6)
	}

	// Round trip through the GeoJSON encoder
	data, err := json.Marshal(fc)
	require.NoError(t, err)
	back, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Len(t, back.Features, len(fc.Features))

	all := ResultFeatureCollection(tr, -1)
	assert.Greater(t, len(all.Features), len(fc.Features))
}
