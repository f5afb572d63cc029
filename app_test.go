package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwv/epiransac/epipolar"
)

const testConfigYAML = `
ransac:
  minSupport: 30
  seed: 9
http:
  port: 9090
`

// writeFixture writes a request file and a config file to a temp dir
func writeFixture(t *testing.T, req *epipolar.Request) (dir, input, config string) {
	t.Helper()
	dir = t.TempDir()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	input = filepath.Join(dir, "pair-01.json")
	require.NoError(t, os.WriteFile(input, data, 0644))
	config = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte(testConfigYAML), 0644))
	return dir, input, config
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	require.NotNil(t, app)
	assert.NotNil(t, app.Tracker)
	assert.Equal(t, os.Stdout, app.Out)
	assert.Nil(t, app.Config)
	assert.Nil(t, app.Publisher)
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing default path uses defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())
		app := NewApp()
		app.ApplyOptions(AppOptions{ConfigFile: "config.yaml"})
		cfg, err := app.loadConfig()
		require.NoError(t, err)
		assert.Equal(t, epipolar.DefaultServiceConfig(), cfg)
		assert.Same(t, cfg, app.Config)
	})

	t.Run("missing explicit path fails", func(t *testing.T) {
		app := NewApp()
		app.ApplyOptions(AppOptions{ConfigFile: filepath.Join(t.TempDir(), "other.yaml")})
		_, err := app.loadConfig()
		assert.Error(t, err)
	})

	t.Run("file and flag overrides", func(t *testing.T) {
		_, _, config := writeFixture(t, rectifiedRequest("x", 8, 0, 1))
		app := NewApp()
		app.ApplyOptions(AppOptions{ConfigFile: config, Seed: 42, SeedSet: true, Workers: 3})
		cfg, err := app.loadConfig()
		require.NoError(t, err)
		assert.Equal(t, 30, cfg.RANSAC.MinSupport)
		require.NotNil(t, cfg.RANSAC.Seed)
		assert.Equal(t, int64(42), *cfg.RANSAC.Seed)
		assert.Equal(t, 3, cfg.RANSAC.Workers)
		assert.Equal(t, 9090, cfg.HTTP.Port)

		app.ApplyOptions(AppOptions{ConfigFile: config, HttpPort: 7000})
		cfg, err = app.loadConfig()
		require.NoError(t, err)
		assert.Equal(t, 7000, cfg.HTTP.Port)
		assert.Equal(t, int64(9), *cfg.RANSAC.Seed)
	})
}

func TestRunEstimate(t *testing.T) {
	dir, input, config := writeFixture(t, rectifiedRequest("", 40, 3, 7))

	var out bytes.Buffer
	app := NewApp()
	app.Out = &out
	app.ApplyOptions(AppOptions{ConfigFile: config, InputFile: input})
	require.NoError(t, app.RunEstimate())

	var got estimateOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "pair-01", got.ID)
	assert.Equal(t, 40, got.Result.InlierCount)
	assert.Equal(t, 43, got.Result.Total)
	assert.Len(t, got.Inliers, 40)
	assert.Equal(t, epipolar.StatusConverged, got.Result.Status)

	_, ok := app.Tracker.Get("pair-01")
	assert.True(t, ok)

	t.Run("overlays", func(t *testing.T) {
		for _, name := range []string{"overlay.svg", "overlay.png", "lines.geojson"} {
			path := filepath.Join(dir, name)
			app.Out = &bytes.Buffer{}
			app.ApplyOptions(AppOptions{ConfigFile: config, InputFile: input, OverlayFile: path})
			require.NoError(t, app.RunEstimate(), name)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			switch filepath.Ext(name) {
			case ".svg":
				assert.Contains(t, string(data), "<svg")
			case ".png":
				_, err := png.Decode(bytes.NewReader(data))
				assert.NoError(t, err)
			case ".geojson":
				fc, err := geojson.UnmarshalFeatureCollection(data)
				require.NoError(t, err)
				assert.Len(t, fc.Features, 41)
			}
		}
	})

	t.Run("unsupported overlay", func(t *testing.T) {
		app.Out = &bytes.Buffer{}
		app.ApplyOptions(AppOptions{ConfigFile: config, InputFile: input, OverlayFile: filepath.Join(dir, "overlay.bmp")})
		err := app.RunEstimate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported overlay format")
	})
}

func TestRunEstimate_Errors(t *testing.T) {
	dir, _, config := writeFixture(t, rectifiedRequest("x", 8, 0, 1))

	tests := []struct {
		name    string
		input   string
		content string
		want    string
	}{
		{"missing input", "absent.json", "", "reading"},
		{"bad json", "bad.json", `{"matches": nope}`, "parsing json"},
		{"too few", "few.json", `{"matches":[[1,2,3,4]]}`, "insufficient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.input)
			if tt.content != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			}
			app := NewApp()
			app.Out = &bytes.Buffer{}
			app.ApplyOptions(AppOptions{ConfigFile: config, InputFile: path})
			err := app.RunEstimate()
			require.Error(t, err)
			assert.Contains(t, strings.ToLower(err.Error()), tt.want)
		})
	}
}

func TestRunWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	var out bytes.Buffer
	app := NewApp()
	app.Out = &out
	require.NoError(t, app.RunWriteConfig(path))
	assert.Contains(t, out.String(), path)

	cfg, err := epipolar.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, epipolar.DefaultServiceConfig(), cfg)
}

func TestHandleRequest(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")

	newApp := func() (*App, *epipolar.MockClient) {
		client := epipolar.NewMockClient()
		client.SetConnected(true)
		app := NewApp()
		seed := int64(3)
		app.Config = epipolar.DefaultServiceConfig()
		app.Config.RANSAC.MinSupport = 30
		app.Config.RANSAC.Seed = &seed
		app.Publisher = epipolar.NewPublisher(client, "stereo")
		return app, client
	}

	t.Run("publishes result", func(t *testing.T) {
		app, client := newApp()
		app.handleRequest("epiransac/request", rectifiedRequest("", 40, 2, 4), nil)

		tr, ok := app.Tracker.Get("req-1")
		require.True(t, ok)
		assert.Equal(t, 40, tr.Result.InlierCount)

		msg, ok := client.LastPublished("stereo/req-1/result")
		require.True(t, ok)
		assert.True(t, msg.Retain)
		var payload struct {
			ID     string          `json:"id"`
			Result epipolar.Result `json:"result"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, "req-1", payload.ID)
		assert.Equal(t, 40, payload.Result.InlierCount)

		_, ok = client.LastPublished("stereo/results")
		assert.True(t, ok)
	})

	t.Run("keeps request id", func(t *testing.T) {
		app, client := newApp()
		app.handleRequest("epiransac/request", rectifiedRequest("left-right", 40, 0, 5), nil)
		_, ok := app.Tracker.Get("left-right")
		assert.True(t, ok)
		_, ok = client.LastPublished("stereo/left-right/result")
		assert.True(t, ok)
	})

	t.Run("drops decode errors", func(t *testing.T) {
		app, client := newApp()
		app.handleRequest("epiransac/request", nil, assert.AnError)
		assert.Equal(t, 0, app.Tracker.Len())
		assert.Empty(t, client.Published())
	})

	t.Run("drops failed estimates", func(t *testing.T) {
		app, client := newApp()
		app.handleRequest("epiransac/request", rectifiedRequest("few", 5, 0, 1), nil)
		assert.Equal(t, 0, app.Tracker.Len())
		assert.Empty(t, client.Published())
	})

	t.Run("no publisher", func(t *testing.T) {
		app, _ := newApp()
		app.Publisher = nil
		app.handleRequest("epiransac/request", rectifiedRequest("solo", 40, 0, 6), nil)
		_, ok := app.Tracker.Get("solo")
		assert.True(t, ok)
	})
}
