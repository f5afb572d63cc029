package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockApp struct {
	mock.Mock
	opts AppOptions
}

func (m *mockApp) ApplyOptions(opts AppOptions) { m.opts = opts }

func (m *mockApp) RunEstimate() error {
	return m.Called().Error(0)
}

func (m *mockApp) RunService() error {
	return m.Called().Error(0)
}

func (m *mockApp) RunWriteConfig(path string) error {
	return m.Called(path).Error(0)
}

func TestRun_Flags(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		expect     func(*mockApp)
		verifyOpts func(*testing.T, AppOptions)
	}{
		{
			name:   "Estimate",
			args:   []string{"--input", "req.json", "--overlay", "out.svg", "--seed", "0", "--workers", "4"},
			expect: func(m *mockApp) { m.On("RunEstimate").Return(nil) },
			verifyOpts: func(t *testing.T, opts AppOptions) {
				assert.Equal(t, "req.json", opts.InputFile)
				assert.Equal(t, "out.svg", opts.OverlayFile)
				assert.True(t, opts.SeedSet, "explicit zero seed counts as set")
				assert.Equal(t, int64(0), opts.Seed)
				assert.Equal(t, 4, opts.Workers)
			},
		},
		{
			name:   "MqttMode",
			args:   []string{"--mqtt", "--config", "svc.yaml"},
			expect: func(m *mockApp) { m.On("RunService").Return(nil) },
			verifyOpts: func(t *testing.T, opts AppOptions) {
				assert.True(t, opts.MqttMode)
				assert.False(t, opts.HttpMode)
				assert.Equal(t, "svc.yaml", opts.ConfigFile)
				assert.False(t, opts.SeedSet)
			},
		},
		{
			name:   "HttpMode",
			args:   []string{"--http", "--http-port", "9090"},
			expect: func(m *mockApp) { m.On("RunService").Return(nil) },
			verifyOpts: func(t *testing.T, opts AppOptions) {
				assert.True(t, opts.HttpMode)
				assert.Equal(t, 9090, opts.HttpPort)
			},
		},
		{
			name:   "WriteConfig",
			args:   []string{"--write-config", "new.yaml", "--mqtt"},
			expect: func(m *mockApp) { m.On("RunWriteConfig", "new.yaml").Return(nil) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &mockApp{}
			tt.expect(app)

			var out bytes.Buffer
			require.NoError(t, run(tt.args, &out, app))
			app.AssertExpectations(t)

			if tt.verifyOpts != nil {
				tt.verifyOpts(t, app.opts)
			}
		})
	}
}

func TestRun_PropagatesErrors(t *testing.T) {
	app := &mockApp{}
	app.On("RunEstimate").Return(errors.New("boom"))

	var out bytes.Buffer
	err := run([]string{"--input", "x.json"}, &out, app)
	assert.EqualError(t, err, "boom")
}

func TestRun_Help(t *testing.T) {
	app := &mockApp{}
	var out bytes.Buffer
	err := run([]string{"--help"}, &out, app)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, out.String(), "Usage of epiransac")
	app.AssertExpectations(t)
}

func TestRun_UnknownFlag(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"--bogus"}, &out, &mockApp{})
	assert.Error(t, err)
}

func TestRun_Default(t *testing.T) {
	app := &mockApp{}
	var out bytes.Buffer
	require.NoError(t, run([]string{}, &out, app))

	assert.Contains(t, out.String(), "epiransac version: "+Version)
	assert.True(t, strings.Contains(out.String(), "--input"), "usage hints: %s", out.String())
	assert.Equal(t, "config.yaml", app.opts.ConfigFile)
	app.AssertExpectations(t)
}
