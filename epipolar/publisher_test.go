package epipolar

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisher(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")

	p := NewPublisher(nil, "")
	assert.Equal(t, "epiransac", p.publishPrefix)
	assert.Equal(t, byte(0), p.qos)
	assert.True(t, p.retain)

	p = NewPublisher(nil, "vision")
	assert.Equal(t, "vision", p.publishPrefix)

	t.Setenv("MQTT_PUBLISH_PREFIX", "override")
	p = NewPublisher(nil, "vision")
	assert.Equal(t, "override", p.publishPrefix)
}

func TestPublisher_NotConnected(t *testing.T) {
	p := NewPublisher(nil, "x")
	assert.Error(t, p.PublishResult(&TrackedResult{ID: "a"}))

	mock := NewMockClient()
	p = NewPublisher(mock, "x")
	assert.Error(t, p.PublishResult(&TrackedResult{ID: "a"}))
}

func TestPublisher_PublishResult(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	mock := NewMockClient()
	mock.SetConnected(true)
	p := NewPublisher(mock, "vision")

	tr := &TrackedResult{
		ID:         "pair-7",
		Result:     Result{F: Identity3(), Inliers: []int{0, 2}, InlierCount: 2, Total: 3, Trials: 9, Status: StatusNoConvergence},
		Inliers:    []Correspondence{{1, 2, 3, 4}, {5, 6, 7, 8}},
		ComputedAt: time.Unix(1700000000, 0),
		Duration:   3 * time.Millisecond,
	}
	require.NoError(t, p.PublishResult(tr))

	msg, ok := mock.LastPublished("vision/pair-7/result")
	require.True(t, ok)
	assert.True(t, msg.Retain)

	var payload resultPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "pair-7", payload.ID)
	assert.Equal(t, []int{0, 2}, payload.Result.Inliers)
	assert.Equal(t, StatusNoConvergence, payload.Result.Status)
	assert.Equal(t, tr.Inliers, payload.Inliers)
	assert.InDelta(t, 3.0, payload.DurationMs, 1e-9)

	// A second result joins the combined summary
	tr2 := *tr
	tr2.ID = "pair-1"
	require.NoError(t, p.PublishResult(&tr2))

	summary, ok := mock.LastPublished("vision/results")
	require.True(t, ok)
	var combined struct {
		Results []ResultSummary `json:"results"`
	}
	require.NoError(t, json.Unmarshal(summary.Payload, &combined))
	require.Len(t, combined.Results, 2)
	assert.Equal(t, "pair-1", combined.Results[0].ID)
	assert.Equal(t, "pair-7", combined.Results[1].ID)
	assert.InDelta(t, 2.0/3.0, combined.Results[1].Ratio, 1e-12)
	assert.Equal(t, int64(1700000000), combined.Results[0].Timestamp)
}

func TestPublisher_PublishError(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	mock.SetErrors(nil, errors.New("quota"), nil)
	p := NewPublisher(mock, "x")

	err := p.PublishResult(&TrackedResult{ID: "a", Result: Result{F: Identity3()}})
	assert.Error(t, err)
	assert.Empty(t, mock.Published())
}

func TestPublisher_SetQoSRetain(t *testing.T) {
	p := NewPublisher(nil, "x")
	p.SetQoS(1)
	assert.Equal(t, byte(1), p.qos)
	p.SetQoS(5)
	assert.Equal(t, byte(1), p.qos, "invalid QoS ignored")
	p.SetRetain(false)
	assert.False(t, p.retain)
}

func TestPublisher_Summaries(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	mock := NewMockClient()
	mock.SetConnected(true)
	p := NewPublisher(mock, "vision")
	assert.Empty(t, p.Summaries())

	for _, id := range []string{"b", "a", "b"} {
		tr := &TrackedResult{
			ID:         id,
			Result:     Result{InlierCount: 3, Total: 4, Trials: 7, Status: StatusConverged},
			ComputedAt: time.Unix(1700000000, 0),
		}
		require.NoError(t, p.PublishResult(tr))
	}

	got := p.Summaries()
	require.Len(t, got, 2, "republishing an ID replaces its summary")
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, ResultSummary{
		ID: "a", Status: StatusConverged, InlierCount: 3, Total: 4, Trials: 7, Ratio: 0.75, Timestamp: 1700000000,
	}, got[0])

	// Callers get copies
	got[0].ID = "changed"
	assert.Equal(t, "a", p.Summaries()[0].ID)
}
