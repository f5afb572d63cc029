package epipolar

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMQTT_Disabled(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")

	client, err := InitMQTT(DefaultServiceConfig(), nil)
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestInitMQTT_NoRequestTopic(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")

	cfg := DefaultServiceConfig()
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.RequestTopic = ""

	_, err := InitMQTT(cfg, nil)
	assert.Error(t, err)
}

func TestMQTTClient_IsConnected(t *testing.T) {
	client := &MQTTClient{}
	assert.False(t, client.IsConnected(), "New client should not be connected")

	client.setConnected(true)
	assert.True(t, client.IsConnected())

	client.setConnected(false)
	assert.False(t, client.IsConnected())
}

func TestMQTTClient_RequestFlow(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)

	var (
		mu       sync.Mutex
		received []*Request
		errs     []error
	)
	handler := func(topic string, req *Request, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "vision/requests", topic)
		if err != nil {
			errs = append(errs, err)
			return
		}
		received = append(received, req)
	}

	client := newMQTTClientWithMock(mock, "vision/requests", handler)
	client.onConnect(mock)
	assert.True(t, client.IsConnected())

	require.True(t, mock.Deliver("vision/requests", []byte(`{"id":"r1","matches":[[1,2,3,4]]}`)))
	require.True(t, mock.Deliver("vision/requests", []byte(`not json`)))
	assert.False(t, mock.Deliver("other/topic", []byte(`{}`)), "no subscription on other topics")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "r1", received[0].ID)
	assert.Equal(t, Correspondence{1, 2, 3, 4}, received[0].Matches[0])
	assert.Len(t, errs, 1)
}

func TestMQTTClient_SubscribeError(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	mock.SetErrors(nil, nil, errors.New("denied"))

	client := newMQTTClientWithMock(mock, "vision/requests", nil)
	client.onConnect(mock)
	assert.False(t, mock.Deliver("vision/requests", []byte(`{}`)))
}

func TestMQTTClient_ConnectionLost(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	client := newMQTTClientWithMock(mock, "t", nil)
	client.setConnected(true)

	client.onConnectionLost(mock, errors.New("broker gone"))
	assert.False(t, client.IsConnected())
}

func TestMQTTClient_Disconnect(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	client := newMQTTClientWithMock(mock, "t", nil)
	client.setConnected(true)

	client.Disconnect()
	assert.False(t, client.IsConnected())
	assert.False(t, mock.IsConnected())
	assert.Same(t, mock, client.GetClient())
}

func TestMockClient_PublishRequiresConnection(t *testing.T) {
	mock := NewMockClient()
	token := mock.Publish("a", 0, false, []byte("x"))
	assert.Error(t, token.Error())

	assert.NoError(t, mock.Connect().Error())
	assert.NoError(t, mock.Publish("a", 1, true, "hello").Error())

	msgs := mock.Published()
	require.Len(t, msgs, 1)
	assert.Equal(t, PublishedMessage{Topic: "a", Payload: []byte("hello"), QoS: 1, Retain: true}, msgs[0])
}

func TestEnvOr(t *testing.T) {
	t.Setenv("EPIRANSAC_TEST_SET", "from-env")
	t.Setenv("EPIRANSAC_TEST_EMPTY", "")

	tests := []struct {
		key       string
		fallbacks []string
		want      string
	}{
		{"EPIRANSAC_TEST_SET", []string{"cfg"}, "from-env"},
		{"EPIRANSAC_TEST_EMPTY", []string{"cfg", "default"}, "cfg"},
		{"EPIRANSAC_TEST_EMPTY", []string{"", "default"}, "default"},
		{"EPIRANSAC_TEST_EMPTY", nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envOr(tt.key, tt.fallbacks...), "%s %v", tt.key, tt.fallbacks)
	}
}
