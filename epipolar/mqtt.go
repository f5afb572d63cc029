package epipolar

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// RequestHandler is called for each message on the request topic.
// req is nil when the payload could not be decoded; err says why.
type RequestHandler func(topic string, req *Request, err error)

// MQTTClient manages the broker connection and the request subscription
type MQTTClient struct {
	client       mqtt.Client
	requestTopic string
	handler      RequestHandler
	isConnected  bool
	mu           sync.RWMutex
}

// InitMQTT connects to the broker configured in cfg or MQTT_BROKER.
// If neither names a broker, MQTT is disabled and this returns nil, nil.
func InitMQTT(cfg *ServiceConfig, handler RequestHandler) (*MQTTClient, error) {
	if cfg == nil {
		cfg = DefaultServiceConfig()
	}

	broker := envOr("MQTT_BROKER", cfg.MQTT.Broker)
	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if cfg.MQTT.RequestTopic == "" {
		return nil, fmt.Errorf("MQTT enabled but no request topic configured")
	}

	c := &MQTTClient{
		requestTopic: cfg.MQTT.RequestTopic,
		handler:      handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	opts.SetClientID(envOr("MQTT_CLIENT_ID", cfg.MQTT.ClientID, "epiransac"))

	if username := envOr("MQTT_USERNAME", cfg.MQTT.Username); username != "" {
		opts.SetUsername(username)
		opts.SetPassword(envOr("MQTT_PASSWORD", cfg.MQTT.Password))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // Keep the subscription across reconnects
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)

	go c.connectWithRetry()

	return c, nil
}

// envOr returns the environment variable key if set, otherwise the first
// non-empty fallback
func envOr(key string, fallbacks ...string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	for _, f := range fallbacks {
		if f != "" {
			return f
		}
	}
	return ""
}

// connectWithRetry attempts to connect to the broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to the request topic
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	log.Printf("MQTT connected, subscribing to %s", c.requestTopic)
	token := client.Subscribe(c.requestTopic, 1, c.createMessageHandler())
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("Error subscribing to %s: %v", c.requestTopic, token.Error())
		return
	}
	log.Printf("Successfully subscribed to %s", c.requestTopic)
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

// createMessageHandler decodes request payloads and hands them to the handler
func (c *MQTTClient) createMessageHandler() mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Printf("Received request (topic: %s, size: %d bytes)", msg.Topic(), len(payload))

		req, err := ParseRequestJSON(payload)
		if err != nil {
			log.Printf("Error decoding request on %s: %v", msg.Topic(), err)
		}
		if c.handler != nil {
			c.handler(msg.Topic(), req, err)
		}
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock wraps an existing mqtt.Client; used with MockClient
func newMQTTClientWithMock(client mqtt.Client, requestTopic string, handler RequestHandler) *MQTTClient {
	return &MQTTClient{
		client:       client,
		requestTopic: requestTopic,
		handler:      handler,
	}
}
