package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultOutboxSize is the number of messages held while disconnected.
const DefaultOutboxSize = 64

// Options configures the real client.
type Options struct {
	Broker     string
	ClientID   string
	Prefix     string
	OutboxSize int
}

// RealClient publishes to and receives commands from an actual MQTT broker.
type RealClient struct {
	client paho.Client
	topics Topics

	mu        sync.Mutex
	outbox    *outbox
	handler   CommandHandler
	connected bool // at least one successful connection
}

// NewRealClient creates a client for the given broker. If the broker is not
// reachable within the connect timeout the client keeps retrying in the
// background and holds messages until it connects.
func NewRealClient(o Options) (*RealClient, error) {
	if o.ClientID == "" {
		o.ClientID = "triac-dimmer"
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = DefaultOutboxSize
	}

	c := &RealClient{
		topics: NewTopics(o.Prefix),
		outbox: newOutbox(o.OutboxSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(c.topics.System, will, 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return c, nil
}

// onConnect runs on every (re)connection: it restores the command
// subscription and replays held messages.
func (c *RealClient) onConnect(client paho.Client) {
	c.mu.Lock()
	reconnect := c.connected
	c.connected = true
	handler := c.handler
	msgs, dropped := c.outbox.take()
	c.mu.Unlock()

	if handler != nil {
		if err := c.subscribe(handler); err != nil {
			log.Printf("mqtt: resubscribe: %v", err)
		}
	}

	if len(msgs) > 0 {
		log.Printf("mqtt: replaying %d held messages (%d dropped)", len(msgs), dropped)
	}
	for _, m := range msgs {
		token := client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(5 * time.Second) {
			log.Printf("mqtt: replay to %s timed out", m.topic)
		}
	}

	if reconnect {
		if err := c.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err != nil {
			log.Printf("mqtt: publish reconnected event: %v", err)
		}
	}
}

// PublishState sends a brightness change to the MQTT broker.
func (c *RealClient) PublishState(event StateEvent) error {
	payload, err := FormatStatePayload(event)
	if err != nil {
		return fmt.Errorf("format state payload: %w", err)
	}
	// Retained so a new subscriber sees the current brightness.
	return c.publish(c.topics.State, 1, true, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return c.publish(c.topics.System, 1, event.Retained, payload)
}

func (c *RealClient) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		c.mu.Lock()
		c.outbox.add(pendingMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		c.mu.Unlock()
		return nil
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers the handler for brightness commands. The subscription
// is restored after every reconnection.
func (c *RealClient) Subscribe(handler CommandHandler) error {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		// onConnect subscribes once the connection is up.
		return nil
	}
	return c.subscribe(handler)
}

func (c *RealClient) subscribe(handler CommandHandler) error {
	token := c.client.Subscribe(c.topics.Set, 1, func(_ paho.Client, m paho.Message) {
		handler(string(m.Payload()))
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s timeout", c.topics.Set)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.topics.Set, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
