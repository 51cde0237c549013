package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/facebookgo/clock"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/sweeney/tapassist/internal/chime"
	"github.com/sweeney/tapassist/internal/feedback"
	"github.com/sweeney/tapassist/internal/gesture"
	"github.com/sweeney/tapassist/internal/input"
)

const (
	// DefaultClientID is used when Options.ClientID is empty.
	DefaultClientID = "tapassist"

	retryInterval  = 5 * time.Second
	publishTimeout = 5 * time.Second
	disconnectMs   = 1000
)

// ErrNotConnected is returned by telemetry publishes while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt: not connected")

// Options configure a RealClient.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	// Language tags speech commands; defaults to en-US.
	Language string
	Logger   *zap.Logger
	Clock    clock.Clock
}

// RealClient talks to an actual MQTT broker. It is a feedback port (speech
// and haptic commands), a telemetry publisher, the navigation trigger and a
// remote input source.
type RealClient struct {
	client paho.Client
	topics Topics
	lang   language.Tag
	logger *zap.Logger
	clock  clock.Clock

	ready     chan struct{}
	readyOnce sync.Once

	mu        sync.Mutex
	sink      input.Sink
	connected bool // a connection has been made at least once

	closeOnce sync.Once
}

// NewRealClient creates a client and starts connecting in the background.
// It never blocks on the broker: until the first connection succeeds the
// port is not ready and feedback is dropped.
func NewRealClient(o Options) (*RealClient, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: broker is required")
	}
	if o.ClientID == "" {
		o.ClientID = DefaultClientID
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	lang := language.AmericanEnglish
	if o.Language != "" {
		tag, err := language.Parse(o.Language)
		if err != nil {
			return nil, fmt.Errorf("parse language: %w", err)
		}
		lang = tag
	}

	c := &RealClient{
		topics: NewTopics(o.TopicPrefix),
		lang:   lang,
		logger: o.Logger,
		clock:  o.Clock,
		ready:  make(chan struct{}),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: c.clock.Now(), Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetWill(c.topics.System, string(will), 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.logger.Warn("mqtt connection lost", zap.Error(err))
		})

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.logger.Error("mqtt connect failed", zap.String("broker", o.Broker), zap.Error(err))
		}
	}()
	return c, nil
}

// Topics returns the topic set in use.
func (c *RealClient) Topics() Topics {
	return c.topics
}

func (c *RealClient) onConnect(client paho.Client) {
	c.mu.Lock()
	reconnect := c.connected
	c.connected = true
	sink := c.sink
	c.mu.Unlock()

	c.logger.Info("mqtt connected", zap.Bool("reconnect", reconnect))
	if sink != nil {
		c.subscribe(sink)
	}
	if reconnect {
		// Handlers must not wait on tokens.
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: c.clock.Now(), Event: "RECONNECTED"})
		if err == nil {
			client.Publish(c.topics.System, 1, true, payload)
		}
	}
	c.readyOnce.Do(func() { close(c.ready) })
}

// Ready is closed once the first connection is established.
func (c *RealClient) Ready() <-chan struct{} {
	return c.ready
}

// IsConnected reports whether the client currently has a broker connection.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Speak publishes a speech command. Commands are QoS 0 and never retained:
// speech that cannot be delivered now is dropped, not replayed later.
func (c *RealClient) Speak(u feedback.Utterance) error {
	if !c.IsConnected() {
		return feedback.ErrUnavailable
	}
	payload, err := FormatSpeechPayload(u, c.lang, c.clock.Now())
	if err != nil {
		return fmt.Errorf("format speech payload: %w", err)
	}
	return c.fire(c.topics.Speech, 0, payload)
}

// Vibrate publishes a haptic command with the same delivery rules as Speak.
func (c *RealClient) Vibrate(p feedback.HapticPattern) error {
	if !c.IsConnected() {
		return feedback.ErrUnavailable
	}
	payload, err := FormatHapticPayload(p, c.clock.Now())
	if err != nil {
		return fmt.Errorf("format haptic payload: %w", err)
	}
	return c.fire(c.topics.Haptic, 0, payload)
}

// Navigate triggers the navigation session once.
func (c *RealClient) Navigate() error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	payload, err := FormatNavigatePayload(c.clock.Now())
	if err != nil {
		return fmt.Errorf("format navigate payload: %w", err)
	}
	return c.fire(c.topics.Navigate, 1, payload)
}

// PublishGesture sends gesture telemetry.
func (c *RealClient) PublishGesture(ev gesture.Event) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	payload, err := FormatGesturePayload(ev)
	if err != nil {
		return fmt.Errorf("format gesture payload: %w", err)
	}
	return c.fire(c.topics.Events, 0, payload)
}

// PublishChime sends chime telemetry.
func (c *RealClient) PublishChime(b chime.Boundary) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	payload, err := FormatChimePayload(b)
	if err != nil {
		return fmt.Errorf("format chime payload: %w", err)
	}
	return c.fire(c.topics.Events, 0, payload)
}

// PublishSystem sends a system lifecycle event and waits for delivery.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) - lifecycle events should reach the broker
	token := c.client.Publish(c.topics.System, 1, event.Retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish system timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish system: %w", err)
	}
	return nil
}

// SubscribeInput delivers messages on the input topic to sink. The
// subscription is renewed on every reconnect.
func (c *RealClient) SubscribeInput(sink input.Sink) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
	if c.IsConnected() {
		c.subscribe(sink)
	}
}

func (c *RealClient) subscribe(sink input.Sink) {
	handler := func(_ paho.Client, msg paho.Message) {
		kind, err := ParseInput(msg.Payload())
		if err != nil {
			c.logger.Warn("ignoring input message", zap.String("topic", msg.Topic()), zap.Error(err))
			return
		}
		input.Deliver(sink, kind)
	}
	token := c.client.Subscribe(c.topics.Input, 0, handler)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			c.logger.Error("mqtt subscribe failed", zap.String("topic", c.topics.Input), zap.Error(err))
		}
	}()
}

// fire publishes without waiting for the broker; only an immediate failure
// is reported.
func (c *RealClient) fire(topic string, qos byte, payload []byte) error {
	token := c.client.Publish(topic, qos, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish %s: %w", topic, err)
		}
	default:
	}
	return nil
}

// Close disconnects from the broker. Later calls do nothing.
func (c *RealClient) Close() error {
	c.closeOnce.Do(func() { c.client.Disconnect(disconnectMs) })
	return nil
}
