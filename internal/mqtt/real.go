package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/tilt-fermenter/internal/ring"
)

// bufferCapacity is how many messages are held while disconnected.
const bufferCapacity = 500

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// RealPublisher publishes to an actual MQTT broker.
// Messages published while the connection is down are kept in a ring buffer
// and replayed, oldest first, once paho reconnects.
type RealPublisher struct {
	client paho.Client

	mu     sync.Mutex
	buffer *ring.Buffer[bufferedMsg]
}

// NewRealPublisher creates a publisher for the given broker. A broker that is
// unreachable at startup is not an error: paho keeps retrying in the
// background and messages are buffered meanwhile.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	p := &RealPublisher{buffer: ring.New[bufferedMsg](bufferCapacity)}

	lwt, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, lwt, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt: connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn().Str("broker", broker).Msg("mqtt: broker not reachable yet, retrying in background")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending := p.buffer.DrainAll()
	p.mu.Unlock()

	log.Info().Int("replayed", len(pending)).Msg("mqtt: connected")
	for _, m := range pending {
		// Fire and forget: waiting on tokens inside the connect handler blocks paho.
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// PublishMeasurements sends a measurement batch (QoS 0, not retained).
func (p *RealPublisher) PublishMeasurements(m Measurements) error {
	payload, err := FormatMeasurements(m)
	if err != nil {
		return fmt.Errorf("format measurements: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicMeasurements, payload: payload})
}

// PublishSession sends a session transition (QoS 1, retained so late
// subscribers see the current session).
func (p *RealPublisher) PublishSession(s SessionEvent) error {
	payload, err := FormatSession(s)
	if err != nil {
		return fmt.Errorf("format session: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSession, payload: payload, qos: 1, retained: true})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		if p.buffer.Push(m) && p.buffer.Dropped() == 1 {
			log.Warn().Int("capacity", bufferCapacity).Msg("mqtt: buffer full, dropping oldest")
		}
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.Len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
