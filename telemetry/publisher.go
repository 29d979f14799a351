package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// DefaultTopic is where readings land unless configured otherwise.
const DefaultTopic = "rovercam/weather"

// publishTimeout bounds how long a single publish may wait on the
// broker before the reading is dropped.
const publishTimeout = 2 * time.Second

// Reading is one weather sample.
type Reading struct {
	TemperatureC float64 `json:"temperature_c"`
	Humidity     float64 `json:"humidity"`
	Timestamp    string  `json:"ts"`
}

// Sampler produces the next reading. It is the boundary to the
// physical weather sensor.
type Sampler func() (Reading, error)

// Publisher pushes readings to an MQTT topic.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// NewPublisher connects to the broker. An empty topic selects
// DefaultTopic.
func NewPublisher(brokerURL, clientID, topic string) (*Publisher, error) {
	if topic == "" {
		topic = DefaultTopic
	}
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("connect mqtt broker %s: timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect mqtt broker %s: %w", brokerURL, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewPublisher",
		"broker":   brokerURL,
		"topic":    topic,
	}).Info("Telemetry publisher connected")
	return &Publisher{client: c, topic: topic}, nil
}

// Publish sends one reading. A stale timestamp is filled in with the
// current UTC time.
func (p *Publisher) Publish(r Reading) error {
	if r.Timestamp == "" {
		r.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	payload, err := EncodeReading(r)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
	return token.Error()
}

// Run samples and publishes at the given interval until ctx is
// cancelled. Sampling and publishing failures are logged and skipped.
func (p *Publisher) Run(ctx context.Context, interval time.Duration, sample Sampler) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r, err := sample()
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Run",
					"error":    err,
				}).Debug("Weather sample unavailable")
				continue
			}
			if err := p.Publish(r); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Run",
					"error":    err,
				}).Warn("Telemetry publish failed")
			}
		}
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

// EncodeReading renders the JSON payload for one reading.
func EncodeReading(r Reading) ([]byte, error) {
	return json.Marshal(r)
}
