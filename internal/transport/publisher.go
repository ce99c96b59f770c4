package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/coreman2200/dv8lights/internal/ingest"
)

// Publisher sends updates in the robot bridge's format: a one key JSON
// object per message.
type Publisher struct {
	opts   Options
	client mqtt.Client
}

func NewPublisher(o Options) *Publisher {
	o.defaults("dv8-pub")
	return &Publisher{opts: o, client: newClient(o.clientOptions())}
}

func (p *Publisher) Connect(ctx context.Context) error {
	return connect(ctx, p.client, p.opts)
}

func (p *Publisher) Publish(topic string, payload []byte) error {
	tok := p.client.Publish(topic, 0, false, payload)
	if !tok.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.opts.Log.Debug().Str("topic", topic).Int("size", len(payload)).Msg("published")
	return nil
}

// PublishKey publishes v under key on the key's channel.
func (p *Publisher) PublishKey(key string, v any) error {
	topic, payload, err := BridgeMessage(key, v)
	if err != nil {
		return err
	}
	return p.Publish(topic, payload)
}

func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// BridgeMessage builds the topic and payload for a channel key. Scalar
// keys take a number; override keys take the payload object itself.
func BridgeMessage(key string, v any) (string, []byte, error) {
	ch, ok := ingest.LookupKey(key)
	if !ok {
		return "", nil, fmt.Errorf("unknown channel key %q", key)
	}
	var body any = map[string]any{key: v}
	if ch.Kind == ingest.LightOverride || ch.Kind == ingest.PanelOverride {
		body = v
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return ch.Topic, b, nil
}
