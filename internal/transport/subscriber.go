package transport

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Handler receives every inbound message. Calls are serialised, so the
// handler is the only writer of whatever it updates.
type Handler func(topic string, payload []byte)

// Subscriber feeds the update channels into a Handler.
type Subscriber struct {
	opts    Options
	topics  []string
	handler Handler
	client  mqtt.Client
	log     zerolog.Logger
}

func NewSubscriber(o Options, topics []string, h Handler) *Subscriber {
	o.defaults("dv8-lights")
	s := &Subscriber{
		opts:    o,
		topics:  topics,
		handler: h,
		log:     o.Log.With().Str("component", "mqtt").Logger(),
	}
	co := o.clientOptions()
	co.SetOrderMatters(true)
	co.SetOnConnectHandler(s.subscribe)
	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.log.Warn().Err(err).Msg("mqtt connection lost, showing last known state until reconnect")
	})
	co.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		s.log.Info().Msg("mqtt reconnecting")
	})
	s.client = newClient(co)
	return s
}

func (s *Subscriber) ClientID() string { return s.opts.ClientID }

// Connect blocks until the first connection succeeds or ctx ends.
func (s *Subscriber) Connect(ctx context.Context) error {
	return connect(ctx, s.client, s.opts)
}

// subscribe runs on every (re)connect. A clean session drops subscriptions,
// so they are always renewed.
func (s *Subscriber) subscribe(c mqtt.Client) {
	filters := make(map[string]byte, len(s.topics))
	for _, t := range s.topics {
		filters[t] = 0
	}
	tok := c.SubscribeMultiple(filters, s.onMessage)
	if err := waitToken(tok, s.opts.RetryInterval); err != nil {
		s.log.Error().Err(err).Int("topics", len(filters)).Msg("subscribe failed")
		return
	}
	s.log.Info().Int("topics", len(filters)).Msg("subscribed")
}

func (s *Subscriber) onMessage(_ mqtt.Client, m mqtt.Message) {
	s.handler(m.Topic(), m.Payload())
}

// Close disconnects after a short quiesce.
func (s *Subscriber) Close() {
	if s.client.IsConnected() {
		s.client.Disconnect(250)
		s.log.Info().Msg("mqtt disconnected")
	}
}
