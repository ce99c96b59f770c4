// Package transport connects the update channels to an MQTT broker.
package transport

import (
	"context"
	"errors"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/dv8lights/internal/config"
	"github.com/coreman2200/dv8lights/internal/metrics"
)

var ErrConnectTimeout = errors.New("mqtt connect timeout")

type Options struct {
	Broker        string
	ClientID      string
	Username      string
	Password      string
	KeepAlive     time.Duration
	RetryInterval time.Duration
	Log           zerolog.Logger
}

// FromConfig maps the mqtt config section onto Options.
func FromConfig(c config.MQTT) Options {
	return Options{
		Broker:        c.Broker,
		ClientID:      c.ClientID,
		Username:      c.Username,
		Password:      c.Password,
		KeepAlive:     c.KeepAlive,
		RetryInterval: c.RetryInterval,
		Log:           log.Logger,
	}
}

// ClientID returns a fresh client id with the given prefix.
func ClientID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func (o *Options) defaults(prefix string) {
	if o.ClientID == "" {
		o.ClientID = ClientID(prefix)
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 5 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 5 * time.Second
	}
}

func (o Options) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetKeepAlive(o.KeepAlive)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(o.RetryInterval)
	// Startup retries are driven by connect below.
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(o.RetryInterval)
	return opts
}

// newClient is replaced in tests.
var newClient = mqtt.NewClient

// connect blocks until the broker accepts the connection, retrying every
// RetryInterval without limit. Only ctx stops it.
func connect(ctx context.Context, c mqtt.Client, o Options) error {
	lg := o.Log.With().Str("broker", o.Broker).Str("client_id", o.ClientID).Logger()
	for attempt := 1; ; attempt++ {
		lg.Info().Int("attempt", attempt).Msg("connecting to mqtt broker")
		err := waitToken(c.Connect(), o.RetryInterval)
		if err == nil {
			metrics.ConnectAttempts.WithLabelValues("ok").Inc()
			lg.Info().Int("attempt", attempt).Msg("mqtt connection established")
			return nil
		}
		metrics.ConnectAttempts.WithLabelValues("failed").Inc()
		lg.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", o.RetryInterval).Msg("mqtt connect failed")

		t := time.NewTimer(o.RetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func waitToken(tok mqtt.Token, timeout time.Duration) error {
	if !tok.WaitTimeout(timeout) {
		return ErrConnectTimeout
	}
	return tok.Error()
}
