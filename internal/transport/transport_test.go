package transport

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/dv8lights/internal/ingest"
)

type fakeToken struct{ err error }

func (t fakeToken) Wait() bool                     { return true }
func (t fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t fakeToken) Error() error                   { return t.err }

func (t fakeToken) Done() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

// fakeClient implements the parts of mqtt.Client the package uses.
type fakeClient struct {
	mqtt.Client

	mu        sync.Mutex
	failures  int
	attempts  int
	filters   map[string]byte
	onMsg     mqtt.MessageHandler
	published map[string][]byte
}

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if c.failures < 0 || c.attempts <= c.failures {
		return fakeToken{err: errors.New("connection refused")}
	}
	return fakeToken{}
}

func (c *fakeClient) SubscribeMultiple(f map[string]byte, h mqtt.MessageHandler) mqtt.Token {
	c.filters, c.onMsg = f, h
	return fakeToken{}
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	if c.published == nil {
		c.published = map[string][]byte{}
	}
	c.published[topic] = payload.([]byte)
	return fakeToken{}
}

func (c *fakeClient) IsConnected() bool { return false }

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func withFake(t *testing.T, fc *fakeClient) {
	t.Helper()
	prev := newClient
	newClient = func(*mqtt.ClientOptions) mqtt.Client { return fc }
	t.Cleanup(func() { newClient = prev })
}

func testOptions() Options {
	return Options{Broker: "tcp://127.0.0.1:1883", RetryInterval: 2 * time.Millisecond, Log: zerolog.Nop()}
}

func TestConnectRetriesUntilSuccess(t *testing.T) {
	fc := &fakeClient{failures: 3}
	withFake(t, fc)
	s := NewSubscriber(testOptions(), ingest.Topics(), func(string, []byte) {})

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, 4, fc.attempts)
}

func TestConnectStopsOnCancel(t *testing.T) {
	fc := &fakeClient{failures: -1}
	withFake(t, fc)
	s := NewSubscriber(testOptions(), ingest.Topics(), func(string, []byte) {})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Connect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, fc.attempts, 1)
}

func TestSubscribeRoutesEveryChannel(t *testing.T) {
	fc := &fakeClient{}
	withFake(t, fc)
	var got []string
	s := NewSubscriber(testOptions(), ingest.Topics(), func(topic string, payload []byte) {
		got = append(got, topic+" "+string(payload))
	})

	s.subscribe(fc)
	require.Len(t, fc.filters, len(ingest.Channels))
	for _, c := range ingest.Channels {
		assert.Contains(t, fc.filters, c.Topic)
	}

	fc.onMsg(fc, fakeMessage{topic: "/robot/state/robot_mode", payload: []byte(`{"robot_mode":3}`)})
	assert.Equal(t, []string{`/robot/state/robot_mode {"robot_mode":3}`}, got)
}

func TestDefaultClientID(t *testing.T) {
	withFake(t, &fakeClient{})
	s := NewSubscriber(testOptions(), nil, func(string, []byte) {})
	assert.True(t, strings.HasPrefix(s.ClientID(), "dv8-lights-"))
	assert.Len(t, s.ClientID(), len("dv8-lights-")+8)
	assert.NotEqual(t, ClientID("x"), ClientID("x"))
}

func TestBridgeMessage(t *testing.T) {
	topic, payload, err := BridgeMessage("robot_mode", 3)
	require.NoError(t, err)
	assert.Equal(t, "/robot/state/robot_mode", topic)
	assert.JSONEq(t, `{"robot_mode":3}`, string(payload))

	topic, payload, err = BridgeMessage("led_light", map[string]any{"rgb": "10,20,30"})
	require.NoError(t, err)
	assert.Equal(t, "/debug/led_light", topic)
	assert.JSONEq(t, `{"rgb":"10,20,30"}`, string(payload))

	_, _, err = BridgeMessage("warp_drive", 1)
	assert.Error(t, err)
}

func TestPublisherUsesBridgeFormat(t *testing.T) {
	fc := &fakeClient{}
	withFake(t, fc)
	p := NewPublisher(testOptions())
	require.NoError(t, p.PublishKey("angular_z", 0.25))

	payload := fc.published["/robot/control/cmd_vel/angular_z"]
	var doc map[string]float64
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, 0.25, doc["angular_z"])
}
