package bridge_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnelworks/movement-engine/internal/adapter"
	"github.com/funnelworks/movement-engine/internal/bridge"
	"github.com/funnelworks/movement-engine/internal/domain"
	"github.com/funnelworks/movement-engine/internal/logger"
)

func TestMain(m *testing.M) {
	err := logger.Initialize(logger.Config{
		Debug: false,
	})
	if err != nil {
		panic(err)
	}

	code := m.Run()
	os.Exit(code)
}

type fakeNatsConn struct {
	closed bool
}

func (c *fakeNatsConn) Close()               { c.closed = true }
func (c *fakeNatsConn) LastError() error     { return nil }
func (c *fakeNatsConn) ConnectedUrl() string { return "nats://localhost:4222" }

type fakeConsumeContext struct{}

func (fakeConsumeContext) Stop()                   {}
func (fakeConsumeContext) Drain()                  {}
func (fakeConsumeContext) Closed() <-chan struct{} { return nil }

// fakeConsumer captures the message handler so tests can inject messages
type fakeConsumer struct {
	mu      sync.Mutex
	handler adapter.MessageHandler
}

func (c *fakeConsumer) Consume(handler adapter.MessageHandler, opts ...jetstream.PullConsumeOpt) (adapter.ConsumeContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
	return fakeConsumeContext{}, nil
}

func (c *fakeConsumer) Info(ctx context.Context) (*jetstream.ConsumerInfo, error) {
	return &jetstream.ConsumerInfo{Name: "movement-bridge"}, nil
}

func (c *fakeConsumer) deliver(msg adapter.Message) {
	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	handler(msg)
}

func (c *fakeConsumer) ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

type fakeJetStream struct {
	consumer *fakeConsumer
}

func (j *fakeJetStream) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	return &jetstream.PubAck{}, nil
}

func (j *fakeJetStream) CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (adapter.Consumer, error) {
	return j.consumer, nil
}

func (j *fakeJetStream) Consumer(ctx context.Context, stream string, consumer string) (adapter.Consumer, error) {
	return j.consumer, nil
}

type fakeNatsJetStream struct {
	conn       *fakeNatsConn
	js         *fakeJetStream
	connectErr error
}

func (f *fakeNatsJetStream) Connect(url string, options ...nats.Option) (adapter.NatsConn, adapter.JetStream, error) {
	if f.connectErr != nil {
		return nil, nil, f.connectErr
	}
	return f.conn, f.js, nil
}

// fakeMessage records broker dispositions
type fakeMessage struct {
	mu     sync.Mutex
	data   []byte
	acked  bool
	naked  bool
	termed bool
}

func (m *fakeMessage) Data() []byte { return m.data }

func (m *fakeMessage) Metadata() (*jetstream.MsgMetadata, error) {
	return &jetstream.MsgMetadata{NumDelivered: 1}, nil
}

func (m *fakeMessage) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = true
	return nil
}

func (m *fakeMessage) Nak() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.naked = true
	return nil
}

func (m *fakeMessage) Term() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.termed = true
	return nil
}

func (m *fakeMessage) disposition() (acked, naked, termed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acked, m.naked, m.termed
}

// fakeDetector records events and can fail on demand
type fakeDetector struct {
	mu     sync.Mutex
	events []*domain.MovementEvent
	err    error
}

func (d *fakeDetector) DetectEvent(ctx context.Context, event *domain.MovementEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.events = append(d.events, event)
	return nil
}

func (d *fakeDetector) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func testBridgeConfig() bridge.Config {
	return bridge.Config{
		URL:            "nats://localhost:4222",
		StreamName:     "MOVEMENT",
		ConsumerName:   "movement-bridge",
		MaxReconnects:  10,
		ReconnectWait:  time.Second,
		ConnectionName: "test-bridge",
		AckWaitTimeout: 30 * time.Second,
		MaxDeliver:     5,
	}
}

// startBridge wires a running bridge over fakes and returns the consumer to
// inject messages through
func startBridge(t *testing.T, detector *fakeDetector) (*fakeConsumer, func()) {
	t.Helper()

	consumer := &fakeConsumer{}
	natsJS := &fakeNatsJetStream{
		conn: &fakeNatsConn{},
		js:   &fakeJetStream{consumer: consumer},
	}

	b, err := bridge.NewBridge(testBridgeConfig(), natsJS, detector, adapter.NewJSON())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	require.Eventually(t, consumer.ready, time.Second, 5*time.Millisecond)

	return consumer, func() {
		cancel()
		<-done
		b.Close()
	}
}

func TestNewBridgeConnectError(t *testing.T) {
	natsJS := &fakeNatsJetStream{connectErr: errors.New("connection refused")}

	b, err := bridge.NewBridge(testBridgeConfig(), natsJS, &fakeDetector{}, adapter.NewJSON())
	assert.Error(t, err)
	assert.Nil(t, b)
}

func TestBridgeDeliversEvents(t *testing.T) {
	detector := &fakeDetector{}
	consumer, stop := startBridge(t, detector)
	defer stop()

	event := &domain.MovementEvent{
		ID:         domain.NewEventID(time.Now()),
		Type:       domain.EventReply,
		ContactID:  "contact-1",
		DedupHash:  "hash-1",
		DetectedAt: time.Now().UTC(),
	}
	data, err := adapter.NewJSON().Marshal(event)
	require.NoError(t, err)

	msg := &fakeMessage{data: data}
	consumer.deliver(msg)

	require.Eventually(t, func() bool {
		acked, _, _ := msg.disposition()
		return acked
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, detector.count())
}

func TestBridgeTerminatesMalformedPayload(t *testing.T) {
	detector := &fakeDetector{}
	consumer, stop := startBridge(t, detector)
	defer stop()

	msg := &fakeMessage{data: []byte("{not json")}
	consumer.deliver(msg)

	require.Eventually(t, func() bool {
		_, _, termed := msg.disposition()
		return termed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, detector.count())
}

func TestBridgeTerminatesInvalidEvent(t *testing.T) {
	detector := &fakeDetector{err: domain.ErrInvalidEvent}
	consumer, stop := startBridge(t, detector)
	defer stop()

	data, err := adapter.NewJSON().Marshal(&domain.MovementEvent{
		Type:      domain.EventReply,
		ContactID: "contact-1",
		DedupHash: "hash-1",
	})
	require.NoError(t, err)

	msg := &fakeMessage{data: data}
	consumer.deliver(msg)

	require.Eventually(t, func() bool {
		_, _, termed := msg.disposition()
		return termed
	}, time.Second, 5*time.Millisecond)
}

func TestBridgeNaksTransientFailure(t *testing.T) {
	detector := &fakeDetector{err: errors.New("orchestrator not running")}
	consumer, stop := startBridge(t, detector)
	defer stop()

	data, err := adapter.NewJSON().Marshal(&domain.MovementEvent{
		Type:      domain.EventReply,
		ContactID: "contact-1",
		DedupHash: "hash-1",
	})
	require.NoError(t, err)

	msg := &fakeMessage{data: data}
	consumer.deliver(msg)

	require.Eventually(t, func() bool {
		_, naked, _ := msg.disposition()
		return naked
	}, time.Second, 5*time.Millisecond)
}
