package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/domain"
	"github.com/kuilinga/terminal-gateway/internal/config"
	"github.com/kuilinga/terminal-gateway/internal/metrics"
)

const (
	subscribeQoS   byte = 1
	quiesceMillis       = 250
	connectTimeout      = 10 * time.Second
	publishTimeout      = 5 * time.Second
	handlerTimeout      = 30 * time.Second
)

// ErrNotConnected is returned by Publish while the broker link is down
var ErrNotConnected = errors.New("mqtt client not connected")

// MessageHandler receives every inbound message on the subscribed device topics
type MessageHandler interface {
	HandleMessage(ctx context.Context, topic string, payload []byte)
}

// Transport owns the broker connection. Paho runs the network loop and message
// callbacks on its own goroutines; Transport only tracks them for shutdown.
type Transport struct {
	client  paho.Client
	topics  domain.Topics
	metrics *metrics.Metrics
	logger  *zap.Logger

	handler MessageHandler
	baseCtx context.Context

	mu       sync.Mutex
	stopping bool
	inflight sync.WaitGroup
	stopOnce sync.Once
}

// NewTransport prepares a broker client from cfg. Nothing is dialed until Start.
func NewTransport(cfg config.MQTTConfig, m *metrics.Metrics, logger *zap.Logger) (*Transport, error) {
	tlsConfig, err := NewTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}

	t := &Transport{
		topics:  domain.NewTopics(cfg.TopicPrefix),
		metrics: m,
		logger:  logger,
		baseCtx: context.Background(),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(fmt.Sprintf("%s-%s", cfg.ClientID, uuid.New().String()[:8])).
		SetCleanSession(true).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetOnConnectHandler(t.onConnect).
		SetConnectionLostHandler(t.onConnectionLost).
		SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
			logger.Info("Reconnecting to MQTT broker")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}

	t.client = paho.NewClient(opts)
	return t, nil
}

// Topics returns the topic scheme the transport subscribes with
func (t *Transport) Topics() domain.Topics {
	return t.topics
}

// Start dials the broker and routes inbound messages to handler. An unreachable broker
// is not an error: paho keeps retrying in the background and subscribes once connected.
func (t *Transport) Start(ctx context.Context, handler MessageHandler) error {
	t.handler = handler
	t.baseCtx = context.WithoutCancel(ctx)

	token := t.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connecting to mqtt broker: %w", err)
		}
	case <-time.After(connectTimeout):
		t.logger.Warn("MQTT broker not reachable yet, retrying in background")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Stop unsubscribes, waits for in-flight handlers and then disconnects. Safe to call twice.
func (t *Transport) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopping = true
		t.mu.Unlock()

		if t.client.IsConnectionOpen() {
			token := t.client.Unsubscribe(t.topics.Subscriptions()...)
			if !token.WaitTimeout(connectTimeout) {
				t.logger.Warn("Timed out unsubscribing from device topics")
			} else if err := token.Error(); err != nil {
				t.logger.Warn("Failed to unsubscribe from device topics", zap.Error(err))
			}
		}
		// handlers already running still need the link to publish their answer
		t.waitInflight(handlerTimeout)
		t.client.Disconnect(quiesceMillis)
		t.metrics.SetBrokerConnected(false)
		t.logger.Info("MQTT transport stopped")
	})
}

// IsConnected implements MessagePublisher interface
func (t *Transport) IsConnected() bool {
	return t.client.IsConnectionOpen()
}

// Publish implements MessagePublisher interface. It waits for the broker
// handshake of the given qos, bounded by ctx.
func (t *Transport) Publish(ctx context.Context, topic string, qos byte, payload []byte) error {
	if !t.IsConnected() {
		return ErrNotConnected
	}
	return waitToken(ctx, t.client.Publish(topic, qos, false, payload), publishTimeout)
}

func (t *Transport) onConnect(client paho.Client) {
	t.metrics.SetBrokerConnected(true)
	t.logger.Info("Connected to MQTT broker")

	filters := make(map[string]byte)
	for _, filter := range t.topics.Subscriptions() {
		filters[filter] = subscribeQoS
	}

	// resubscribe on every (re)connect, the session is clean
	token := client.SubscribeMultiple(filters, t.handle)
	go func() {
		if err := waitToken(context.Background(), token, connectTimeout); err != nil {
			t.logger.Error("Failed to subscribe to device topics", zap.Error(err))
			return
		}
		t.logger.Info("Subscribed to device topics", zap.Strings("filters", t.topics.Subscriptions()))
	}()
}

func (t *Transport) onConnectionLost(_ paho.Client, err error) {
	t.metrics.SetBrokerConnected(false)
	t.logger.Warn("Lost connection to MQTT broker", zap.Error(err))
}

// handle runs on paho's dispatch goroutine. Messages arrive in order, so the
// handler must only publish at QoS 0 from here.
func (t *Transport) handle(_ paho.Client, msg paho.Message) {
	if !t.track() {
		return
	}
	defer t.inflight.Done()

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Recovered from panic in message handler",
				zap.String("topic", msg.Topic()),
				zap.Any("panic", r))
		}
	}()

	if t.handler == nil {
		return
	}

	ctx, cancel := context.WithTimeout(t.baseCtx, handlerTimeout)
	defer cancel()
	t.handler.HandleMessage(ctx, msg.Topic(), msg.Payload())
}

func (t *Transport) waitInflight(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		t.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.logger.Warn("Timed out waiting for in-flight message handlers", zap.Duration("timeout", timeout))
	}
}

func (t *Transport) track() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopping {
		return false
	}
	t.inflight.Add(1)
	return true
}

func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("mqtt operation timed out after %s", timeout)
	}
}
