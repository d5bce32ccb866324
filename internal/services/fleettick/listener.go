// Package fleettick listens for fleet tick messages on MQTT and refreshes the
// catalog each time one arrives.
package fleettick

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultRefreshTimeout = 15 * time.Second
	maxQoS                = 2
)

var (
	// ErrNoBroker is returned when no broker URL is configured.
	ErrNoBroker = errors.New("fleettick: broker not configured")
	// ErrConnectionFailed is returned when the broker cannot be reached.
	ErrConnectionFailed = errors.New("fleettick: connection failed")
	// ErrSubscribeFailed is returned when the tick topic cannot be subscribed.
	ErrSubscribeFailed = errors.New("fleettick: subscribe failed")
	// ErrInvalidQoS is returned for a QoS outside 0..2.
	ErrInvalidQoS = errors.New("fleettick: invalid QoS level (must be 0, 1, or 2)")
)

// Refresher reloads the catalog. *catalog.Service satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) (orchestration.Catalog, error)
}

// MessageHandler is the callback signature for received messages.
type MessageHandler func(topic string, payload []byte) error

// Config holds the broker settings.
type Config struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
}

// Listener subscribes to the tick topic. Ticks that arrive while a refresh
// is running are coalesced into one follow-up refresh.
type Listener struct {
	cfg       Config
	refresher Refresher
	client    pahomqtt.Client

	mu       sync.Mutex
	running  bool
	pending  bool
	received int64
}

// NewListener creates a listener. Nothing connects until Start.
func NewListener(cfg Config, refresher Refresher) *Listener {
	if cfg.Topic == "" {
		cfg.Topic = "lacylights/fleet/tick"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "lacylights-orchestrator"
	}
	return &Listener{cfg: cfg, refresher: refresher}
}

// Start connects to the broker and subscribes to the tick topic.
func (l *Listener) Start() error {
	if l.cfg.Broker == "" {
		return ErrNoBroker
	}
	if l.cfg.QoS > maxQoS {
		return ErrInvalidQoS
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(l.cfg.Broker).
		SetClientID(l.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetCleanSession(true)

	// Subscriptions do not survive a clean-session reconnect.
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		token := c.Subscribe(l.cfg.Topic, l.cfg.QoS, l.wrapHandler(l.HandleMessage))
		if token.WaitTimeout(defaultConnectTimeout) && token.Error() != nil {
			log.Printf("Warning: fleet tick subscribe failed: %v", token.Error())
		}
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Printf("Warning: fleet tick connection lost: %v", err)
	})

	l.client = pahomqtt.NewClient(opts)
	token := l.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	log.Printf("Listening for fleet ticks on %s (%s)", l.cfg.Topic, l.cfg.Broker)
	return nil
}

// Stop disconnects from the broker.
func (l *Listener) Stop() {
	if l.client == nil {
		return
	}
	if l.client.IsConnected() {
		l.client.Unsubscribe(l.cfg.Topic).WaitTimeout(time.Second)
	}
	l.client.Disconnect(250)
}

// Received returns how many ticks have arrived.
func (l *Listener) Received() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.received
}

// HandleMessage processes one tick. The payload is ignored; every tick means
// the fleet's catalogs may have changed.
func (l *Listener) HandleMessage(topic string, _ []byte) error {
	l.mu.Lock()
	l.received++
	if l.running {
		l.pending = true
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()

	var firstErr error
	for {
		ctx, cancel := context.WithTimeout(context.Background(), defaultRefreshTimeout)
		_, err := l.refresher.Refresh(ctx)
		cancel()
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("refresh after tick on %s: %w", topic, err)
		}

		l.mu.Lock()
		if !l.pending {
			l.running = false
			l.mu.Unlock()
			return firstErr
		}
		l.pending = false
		l.mu.Unlock()
	}
}

// wrapHandler adapts a MessageHandler to paho's callback, logging errors and
// recovering panics so one bad tick cannot stop the client.
func (l *Listener) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Error: fleet tick handler panicked on %s: %v", msg.Topic(), r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
}
