package fleettick

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
)

type countingRefresher struct {
	calls atomic.Int32
	block chan struct{}
	err   error
}

func (r *countingRefresher) Refresh(context.Context) (orchestration.Catalog, error) {
	r.calls.Add(1)
	if r.block != nil {
		<-r.block
	}
	return orchestration.Catalog{}, r.err
}

type fakeMessage struct {
	pahomqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func TestNewListener_Defaults(t *testing.T) {
	l := NewListener(Config{}, &countingRefresher{})
	assert.Equal(t, "lacylights/fleet/tick", l.cfg.Topic)
	assert.Equal(t, "lacylights-orchestrator", l.cfg.ClientID)
}

func TestStart_Validation(t *testing.T) {
	assert.ErrorIs(t, NewListener(Config{}, &countingRefresher{}).Start(), ErrNoBroker)
	assert.ErrorIs(t, NewListener(Config{Broker: "tcp://localhost:1883", QoS: 3}, &countingRefresher{}).Start(), ErrInvalidQoS)
}

func TestHandleMessage_RefreshesCatalog(t *testing.T) {
	r := &countingRefresher{}
	l := NewListener(Config{}, r)

	require.NoError(t, l.HandleMessage("lacylights/fleet/tick", []byte(`{}`)))
	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, int64(1), l.Received())
}

func TestHandleMessage_WrapsRefreshError(t *testing.T) {
	r := &countingRefresher{err: context.DeadlineExceeded}
	l := NewListener(Config{}, r)

	err := l.HandleMessage("t", nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHandleMessage_CoalescesConcurrentTicks(t *testing.T) {
	r := &countingRefresher{block: make(chan struct{})}
	l := NewListener(Config{}, r)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = l.HandleMessage("t", nil)
	}()
	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, time.Millisecond)

	// Three ticks during the running refresh collapse into one follow-up.
	for i := 0; i < 3; i++ {
		require.NoError(t, l.HandleMessage("t", nil))
	}
	close(r.block)
	wg.Wait()

	assert.Equal(t, int32(2), r.calls.Load())
	assert.Equal(t, int64(4), l.Received())
}

func TestWrapHandler_RecoversPanic(t *testing.T) {
	l := NewListener(Config{}, &countingRefresher{})
	h := l.wrapHandler(func(string, []byte) error { panic("boom") })

	assert.NotPanics(t, func() {
		h(nil, fakeMessage{topic: "t", payload: []byte("x")})
	})
}
