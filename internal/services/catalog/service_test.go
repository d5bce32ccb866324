package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/pubsub"
)

type fakeSource struct {
	mu       sync.Mutex
	effects  []string
	palettes []string
	err      error
	calls    atomic.Int32
}

func (f *fakeSource) Effects(context.Context) ([]string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.effects, nil
}

func (f *fakeSource) Palettes(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.palettes, nil
}

func (f *fakeSource) SequenceFiles(context.Context) ([]string, error) {
	return []string{"show.fseq"}, nil
}

func (f *fakeSource) Patterns(context.Context) ([]string, error) {
	return nil, errors.New("ddp disabled")
}

func (f *fakeSource) Presets(context.Context) ([]orchestration.PresetRef, error) {
	return []orchestration.PresetRef{{ID: 1, Name: "Warm"}}, nil
}

func TestRefresh_SwapsWholesaleAndBumpsVersion(t *testing.T) {
	src := &fakeSource{effects: []string{"Solid"}, palettes: []string{"Default"}}
	ps := pubsub.New()
	sub := ps.Subscribe(pubsub.TopicCatalogUpdated, "", 4)
	svc := NewService(src, ps)

	assert.Equal(t, int64(0), svc.Snapshot().Version)

	cat, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), cat.Version)
	assert.Equal(t, []string{"Solid"}, cat.Effects)
	assert.Equal(t, []string{"show.fseq"}, cat.SequenceFiles)
	assert.Empty(t, cat.Patterns, "failed source is left unloaded")
	assert.Contains(t, svc.Status().Failures, "patterns")

	select {
	case msg := <-sub.Channel:
		ev, ok := msg.(pubsub.Event)
		require.True(t, ok)
		assert.Equal(t, pubsub.TopicCatalogUpdated, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("expected a catalog update event")
	}

	src.mu.Lock()
	src.err = errors.New("timeout")
	src.mu.Unlock()

	cat, err = svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), cat.Version)
	assert.Empty(t, cat.Palettes, "a failed refresh does not keep stale entries")
}

func TestSnapshot_IsACopy(t *testing.T) {
	svc := NewService(&fakeSource{effects: []string{"Solid"}}, nil)
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	snap := svc.Snapshot()
	snap.Effects[0] = "Mutated"

	assert.Equal(t, "Solid", svc.Snapshot().Effects[0])
}

func TestRefresh_CancelledContext(t *testing.T) {
	svc := NewService(&fakeSource{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), svc.Snapshot().Version)
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{effects: []string{"Solid"}}
	svc := NewService(src, nil)

	svc.Start(context.Background(), 10*time.Millisecond)
	assert.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	svc.Stop()

	after := src.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, src.calls.Load(), "no refreshes after Stop")

	svc.Stop() // idempotent
}
