package orchestration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orch "github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/pubsub"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/testutil"
)

type staticCatalog struct{ cat orch.Catalog }

func (s staticCatalog) Snapshot() orch.Catalog { return s.cat.Clone() }

type fakeEngine struct {
	started  []orch.Payload
	scopes   []orch.Scope
	startErr error
	live     orch.LastApplied
	liveErr  error
}

func (f *fakeEngine) Start(_ context.Context, scope orch.Scope, payload orch.Payload) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.scopes = append(f.scopes, scope)
	f.started = append(f.started, payload)
	return nil
}

func (f *fakeEngine) LastApplied(context.Context) (orch.LastApplied, error) {
	return f.live, f.liveErr
}

func newService(eng *fakeEngine, ps *pubsub.PubSub) *Service {
	return NewService(staticCatalog{cat: testutil.Catalog()}, eng, ps)
}

func TestStart_SubmitsValidPlaylist(t *testing.T) {
	eng := &fakeEngine{}
	ps := pubsub.New()
	sub := ps.Subscribe(pubsub.TopicOrchestrationStarted, "local", 1)
	svc := newService(eng, ps)

	res, err := svc.Start(context.Background(), testutil.BlackoutPlaylist("Night"))
	require.NoError(t, err)
	require.Len(t, eng.started, 1)
	assert.Equal(t, orch.ScopeLocal, eng.scopes[0])
	assert.Equal(t, res.Payload, eng.started[0])

	select {
	case msg := <-sub.Channel:
		ev := msg.(pubsub.Event)
		started := ev.Data.(StartedEvent)
		assert.Equal(t, "Night", started.Name)
		assert.Equal(t, 1, started.Steps)
	case <-time.After(time.Second):
		t.Fatal("expected a started event")
	}
}

func TestStart_RefusesInvalidPlaylist(t *testing.T) {
	eng := &fakeEngine{}
	svc := newService(eng, nil)

	p := (&orch.Playlist{Scope: orch.ScopeLocal}).Append(orch.NewStep(orch.KindPause))
	res, err := svc.Start(context.Background(), p)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPlaylist)
	var verrs orch.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "Step 1: duration_s is required for pause", verrs.Error())
	assert.Len(t, res.Errors, 1)
	assert.Empty(t, eng.started, "nothing is sent while errors exist")
}

func TestStart_EngineFailure(t *testing.T) {
	eng := &fakeEngine{startErr: errors.New("connection refused")}
	svc := newService(eng, nil)

	_, err := svc.Start(context.Background(), testutil.BlackoutPlaylist("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.NotErrorIs(t, err, ErrInvalidPlaylist)
}

func TestSeedStep(t *testing.T) {
	eng := &fakeEngine{live: orch.LastApplied{Sequence: " show.fseq "}}
	svc := newService(eng, nil)

	step := orch.NewStep(orch.KindSequence)
	p := (&orch.Playlist{}).Append(step)

	seeded, err := svc.SeedStep(context.Background(), p, step.ID)
	require.NoError(t, err)
	got, ok := seeded.Step(step.ID)
	require.True(t, ok)
	assert.Equal(t, "show.fseq", got.SequenceFile)

	_, err = svc.SeedStep(context.Background(), p, "missing")
	assert.Error(t, err)

	eng.liveErr = errors.New("offline")
	_, err = svc.Seed(context.Background(), step)
	assert.ErrorContains(t, err, "offline")
}
