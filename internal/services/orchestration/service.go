// Package orchestration compiles builder playlists against the live catalog
// and submits them to the execution engine.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log"

	orch "github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/pubsub"
)

// ErrInvalidPlaylist wraps the validation errors of a refused submission.
var ErrInvalidPlaylist = errors.New("playlist has validation errors")

// CatalogProvider hands out catalog snapshots. *catalog.Service satisfies it.
type CatalogProvider interface {
	Snapshot() orch.Catalog
}

// Engine is the part of the engine client the service needs.
type Engine interface {
	Start(ctx context.Context, scope orch.Scope, payload orch.Payload) error
	LastApplied(ctx context.Context) (orch.LastApplied, error)
}

// StartedEvent is published after a successful submission.
type StartedEvent struct {
	Scope    orch.Scope `json:"scope"`
	Name     string     `json:"name,omitempty"`
	Steps    int        `json:"steps"`
	Estimate string     `json:"estimate"`
}

// Service ties compile, submission and seeding together.
type Service struct {
	catalog CatalogProvider
	engine  Engine
	pubsub  *pubsub.PubSub
}

// NewService creates a new orchestration service. ps may be nil.
func NewService(catalog CatalogProvider, engine Engine, ps *pubsub.PubSub) *Service {
	return &Service{catalog: catalog, engine: engine, pubsub: ps}
}

// Compile compiles p against the current catalog snapshot.
func (s *Service) Compile(p *orch.Playlist) orch.Result {
	return orch.Compile(p, s.catalog.Snapshot())
}

// Start compiles p and submits it. Nothing is sent while any validation
// error exists; the returned error then wraps both ErrInvalidPlaylist and
// the orch.ValidationErrors.
func (s *Service) Start(ctx context.Context, p *orch.Playlist) (orch.Result, error) {
	res := s.Compile(p)
	if err := res.Err(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrInvalidPlaylist, err)
	}

	scope := p.Scope
	if scope == "" {
		scope = orch.ScopeLocal
	}
	if err := s.engine.Start(ctx, scope, res.Payload); err != nil {
		return res, fmt.Errorf("failed to start playlist: %w", err)
	}

	log.Printf("Started %s playlist %q: %d steps, %s", scope, res.Payload.Name, len(res.Payload.Steps), res.Estimate)
	if s.pubsub != nil {
		s.pubsub.Publish(pubsub.TopicOrchestrationStarted, string(scope), pubsub.Event{
			Topic: pubsub.TopicOrchestrationStarted,
			Data: StartedEvent{
				Scope:    scope,
				Name:     res.Payload.Name,
				Steps:    len(res.Payload.Steps),
				Estimate: res.Estimate.String(),
			},
		})
	}
	return res, nil
}

// LastApplied returns the engine's live configuration.
func (s *Service) LastApplied(ctx context.Context) (orch.LastApplied, error) {
	live, err := s.engine.LastApplied(ctx)
	if err != nil {
		return orch.LastApplied{}, fmt.Errorf("failed to read last applied: %w", err)
	}
	return live, nil
}

// Seed fills step from the live configuration.
func (s *Service) Seed(ctx context.Context, step orch.BuilderStep) (orch.BuilderStep, error) {
	live, err := s.LastApplied(ctx)
	if err != nil {
		return step, err
	}
	return orch.SeedFromLastApplied(step, live), nil
}

// SeedStep seeds the step with the given id in p and returns the new playlist.
func (s *Service) SeedStep(ctx context.Context, p *orch.Playlist, id string) (*orch.Playlist, error) {
	step, ok := p.Step(id)
	if !ok {
		return p, fmt.Errorf("step %s not found", id)
	}
	seeded, err := s.Seed(ctx, step)
	if err != nil {
		return p, err
	}
	return p.Replace(seeded), nil
}
