// Package catalog keeps the current engine catalog snapshot and refreshes it.
package catalog

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/pubsub"
)

// Source fetches the catalog tables. *engine.Client satisfies it.
type Source interface {
	Effects(ctx context.Context) ([]string, error)
	Palettes(ctx context.Context) ([]string, error)
	SequenceFiles(ctx context.Context) ([]string, error)
	Patterns(ctx context.Context) ([]string, error)
	Presets(ctx context.Context) ([]orchestration.PresetRef, error)
}

// Status summarizes the last refresh.
type Status struct {
	Version   int64             `json:"version"`
	FetchedAt time.Time         `json:"fetchedAt"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// Service holds the catalog snapshot. Readers always get a deep copy, and a
// refresh replaces the whole snapshot at once.
type Service struct {
	source Source
	pubsub *pubsub.PubSub

	mu       sync.RWMutex
	current  orchestration.Catalog
	failures map[string]string

	refreshMu sync.Mutex
	stopCh    chan struct{}
	doneCh    chan struct{}
	now       func() time.Time
}

// NewService creates a catalog service. ps may be nil.
func NewService(source Source, ps *pubsub.PubSub) *Service {
	return &Service{
		source: source,
		pubsub: ps,
		now:    time.Now,
	}
}

// Snapshot returns a copy of the current catalog.
func (s *Service) Snapshot() orchestration.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Status returns the version and per-source failures of the last refresh.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{Version: s.current.Version, FetchedAt: s.current.FetchedAt}
	if len(s.failures) > 0 {
		st.Failures = make(map[string]string, len(s.failures))
		for k, v := range s.failures {
			st.Failures[k] = v
		}
	}
	return st
}

// Refresh fetches every table and swaps the snapshot. A table whose fetch
// fails is left empty, which compile treats as not loaded. Refresh only
// returns an error when the context is done.
func (s *Service) Refresh(ctx context.Context) (orchestration.Catalog, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	var next orchestration.Catalog
	failures := map[string]string{}

	fetchNames := func(name string, fetch func(context.Context) ([]string, error), dst *[]string) {
		list, err := fetch(ctx)
		if err != nil {
			failures[name] = err.Error()
			log.Printf("Warning: catalog %s unavailable: %v", name, err)
			return
		}
		*dst = list
	}
	fetchNames("effects", s.source.Effects, &next.Effects)
	fetchNames("palettes", s.source.Palettes, &next.Palettes)
	fetchNames("sequenceFiles", s.source.SequenceFiles, &next.SequenceFiles)
	fetchNames("patterns", s.source.Patterns, &next.Patterns)
	if presets, err := s.source.Presets(ctx); err != nil {
		failures["presets"] = err.Error()
		log.Printf("Warning: catalog presets unavailable: %v", err)
	} else {
		next.Presets = presets
	}

	if err := ctx.Err(); err != nil {
		return orchestration.Catalog{}, err
	}

	s.mu.Lock()
	next.Version = s.current.Version + 1
	next.FetchedAt = s.now()
	s.current = next
	s.failures = failures
	s.mu.Unlock()

	if s.pubsub != nil {
		s.pubsub.PublishAll(pubsub.TopicCatalogUpdated, pubsub.Event{
			Topic: pubsub.TopicCatalogUpdated,
			Data:  s.Status(),
		})
	}

	return next.Clone(), nil
}

// Start refreshes once and then every interval until Stop. An interval of
// zero or less only performs the initial refresh.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	if _, err := s.Refresh(ctx); err != nil {
		log.Printf("Warning: initial catalog refresh failed: %v", err)
	}
	if interval <= 0 {
		return
	}

	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return
	}
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	s.stopCh = stopCh
	s.doneCh = doneCh
	s.mu.Unlock()

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				if _, err := s.Refresh(ctx); err != nil {
					log.Printf("Warning: catalog refresh failed: %v", err)
				}
			}
		}
	}()
}

// Stop ends the periodic refresh loop and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}
