// Package presets stores compiled playlists as named presets and restores
// them into the builder.
package presets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bbernstein/lacylights-orchestrator/internal/database/models"
	"github.com/bbernstein/lacylights-orchestrator/internal/database/repositories"
	orch "github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/pubsub"
)

var (
	// ErrNotFound is returned when no preset has the requested id.
	ErrNotFound = errors.New("preset not found")
	// ErrNameRequired is returned when saving a preset without a name.
	ErrNameRequired = errors.New("preset name is required")
	// ErrInvalidScope is returned for a scope other than local, fleet or crossfade.
	ErrInvalidScope = errors.New("preset scope must be local, fleet or crossfade")
	// ErrInvalidPlaylist wraps the validation errors of a refused save.
	ErrInvalidPlaylist = errors.New("playlist has validation errors")
)

// CatalogProvider hands out catalog snapshots.
type CatalogProvider interface {
	Snapshot() orch.Catalog
}

// SaveInput is everything needed to store a preset. A non-empty ID updates
// the existing preset and bumps its version.
type SaveInput struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Scope       orch.Scope     `json:"scope"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Playlist    *orch.Playlist `json:"playlist"`
}

// UpdatedEvent is published when a preset is saved or deleted.
type UpdatedEvent struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Service handles preset persistence.
type Service struct {
	repo    *repositories.PresetRepository
	catalog CatalogProvider
	pubsub  *pubsub.PubSub
}

// NewService creates a new preset service. ps may be nil.
func NewService(repo *repositories.PresetRepository, catalog CatalogProvider, ps *pubsub.PubSub) *Service {
	return &Service{repo: repo, catalog: catalog, pubsub: ps}
}

// Save compiles the playlist and stores it. Nothing is written while any
// validation error exists.
func (s *Service) Save(ctx context.Context, in SaveInput) (*orch.Preset, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if in.Playlist == nil {
		return nil, fmt.Errorf("%w: no playlist", ErrInvalidPlaylist)
	}
	scope := in.Scope
	if scope == "" {
		scope = in.Playlist.Scope
	}
	if scope == "" {
		scope = orch.ScopeLocal
	}
	if !scope.Valid() {
		return nil, ErrInvalidScope
	}

	playlist := *in.Playlist
	playlist.Scope = scope
	res := orch.Compile(&playlist, s.catalog.Snapshot())
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPlaylist, err)
	}

	preset := orch.Preset{
		ID:          in.ID,
		Name:        name,
		Scope:       scope,
		Description: strings.TrimSpace(in.Description),
		Tags:        normalizeTags(in.Tags),
		Version:     1,
		Payload:     orch.ToPresetPayload(res.Payload, scope),
	}

	var existing *models.Preset
	if in.ID != "" {
		var err error
		existing, err = s.repo.FindByID(ctx, in.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up preset: %w", err)
		}
		if existing == nil {
			return nil, ErrNotFound
		}
		preset.Version = existing.Version + 1
	}

	row, err := ToModel(preset)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		row.CreatedAt = existing.CreatedAt
		err = s.repo.Update(ctx, row)
	} else {
		err = s.repo.Create(ctx, row)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save preset: %w", err)
	}

	preset.ID = row.ID
	log.Printf("Saved %s preset %q (v%d)", preset.Scope, preset.Name, preset.Version)
	s.publish(UpdatedEvent{ID: preset.ID, Name: preset.Name})
	return &preset, nil
}

// Get returns one preset.
func (s *Service) Get(ctx context.Context, id string) (*orch.Preset, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get preset: %w", err)
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return FromModel(row)
}

// List returns every preset, or only those filed under scope when it is
// non-empty. Rows whose payload is not valid JSON are skipped with a warning.
func (s *Service) List(ctx context.Context, scope orch.Scope) ([]orch.Preset, error) {
	var rows []models.Preset
	var err error
	if scope == "" {
		rows, err = s.repo.FindAll(ctx)
	} else {
		rows, err = s.repo.FindByScope(ctx, string(scope))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list presets: %w", err)
	}

	out := make([]orch.Preset, 0, len(rows))
	for i := range rows {
		p, err := FromModel(&rows[i])
		if err != nil {
			log.Printf("Warning: skipping preset %s: %v", rows[i].ID, err)
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// Delete removes a preset.
func (s *Service) Delete(ctx context.Context, id string) error {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get preset: %w", err)
	}
	if row == nil {
		return ErrNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete preset: %w", err)
	}
	s.publish(UpdatedEvent{ID: id, Name: row.Name, Deleted: true})
	return nil
}

// Load restores a preset into the builder, or into the raw JSON editor when
// its payload is not a step list.
func (s *Service) Load(ctx context.Context, id string) (*orch.PresetDraft, error) {
	preset, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	draft, err := orch.FromPreset(*preset, s.catalog.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to decompile preset %s: %w", id, err)
	}
	return draft, nil
}

func (s *Service) publish(ev UpdatedEvent) {
	if s.pubsub == nil {
		return
	}
	s.pubsub.Publish(pubsub.TopicPresetUpdated, ev.ID, pubsub.Event{
		Topic: pubsub.TopicPresetUpdated,
		Data:  ev,
	})
}

func normalizeTags(tags []string) []string {
	return orch.ParseTags(strings.Join(tags, ","))
}

// FromModel converts a stored row into a preset. A payload that is not a
// playlist is kept verbatim.
func FromModel(row *models.Preset) (*orch.Preset, error) {
	preset := &orch.Preset{
		ID:      row.ID,
		Name:    row.Name,
		Scope:   orch.Scope(row.Scope),
		Version: row.Version,
	}
	if err := preset.SetPayload([]byte(row.Payload)); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	tags := []string{}
	if row.Tags != "" {
		if err := json.Unmarshal([]byte(row.Tags), &tags); err != nil {
			return nil, fmt.Errorf("invalid tags: %w", err)
		}
	}
	preset.Tags = tags
	if row.Description != nil {
		preset.Description = *row.Description
	}
	return preset, nil
}

// ToModel converts a preset into a row for storage.
func ToModel(p orch.Preset) (*models.Preset, error) {
	payload, err := p.PayloadJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	version := p.Version
	if version < 1 {
		version = 1
	}
	row := &models.Preset{
		ID:      p.ID,
		Name:    p.Name,
		Scope:   string(p.Scope),
		Tags:    string(tagJSON),
		Version: version,
		Payload: string(payload),
	}
	if p.Description != "" {
		desc := p.Description
		row.Description = &desc
	}
	return row, nil
}
