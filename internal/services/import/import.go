// Package importservice provides preset import functionality.
package importservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bbernstein/lacylights-orchestrator/internal/database/models"
	"github.com/bbernstein/lacylights-orchestrator/internal/database/repositories"
	orch "github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/export"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/presets"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/pubsub"
)

// ErrUnknownStrategy is returned for a conflict strategy other than SKIP, REPLACE or RENAME.
var ErrUnknownStrategy = errors.New("unknown conflict strategy")

// ConflictStrategy determines how to handle a preset whose name and scope
// already exist.
type ConflictStrategy string

const (
	ConflictSkip    ConflictStrategy = "SKIP"
	ConflictReplace ConflictStrategy = "REPLACE"
	ConflictRename  ConflictStrategy = "RENAME"
)

// ImportStats contains statistics about an import.
type ImportStats struct {
	Created  int `json:"created"`
	Replaced int `json:"replaced"`
	Renamed  int `json:"renamed"`
	Skipped  int `json:"skipped"`
}

// ImportOptions configures the import behavior.
type ImportOptions struct {
	ConflictStrategy ConflictStrategy
}

// Service handles preset import operations.
type Service struct {
	presetRepo *repositories.PresetRepository
	pubsub     *pubsub.PubSub
}

// NewService creates a new import service. ps may be nil.
func NewService(presetRepo *repositories.PresetRepository, ps *pubsub.PubSub) *Service {
	return &Service{presetRepo: presetRepo, pubsub: ps}
}

// ImportPresets imports an export file. Envelopes without a name or without
// a JSON object payload are skipped. A payload that does not decompile into
// builder steps is stored as-is with a warning; the editor falls back to raw
// JSON for it.
func (s *Service) ImportPresets(ctx context.Context, content string, options ImportOptions) (*ImportStats, []string, error) {
	strategy := options.ConflictStrategy
	if strategy == "" {
		strategy = ConflictSkip
	}
	switch strategy {
	case ConflictSkip, ConflictReplace, ConflictRename:
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
	}

	exported, err := export.ParseExportedPresets(content)
	if err != nil {
		return nil, nil, err
	}

	stats := &ImportStats{}
	var warnings []string

	for i, env := range exported.Presets {
		label := fmt.Sprintf("Preset %d", i+1)
		name := strings.TrimSpace(env.Name)
		if name == "" {
			warnings = append(warnings, label+": missing name; skipped")
			stats.Skipped++
			continue
		}
		label = fmt.Sprintf("Preset %q", name)

		payload, ok := payloadObject(env.Payload)
		if !ok {
			warnings = append(warnings, label+": payload is not a JSON object; skipped")
			stats.Skipped++
			continue
		}
		if _, err := orch.Decompile(payload, orch.Catalog{}); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: payload does not decompile (%v); stored as-is", label, err))
		}

		scope := orch.Scope(env.Scope)
		if scope == "" {
			scope = orch.ScopeLocal
		}
		if !scope.Valid() {
			warnings = append(warnings, fmt.Sprintf("%s: unknown scope %q imported as local", label, env.Scope))
			scope = orch.ScopeLocal
		}

		tags := orch.ParseTags(strings.Join(env.Tags, ","))
		tagJSON, _ := json.Marshal(tags)
		version := env.Version
		if version < 1 {
			version = 1
		}
		row := &models.Preset{
			Name:        name,
			Scope:       string(scope),
			Description: env.Description,
			Tags:        string(tagJSON),
			Version:     version,
			Payload:     compact(env.Payload),
		}

		existing, err := s.presetRepo.FindByName(ctx, name, string(scope))
		if err != nil {
			return nil, nil, err
		}

		if existing != nil {
			switch strategy {
			case ConflictSkip:
				warnings = append(warnings, "Skipped existing preset: "+name)
				stats.Skipped++
				continue
			case ConflictReplace:
				row.ID = existing.ID
				row.CreatedAt = existing.CreatedAt
				row.Version = existing.Version + 1
				if err := s.presetRepo.Update(ctx, row); err != nil {
					return nil, nil, err
				}
				stats.Replaced++
				s.publish(row)
				continue
			case ConflictRename:
				renamed, err := s.uniqueName(ctx, name, string(scope))
				if err != nil {
					return nil, nil, err
				}
				row.Name = renamed
				stats.Renamed++
			}
		}

		if err := s.presetRepo.Create(ctx, row); err != nil {
			return nil, nil, err
		}
		stats.Created++
		s.publish(row)
	}

	return stats, warnings, nil
}

// uniqueName appends " (n)" until the name is free in scope.
func (s *Service) uniqueName(ctx context.Context, name, scope string) (string, error) {
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		existing, err := s.presetRepo.FindByName(ctx, candidate, scope)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
	}
}

func (s *Service) publish(row *models.Preset) {
	if s.pubsub == nil {
		return
	}
	s.pubsub.Publish(pubsub.TopicPresetUpdated, row.ID, pubsub.Event{
		Topic: pubsub.TopicPresetUpdated,
		Data:  presets.UpdatedEvent{ID: row.ID, Name: row.Name},
	})
}

func payloadObject(raw json.RawMessage) (map[string]any, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
