// Package export provides preset export functionality.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/bbernstein/lacylights-orchestrator/internal/database/models"
	"github.com/bbernstein/lacylights-orchestrator/internal/database/repositories"
)

// FormatVersion is the version written into every export file.
const FormatVersion = "1.0"

// ExportedPresets is a full preset export file.
type ExportedPresets struct {
	Version  string           `json:"version"`
	Metadata *ExportMetadata  `json:"metadata,omitempty"`
	Presets  []ExportedPreset `json:"presets"`
}

// ExportMetadata contains export metadata.
type ExportMetadata struct {
	ExportedAt  string  `json:"exportedAt"`
	Source      string  `json:"source,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ExportedPreset is one preset envelope. The payload is carried verbatim so
// presets that no longer decompile survive a round trip.
type ExportedPreset struct {
	OriginalID  string          `json:"originalId,omitempty"`
	Name        string          `json:"name"`
	Scope       string          `json:"scope"`
	Description *string         `json:"description,omitempty"`
	Tags        []string        `json:"tags"`
	Version     int             `json:"version,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
}

// ExportOptions narrows an export. Empty fields export everything.
type ExportOptions struct {
	Scope       string
	PresetIDs   []string
	Description *string
}

// ExportStats contains statistics about an export.
type ExportStats struct {
	PresetsCount int
	StepsCount   int
}

// Service handles preset export operations.
type Service struct {
	presetRepo *repositories.PresetRepository
	source     string
}

// NewService creates a new export service. source names this server in the
// export metadata.
func NewService(presetRepo *repositories.PresetRepository, source string) *Service {
	return &Service{presetRepo: presetRepo, source: source}
}

// ExportPresets exports the selected presets.
func (s *Service) ExportPresets(ctx context.Context, opts ExportOptions) (*ExportedPresets, *ExportStats, error) {
	var rows []models.Preset
	var err error
	if opts.Scope != "" {
		rows, err = s.presetRepo.FindByScope(ctx, opts.Scope)
	} else {
		rows, err = s.presetRepo.FindAll(ctx)
	}
	if err != nil {
		return nil, nil, err
	}

	var wanted map[string]bool
	if len(opts.PresetIDs) > 0 {
		wanted = make(map[string]bool, len(opts.PresetIDs))
		for _, id := range opts.PresetIDs {
			wanted[id] = true
		}
	}

	exported := &ExportedPresets{
		Version: FormatVersion,
		Metadata: &ExportMetadata{
			ExportedAt:  time.Now().UTC().Format(time.RFC3339),
			Source:      s.source,
			Description: opts.Description,
		},
		Presets: []ExportedPreset{},
	}
	stats := &ExportStats{}

	for _, row := range rows {
		if wanted != nil && !wanted[row.ID] {
			continue
		}

		tags := []string{}
		if row.Tags != "" {
			if err := json.Unmarshal([]byte(row.Tags), &tags); err != nil {
				log.Printf("Warning: failed to unmarshal tags for preset %s: %v", row.ID, err)
				tags = []string{}
			}
		}

		payload := json.RawMessage(row.Payload)
		if !json.Valid(payload) {
			log.Printf("Warning: preset %s has an unreadable payload; exporting null", row.ID)
			payload = json.RawMessage("null")
		}

		exported.Presets = append(exported.Presets, ExportedPreset{
			OriginalID:  row.ID,
			Name:        row.Name,
			Scope:       row.Scope,
			Description: row.Description,
			Tags:        tags,
			Version:     row.Version,
			Payload:     payload,
			CreatedAt:   row.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:   row.UpdatedAt.UTC().Format(time.RFC3339),
		})
		stats.PresetsCount++
		stats.StepsCount += countSteps(payload)
	}

	return exported, stats, nil
}

func countSteps(payload json.RawMessage) int {
	var body struct {
		Steps []json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return 0
	}
	return len(body.Steps)
}

// ToJSON converts the export to indented JSON.
func (e *ExportedPresets) ToJSON() (string, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseExportedPresets parses an export file. Comments and trailing commas
// are tolerated, and a bare array of envelopes is accepted as well.
func ParseExportedPresets(content string) (*ExportedPresets, error) {
	data := jsonc.ToJSON([]byte(content))

	var list []ExportedPreset
	if err := json.Unmarshal(data, &list); err == nil {
		return &ExportedPresets{Version: FormatVersion, Presets: list}, nil
	}

	var exported ExportedPresets
	if err := json.Unmarshal(data, &exported); err != nil {
		return nil, fmt.Errorf("invalid preset export: %w", err)
	}
	return &exported, nil
}
