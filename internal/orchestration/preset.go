package orchestration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Preset is the stored envelope around a compiled playlist.
type Preset struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Scope       Scope    `json:"scope"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags"`
	Version     int      `json:"version,omitempty"`
	Payload     Payload  `json:"-"`

	// Raw holds the stored payload verbatim when it is not a step list,
	// for example one imported from another tool. Payload is empty then.
	Raw json.RawMessage `json:"-"`
}

// RawMode reports whether the preset can only be edited as raw JSON.
func (p Preset) RawMode() bool {
	return len(p.Raw) > 0
}

// MarshalJSON writes the payload verbatim for raw presets.
func (p Preset) MarshalJSON() ([]byte, error) {
	type envelope Preset
	var payload any = p.Payload
	if p.RawMode() {
		payload = p.Raw
	}
	return json.Marshal(struct {
		envelope
		Payload any  `json:"payload"`
		RawMode bool `json:"rawMode,omitempty"`
	}{envelope(p), payload, p.RawMode()})
}

// SetPayload stores payload text on the preset. Text that is valid JSON but
// not a playlist is kept in Raw; unreadable text is an error.
func (p *Preset) SetPayload(data []byte) error {
	p.Payload = Payload{}
	p.Raw = nil
	err := json.Unmarshal(data, &p.Payload)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotPlaylist), errors.Is(err, errNotObject):
		p.Payload = Payload{}
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
		}
		p.Raw = json.RawMessage(buf.Bytes())
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
}

// PayloadJSON returns the payload as it should be stored.
func (p Preset) PayloadJSON() ([]byte, error) {
	if p.RawMode() {
		return append([]byte(nil), p.Raw...), nil
	}
	return json.Marshal(p.Payload)
}

// PresetDraft is the editor state restored from a preset. A raw preset has
// no playlist; RawJSON carries its pretty-printed payload instead.
type PresetDraft struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Scope       Scope     `json:"scope"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Version     int       `json:"version"`
	Playlist    *Playlist `json:"playlist,omitempty"`
	RawMode     bool      `json:"rawMode"`
	RawJSON     string    `json:"rawJson,omitempty"`
}

// TagsText renders the tags the way the editor's tag field shows them.
func (d *PresetDraft) TagsText() string {
	return strings.Join(d.Tags, ", ")
}

// ParseTags splits a comma-separated tag field, dropping blanks and
// duplicates while keeping order.
func ParseTags(raw string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, part := range strings.Split(raw, ",") {
		t := strings.TrimSpace(part)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// ToPresetPayload prepares a compiled payload for storage under scope.
// Fleet targeting is stripped from anything that is not a fleet preset.
func ToPresetPayload(p Payload, scope Scope) Payload {
	out := p
	out.Steps = append([]StepPayload(nil), p.Steps...)
	if scope != ScopeFleet {
		out.Fleet = false
		out.Targets = nil
		out.IncludeSelf = false
	} else if p.Targets != nil {
		out.Targets = append([]string(nil), p.Targets...)
	}
	return out
}

// FromPreset decompiles a preset's payload and restores its envelope fields
// into the editor. The preset's scope wins over what the payload implies.
// Raw presets come back in raw mode with the payload text to edit.
func FromPreset(preset Preset, catalog Catalog) (*PresetDraft, error) {
	tags := preset.Tags
	if tags == nil {
		tags = []string{}
	}
	draft := &PresetDraft{
		ID:          preset.ID,
		Name:        preset.Name,
		Scope:       preset.Scope,
		Description: preset.Description,
		Tags:        append([]string(nil), tags...),
		Version:     preset.Version,
	}

	if preset.RawMode() {
		raw, err := FormatJSON(preset.Raw)
		if err != nil {
			return nil, err
		}
		if !draft.Scope.Valid() {
			draft.Scope = ScopeLocal
		}
		draft.RawMode = true
		draft.RawJSON = raw
		return draft, nil
	}

	playlist, err := Decompile(preset.Payload.Map(), catalog)
	if err != nil {
		return nil, err
	}
	scope := preset.Scope
	if !scope.Valid() {
		scope = playlist.Scope
	}
	playlist.Scope = scope
	if scope != ScopeFleet {
		playlist.Targets = ""
		playlist.IncludeSelf = false
	}
	if playlist.Name == "" {
		playlist.Name = preset.Name
	}
	draft.Scope = scope
	draft.Playlist = playlist
	return draft, nil
}
