package orchestration

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lucsky/cuid"
)

// LookFields is the structured sub-builder for a look or state slot. Numeric
// inputs stay as text so half-typed values survive until the next compile.
type LookFields struct {
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Theme     string `json:"theme,omitempty" yaml:"theme,omitempty"`
	Effect    string `json:"effect,omitempty" yaml:"effect,omitempty"`
	Palette   string `json:"palette,omitempty" yaml:"palette,omitempty"`
	Color1    string `json:"color1,omitempty" yaml:"color1,omitempty"`
	Color2    string `json:"color2,omitempty" yaml:"color2,omitempty"`
	Color3    string `json:"color3,omitempty" yaml:"color3,omitempty"`
	Speed     string `json:"speed,omitempty" yaml:"speed,omitempty"`
	Intensity string `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	SegmentID string `json:"segment_id,omitempty" yaml:"segment_id,omitempty"`
	Reverse   bool   `json:"reverse" yaml:"reverse"`
	On        bool   `json:"on" yaml:"on"`
}

// DefaultLookFields returns an empty sub-builder with the segment switched on.
func DefaultLookFields() LookFields {
	return LookFields{On: true}
}

// UnmarshalJSON defaults On to true when the field is absent.
func (f *LookFields) UnmarshalJSON(data []byte) error {
	type plain LookFields
	v := plain(DefaultLookFields())
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = LookFields(v)
	return nil
}

// UnmarshalYAML defaults On to true when the field is absent.
func (f *LookFields) UnmarshalYAML(unmarshal func(any) error) error {
	type plain LookFields
	v := plain(DefaultLookFields())
	if err := unmarshal(&v); err != nil {
		return err
	}
	*f = LookFields(v)
	return nil
}

func (f LookFields) colors() [3]string {
	return [3]string{f.Color1, f.Color2, f.Color3}
}

// SlotMode says which representation of a look/state slot is authoritative.
type SlotMode string

const (
	SlotNone    SlotMode = "none"
	SlotBuilder SlotMode = "builder"
	SlotJSON    SlotMode = "json"
)

// Slot is a look or state value held either as structured fields or as
// hand-authored JSON text. The builder wins whenever UseBuilder is set.
type Slot struct {
	UseBuilder bool       `json:"use_builder" yaml:"use_builder"`
	Builder    LookFields `json:"builder" yaml:"builder"`
	JSON       string     `json:"json,omitempty" yaml:"json,omitempty"`
}

// Mode returns the representation compile will use.
func (s Slot) Mode() SlotMode {
	if s.UseBuilder {
		return SlotBuilder
	}
	if strings.TrimSpace(s.JSON) != "" {
		return SlotJSON
	}
	return SlotNone
}

// BuilderStep is one editable playlist position. Text fields mirror the
// compiled payload keys and are parsed on compile.
type BuilderStep struct {
	ID   string   `json:"id" yaml:"id,omitempty"`
	Kind StepKind `json:"kind" yaml:"kind"`

	// ImportedKind holds the original kind of a decompiled step whose kind
	// was missing or unknown.
	ImportedKind string `json:"imported_kind,omitempty" yaml:"imported_kind,omitempty"`

	DurationS    string `json:"duration_s,omitempty" yaml:"duration_s,omitempty"`
	TransitionMS string `json:"transition_ms,omitempty" yaml:"transition_ms,omitempty"`
	Brightness   string `json:"brightness,omitempty" yaml:"brightness,omitempty"`
	StaggerS     string `json:"stagger_s,omitempty" yaml:"stagger_s,omitempty"`
	StartDelayS  string `json:"start_delay_s,omitempty" yaml:"start_delay_s,omitempty"`
	Loop         bool   `json:"loop,omitempty" yaml:"loop,omitempty"`

	Look  Slot `json:"look" yaml:"look,omitempty"`
	State Slot `json:"state" yaml:"state,omitempty"`

	SequenceFile string `json:"sequence_file,omitempty" yaml:"sequence_file,omitempty"`
	PresetID     string `json:"preset_id,omitempty" yaml:"preset_id,omitempty"`
	Pattern      string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	FPS          string `json:"fps,omitempty" yaml:"fps,omitempty"`
	ParamsJSON   string `json:"params_json,omitempty" yaml:"params_json,omitempty"`

	LedFxSceneID     string `json:"ledfx_scene_id,omitempty" yaml:"ledfx_scene_id,omitempty"`
	LedFxSceneAction string `json:"ledfx_scene_action,omitempty" yaml:"ledfx_scene_action,omitempty"`
	LedFxEffect      string `json:"ledfx_effect,omitempty" yaml:"ledfx_effect,omitempty"`
	LedFxVirtualID   string `json:"ledfx_virtual_id,omitempty" yaml:"ledfx_virtual_id,omitempty"`
	LedFxConfigJSON  string `json:"ledfx_config_json,omitempty" yaml:"ledfx_config_json,omitempty"`
	LedFxBrightness  string `json:"ledfx_brightness,omitempty" yaml:"ledfx_brightness,omitempty"`

	// Extra keeps payload keys the builder has no field for. They are written
	// back verbatim on compile.
	Extra map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewStep returns a blank step of the given kind with a fresh id.
func NewStep(kind StepKind) BuilderStep {
	return BuilderStep{
		ID:   cuid.New(),
		Kind: kind,
		Look: Slot{
			UseBuilder: kind == KindLook || kind == KindCrossfade,
			Builder:    DefaultLookFields(),
		},
		State: Slot{
			UseBuilder: kind == KindState,
			Builder:    DefaultLookFields(),
		},
	}
}

// withKind returns a copy of s switched to kind. Common fields and the id are
// kept; everything kind-specific is reset.
func (s BuilderStep) withKind(kind StepKind) BuilderStep {
	next := NewStep(kind)
	next.ID = s.ID
	next.DurationS = s.DurationS
	next.TransitionMS = s.TransitionMS
	next.Brightness = s.Brightness
	next.StaggerS = s.StaggerS
	next.StartDelayS = s.StartDelayS
	next.Loop = s.Loop
	return next
}

func (s BuilderStep) clone() BuilderStep {
	if s.Extra != nil {
		extra := make(map[string]any, len(s.Extra))
		for k, v := range s.Extra {
			extra[k] = v
		}
		s.Extra = extra
	}
	return s
}

// Playlist is the editable form of an orchestration run.
type Playlist struct {
	Name  string `json:"name" yaml:"name"`
	Loop  bool   `json:"loop" yaml:"loop"`
	Scope Scope  `json:"scope" yaml:"scope"`
	// Targets is the comma-separated peer selector list; blank means every
	// configured peer. Only used for fleet scope.
	Targets     string        `json:"targets,omitempty" yaml:"targets,omitempty"`
	IncludeSelf bool          `json:"include_self,omitempty" yaml:"include_self,omitempty"`
	Steps       []BuilderStep `json:"steps" yaml:"steps"`
}

// ImportWarnings lists steps whose kind was guessed during decompile.
func (p *Playlist) ImportWarnings() []string {
	var out []string
	for i, s := range p.Steps {
		if s.ImportedKind == "" {
			continue
		}
		if s.ImportedKind == missingKind {
			out = append(out, fmt.Sprintf("Step %d: missing kind imported as %s", i+1, s.Kind))
			continue
		}
		out = append(out, fmt.Sprintf("Step %d: unknown kind %q imported as %s", i+1, s.ImportedKind, s.Kind))
	}
	return out
}

func (p *Playlist) index(id string) int {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return i
		}
	}
	return -1
}

func (p *Playlist) copyWithSteps(steps []BuilderStep) *Playlist {
	next := *p
	next.Steps = steps
	return &next
}

func (p *Playlist) cloneSteps() []BuilderStep {
	steps := make([]BuilderStep, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = s.clone()
	}
	return steps
}

// Step returns the step with the given id.
func (p *Playlist) Step(id string) (BuilderStep, bool) {
	i := p.index(id)
	if i < 0 {
		return BuilderStep{}, false
	}
	return p.Steps[i].clone(), true
}

// Append returns a copy of p with step added at the end. A missing id is
// generated.
func (p *Playlist) Append(step BuilderStep) *Playlist {
	if step.ID == "" {
		step.ID = cuid.New()
	}
	return p.copyWithSteps(append(p.cloneSteps(), step))
}

// Move returns a copy of p with the step moved to position to (0-based,
// clamped to the list bounds). Unknown ids leave the order unchanged.
func (p *Playlist) Move(id string, to int) *Playlist {
	steps := p.cloneSteps()
	from := p.index(id)
	if from < 0 {
		return p.copyWithSteps(steps)
	}
	if to < 0 {
		to = 0
	}
	if to >= len(steps) {
		to = len(steps) - 1
	}
	moved := steps[from]
	steps = append(steps[:from], steps[from+1:]...)
	steps = append(steps[:to], append([]BuilderStep{moved}, steps[to:]...)...)
	return p.copyWithSteps(steps)
}

// Duplicate returns a copy of p with a clone of the step inserted right after
// it under a new id.
func (p *Playlist) Duplicate(id string) *Playlist {
	steps := p.cloneSteps()
	i := p.index(id)
	if i < 0 {
		return p.copyWithSteps(steps)
	}
	dup := steps[i].clone()
	dup.ID = cuid.New()
	steps = append(steps[:i+1], append([]BuilderStep{dup}, steps[i+1:]...)...)
	return p.copyWithSteps(steps)
}

// Remove returns a copy of p without the step.
func (p *Playlist) Remove(id string) *Playlist {
	steps := p.cloneSteps()
	if i := p.index(id); i >= 0 {
		steps = append(steps[:i], steps[i+1:]...)
	}
	return p.copyWithSteps(steps)
}

// SetKind returns a copy of p with the step switched to kind.
func (p *Playlist) SetKind(id string, kind StepKind) *Playlist {
	steps := p.cloneSteps()
	if i := p.index(id); i >= 0 {
		steps[i] = steps[i].withKind(kind)
	}
	return p.copyWithSteps(steps)
}

// Replace returns a copy of p with the step of the same id swapped for step.
func (p *Playlist) Replace(step BuilderStep) *Playlist {
	steps := p.cloneSteps()
	if i := p.index(step.ID); i >= 0 {
		steps[i] = step.clone()
	}
	return p.copyWithSteps(steps)
}
