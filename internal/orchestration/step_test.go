package orchestration

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func threeStepPlaylist() *Playlist {
	p := &Playlist{Scope: ScopeLocal}
	for _, k := range []StepKind{KindLook, KindPause, KindBlackout} {
		p = p.Append(NewStep(k))
	}
	return p
}

func kinds(p *Playlist) []StepKind {
	out := make([]StepKind, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Kind
	}
	return out
}

func TestNewStep_AssignsUniqueIDs(t *testing.T) {
	a := NewStep(KindLook)
	b := NewStep(KindLook)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, SlotBuilder, a.Look.Mode())
	assert.True(t, a.Look.Builder.On)
}

func TestPlaylist_Move(t *testing.T) {
	p := threeStepPlaylist()
	blackout := p.Steps[2].ID

	moved := p.Move(blackout, 0)
	assert.Equal(t, []StepKind{KindBlackout, KindLook, KindPause}, kinds(moved))
	assert.Equal(t, []StepKind{KindLook, KindPause, KindBlackout}, kinds(p), "original is untouched")

	moved = p.Move(p.Steps[0].ID, 99)
	assert.Equal(t, []StepKind{KindPause, KindBlackout, KindLook}, kinds(moved))

	moved = p.Move("missing", 0)
	assert.Equal(t, kinds(p), kinds(moved))
}

func TestPlaylist_Duplicate(t *testing.T) {
	p := threeStepPlaylist()
	p.Steps[1].DurationS = "4"
	pauseID := p.Steps[1].ID

	dup := p.Duplicate(pauseID)
	require.Len(t, dup.Steps, 4)
	assert.Equal(t, []StepKind{KindLook, KindPause, KindPause, KindBlackout}, kinds(dup))
	assert.Equal(t, "4", dup.Steps[2].DurationS)
	assert.NotEqual(t, pauseID, dup.Steps[2].ID)
	assert.Len(t, p.Steps, 3)
}

func TestPlaylist_DuplicateCopiesExtra(t *testing.T) {
	p := &Playlist{}
	s := NewStep(KindBlackout)
	s.Extra = map[string]any{"zone": "a"}
	p = p.Append(s)

	dup := p.Duplicate(s.ID)
	dup.Steps[1].Extra["zone"] = "b"
	assert.Equal(t, "a", dup.Steps[0].Extra["zone"])
}

func TestPlaylist_Remove(t *testing.T) {
	p := threeStepPlaylist()
	removed := p.Remove(p.Steps[1].ID)
	assert.Equal(t, []StepKind{KindLook, KindBlackout}, kinds(removed))
}

func TestPlaylist_SetKindResetsKindFields(t *testing.T) {
	p := &Playlist{}
	s := NewStep(KindSequence)
	s.SequenceFile = "intro.fseq"
	s.DurationS = "12"
	s.TransitionMS = "300"
	p = p.Append(s)

	changed := p.SetKind(s.ID, KindDDP)
	got, ok := changed.Step(s.ID)
	require.True(t, ok)
	assert.Equal(t, KindDDP, got.Kind)
	assert.Equal(t, "", got.SequenceFile)
	assert.Equal(t, "12", got.DurationS)
	assert.Equal(t, "300", got.TransitionMS)
}

func TestPlaylist_Replace(t *testing.T) {
	p := threeStepPlaylist()
	s := p.Steps[1]
	s.DurationS = "9"

	replaced := p.Replace(s)
	assert.Equal(t, "9", replaced.Steps[1].DurationS)
	assert.Equal(t, "", p.Steps[1].DurationS)
}

func TestLookFields_OnDefaultsWhenDecoded(t *testing.T) {
	var slot Slot
	require.NoError(t, json.Unmarshal([]byte(`{"use_builder":true,"builder":{"effect":"Solid"}}`), &slot))
	assert.True(t, slot.Builder.On)

	require.NoError(t, json.Unmarshal([]byte(`{"use_builder":true,"builder":{"on":false}}`), &slot))
	assert.False(t, slot.Builder.On)

	var fromYAML Slot
	require.NoError(t, yaml.Unmarshal([]byte("use_builder: true\nbuilder:\n  effect: Solid\n"), &fromYAML))
	assert.True(t, fromYAML.Builder.On)
	assert.Equal(t, "Solid", fromYAML.Builder.Effect)
}

func TestSlot_Mode(t *testing.T) {
	assert.Equal(t, SlotNone, Slot{}.Mode())
	assert.Equal(t, SlotNone, Slot{JSON: "  \n"}.Mode())
	assert.Equal(t, SlotJSON, Slot{JSON: "{}"}.Mode())
	assert.Equal(t, SlotBuilder, Slot{UseBuilder: true, JSON: "{}"}.Mode())
}

func TestStepKind_Valid(t *testing.T) {
	for _, k := range AllKinds {
		assert.True(t, k.Valid(), string(k))
	}
	_, ok := ParseStepKind("laser")
	assert.False(t, ok)
	assert.True(t, ScopeCrossfade.Valid())
	assert.False(t, Scope("x").Valid())
}
