package orchestration

// StepKind identifies the action a playlist step performs.
type StepKind string

const (
	KindLook            StepKind = "look"
	KindState           StepKind = "state"
	KindCrossfade       StepKind = "crossfade"
	KindSequence        StepKind = "sequence"
	KindPreset          StepKind = "preset"
	KindDDP             StepKind = "ddp"
	KindBlackout        StepKind = "blackout"
	KindPause           StepKind = "pause"
	KindLedFxScene      StepKind = "ledfx_scene"
	KindLedFxEffect     StepKind = "ledfx_effect"
	KindLedFxBrightness StepKind = "ledfx_brightness"
)

// AllKinds lists every step kind in the order the editor offers them.
var AllKinds = []StepKind{
	KindLook,
	KindState,
	KindCrossfade,
	KindSequence,
	KindPreset,
	KindDDP,
	KindBlackout,
	KindPause,
	KindLedFxScene,
	KindLedFxEffect,
	KindLedFxBrightness,
}

var validKinds = func() map[StepKind]bool {
	m := make(map[StepKind]bool, len(AllKinds))
	for _, k := range AllKinds {
		m[k] = true
	}
	return m
}()

// Valid reports whether k is one of the known step kinds.
func (k StepKind) Valid() bool {
	return validKinds[k]
}

// ParseStepKind converts a raw kind string. The second result is false when
// the value is not a known kind.
func ParseStepKind(s string) (StepKind, bool) {
	k := StepKind(s)
	return k, k.Valid()
}

// usesLook reports whether the kind carries a look slot.
func (k StepKind) usesLook() bool {
	return k == KindLook || k == KindCrossfade
}

// usesState reports whether the kind carries a state slot.
func (k StepKind) usesState() bool {
	return k == KindState || k == KindCrossfade
}

// Scope selects where a playlist runs and how a preset is filed.
type Scope string

const (
	ScopeLocal     Scope = "local"
	ScopeFleet     Scope = "fleet"
	ScopeCrossfade Scope = "crossfade"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeLocal, ScopeFleet, ScopeCrossfade:
		return true
	}
	return false
}
