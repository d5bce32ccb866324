package orchestration

import "strings"

// LastApplied is the engine's report of what is currently live.
type LastApplied struct {
	Look     map[string]any `json:"look,omitempty"`
	Sequence string         `json:"sequence,omitempty"`
}

// SeedFromLastApplied fills a step from the live configuration: the look or
// state slot of look/state/crossfade steps from the live look, and
// sequence_file of sequence steps. Other kinds are returned unchanged.
func SeedFromLastApplied(step BuilderStep, live LastApplied) BuilderStep {
	step = step.clone()
	switch step.Kind {
	case KindLook, KindCrossfade:
		if live.Look != nil {
			if slot, ok := decompileSlot(live.Look, false); ok {
				step.Look = slot
			}
		}
	case KindState:
		if live.Look != nil {
			if slot, ok := decompileSlot(live.Look, true); ok {
				step.State = slot
			}
		}
	case KindSequence:
		if s := strings.TrimSpace(live.Sequence); s != "" {
			step.SequenceFile = s
		}
	}
	return step
}
