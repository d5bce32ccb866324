package orchestration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// missingKind marks a decompiled step whose payload had no kind at all.
const missingKind = "(none)"

// fallbackKind is used for steps whose kind is missing or unknown. Compile
// flags such steps until the operator confirms a kind.
const fallbackKind = KindLook

// DecompileJSON parses payload text (comments and trailing commas allowed)
// and decompiles it.
func DecompileJSON(data []byte, catalog Catalog) (*Playlist, error) {
	v, err := decodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotPlaylist
	}
	return Decompile(m, catalog)
}

// Decompile rebuilds an editable playlist from a payload. It returns
// ErrNotPlaylist when the payload is not a step list, in which case the
// caller should offer raw JSON editing instead. Look and state objects are
// only offered to the structured builder when compiling them against catalog
// gives back the same object.
func Decompile(payload map[string]any, catalog Catalog) (*Playlist, error) {
	if payload == nil {
		return nil, ErrNilPayload
	}
	rawSteps, ok := stepList(payload["steps"])
	if !ok {
		return nil, ErrNotPlaylist
	}

	p := &Playlist{Scope: ScopeLocal, Steps: make([]BuilderStep, 0, len(rawSteps))}
	if name, ok := payload["name"].(string); ok {
		p.Name = name
	}
	p.Loop, _ = payload["loop"].(bool)

	_, hasTargets := payload["targets"]
	_, hasSelf := payload["include_self"]
	fleet := hasTargets || hasSelf
	if fleet {
		p.Scope = ScopeFleet
		if list, ok := payload["targets"].([]any); ok {
			var targets []string
			for _, t := range list {
				if s, ok := scalarText(t); ok {
					targets = append(targets, s)
				}
			}
			p.Targets = FormatTargets(targets)
		}
		p.IncludeSelf, _ = payload["include_self"].(bool)
	}

	for _, raw := range rawSteps {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, ErrNotPlaylist
		}
		p.Steps = append(p.Steps, decompileStep(obj, fleet, catalog))
	}
	return p, nil
}

func stepList(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out, true
	case []StepPayload:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = map[string]any(m)
		}
		return out, true
	}
	return nil, false
}

func decompileStep(m map[string]any, fleet bool, catalog Catalog) BuilderStep {
	rawKind, present := m["kind"]
	kindText, _ := rawKind.(string)
	kind, ok := ParseStepKind(kindText)
	importedKind := ""
	if !ok {
		kind = fallbackKind
		importedKind = missingKind
		if present && kindText != "" {
			importedKind = kindText
		} else if present && rawKind != nil {
			importedKind = fmt.Sprint(rawKind)
		}
	}

	step := NewStep(kind)
	step.ImportedKind = importedKind
	step.Look.UseBuilder = false
	step.State.UseBuilder = false

	extra := map[string]any{}
	keep := func(key string, v any) { extra[key] = v }

	for key, v := range m {
		switch key {
		case "kind":
		case "duration_s":
			setNumber(&step.DurationS, key, v, keep)
		case "transition_ms":
			setNumber(&step.TransitionMS, key, v, keep)
		case "brightness":
			setNumber(&step.Brightness, key, v, keep)
		case "stagger_s", "start_delay_s":
			target := &step.StaggerS
			if key == "start_delay_s" {
				target = &step.StartDelayS
			}
			if fleet {
				setNumber(target, key, v, keep)
			} else {
				keep(key, v)
			}
		case "loop":
			if b, ok := v.(bool); ok && b {
				step.Loop = true
			} else {
				keep(key, v)
			}
		case "look":
			if slot, ok := decompileExactSlot(v, false, catalog); ok && kind.usesLook() {
				step.Look = slot
			} else {
				keep(key, v)
			}
		case "state":
			if slot, ok := decompileExactSlot(v, true, catalog); ok && kind.usesState() {
				step.State = slot
			} else {
				keep(key, v)
			}
		case "sequence_file":
			setStringFor(kind == KindSequence, &step.SequenceFile, key, v, keep)
		case "preset_id":
			setNumberFor(kind == KindPreset, &step.PresetID, key, v, keep)
		case "pattern":
			setScalarFor(kind == KindDDP, &step.Pattern, key, v, keep)
		case "fps":
			setNumberFor(kind == KindDDP, &step.FPS, key, v, keep)
		case "params":
			setObjectFor(kind == KindDDP, &step.ParamsJSON, key, v, keep)
		case "ledfx_scene_id":
			setScalarFor(kind == KindLedFxScene, &step.LedFxSceneID, key, v, keep)
		case "ledfx_scene_action":
			setStringFor(kind == KindLedFxScene, &step.LedFxSceneAction, key, v, keep)
		case "ledfx_effect":
			setStringFor(kind == KindLedFxEffect, &step.LedFxEffect, key, v, keep)
		case "ledfx_virtual_id":
			setScalarFor(kind == KindLedFxEffect || kind == KindLedFxBrightness, &step.LedFxVirtualID, key, v, keep)
		case "ledfx_config":
			setObjectFor(kind == KindLedFxEffect, &step.LedFxConfigJSON, key, v, keep)
		case "ledfx_brightness":
			setNumberFor(kind == KindLedFxBrightness, &step.LedFxBrightness, key, v, keep)
		default:
			keep(key, v)
		}
	}

	if len(extra) > 0 {
		step.Extra = extra
	}
	return step
}

func setNumber(dst *string, key string, v any, keep func(string, any)) {
	setNumberFor(true, dst, key, v, keep)
}

func setNumberFor(applies bool, dst *string, key string, v any, keep func(string, any)) {
	if f, ok := toFloat(v); ok && applies {
		*dst = numberText(v, f)
		return
	}
	keep(key, v)
}

func setStringFor(applies bool, dst *string, key string, v any, keep func(string, any)) {
	if s, ok := v.(string); ok && applies {
		*dst = s
		return
	}
	keep(key, v)
}

func setScalarFor(applies bool, dst *string, key string, v any, keep func(string, any)) {
	if s, ok := scalarText(v); ok && applies {
		*dst = s
		return
	}
	keep(key, v)
}

func setObjectFor(applies bool, dst *string, key string, v any, keep func(string, any)) {
	if obj, ok := v.(map[string]any); ok && applies {
		*dst = prettyJSON(obj)
		return
	}
	keep(key, v)
}

// decompileSlot turns a look or state object into a slot. The structured
// builder is used only when every key is understood; anything else is kept
// as pretty-printed JSON so no data is lost. ok is false for non-objects.
func decompileSlot(v any, state bool) (Slot, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Slot{}, false
	}
	var fields LookFields
	var recognized bool
	if state {
		fields, recognized = recognizeState(obj)
	} else {
		fields, recognized = recognizeLook(obj)
	}
	if recognized {
		return Slot{UseBuilder: true, Builder: fields}, true
	}
	return Slot{Builder: DefaultLookFields(), JSON: prettyJSON(obj)}, true
}

// decompileExactSlot is decompileSlot with one more condition on the builder:
// the recognized fields must compile back to the identical object. Defaults
// the builder would add (a segment, seg.id, seg.on) and names the catalog
// would reject keep the slot as JSON.
func decompileExactSlot(v any, state bool, catalog Catalog) (Slot, bool) {
	slot, ok := decompileSlot(v, state)
	if !ok || !slot.UseBuilder {
		return slot, ok
	}
	obj := v.(map[string]any)
	if rebuildsExactly(obj, slot.Builder, state, catalog) {
		return slot, true
	}
	return Slot{Builder: DefaultLookFields(), JSON: prettyJSON(obj)}, true
}

func rebuildsExactly(obj map[string]any, f LookFields, state bool, catalog Catalog) bool {
	c := &collector{}
	var built map[string]any
	if state {
		built = buildState(c, "state", f, catalog)
	} else {
		built = buildLook(c, "look", f, catalog)
	}
	if len(c.errs) > 0 {
		return false
	}
	want, err := json.Marshal(obj)
	if err != nil {
		return false
	}
	got, err := json.Marshal(built)
	return err == nil && bytes.Equal(want, got)
}

func recognizeLook(obj map[string]any) (LookFields, bool) {
	f := DefaultLookFields()
	if len(obj) == 0 {
		return f, false
	}
	for key, v := range obj {
		var ok bool
		switch key {
		case "name":
			f.Name, ok = v.(string)
		case "theme":
			f.Theme, ok = v.(string)
		case "effect":
			f.Effect, ok = scalarText(v)
		case "palette":
			f.Palette, ok = scalarText(v)
		case "seg":
			seg, isObj := v.(map[string]any)
			ok = isObj && recognizeSegment(seg, false, &f)
		}
		if !ok {
			return f, false
		}
	}
	return f, true
}

func recognizeState(obj map[string]any) (LookFields, bool) {
	f := DefaultLookFields()
	seg, ok := obj["seg"].(map[string]any)
	if !ok || !recognizeSegment(seg, true, &f) {
		return f, false
	}
	for key, v := range obj {
		switch key {
		case "seg":
		case "on":
			on, ok := flag(v)
			if !ok {
				return f, false
			}
			if _, segOn := seg["on"]; segOn && on != f.On {
				return f, false
			}
			f.On = on
		default:
			return f, false
		}
	}
	return f, true
}

// recognizeSegment copies a segment object into f. Effect and palette are
// only accepted when withFx is set.
func recognizeSegment(seg map[string]any, withFx bool, f *LookFields) bool {
	if len(seg) == 0 {
		return false
	}
	for key, v := range seg {
		ok := false
		switch key {
		case "id":
			var n int
			if n, ok = wholeNumber(v); ok && n >= 0 {
				f.SegmentID = strconv.Itoa(n)
			} else {
				ok = false
			}
		case "on":
			f.On, ok = flag(v)
		case "rev":
			f.Reverse, ok = flag(v)
		case "sx", "ix":
			var n int
			if n, ok = wholeNumber(v); ok && n >= 0 && n <= 255 {
				if key == "sx" {
					f.Speed = strconv.Itoa(n)
				} else {
					f.Intensity = strconv.Itoa(n)
				}
			} else {
				ok = false
			}
		case "col":
			ok = recognizeColors(v, f)
		case "fx":
			if withFx {
				f.Effect, ok = scalarText(v)
			}
		case "pal":
			if withFx {
				f.Palette, ok = scalarText(v)
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func recognizeColors(v any, f *LookFields) bool {
	list, ok := v.([]any)
	if !ok || len(list) > 3 {
		return false
	}
	slots := []*string{&f.Color1, &f.Color2, &f.Color3}
	for i, c := range list {
		hex, ok := colorFromPayload(c)
		if !ok {
			return false
		}
		*slots[i] = hex
	}
	return true
}

// flag accepts the engine's boolean spellings: true/false and 1/0.
func flag(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if n, ok := wholeNumber(v); ok && (n == 0 || n == 1) {
		return n == 1, true
	}
	return false, false
}

// toFloat reads any numeric representation a payload may carry.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// wholeNumber reads an integral payload number.
func wholeNumber(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// numberText renders a payload number as builder text, keeping the original
// spelling when the decoder preserved it.
func numberText(v any, f float64) string {
	if n, ok := v.(json.Number); ok {
		return n.String()
	}
	return formatNumber(f)
}

// scalarText renders strings and numbers as builder text.
func scalarText(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if f, ok := toFloat(v); ok {
		return numberText(v, f), true
	}
	return "", false
}
