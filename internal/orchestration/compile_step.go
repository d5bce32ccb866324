package orchestration

import (
	"strings"
)

// StepPayload is one compiled step: kind plus the keys meaningful for it.
type StepPayload map[string]any

// Kind returns the step's kind key.
func (p StepPayload) Kind() StepKind {
	k, _ := p["kind"].(string)
	return StepKind(k)
}

// globChars are the wildcard characters the engine expands in sequence_file.
const globChars = "*?["

const defaultSceneAction = "activate"

// CompileStep validates one builder step and produces its payload. position
// is the 1-based playlist index used in error messages. A payload is always
// returned, even when errors are reported.
func CompileStep(step BuilderStep, position int, catalog Catalog, scope Scope) (StepPayload, ValidationErrors) {
	c := &collector{step: position}
	out := StepPayload{}
	for k, v := range step.Extra {
		out[k] = v
	}

	kind := step.Kind
	if !kind.Valid() {
		c.add("kind", "kind %q is not supported", string(step.Kind))
		out["kind"] = string(step.Kind)
		return out, c.errs
	}
	out["kind"] = string(kind)
	if step.ImportedKind != "" {
		c.add("kind", "kind was not recognized on import; confirm this step is a %s", kind)
	}

	compileCommon(c, out, step, scope)

	switch kind {
	case KindLook:
		if look := compileSlot(c, "look", step.Look, catalog, false); look != nil {
			out["look"] = look
		} else if step.Look.Mode() == SlotNone {
			c.add("look", "look is required")
		}
	case KindState:
		if state := compileSlot(c, "state", step.State, catalog, true); state != nil {
			out["state"] = state
		} else if step.State.Mode() == SlotNone {
			c.add("state", "state is required")
		}
	case KindCrossfade:
		look := compileSlot(c, "look", step.Look, catalog, false)
		state := compileSlot(c, "state", step.State, catalog, true)
		if look != nil {
			out["look"] = look
		}
		if state != nil {
			out["state"] = state
		}
		if step.Look.Mode() == SlotNone && step.State.Mode() == SlotNone {
			c.add("look", "look or state is required for crossfade.")
		}
	case KindSequence:
		compileSequence(c, out, step, catalog)
	case KindPreset:
		compilePreset(c, out, step, catalog)
	case KindDDP:
		compileDDP(c, out, step, catalog)
	case KindPause:
		if strings.TrimSpace(step.DurationS) == "" {
			c.add("duration_s", "duration_s is required for pause")
		}
	case KindBlackout:
	case KindLedFxScene:
		id := strings.TrimSpace(step.LedFxSceneID)
		if id == "" {
			c.add("ledfx_scene_id", "ledfx_scene_id is required")
		} else {
			out["ledfx_scene_id"] = id
		}
		action := strings.TrimSpace(step.LedFxSceneAction)
		if action == "" {
			action = defaultSceneAction
		}
		out["ledfx_scene_action"] = action
	case KindLedFxEffect:
		effect := strings.TrimSpace(step.LedFxEffect)
		if effect == "" {
			c.add("ledfx_effect", "ledfx_effect is required")
		} else {
			out["ledfx_effect"] = effect
		}
		if v := strings.TrimSpace(step.LedFxVirtualID); v != "" {
			out["ledfx_virtual_id"] = v
		}
		if cfg, ok := optionalObject(c, "ledfx_config", step.LedFxConfigJSON); ok {
			out["ledfx_config"] = cfg
		}
	case KindLedFxBrightness:
		if strings.TrimSpace(step.LedFxBrightness) == "" {
			c.add("ledfx_brightness", "ledfx_brightness is required")
		} else if v, ok := c.numberField("ledfx_brightness", step.LedFxBrightness, 0); ok {
			out["ledfx_brightness"] = numberValue(v)
		}
		if v := strings.TrimSpace(step.LedFxVirtualID); v != "" {
			out["ledfx_virtual_id"] = v
		}
	}

	return out, c.errs
}

func compileCommon(c *collector, out StepPayload, step BuilderStep, scope Scope) {
	if v, ok := c.numberField("duration_s", step.DurationS, 0); ok {
		out["duration_s"] = numberValue(v)
	}
	if v, ok := c.intField("transition_ms", step.TransitionMS, 0); ok {
		out["transition_ms"] = v
	}
	if v, ok := c.intField("brightness", step.Brightness, 1); ok {
		out["brightness"] = v
	}
	if scope == ScopeFleet {
		if v, ok := c.numberField("stagger_s", step.StaggerS, 0); ok {
			out["stagger_s"] = numberValue(v)
		}
		if v, ok := c.numberField("start_delay_s", step.StartDelayS, 0); ok {
			out["start_delay_s"] = numberValue(v)
		}
	}
	if step.Loop {
		out["loop"] = true
	}
}

func compileSequence(c *collector, out StepPayload, step BuilderStep, catalog Catalog) {
	file := strings.TrimSpace(step.SequenceFile)
	if file == "" {
		c.add("sequence_file", "sequence_file is required")
	} else {
		if !strings.ContainsAny(file, globChars) && len(catalog.SequenceFiles) > 0 && !contains(catalog.SequenceFiles, file) {
			c.add("sequence_file", "sequence_file %q is not a known sequence", file)
		}
		out["sequence_file"] = file
	}
	if step.Loop && strings.TrimSpace(step.DurationS) == "" {
		c.add("duration_s", "duration_s is required when loop is enabled")
	}
}

func compilePreset(c *collector, out StepPayload, step BuilderStep, catalog Catalog) {
	raw := strings.TrimSpace(step.PresetID)
	if raw == "" {
		c.add("preset_id", "preset_id is required")
		return
	}
	if id, ok := catalog.PresetID(raw); ok {
		out["preset_id"] = id
		return
	}
	if v, ok := c.intField("preset_id", raw, 1); ok {
		out["preset_id"] = v
	}
}

func compileDDP(c *collector, out StepPayload, step BuilderStep, catalog Catalog) {
	if strings.TrimSpace(step.Pattern) == "" {
		c.add("pattern", "pattern is required")
	} else if v, err := Resolve(step.Pattern, catalog.Patterns, ByName); err != nil {
		c.add("pattern", "pattern must be a name or numeric id")
	} else {
		out["pattern"] = v
	}
	if v, ok := c.intField("fps", step.FPS, 1); ok {
		out["fps"] = v
	}
	if params, ok := optionalObject(c, "params", step.ParamsJSON); ok {
		out["params"] = params
	}
}

// optionalObject parses an optional free-form JSON object field.
func optionalObject(c *collector, field, text string) (map[string]any, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	obj, err := parseObject(text)
	if err != nil {
		c.add(field, "%s must be a JSON object", field)
		return nil, false
	}
	return obj, true
}

// compileSlot builds a look (state=false) or state object. It returns nil
// when the slot is empty or its JSON text is unusable.
func compileSlot(c *collector, field string, slot Slot, catalog Catalog, state bool) map[string]any {
	switch slot.Mode() {
	case SlotBuilder:
		if state {
			return buildState(c, field, slot.Builder, catalog)
		}
		return buildLook(c, field, slot.Builder, catalog)
	case SlotJSON:
		obj, err := parseObject(slot.JSON)
		if err != nil {
			c.add(field, "%s JSON must be an object", field)
			return nil
		}
		return obj
	}
	return nil
}

func buildLook(c *collector, field string, f LookFields, catalog Catalog) map[string]any {
	look := map[string]any{}
	if name := strings.TrimSpace(f.Name); name != "" {
		look["name"] = name
	}
	if theme := strings.TrimSpace(f.Theme); theme != "" {
		look["theme"] = theme
	}
	if v := resolveField(c, field+".effect", f.Effect, catalog.Effects, ByName); v != nil {
		look["effect"] = v
	}
	if v := resolveField(c, field+".palette", f.Palette, catalog.Palettes, ByName); v != nil {
		look["palette"] = v
	}
	spec := segmentSpec(c, field, f)
	look["seg"] = BuildSegment(spec)
	return look
}

func buildState(c *collector, field string, f LookFields, catalog Catalog) map[string]any {
	spec := segmentSpec(c, field, f)
	spec.Effect = resolveField(c, field+".effect", f.Effect, catalog.Effects, ByIndex)
	spec.Palette = resolveField(c, field+".palette", f.Palette, catalog.Palettes, ByIndex)
	return map[string]any{
		"on":  f.On,
		"seg": BuildSegment(spec),
	}
}

func resolveField(c *collector, field, raw string, catalog []string, mode ResolveMode) any {
	v, err := Resolve(raw, catalog, mode)
	if err != nil {
		c.add(field, "%s must be a name or numeric id", field)
		return nil
	}
	return v
}

var colorFields = [3]string{"color1", "color2", "color3"}

func segmentSpec(c *collector, field string, f LookFields) SegmentSpec {
	spec := SegmentSpec{
		Reverse: f.Reverse,
		On:      f.On,
		Colors:  make([]*RGB, 0, 3),
	}
	if v, ok := c.intField(field+".segment_id", f.SegmentID, 0); ok {
		spec.ID = &v
	}
	for i, raw := range f.colors() {
		if strings.TrimSpace(raw) == "" {
			spec.Colors = append(spec.Colors, nil)
			continue
		}
		rgb, ok := ParseHexColor(raw)
		if !ok {
			name := field + "." + colorFields[i]
			c.add(name, "%s must be a hex color like #ff8800", name)
			spec.Colors = append(spec.Colors, nil)
			continue
		}
		spec.Colors = append(spec.Colors, &rgb)
	}
	if v, ok := c.intRange(field+".speed", f.Speed, 0, 255); ok {
		spec.Speed = &v
	}
	if v, ok := c.intRange(field+".intensity", f.Intensity, 0, 255); ok {
		spec.Intensity = &v
	}
	return spec
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
