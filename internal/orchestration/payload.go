package orchestration

import (
	"bytes"
	"encoding/json"
)

// Payload is the canonical playlist body sent to the execution engine.
type Payload struct {
	Name  string
	Loop  bool
	Steps []StepPayload

	// Fleet marks a payload that carries targets/include_self. A nil
	// Targets slice then means every configured peer.
	Fleet       bool
	Targets     []string
	IncludeSelf bool
}

// MarshalJSON writes targets as an explicit null for "all peers" and omits
// both fleet keys for non-fleet payloads.
func (p Payload) MarshalJSON() ([]byte, error) {
	steps := p.Steps
	if steps == nil {
		steps = []StepPayload{}
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	if p.Name != "" {
		writeKey(&buf, "name", p.Name)
		buf.WriteByte(',')
	}
	writeKey(&buf, "loop", p.Loop)
	buf.WriteByte(',')
	writeKey(&buf, "steps", steps)
	if p.Fleet {
		buf.WriteByte(',')
		writeKey(&buf, "targets", p.Targets)
		buf.WriteByte(',')
		writeKey(&buf, "include_self", p.IncludeSelf)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string, v any) {
	k, _ := json.Marshal(key)
	buf.Write(k)
	buf.WriteByte(':')
	data, err := json.Marshal(v)
	if err != nil {
		buf.WriteString("null")
		return
	}
	buf.Write(data)
}

// Map returns the payload in the loosely-typed form Decompile accepts.
func (p Payload) Map() map[string]any {
	steps := make([]any, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = map[string]any(s)
	}
	m := map[string]any{
		"loop":  p.Loop,
		"steps": steps,
	}
	if p.Name != "" {
		m["name"] = p.Name
	}
	if p.Fleet {
		if p.Targets == nil {
			m["targets"] = nil
		} else {
			targets := make([]any, len(p.Targets))
			for i, t := range p.Targets {
				targets[i] = t
			}
			m["targets"] = targets
		}
		m["include_self"] = p.IncludeSelf
	}
	return m
}

// UnmarshalJSON accepts the canonical shape. Steps are decoded loosely and
// numbers keep their original text. A steps value that is not a list of
// objects is ErrNotPlaylist.
func (p *Payload) UnmarshalJSON(data []byte) error {
	v, err := decodeJSON(data)
	if err != nil {
		return err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return errNotObject
	}
	out, err := payloadFromMap(m)
	if err != nil {
		return err
	}
	*p = out
	return nil
}

func payloadFromMap(m map[string]any) (Payload, error) {
	var p Payload
	p.Name, _ = m["name"].(string)
	p.Loop, _ = m["loop"].(bool)
	rawSteps, ok := m["steps"].([]any)
	if !ok {
		return Payload{}, ErrNotPlaylist
	}
	p.Steps = make([]StepPayload, 0, len(rawSteps))
	for _, s := range rawSteps {
		obj, ok := s.(map[string]any)
		if !ok {
			return Payload{}, ErrNotPlaylist
		}
		p.Steps = append(p.Steps, StepPayload(obj))
	}
	if t, present := m["targets"]; present {
		p.Fleet = true
		if list, ok := t.([]any); ok {
			p.Targets = make([]string, 0, len(list))
			for _, v := range list {
				if s, ok := v.(string); ok {
					p.Targets = append(p.Targets, s)
				}
			}
		}
	}
	if inc, present := m["include_self"]; present {
		p.Fleet = true
		p.IncludeSelf, _ = inc.(bool)
	}
	return p, nil
}
