package orchestration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/jsonc"
)

var errNotObject = errors.New("not a JSON object")

// decodeJSON parses hand-authored JSON. Comments and trailing commas are
// tolerated; numbers keep their original text.
func decodeJSON(text []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(text)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

// parseObject parses text that must hold a single JSON object.
func parseObject(text string) (map[string]any, error) {
	v, err := decodeJSON([]byte(text))
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

// prettyJSON renders a value the way the raw editor shows it.
func prettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// FormatJSON re-indents hand-authored JSON for raw editing. It is used when a
// payload cannot be decompiled into steps.
func FormatJSON(text []byte) (string, error) {
	v, err := decodeJSON(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return prettyJSON(v), nil
}
