package orchestration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNilPayload is returned when Decompile is handed no payload at all.
	ErrNilPayload = errors.New("orchestration: payload is nil")

	// ErrNotPlaylist is returned when a payload has no steps array. Callers
	// should fall back to raw JSON editing.
	ErrNotPlaylist = errors.New("orchestration: payload steps must be an array")

	// ErrInvalidJSON is returned when pasted payload text does not parse.
	ErrInvalidJSON = errors.New("orchestration: invalid JSON")

	// ErrUnresolved is returned by Resolve when a value is neither a catalog
	// entry nor a numeric id.
	ErrUnresolved = errors.New("orchestration: value is not a catalog name or numeric id")
)

// ValidationError describes one offending field of one step. Step is the
// 1-based playlist position, or 0 for playlist-level fields.
type ValidationError struct {
	Step    int    `json:"step,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("Step %d: %s", e.Step, e.Message)
	}
	return e.Message
}

// ValidationErrors is the full list collected by a compile pass.
type ValidationErrors []ValidationError

// Error joins every message into one human-readable block.
func (errs ValidationErrors) Error() string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}

// Fields returns the offending field names in order, for tests and UI
// highlighting.
func (errs ValidationErrors) Fields() []string {
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	return fields
}

// collector accumulates errors for one step.
type collector struct {
	step int
	errs []ValidationError
}

func (c *collector) add(field, format string, args ...any) {
	c.errs = append(c.errs, ValidationError{
		Step:    c.step,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}
