package orchestration

import (
	"strings"
)

// Result is the outcome of compiling a playlist.
type Result struct {
	Payload  Payload
	Errors   ValidationErrors
	Estimate Estimate
}

// Err returns the collected validation errors as one error, or nil.
// Submission and preset saving must refuse a result with a non-nil Err.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors
}

// Compile validates every step in order and assembles the playlist payload.
// The catalog is cloned first so a concurrent refresh cannot leak into the
// pass.
func Compile(p *Playlist, catalog Catalog) Result {
	catalog = catalog.Clone()

	scope := p.Scope
	if scope == "" {
		scope = ScopeLocal
	}

	var res Result
	res.Payload = Payload{
		Name:  strings.TrimSpace(p.Name),
		Loop:  p.Loop,
		Steps: make([]StepPayload, 0, len(p.Steps)),
	}
	if !scope.Valid() {
		res.Errors = append(res.Errors, ValidationError{Field: "scope", Message: "scope must be local, fleet or crossfade"})
	}
	if len(p.Steps) == 0 {
		res.Errors = append(res.Errors, ValidationError{Field: "steps", Message: "playlist has no steps"})
	}

	for i, step := range p.Steps {
		payload, errs := CompileStep(step, i+1, catalog, scope)
		res.Payload.Steps = append(res.Payload.Steps, payload)
		res.Errors = append(res.Errors, errs...)
	}

	if scope == ScopeFleet {
		res.Payload.Fleet = true
		res.Payload.Targets = ParseTargets(p.Targets)
		res.Payload.IncludeSelf = p.IncludeSelf
	}

	res.Estimate = EstimateDuration(res.Payload.Steps)
	return res
}

// ParseTargets splits a comma-separated selector list. Blank input yields
// nil, meaning every configured peer.
func ParseTargets(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// FormatTargets is the inverse of ParseTargets.
func FormatTargets(targets []string) string {
	return strings.Join(targets, ", ")
}
