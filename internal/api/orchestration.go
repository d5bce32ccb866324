package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	orch "github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
	orchsvc "github.com/bbernstein/lacylights-orchestrator/internal/services/orchestration"
)

// compileResponse is returned by compile and start.
type compileResponse struct {
	OK             bool                   `json:"ok"`
	Payload        orch.Payload           `json:"payload"`
	Errors         []orch.ValidationError `json:"errors"`
	ErrorText      string                 `json:"errorText,omitempty"`
	Estimate       orch.Estimate          `json:"estimate"`
	EstimateText   string                 `json:"estimateText"`
	ImportWarnings []string               `json:"importWarnings,omitempty"`
}

func newCompileResponse(p *orch.Playlist, res orch.Result) compileResponse {
	out := compileResponse{
		OK:             len(res.Errors) == 0,
		Payload:        res.Payload,
		Errors:         []orch.ValidationError(res.Errors),
		Estimate:       res.Estimate,
		EstimateText:   res.Estimate.String(),
		ImportWarnings: p.ImportWarnings(),
	}
	if out.Errors == nil {
		out.Errors = []orch.ValidationError{}
	}
	if err := res.Err(); err != nil {
		out.ErrorText = err.Error()
	}
	return out
}

// decompileResponse carries either a builder playlist or, when the payload
// is not a step list, the pretty-printed JSON for raw editing.
type decompileResponse struct {
	Playlist *orch.Playlist `json:"playlist,omitempty"`
	Warnings []string       `json:"warnings,omitempty"`
	RawMode  bool           `json:"rawMode"`
	RawJSON  string         `json:"rawJson,omitempty"`
	Message  string         `json:"message,omitempty"`
}

type seedRequest struct {
	Playlist *orch.Playlist `json:"playlist"`
	StepID   string         `json:"stepId"`
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var p orch.Playlist
	if err := decodeBody(r, &p); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newCompileResponse(&p, s.orchestration.Compile(&p)))
}

func (s *Server) handleDecompile(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	playlist, err := orch.DecompileJSON(body, s.catalog.Snapshot())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, decompileResponse{Playlist: playlist, Warnings: playlist.ImportWarnings()})
	case errors.Is(err, orch.ErrInvalidJSON):
		writeBadRequest(w, err.Error())
	case errors.Is(err, orch.ErrNotPlaylist), errors.Is(err, orch.ErrNilPayload):
		raw, _ := orch.FormatJSON(body)
		writeJSON(w, http.StatusOK, decompileResponse{
			RawMode: true,
			RawJSON: raw,
			Message: "Payload steps are not a list; edit it as raw JSON.",
		})
	default:
		writeInternalError(w, err.Error())
	}
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if req.Playlist == nil || req.StepID == "" {
		writeBadRequest(w, "playlist and stepId are required")
		return
	}
	if _, ok := req.Playlist.Step(req.StepID); !ok {
		writeNotFound(w, "step not found")
		return
	}

	seeded, err := s.orchestration.SeedStep(r.Context(), req.Playlist, req.StepID)
	if err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, seeded)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	scope := orch.Scope(chi.URLParam(r, "scope"))
	if !scope.Valid() {
		writeBadRequest(w, "scope must be local, fleet or crossfade")
		return
	}

	var p orch.Playlist
	if err := decodeBody(r, &p); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	p.Scope = scope

	res, err := s.orchestration.Start(r.Context(), &p)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, newCompileResponse(&p, res))
	case errors.Is(err, orchsvc.ErrInvalidPlaylist):
		writeJSON(w, http.StatusUnprocessableEntity, newCompileResponse(&p, res))
	default:
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, err.Error())
	}
}

func (s *Server) handleLastApplied(w http.ResponseWriter, r *http.Request) {
	live, err := s.orchestration.LastApplied(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, live)
}
