package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	orch "github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/export"
	importservice "github.com/bbernstein/lacylights-orchestrator/internal/services/import"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/presets"
)

type importResponse struct {
	Stats    *importservice.ImportStats `json:"stats"`
	Warnings []string                   `json:"warnings"`
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	scope := orch.Scope(r.URL.Query().Get("scope"))
	if scope != "" && !scope.Valid() {
		writeBadRequest(w, "scope must be local, fleet or crossfade")
		return
	}
	list, err := s.presets.List(r.Context(), scope)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	var in presets.SaveInput
	if err := decodeBody(r, &in); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	saved, err := s.presets.Save(r.Context(), in)
	if err != nil {
		writePresetError(w, err)
		return
	}

	status := http.StatusCreated
	if in.ID != "" {
		status = http.StatusOK
	}
	writeJSON(w, status, saved)
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	preset, err := s.presets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writePresetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preset)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.presets.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writePresetError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoadPreset(w http.ResponseWriter, r *http.Request) {
	draft, err := s.presets.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writePresetError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleExportPresets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := export.ExportOptions{Scope: q.Get("scope")}
	if ids := strings.TrimSpace(q.Get("ids")); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.PresetIDs = append(opts.PresetIDs, id)
			}
		}
	}

	exported, _, err := s.export.ExportPresets(r.Context(), opts)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="presets.json"`)
	writeJSON(w, http.StatusOK, exported)
}

func (s *Server) handleImportPresets(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	strategy := importservice.ConflictStrategy(strings.ToUpper(r.URL.Query().Get("strategy")))

	stats, warnings, err := s.importer.ImportPresets(r.Context(), string(body), importservice.ImportOptions{
		ConflictStrategy: strategy,
	})
	if err != nil {
		// Unknown strategies and unreadable files are both caller errors.
		writeBadRequest(w, err.Error())
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusOK, importResponse{Stats: stats, Warnings: warnings})
}

func writePresetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, presets.ErrNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, presets.ErrInvalidPlaylist):
		var verrs orch.ValidationErrors
		if errors.As(err, &verrs) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"status":  http.StatusUnprocessableEntity,
				"code":    ErrCodeValidation,
				"message": verrs.Error(),
				"errors":  []orch.ValidationError(verrs),
			})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, presets.ErrNameRequired), errors.Is(err, presets.ErrInvalidScope):
		writeBadRequest(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
