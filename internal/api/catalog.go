package api

import (
	"net/http"

	orch "github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/catalog"
)

type catalogResponse struct {
	orch.Catalog
	Failures map[string]string `json:"failures,omitempty"`
}

func newCatalogResponse(cat orch.Catalog, st catalog.Status) catalogResponse {
	return catalogResponse{Catalog: cat, Failures: st.Failures}
}

func (s *Server) handleGetCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newCatalogResponse(s.catalog.Snapshot(), s.catalog.Status()))
}

func (s *Server) handleRefreshCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := s.catalog.Refresh(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newCatalogResponse(cat, s.catalog.Status()))
}
