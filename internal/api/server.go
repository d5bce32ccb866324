// Package api exposes the orchestration builder over HTTP: catalog access,
// compile/decompile, playlist submission, preset storage and an event stream.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bbernstein/lacylights-orchestrator/internal/services/catalog"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/export"
	importservice "github.com/bbernstein/lacylights-orchestrator/internal/services/import"
	orchsvc "github.com/bbernstein/lacylights-orchestrator/internal/services/orchestration"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/presets"
	"github.com/bbernstein/lacylights-orchestrator/internal/services/pubsub"
)

// maxBodyBytes caps request bodies; payloads and export files are small.
const maxBodyBytes = 4 << 20

// Deps are the services the handlers call.
type Deps struct {
	Catalog       *catalog.Service
	Orchestration *orchsvc.Service
	Presets       *presets.Service
	Export        *export.Service
	Import        *importservice.Service
	PubSub        *pubsub.PubSub
}

// Server holds the HTTP handlers.
type Server struct {
	catalog       *catalog.Service
	orchestration *orchsvc.Service
	presets       *presets.Service
	export        *export.Service
	importer      *importservice.Service
	pubsub        *pubsub.PubSub
}

// NewServer creates the handler set.
func NewServer(deps Deps) *Server {
	return &Server{
		catalog:       deps.Catalog,
		orchestration: deps.Orchestration,
		presets:       deps.Presets,
		export:        deps.Export,
		importer:      deps.Import,
		pubsub:        deps.PubSub,
	}
}

// Mount registers the REST routes on r. The event stream is long-lived and
// is registered separately via Events so request timeouts do not apply to it.
func (s *Server) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", s.handleGetCatalog)
			r.Post("/refresh", s.handleRefreshCatalog)
		})

		r.Route("/orchestration", func(r chi.Router) {
			r.Post("/compile", s.handleCompile)
			r.Post("/decompile", s.handleDecompile)
			r.Post("/seed", s.handleSeed)
			r.Post("/start/{scope}", s.handleStart)
			r.Get("/last-applied", s.handleLastApplied)
		})

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", s.handleListPresets)
			r.Post("/", s.handleSavePreset)
			r.Get("/export", s.handleExportPresets)
			r.Post("/import", s.handleImportPresets)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetPreset)
				r.Delete("/", s.handleDeletePreset)
				r.Get("/builder", s.handleLoadPreset)
			})
		})
	})
}

// Events returns the websocket event stream handler.
func (s *Server) Events() http.HandlerFunc {
	return s.handleEvents
}

// Router returns a chi router with every route of this server.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	s.Mount(r)
	r.Get("/ws/events", s.Events())
	return r
}

var errEmptyBody = errors.New("request body is empty")

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxBodyBytes)
	}
	if len(data) == 0 {
		return nil, errEmptyBody
	}
	return data, nil
}

func decodeBody(r *http.Request, v any) error {
	data, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
