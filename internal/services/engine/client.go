// Package engine talks to the LED execution engine's HTTP API: catalog
// tables, playlist submission and the last-applied report.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
)

const (
	EffectsPath     = "/api/wled/effects"
	PalettesPath    = "/api/wled/palettes"
	SequencesPath   = "/api/files/sequences"
	PatternsPath    = "/api/ddp/patterns"
	PresetsPath     = "/api/wled/presets"
	StartPath       = "/api/orchestration/start"
	FleetStartPath  = "/api/fleet/orchestration/start"
	LastAppliedPath = "/api/meta/last_applied"

	maxErrorBodyPreview = 512
)

var (
	// ErrNoBaseURL is returned when the client has no engine address.
	ErrNoBaseURL = errors.New("engine: base url not configured")
	// ErrUnexpectedShape is returned when a response decodes but is not the expected shape.
	ErrUnexpectedShape = errors.New("engine: unexpected response shape")
)

// StatusError reports a non-2xx engine response.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("engine: %s returned HTTP %d", e.Path, e.Status)
	}
	return fmt.Sprintf("engine: %s returned HTTP %d: %s", e.Path, e.Status, e.Body)
}

// Client is a thin JSON client for the execution engine.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the engine at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the engine address the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Effects returns the WLED effect names, indexed by effect id.
func (c *Client) Effects(ctx context.Context) ([]string, error) {
	return c.names(ctx, EffectsPath, "effects")
}

// Palettes returns the WLED palette names, indexed by palette id.
func (c *Client) Palettes(ctx context.Context) ([]string, error) {
	return c.names(ctx, PalettesPath, "palettes")
}

// SequenceFiles returns the sequence files on the engine.
func (c *Client) SequenceFiles(ctx context.Context) ([]string, error) {
	return c.names(ctx, SequencesPath, "files")
}

// Patterns returns the DDP pattern names.
func (c *Client) Patterns(ctx context.Context) ([]string, error) {
	return c.names(ctx, PatternsPath, "patterns")
}

// Presets returns the numeric presets stored on the controller.
func (c *Client) Presets(ctx context.Context) ([]orchestration.PresetRef, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, PresetsPath, nil, &raw); err != nil {
		return nil, err
	}
	return decodePresets(raw)
}

// Start submits a compiled payload. Fleet scope goes to the fleet endpoint;
// local and crossfade run on this engine.
func (c *Client) Start(ctx context.Context, scope orchestration.Scope, payload orchestration.Payload) error {
	path := StartPath
	if scope == orchestration.ScopeFleet {
		path = FleetStartPath
	}
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

// LastApplied returns what the engine reports as currently live.
func (c *Client) LastApplied(ctx context.Context) (orchestration.LastApplied, error) {
	var live orchestration.LastApplied
	err := c.do(ctx, http.MethodGet, LastAppliedPath, nil, &live)
	return live, err
}

// names fetches a string list. The engine answers either with a bare array
// or an object holding the array under key.
func (c *Client) names(ctx context.Context, path, key string) ([]string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if inner, ok := wrapped[key]; ok {
			if err := json.Unmarshal(inner, &list); err == nil {
				return list, nil
			}
		}
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnexpectedShape)
}

// decodePresets accepts a list of {id,name} objects, the same list under a
// "presets" key, or WLED's presets.json map keyed by id.
func decodePresets(raw json.RawMessage) ([]orchestration.PresetRef, error) {
	var list []orchestration.PresetRef
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Presets []orchestration.PresetRef `json:"presets"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Presets != nil {
		return wrapped.Presets, nil
	}
	var byID map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, fmt.Errorf("%s: %w", PresetsPath, ErrUnexpectedShape)
	}
	out := make([]orchestration.PresetRef, 0, len(byID))
	for key, body := range byID {
		id, err := strconv.Atoi(key)
		if err != nil || id < 1 {
			continue // slot 0 is the boot default
		}
		var p struct {
			Name string `json:"n"`
		}
		_ = json.Unmarshal(body, &p)
		out = append(out, orchestration.PresetRef{ID: id, Name: p.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.baseURL == "" {
		return ErrNoBaseURL
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request for %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine request %s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyPreview))
		return &StatusError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(preview))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
