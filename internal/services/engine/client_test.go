package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
)

func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) *Client {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second)
}

func writeJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestClient_NameLists(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		EffectsPath:   writeJSON(`["Solid","Blink"]`),
		PalettesPath:  writeJSON(`{"palettes":["Default","Party"]}`),
		SequencesPath: writeJSON(`{"files":["show.fseq"]}`),
		PatternsPath:  writeJSON(`{"other":1}`),
	})
	ctx := context.Background()

	effects, err := c.Effects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Solid", "Blink"}, effects)

	palettes, err := c.Palettes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Default", "Party"}, palettes)

	files, err := c.SequenceFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"show.fseq"}, files)

	_, err = c.Patterns(ctx)
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestClient_Presets(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []orchestration.PresetRef
	}{
		{
			name: "list",
			body: `[{"id":2,"name":"Warm"}]`,
			want: []orchestration.PresetRef{{ID: 2, Name: "Warm"}},
		},
		{
			name: "wrapped",
			body: `{"presets":[{"id":3,"name":"Cool"}]}`,
			want: []orchestration.PresetRef{{ID: 3, Name: "Cool"}},
		},
		{
			name: "wled presets.json",
			body: `{"0":{},"10":{"n":"Party"},"2":{"n":"Warm","on":true}}`,
			want: []orchestration.PresetRef{{ID: 2, Name: "Warm"}, {ID: 10, Name: "Party"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, map[string]http.HandlerFunc{PresetsPath: writeJSON(tt.body)})
			got, err := c.Presets(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_StartRoutesByScope(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	handler := func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody = nil
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}
	c := newTestServer(t, map[string]http.HandlerFunc{StartPath: handler, FleetStartPath: handler})

	payload := orchestration.Payload{
		Steps: []orchestration.StepPayload{{"kind": "blackout"}},
		Fleet: true,
	}
	require.NoError(t, c.Start(context.Background(), orchestration.ScopeFleet, payload))
	assert.Equal(t, FleetStartPath, gotPath)
	assert.Contains(t, gotBody, "targets")
	assert.Nil(t, gotBody["targets"])

	payload.Fleet = false
	require.NoError(t, c.Start(context.Background(), orchestration.ScopeCrossfade, payload))
	assert.Equal(t, StartPath, gotPath)
	assert.NotContains(t, gotBody, "targets")
}

func TestClient_StatusError(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		StartPath: func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "busy", http.StatusConflict)
		},
	})

	err := c.Start(context.Background(), orchestration.ScopeLocal, orchestration.Payload{})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusConflict, statusErr.Status)
	assert.Equal(t, "busy", statusErr.Body)
	assert.Contains(t, err.Error(), "HTTP 409")
}

func TestClient_LastApplied(t *testing.T) {
	c := newTestServer(t, map[string]http.HandlerFunc{
		LastAppliedPath: writeJSON(`{"look":{"seg":{"id":0,"col":[[255,0,0]],"on":true}},"sequence":"show.fseq"}`),
	})

	live, err := c.LastApplied(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "show.fseq", live.Sequence)
	assert.Contains(t, live.Look, "seg")
}

func TestClient_NoBaseURL(t *testing.T) {
	c := NewClient("", 0)
	_, err := c.Effects(context.Background())
	assert.ErrorIs(t, err, ErrNoBaseURL)
}
