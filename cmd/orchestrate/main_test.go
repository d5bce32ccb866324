package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	orch "github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
)

const eveningBuilder = `
name: Evening
loop: true
scope: local
steps:
  - kind: pause
    duration_s: "5"
  - kind: blackout
`

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t, "")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Usage: orchestrate")

	code, _, stderr = runCLI(t, "", "frobnicate")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)

	code, stdout, _ := runCLI(t, "", "help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "decompile")
}

func TestCompile_FromStdin(t *testing.T) {
	code, stdout, stderr := runCLI(t, eveningBuilder, "compile")
	require.Equal(t, exitOK, code, stderr)

	assert.JSONEq(t,
		`{"name":"Evening","loop":true,"steps":[{"kind":"pause","duration_s":5},{"kind":"blackout"}]}`,
		stdout)
	assert.Contains(t, stderr, "Estimated length: 5s")
}

func TestCompile_QuietAndFile(t *testing.T) {
	path := writeFile(t, "evening.yaml", eveningBuilder)

	code, stdout, stderr := runCLI(t, "", "compile", "-q", path)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `"kind": "blackout"`)
	assert.Empty(t, stderr)
}

func TestCompile_ScopeOverride(t *testing.T) {
	code, stdout, stderr := runCLI(t, eveningBuilder, "compile", "--scope", "FLEET", "--targets", "porch, roof")
	require.Equal(t, exitOK, code, stderr)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &body))
	assert.Equal(t, []any{"porch", "roof"}, body["targets"])
	assert.Equal(t, false, body["include_self"])
}

func TestCompile_ValidationErrors(t *testing.T) {
	builder := `
name: Broken
steps:
  - kind: pause
`
	code, stdout, stderr := runCLI(t, builder, "compile")
	assert.Equal(t, exitInvalid, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Step 1: duration_s is required for pause")
}

func TestCompile_EmptyInput(t *testing.T) {
	code, _, stderr := runCLI(t, "   \n", "compile")
	assert.Equal(t, exitInvalid, code)
	assert.Contains(t, stderr, "builder file is empty")
}

func TestCompile_CatalogFile(t *testing.T) {
	catalog := writeFile(t, "catalog.yaml", `
effects: [Solid, Blink]
palettes: [Default]
presets:
  - id: 3
    name: Warm
`)
	builder := `
steps:
  - kind: preset
    preset_id: Warm
  - kind: preset
    preset_id: Cold
`
	code, _, stderr := runCLI(t, builder, "compile", "--catalog", catalog)
	assert.Equal(t, exitInvalid, code)
	assert.Contains(t, stderr, "Step 2:")
	assert.NotContains(t, stderr, "Step 1:")

	code, _, stderr = runCLI(t, builder, "compile", "--catalog", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, exitInvalid, code)
	assert.Contains(t, stderr, "failed to read catalog")
}

func TestCompile_TooManyFiles(t *testing.T) {
	code, _, stderr := runCLI(t, "", "compile", "a.yaml", "b.yaml")
	assert.Equal(t, exitInvalid, code)
	assert.Contains(t, stderr, "at most one input file")
}

func TestEstimate(t *testing.T) {
	code, stdout, _ := runCLI(t, eveningBuilder, "estimate")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "5s\n", stdout)

	looping := `
steps:
  - kind: pause
    duration_s: "2"
  - kind: sequence
    sequence_file: show.fseq
`
	code, stdout, _ = runCLI(t, looping, "estimate")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "at least 2s\n", stdout)
}

func TestDecompile_ToYAML(t *testing.T) {
	payload := `{
		// evening show
		"name": "Evening",
		"loop": true,
		"steps": [
			{"kind": "blackout"},
			{"kind": "pause", "duration_s": 5},
		]
	}`
	code, stdout, stderr := runCLI(t, payload, "decompile")
	require.Equal(t, exitOK, code, stderr)

	var p orch.Playlist
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &p))
	assert.Equal(t, "Evening", p.Name)
	assert.True(t, p.Loop)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, orch.KindBlackout, p.Steps[0].Kind)
	assert.Equal(t, orch.KindPause, p.Steps[1].Kind)
	assert.Equal(t, "5", p.Steps[1].DurationS)
}

func TestDecompile_RoundTrip(t *testing.T) {
	code, compiled, stderr := runCLI(t, eveningBuilder, "compile", "-q")
	require.Equal(t, exitOK, code, stderr)

	code, builder, stderr := runCLI(t, compiled, "decompile")
	require.Equal(t, exitOK, code, stderr)

	code, again, stderr := runCLI(t, builder, "compile", "-q")
	require.Equal(t, exitOK, code, stderr)
	assert.JSONEq(t, compiled, again)
}

func TestDecompile_CatalogDecidesBuilderSlots(t *testing.T) {
	catalog := writeFile(t, "catalog.yaml", "effects: [Solid, Strobe]\n")
	payload := `{"steps":[{"kind":"look","look":{"effect":"Glitter","seg":{"id":0,"on":true}}}]}`

	code, builder, stderr := runCLI(t, payload, "decompile", "--catalog", catalog)
	require.Equal(t, exitOK, code, stderr)
	var p orch.Playlist
	require.NoError(t, yaml.Unmarshal([]byte(builder), &p))
	assert.Equal(t, orch.SlotJSON, p.Steps[0].Look.Mode())

	code, again, stderr := runCLI(t, builder, "compile", "-q", "--catalog", catalog)
	require.Equal(t, exitOK, code, stderr)
	assert.JSONEq(t, `{"loop":false,"steps":[{"kind":"look","look":{"effect":"Glitter","seg":{"id":0,"on":true}}}]}`, again)

	code, _, stderr = runCLI(t, payload, "decompile", "--catalog", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, exitInvalid, code)
	assert.Contains(t, stderr, "failed to read catalog")
}

func TestDecompile_UnknownKindWarns(t *testing.T) {
	code, _, stderr := runCLI(t, `{"steps":[{"kind":"laser"}]}`, "decompile")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, `Warning: Step 1: unknown kind "laser"`)
}

func TestDecompile_RawMode(t *testing.T) {
	code, stdout, stderr := runCLI(t, `{"on": true, "bri": 128}`, "decompile")
	assert.Equal(t, exitRaw, code)
	assert.Contains(t, stderr, "not a playlist")
	assert.Contains(t, stdout, `"bri": 128`)
}

func TestDecompile_InvalidJSON(t *testing.T) {
	code, stdout, stderr := runCLI(t, `{"steps": [`, "decompile")
	assert.Equal(t, exitInvalid, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "invalid JSON")
}

func TestYAMLSafe(t *testing.T) {
	in := map[string]any{
		"n":    json.Number("4"),
		"f":    json.Number("0.5"),
		"list": []any{json.Number("1"), "x"},
		"sub":  map[string]any{"k": json.Number("7")},
	}
	out := yamlSafe(in).(map[string]any)
	assert.Equal(t, int64(4), out["n"])
	assert.Equal(t, 0.5, out["f"])
	assert.Equal(t, []any{int64(1), "x"}, out["list"])
	assert.Equal(t, map[string]any{"k": int64(7)}, out["sub"])
}
