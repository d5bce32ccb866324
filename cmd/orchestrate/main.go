// orchestrate compiles orchestration builder files into engine payloads and
// turns payloads back into builder files, without a running server.
//
//	orchestrate compile   [--catalog FILE] [--scope SCOPE] [FILE]
//	orchestrate decompile [--catalog FILE] [FILE]
//	orchestrate estimate  [--catalog FILE] [FILE]
//
// FILE defaults to stdin. Builder files are YAML (JSON is accepted too);
// payloads are JSON and may carry comments or trailing commas.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	orch "github.com/bbernstein/lacylights-orchestrator/internal/orchestration"
)

// Exit codes.
const (
	exitOK      = 0
	exitInvalid = 1 // validation errors or unreadable input
	exitUsage   = 2
	exitRaw     = 3 // payload is not a playlist; raw JSON printed instead
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "compile":
		return runCompile(rest, stdin, stdout, stderr)
	case "decompile":
		return runDecompile(rest, stdin, stdout, stderr)
	case "estimate":
		return runEstimate(rest, stdin, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "error: unknown command %q\n", cmd)
		printUsage(stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: orchestrate <command> [flags] [FILE]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  compile     compile a builder file into an engine payload")
	fmt.Fprintln(w, "  decompile   turn an engine payload into a builder file")
	fmt.Fprintln(w, "  estimate    print the estimated length of a builder file")
}

// compileFlags are shared by compile and estimate.
type compileFlags struct {
	catalogPath string
	scope       string
	targets     string
}

func newFlagSet(name string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func (f *compileFlags) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&f.catalogPath, "catalog", "c", "", "YAML or JSON catalog file used to resolve names")
	fs.StringVar(&f.scope, "scope", "", "override the playlist scope (local, fleet, crossfade)")
	fs.StringVar(&f.targets, "targets", "", "override the fleet target selectors (comma-separated)")
}

// load reads the catalog and the builder file and applies overrides.
func (f *compileFlags) load(fs *pflag.FlagSet, stdin io.Reader) (*orch.Playlist, orch.Catalog, error) {
	var catalog orch.Catalog
	if f.catalogPath != "" {
		c, err := loadCatalog(f.catalogPath)
		if err != nil {
			return nil, catalog, err
		}
		catalog = c
	}

	data, err := readInput(fs.Args(), stdin)
	if err != nil {
		return nil, catalog, err
	}
	p, err := parsePlaylist(data)
	if err != nil {
		return nil, catalog, err
	}

	if f.scope != "" {
		p.Scope = orch.Scope(strings.ToLower(f.scope))
	}
	if fs.Changed("targets") {
		p.Targets = f.targets
	}
	return p, catalog, nil
}

func runCompile(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var flags compileFlags
	var quiet bool
	fs := newFlagSet("compile", stderr)
	flags.bind(fs)
	fs.BoolVarP(&quiet, "quiet", "q", false, "do not print the estimate")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	p, catalog, err := flags.load(fs, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitInvalid
	}

	res := orch.Compile(p, catalog)
	if len(res.Errors) > 0 {
		fmt.Fprintln(stderr, res.Errors.Error())
		return exitInvalid
	}

	out, err := json.MarshalIndent(res.Payload, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitInvalid
	}
	fmt.Fprintln(stdout, string(out))
	if !quiet {
		fmt.Fprintf(stderr, "Estimated length: %s\n", res.Estimate)
	}
	for _, w := range p.ImportWarnings() {
		fmt.Fprintf(stderr, "Warning: %s\n", w)
	}
	return exitOK
}

func runEstimate(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var flags compileFlags
	fs := newFlagSet("estimate", stderr)
	flags.bind(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	p, catalog, err := flags.load(fs, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitInvalid
	}

	// The estimate is printed even when some steps fail validation.
	res := orch.Compile(p, catalog)
	fmt.Fprintln(stdout, res.Estimate.String())
	if len(res.Errors) > 0 {
		fmt.Fprintf(stderr, "Warning: playlist has %d validation errors\n", len(res.Errors))
	}
	return exitOK
}

func runDecompile(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var catalogPath string
	fs := newFlagSet("decompile", stderr)
	fs.StringVarP(&catalogPath, "catalog", "c", "", "catalog the builder output will be compiled against")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	var catalog orch.Catalog
	if catalogPath != "" {
		c, err := loadCatalog(catalogPath)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitInvalid
		}
		catalog = c
	}

	data, err := readInput(fs.Args(), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitInvalid
	}

	p, err := orch.DecompileJSON(data, catalog)
	switch {
	case errors.Is(err, orch.ErrNotPlaylist), errors.Is(err, orch.ErrNilPayload):
		raw, ferr := orch.FormatJSON(data)
		if ferr != nil {
			fmt.Fprintf(stderr, "error: %v\n", ferr)
			return exitInvalid
		}
		fmt.Fprintln(stderr, "Payload is not a playlist; printing raw JSON")
		fmt.Fprintln(stdout, raw)
		return exitRaw
	case err != nil:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitInvalid
	}

	for i := range p.Steps {
		p.Steps[i].Extra = yamlSafe(p.Steps[i].Extra).(map[string]any)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitInvalid
	}
	_ = enc.Close()
	_, _ = stdout.Write(buf.Bytes())

	for _, w := range p.ImportWarnings() {
		fmt.Fprintf(stderr, "Warning: %s\n", w)
	}
	return exitOK
}

func readInput(args []string, stdin io.Reader) ([]byte, error) {
	switch len(args) {
	case 0:
		return io.ReadAll(stdin)
	case 1:
		if args[0] == "-" {
			return io.ReadAll(stdin)
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("expected at most one input file, got %d", len(args))
	}
}

func parsePlaylist(data []byte) (*orch.Playlist, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("builder file is empty")
	}
	var p orch.Playlist
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse builder file: %w", err)
	}
	return &p, nil
}

func loadCatalog(path string) (orch.Catalog, error) {
	var c orch.Catalog
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return c, nil
}

// yamlSafe replaces json.Number values with plain numbers so they are not
// quoted as strings in YAML output.
func yamlSafe(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = yamlSafe(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = yamlSafe(val)
		}
		return out
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}
