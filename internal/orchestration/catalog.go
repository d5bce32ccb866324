package orchestration

import (
	"strconv"
	"strings"
	"time"
)

// PresetRef is one numeric preset known to the execution engine.
type PresetRef struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Catalog is an immutable snapshot of the engine's lookup tables. An empty
// list means the table has not been loaded; validation against it is skipped.
type Catalog struct {
	Effects       []string    `json:"effects" yaml:"effects"`
	Palettes      []string    `json:"palettes" yaml:"palettes"`
	SequenceFiles []string    `json:"sequenceFiles" yaml:"sequence_files"`
	Patterns      []string    `json:"patterns" yaml:"patterns"`
	Presets       []PresetRef `json:"presets" yaml:"presets"`
	Version       int64       `json:"version" yaml:"-"`
	FetchedAt     time.Time   `json:"fetchedAt" yaml:"-"`
}

// Clone returns a deep copy so a compile pass never observes a refresh.
func (c Catalog) Clone() Catalog {
	out := c
	out.Effects = cloneStrings(c.Effects)
	out.Palettes = cloneStrings(c.Palettes)
	out.SequenceFiles = cloneStrings(c.SequenceFiles)
	out.Patterns = cloneStrings(c.Patterns)
	if c.Presets != nil {
		out.Presets = append([]PresetRef(nil), c.Presets...)
	}
	return out
}

// PresetID returns the id of the preset with the given name.
func (c Catalog) PresetID(name string) (int, bool) {
	for _, p := range c.Presets {
		if p.Name == name {
			return p.ID, true
		}
	}
	return 0, false
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// ResolveMode selects what Resolve returns for a catalog match.
type ResolveMode int

const (
	// ByName returns the matching catalog entry itself.
	ByName ResolveMode = iota
	// ByIndex returns the entry's position in the catalog.
	ByIndex
)

// Resolve maps a typed value onto a catalog. It returns nil for blank input,
// the entry (or its index) on an exact match, and the integer for numeric
// input the catalog does not know yet. A free-form name is passed through
// unchecked when the catalog is empty; otherwise it yields ErrUnresolved.
func Resolve(raw string, catalog []string, mode ResolveMode) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for i, entry := range catalog {
		if entry == raw {
			if mode == ByIndex {
				return i, nil
			}
			return entry, nil
		}
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	if len(catalog) == 0 {
		return raw, nil
	}
	return nil, ErrUnresolved
}
