package orchestration

// SegmentSpec holds the already-validated inputs of one WLED segment.
// Nil pointers and nil Effect/Palette mean "leave unchanged" and are omitted.
type SegmentSpec struct {
	ID        *int
	Colors    []*RGB
	Effect    any
	Palette   any
	Speed     *int
	Intensity *int
	Reverse   bool
	On        bool
}

// BuildSegment assembles the nested segment object. The id defaults to 0,
// rev is only ever written as 1, and col runs up to the last populated color
// with empty arrays for unset slots before it.
func BuildSegment(spec SegmentSpec) map[string]any {
	id := 0
	if spec.ID != nil {
		id = *spec.ID
	}
	seg := map[string]any{
		"id": id,
		"on": spec.On,
	}
	if spec.Effect != nil {
		seg["fx"] = spec.Effect
	}
	if spec.Palette != nil {
		seg["pal"] = spec.Palette
	}
	last := -1
	for i, c := range spec.Colors {
		if c != nil {
			last = i
		}
	}
	if last >= 0 {
		col := make([]any, last+1)
		for i := 0; i <= last; i++ {
			if c := spec.Colors[i]; c != nil {
				col[i] = []any{c[0], c[1], c[2]}
			} else {
				col[i] = []any{}
			}
		}
		seg["col"] = col
	}
	if spec.Speed != nil {
		seg["sx"] = *spec.Speed
	}
	if spec.Intensity != nil {
		seg["ix"] = *spec.Intensity
	}
	if spec.Reverse {
		seg["rev"] = 1
	}
	return seg
}
