package orchestration

import (
	"fmt"
	"math"
	"time"
)

// Estimate is the expected length of one pass through a playlist. Unknown is
// set when some step's length is only known to the engine; Seconds then
// covers just the steps with an explicit duration.
type Estimate struct {
	Seconds float64 `json:"seconds"`
	Unknown bool    `json:"unknown"`
}

// Duration returns Seconds as a time.Duration.
func (e Estimate) Duration() time.Duration {
	return time.Duration(e.Seconds * float64(time.Second))
}

func (e Estimate) String() string {
	d := e.Duration().Round(100 * time.Millisecond)
	if e.Unknown {
		if e.Seconds == 0 {
			return "unknown"
		}
		return fmt.Sprintf("at least %s", d)
	}
	return d.String()
}

// EstimateDuration sums duration_s over the compiled steps. A step without a
// duration that loops, pauses, or plays a sequence marks the total unknown.
func EstimateDuration(steps []StepPayload) Estimate {
	var est Estimate
	for _, s := range steps {
		if d, ok := wholeOrFraction(s["duration_s"]); ok {
			est.Seconds += d
			continue
		}
		loop, _ := s["loop"].(bool)
		switch s.Kind() {
		case KindPause, KindSequence:
			est.Unknown = true
		default:
			if loop {
				est.Unknown = true
			}
		}
	}
	return est
}

// wholeOrFraction reads a payload number of any of the types compile or a
// JSON decoder produce.
func wholeOrFraction(v any) (float64, bool) {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
