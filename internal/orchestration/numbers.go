package orchestration

import (
	"math"
	"strconv"
	"strings"
)

// parseInt parses a base-10 integer field. ok is false when the field is
// blank; err is non-nil when it is present but not an integer.
func parseInt(raw string) (value int, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, true, err
	}
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, true, strconv.ErrRange
	}
	return int(n), true, nil
}

// parseNumber parses a decimal field, rejecting NaN and infinities.
func parseNumber(raw string) (value float64, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, true, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, strconv.ErrRange
	}
	return f, true, nil
}

// intField validates an integer field against a minimum and records the
// standard message on failure. The value is only meaningful when ok is true.
func (c *collector) intField(field, raw string, min int) (int, bool) {
	v, present, err := parseInt(raw)
	if !present {
		return 0, false
	}
	if err != nil || v < min {
		c.add(field, "%s must be an integer >= %d", field, min)
		return 0, false
	}
	return v, true
}

// intRange validates an integer field against an inclusive range.
func (c *collector) intRange(field, raw string, min, max int) (int, bool) {
	v, present, err := parseInt(raw)
	if !present {
		return 0, false
	}
	if err != nil || v < min || v > max {
		c.add(field, "%s must be an integer from %d to %d", field, min, max)
		return 0, false
	}
	return v, true
}

// numberField validates a decimal field against a minimum.
func (c *collector) numberField(field, raw string, min float64) (float64, bool) {
	v, present, err := parseNumber(raw)
	if !present {
		return 0, false
	}
	if err != nil || v < min {
		c.add(field, "%s must be a number >= %s", field, formatNumber(min))
		return 0, false
	}
	return v, true
}

// formatNumber renders a payload number the way the builder text fields
// show it: integers without a decimal point, everything else in the
// shortest exact form.
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// numberValue returns the payload representation of a parsed decimal:
// whole numbers become ints so the wire form stays "2" rather than "2.0".
func numberValue(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
