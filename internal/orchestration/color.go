package orchestration

import (
	"fmt"
	"strconv"
	"strings"
)

// RGB is one color triplet as the engine expects it.
type RGB [3]int

// ParseHexColor accepts "#rrggbb" or "rrggbb". ok is false for any other
// shape; callers check for blank input first to tell "absent" from "invalid".
func ParseHexColor(raw string) (RGB, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if len(s) != 6 {
		return RGB{}, false
	}
	var out RGB
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return RGB{}, false
		}
		out[i] = int(v)
	}
	return out, true
}

// RGBToHex renders a triplet as "#rrggbb", clamping each channel to 0..255.
func RGBToHex(c RGB) string {
	return fmt.Sprintf("#%02x%02x%02x", clampChannel(c[0]), clampChannel(c[1]), clampChannel(c[2]))
}

func clampChannel(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// colorFromPayload decodes an engine color array. A nil result with ok true
// is an empty slot ("[]"); ok false means the value is not a color.
func colorFromPayload(v any) (hex string, ok bool) {
	arr, isArr := v.([]any)
	if !isArr {
		return "", false
	}
	if len(arr) == 0 {
		return "", true
	}
	// RGBW arrays carry a fourth white channel the builder cannot edit.
	if len(arr) != 3 {
		return "", false
	}
	var c RGB
	for i, ch := range arr {
		n, isInt := wholeNumber(ch)
		if !isInt || n < 0 || n > 255 {
			return "", false
		}
		c[i] = n
	}
	return RGBToHex(c), true
}
