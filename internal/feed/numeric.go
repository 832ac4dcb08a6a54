package feed

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`[-+]?\d*\.?\d+(?:[eE][-+]?\d+)?`)

// parseFloat reads a raw JSON value as a float. Numbers are taken as-is; strings are
// scanned for the first numeric token with ',' accepted as the decimal separator.
// Absent, null and unparseable values report ok=false.
func parseFloat(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		m := numberPattern.FindString(s)
		if m == "" {
			return 0, false
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// parseID reads a vessel identifier. Fractional or non-positive values are rejected.
func parseID(raw json.RawMessage) (int64, bool) {
	v, ok := parseFloat(raw)
	if !ok || v <= 0 || v != float64(int64(v)) {
		return 0, false
	}
	return int64(v), true
}
