package value

import "strconv"

// tryParseInt implements the "Integer-form detection": a string
// that round-trips through decimal parsing back to itself and fits a signed
// 64-bit word is eligible for the INT encoding.
func tryParseInt(b []byte) (int64, bool) {
	if len(b) == 0 || len(b) > 20 {
		return 0, false
	}
	iv, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false
	}
	if strconv.FormatInt(iv, 10) != string(b) {
		return 0, false
	}
	return iv, true
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
