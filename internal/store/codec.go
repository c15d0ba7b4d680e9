package store

import "encoding/json"

// encodeHeaders/decodeHeaders serialize the lowercased-header snapshot stored
// alongside a check row. Falls back to an empty map on malformed JSON rather
// than failing a read path.
func encodeHeaders(h map[string]string) string {
	if len(h) == 0 {
		return "{}"
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeHeaders(s string) map[string]string {
	if s == "" {
		return nil
	}
	var h map[string]string
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil
	}
	return h
}

func encodeIndexes(idx map[string]string) string {
	if len(idx) == 0 {
		return "{}"
	}
	b, err := json.Marshal(idx)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeIndexes(s string) map[string]string {
	if s == "" {
		return nil
	}
	var idx map[string]string
	if err := json.Unmarshal([]byte(s), &idx); err != nil {
		return nil
	}
	return idx
}
