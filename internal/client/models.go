package client

import (
	"encoding/json"
	"sort"
)

// DeviceStatus is a flat snapshot of the device's reported state:
// power, mode, fan speed, sensor readings, filter life, identifiers.
// Each status read or observation produces a fresh map; snapshots are
// never mutated in place and are safe to hand across goroutines.
type DeviceStatus map[string]any

// String returns the value for key rendered as a string, and whether
// the key is present.
func (s DeviceStatus) String(key string) (string, bool) {
	v, ok := s[key]
	if !ok {
		return "", false
	}
	if str, ok := v.(string); ok {
		return str, true
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// SortedKeys returns the status field names in lexical order.
func (s DeviceStatus) SortedKeys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// statusDocument is the JSON shape of a decrypted status payload.
type statusDocument struct {
	State struct {
		Reported DeviceStatus `json:"reported"`
	} `json:"state"`
}

// controlResponse is the (plaintext) JSON shape of a control reply.
type controlResponse struct {
	Status string `json:"status"`
}

// controlAccepted is the status value the device sends when it applied
// the desired state.
const controlAccepted = "success"

// buildControlPayload wraps the desired fields in the document shape
// the device expects. CommandType/DeviceId/EnduserId are boilerplate
// the firmware requires on every control message; caller fields
// override them if present.
func buildControlPayload(values map[string]any) ([]byte, error) {
	desired := map[string]any{
		"CommandType": "app",
		"DeviceId":    "",
		"EnduserId":   "",
	}
	for k, v := range values {
		desired[k] = v
	}

	return json.Marshal(map[string]any{
		"state": map[string]any{
			"desired": desired,
		},
	})
}
