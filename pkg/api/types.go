package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TypeCount is one category in an equipment type distribution.
type TypeCount struct {
	Label string
	Count int
}

// Distribution is an ordered mapping of equipment category label to count.
// The service emits it as a JSON object; key order is meaningful to the
// chart renderers, so it is decoded into a slice rather than a Go map.
type Distribution []TypeCount

// UnmarshalJSON decodes a JSON object while preserving key order.
func (d *Distribution) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("distribution: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("distribution: expected object, got %v", tok)
	}

	out := Distribution{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("distribution: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("distribution: non-string key %v", keyTok)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("distribution: count for %q: %w", key, err)
		}
		out = append(out, TypeCount{Label: key, Count: count})
	}
	*d = out
	return nil
}

// MarshalJSON encodes the distribution back to a JSON object in order.
func (d Distribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tc := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(tc.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", tc.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Labels returns the category labels in insertion order.
func (d Distribution) Labels() []string {
	out := make([]string, len(d))
	for i, tc := range d {
		out[i] = tc.Label
	}
	return out
}

// MaxCount returns the largest count in the distribution (0 when empty).
func (d Distribution) MaxCount() int {
	max := 0
	for _, tc := range d {
		if tc.Count > max {
			max = tc.Count
		}
	}
	return max
}

// UploadResult is the aggregate the service computes for one CSV upload.
// Scalar fields are unit-less to the client and rendered verbatim.
type UploadResult struct {
	TotalEquipment     int          `json:"total_equipment"`
	AverageFlowrate    float64      `json:"average_flowrate"`
	AveragePressure    float64      `json:"average_pressure"`
	AverageTemperature float64      `json:"average_temperature"`
	TypeDistribution   Distribution `json:"equipment_type_distribution"`
}

// HistoryEntry is a snapshot summary of one past upload, retained server-side.
// The sequence returned by the history endpoint is most-recent-first and at
// most five entries long; the client renders it as received.
type HistoryEntry struct {
	UploadedAt         string       `json:"uploaded_at"`
	TotalEquipment     int          `json:"total_equipment"`
	AverageFlowrate    float64      `json:"average_flowrate"`
	AveragePressure    float64      `json:"average_pressure"`
	AverageTemperature float64      `json:"average_temperature"`
	TypeDistribution   Distribution `json:"equipment_type_distribution"`
}
