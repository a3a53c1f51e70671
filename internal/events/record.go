// Package events defines the per-attempt benchmark event record and its
// NDJSON persistence.
package events

import "encoding/json"

// Record is one observation of a single operation attempt. Records are
// append-only and never mutated once written.
type Record struct {
	Provider   string  `json:"provider"`
	Op         string  `json:"op"`
	Iteration  int     `json:"iteration"` // 1-based; 0 is reserved for warmup
	Attempt    int     `json:"attempt"`   // 1-based
	DurationMS float64 `json:"duration_ms"`
	ExitCode   int     `json:"exit_code"`
	Bytes      int64   `json:"bytes"`
	Error      string  `json:"error"`
}

// requiredFields must all be present for a raw line to count as a valid record.
var requiredFields = []string{"provider", "op", "iteration", "duration_ms", "bytes", "exit_code"}

// ParseLine decodes one NDJSON line. ok is false for malformed lines or lines
// missing any required field; such lines are dropped, never fatal.
func ParseLine(line []byte) (Record, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return Record{}, false
	}
	for _, field := range requiredFields {
		if _, present := raw[field]; !present {
			return Record{}, false
		}
	}

	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}
