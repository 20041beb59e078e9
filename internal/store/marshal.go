package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/cadence/internal/ir"
)

// marshalSnapshot converts a StandardSnapshot to JSON TEXT.
// HTML escaping is disabled so units like "<5k" are stored verbatim.
func marshalSnapshot(snap ir.StandardSnapshot) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalSnapshot parses JSON TEXT to a StandardSnapshot.
func unmarshalSnapshot(data string) (ir.StandardSnapshot, error) {
	var snap ir.StandardSnapshot
	if strings.TrimSpace(data) == "" {
		return snap, fmt.Errorf("unmarshal snapshot: %w: empty document", ir.ErrMalformedRollup)
	}
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return snap, fmt.Errorf("unmarshal snapshot: %w: %v", ir.ErrMalformedRollup, err)
	}
	return snap, nil
}
