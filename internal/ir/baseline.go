package ir

// Baseline is a standard's catch-up frontier. It starts at the period that
// was current when the engine first saw the standard (or its new cadence)
// and advances past every period catch-up writes. Log-edit recomputes
// never move it.
type Baseline struct {
	StandardID string `json:"standard_id"`
	// StartMs is the start of the next period catch-up will write.
	StartMs     int64  `json:"start_ms"`
	Fingerprint string `json:"fingerprint"`
	CreatedAtMs int64  `json:"created_at_ms"`
}
