package ir

// Window is a derived period: the half-open interval [StartMs, EndMs).
// It is never stored on its own; rollups copy its fields.
type Window struct {
	StartMs   int64  `json:"start_ms"`
	EndMs     int64  `json:"end_ms"`
	Label     string `json:"label"`
	PeriodKey string `json:"period_key"`
}

// Contains reports whether ms falls inside [StartMs, EndMs).
func (w Window) Contains(ms int64) bool {
	return w.StartMs <= ms && ms < w.EndMs
}

// Elapsed reports whether the window has fully elapsed at nowMs.
func (w Window) Elapsed(nowMs int64) bool {
	return w.EndMs <= nowMs
}
