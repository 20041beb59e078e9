package ir

// MutationType is the kind of change applied to a log entry.
type MutationType string

const (
	MutationCreate  MutationType = "create"
	MutationUpdate  MutationType = "update"
	MutationDelete  MutationType = "delete"
	MutationRestore MutationType = "restore"
)

// LogMutation is published after a log entry write succeeds.
//
// PreviousOccurredAtMs is set when an update moved the entry to a different
// instant, so the period it left can be recomputed as well.
type LogMutation struct {
	Type                 MutationType `json:"type"`
	StandardID           string       `json:"standard_id"`
	LogEntryID           string       `json:"log_entry_id,omitempty"`
	OccurredAtMs         int64        `json:"occurred_at_ms"`
	PreviousOccurredAtMs *int64       `json:"previous_occurred_at_ms,omitempty"`
}

// StandardChangeType is the kind of change applied to a standard.
type StandardChangeType string

const (
	StandardCreated  StandardChangeType = "created"
	StandardUpdated  StandardChangeType = "updated"
	StandardArchived StandardChangeType = "archived"
	StandardDeleted  StandardChangeType = "deleted"
)

// StandardChange is published whenever the set of active standards or the
// definition of one of them changes.
type StandardChange struct {
	Type       StandardChangeType `json:"type"`
	StandardID string             `json:"standard_id"`
}
