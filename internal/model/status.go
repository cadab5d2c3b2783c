package model

// Status is the derived lifecycle state of a work item. It is a pure
// function of the stored data and the current time, never stored itself.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusOverdue    Status = "overdue"
)

// StatusMeta is the derived status summary for a single item.
// It is computed on demand and never persisted.
type StatusMeta struct {
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Done     int    `json:"done"`
	Total    int    `json:"total"`
}

// Variant is the presentation-facing classification of a status. Downstream
// shells key color and semantics off this value.
type Variant string

const (
	VariantSuccess Variant = "success"
	VariantWarning Variant = "warning"
	VariantError   Variant = "error"
	VariantNeutral Variant = "neutral"
)

// VariantFor maps a status to its display variant. This is the single
// point of truth for the mapping: adding a Status value requires a case
// here, not a per-view copy.
func VariantFor(status Status) Variant {
	switch status {
	case StatusCompleted:
		return VariantSuccess
	case StatusInProgress:
		return VariantWarning
	case StatusOverdue:
		return VariantError
	default:
		return VariantNeutral
	}
}
