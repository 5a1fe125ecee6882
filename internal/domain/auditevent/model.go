package auditevent

import (
	"time"

	"github.com/google/uuid"
)

// Actions the platform audits. The set is closed; severity is derived from
// it, never stored independently.
const (
	ActionRecordCreated      = "RECORD_CREATED"
	ActionRecordApproved     = "RECORD_APPROVED"
	ActionRecordRejected     = "RECORD_REJECTED"
	ActionRecordViewed       = "RECORD_VIEWED"
	ActionTerminologyLoaded  = "TERMINOLOGY_LOADED"
	ActionUserLogin          = "USER_LOGIN"
	ActionUserLoginFailed    = "USER_LOGIN_FAILED"
	ActionPermissionDenied   = "PERMISSION_DENIED"
	ActionDataExported       = "DATA_EXPORTED"
	ActionConfigChanged      = "CONFIG_CHANGED"
)

// Severity levels.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeWarning = "warning"
)

var criticalActions = map[string]bool{
	ActionConfigChanged: true,
}

var highActions = map[string]bool{
	ActionRecordApproved:   true,
	ActionRecordRejected:   true,
	ActionPermissionDenied: true,
	ActionDataExported:     true,
}

var mediumActions = map[string]bool{
	ActionRecordCreated:     true,
	ActionUserLoginFailed:   true,
	ActionTerminologyLoaded: true,
}

// SeverityForAction derives severity purely from the action.
func SeverityForAction(action string) string {
	switch {
	case criticalActions[action]:
		return SeverityCritical
	case highActions[action]:
		return SeverityHigh
	case mediumActions[action]:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Actor is a snapshot of who performed the action; it is captured at write
// time so later role or name changes never rewrite history.
type Actor struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Entry is an append-only audit record. Never mutated after creation; the
// retention policy attaches an expiry but the entry itself is immutable.
type Entry struct {
	ID            uuid.UUID              `db:"id" json:"id"`
	Action        string                 `db:"action" json:"action"`
	Actor         Actor                  `json:"actor"`
	ResourceType  string                 `db:"resource_type" json:"resource_type"`
	ResourceID    string                 `db:"resource_id" json:"resource_id"`
	Description   string                 `db:"description" json:"description"`
	Severity      string                 `db:"severity" json:"severity"`
	Outcome       string                 `db:"outcome" json:"outcome"`
	PreviousState map[string]interface{} `db:"previous_state" json:"previous_state,omitempty"`
	NewState      map[string]interface{} `db:"new_state" json:"new_state,omitempty"`
	ExpiresAt     *time.Time             `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt     time.Time              `db:"created_at" json:"created_at"`
}

// sensitiveKeys are masked when state snapshots are read back out.
var sensitiveKeys = map[string]bool{
	"password":     true,
	"token":        true,
	"secret":       true,
	"prescription": true,
	"email":        true,
	"phone":        true,
}

const maskValue = "***"

// MaskState returns a copy of a state snapshot with sensitive fields masked.
// Masking happens on read; the stored snapshot keeps the original values.
func MaskState(state map[string]interface{}) map[string]interface{} {
	if state == nil {
		return nil
	}
	masked := make(map[string]interface{}, len(state))
	for k, v := range state {
		if sensitiveKeys[k] {
			masked[k] = maskValue
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			masked[k] = MaskState(nested)
			continue
		}
		masked[k] = v
	}
	return masked
}

// Masked returns a read-safe copy of the entry with state snapshots masked.
func (e *Entry) Masked() *Entry {
	out := *e
	out.PreviousState = MaskState(e.PreviousState)
	out.NewState = MaskState(e.NewState)
	return &out
}
