package medicalrecord

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Decision carries a curator's review outcome into the repository.
type Decision struct {
	Status     ApprovalStatus
	CuratorID  uuid.UUID
	Notes      string
	ApprovedAt *time.Time // set only for approvals
}

// Repository persists medical records. ApplyDecision must be a
// compare-and-swap on approval_status = pending so that of two concurrent
// reviews at most one wins; the loser gets InvalidTransitionError.
type Repository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, patientID, recordID uuid.UUID) (*MedicalRecord, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error)
	ListPending(ctx context.Context, limit, offset int) ([]*MedicalRecord, int, error)
	ApplyDecision(ctx context.Context, patientID, recordID uuid.UUID, d Decision) (*MedicalRecord, error)
}
