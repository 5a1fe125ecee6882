package medicalrecord

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayushbridge/emr/internal/domain/auditevent"
)

// CreateInput is a doctor's record submission.
type CreateInput struct {
	DoctorID     uuid.UUID `json:"doctor_id"`
	NamasteCode  string    `json:"namaste_code"`
	NamasteTerm  string    `json:"namaste_term"`
	ICDCode      string    `json:"icd_code"`
	ICDTerm      string    `json:"icd_term"`
	Prescription string    `json:"prescription"`
}

// ReviewInput is a curator's decision on a pending record.
type ReviewInput struct {
	Decision  ApprovalStatus `json:"decision"`
	Notes     string         `json:"notes"`
	CuratorID uuid.UUID      `json:"-"`
}

type Service struct {
	repo    Repository
	auditor auditevent.Recorder
	logger  zerolog.Logger
}

func NewService(repo Repository, auditor auditevent.Recorder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, auditor: auditor, logger: logger}
}

// Create validates and persists a new record in pending state, then emits a
// creation audit entry.
func (s *Service) Create(ctx context.Context, patientID uuid.UUID, in CreateInput) (*MedicalRecord, error) {
	if in.DoctorID == uuid.Nil {
		return nil, &ValidationError{Field: "doctor_id", Message: "is required"}
	}
	if in.NamasteCode == "" {
		return nil, &ValidationError{Field: "namaste_code", Message: "is required"}
	}
	if in.NamasteTerm == "" {
		return nil, &ValidationError{Field: "namaste_term", Message: "is required"}
	}
	if in.ICDCode == "" {
		return nil, &ValidationError{Field: "icd_code", Message: "is required"}
	}

	rec := &MedicalRecord{
		ID:             uuid.New(),
		PatientID:      patientID,
		DoctorID:       in.DoctorID,
		NamasteCode:    in.NamasteCode,
		NamasteTerm:    in.NamasteTerm,
		ICDCode:        in.ICDCode,
		ICDTerm:        in.ICDTerm,
		Prescription:   in.Prescription,
		ApprovalStatus: StatusPending,
		SubmittedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, &auditevent.Entry{
		Action: auditevent.ActionRecordCreated,
		Actor:  auditevent.Actor{ID: in.DoctorID.String(), Role: "doctor"},
		ResourceType: "MedicalRecord",
		ResourceID:   rec.ID.String(),
		Description:  fmt.Sprintf("record submitted with mapping %s -> %s", rec.NamasteCode, rec.ICDCode),
		NewState:     stateSnapshot(rec),
	})
	return rec, nil
}

// Get returns a single record scoped to the patient.
func (s *Service) Get(ctx context.Context, patientID, recordID uuid.UUID) (*MedicalRecord, error) {
	return s.repo.GetByID(ctx, patientID, recordID)
}

// ListByPatient returns a patient's records, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// ListPending returns the curator work queue.
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*MedicalRecord, int, error) {
	return s.repo.ListPending(ctx, limit, offset)
}

// Review transitions a pending record to approved or rejected. Exactly one
// audit entry is emitted per successful transition, after the mutation is
// durable; a failed transition emits nothing. The approved_at timestamp is
// stamped only on approval.
func (s *Service) Review(ctx context.Context, patientID, recordID uuid.UUID, in ReviewInput) (*MedicalRecord, error) {
	if !in.Decision.ValidDecision() {
		return nil, &ValidationError{Field: "decision", Message: "must be approved or rejected"}
	}
	if in.CuratorID == uuid.Nil {
		return nil, &ValidationError{Field: "curator_id", Message: "is required"}
	}

	prev, err := s.repo.GetByID(ctx, patientID, recordID)
	if err != nil {
		return nil, err
	}
	if prev.ApprovalStatus.IsTerminal() {
		return nil, &InvalidTransitionError{RecordID: recordID, Current: prev.ApprovalStatus}
	}

	d := Decision{Status: in.Decision, CuratorID: in.CuratorID, Notes: in.Notes}
	if in.Decision == StatusApproved {
		now := time.Now().UTC()
		d.ApprovedAt = &now
	}

	rec, err := s.repo.ApplyDecision(ctx, patientID, recordID, d)
	if err != nil {
		return nil, err
	}

	action := auditevent.ActionRecordApproved
	if in.Decision == StatusRejected {
		action = auditevent.ActionRecordRejected
	}
	s.emitAudit(ctx, &auditevent.Entry{
		Action: action,
		Actor:  auditevent.Actor{ID: in.CuratorID.String(), Role: "curator"},
		ResourceType:  "MedicalRecord",
		ResourceID:    rec.ID.String(),
		Description:   fmt.Sprintf("record %s by curator", in.Decision),
		PreviousState: stateSnapshot(prev),
		NewState:      stateSnapshot(rec),
	})
	return rec, nil
}

// emitAudit is best-effort: a sink failure is logged and never surfaces to
// the caller, since the clinical mutation is already durable.
func (s *Service) emitAudit(ctx context.Context, e *auditevent.Entry) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("action", e.Action).
			Str("resource_id", e.ResourceID).
			Msg("audit emission failed")
	}
}

func stateSnapshot(r *MedicalRecord) map[string]interface{} {
	snap := map[string]interface{}{
		"approval_status": string(r.ApprovalStatus),
		"namaste_code":    r.NamasteCode,
		"icd_code":        r.ICDCode,
		"prescription":    r.Prescription,
	}
	if r.CuratorID != nil {
		snap["curator_id"] = r.CuratorID.String()
	}
	if r.ApprovedAt != nil {
		snap["approved_at"] = r.ApprovedAt.UTC().Format(time.RFC3339)
	}
	return snap
}
