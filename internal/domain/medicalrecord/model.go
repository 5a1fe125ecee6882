package medicalrecord

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the lifecycle state of a record's diagnosis mapping.
// pending is initial; approved and rejected are terminal.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s ApprovalStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ValidDecision reports whether s is an allowed review outcome.
func (s ApprovalStatus) ValidDecision() bool {
	return s == StatusApproved || s == StatusRejected
}

// MedicalRecord is a patient-specific diagnosis event. It is distinct from a
// terminology mapping: the mapping is metadata, the record is the clinical
// fact a curator approves or rejects. Records are never deleted in normal
// flow.
type MedicalRecord struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	PatientID      uuid.UUID      `db:"patient_id" json:"patient_id"`
	DoctorID       uuid.UUID      `db:"doctor_id" json:"doctor_id"`
	NamasteCode    string         `db:"namaste_code" json:"namaste_code"`
	NamasteTerm    string         `db:"namaste_term" json:"namaste_term"`
	ICDCode        string         `db:"icd_code" json:"icd_code"`
	ICDTerm        string         `db:"icd_term" json:"icd_term"`
	Prescription   string         `db:"prescription" json:"prescription"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approval_status"`
	CuratorID      *uuid.UUID     `db:"curator_id" json:"curator_id,omitempty"`
	CuratorNotes   *string        `db:"curator_notes" json:"curator_notes,omitempty"`
	SubmittedAt    time.Time      `db:"submitted_at" json:"submitted_at"`
	ApprovedAt     *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
}

// ValidationError reports a malformed caller-supplied field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidTransitionError indicates a review attempt on a record that is not
// pending. The record is left unchanged.
type InvalidTransitionError struct {
	RecordID uuid.UUID
	Current  ApprovalStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("record %s already %s; no transition allowed", e.RecordID, e.Current)
}

// NotFoundError indicates the record does not exist for the given patient.
type NotFoundError struct {
	RecordID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("medical record %s not found", e.RecordID)
}
