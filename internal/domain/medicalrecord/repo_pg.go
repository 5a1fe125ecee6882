package medicalrecord

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG creates a Postgres-backed medical record repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const recordColumns = `id, patient_id, doctor_id, namaste_code, namaste_term,
	icd_code, icd_term, prescription, approval_status, curator_id,
	curator_notes, submitted_at, approved_at`

func (r *repoPG) Create(ctx context.Context, rec *MedicalRecord) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO medical_records (
		id, patient_id, doctor_id, namaste_code, namaste_term,
		icd_code, icd_term, prescription, approval_status, submitted_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.PatientID, rec.DoctorID, rec.NamasteCode, rec.NamasteTerm,
		rec.ICDCode, rec.ICDTerm, rec.Prescription, rec.ApprovalStatus, rec.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert medical record: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, patientID, recordID uuid.UUID) (*MedicalRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM medical_records WHERE id = $1 AND patient_id = $2`,
		recordID, patientID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{RecordID: recordID}
	}
	return rec, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalRecord, int, error) {
	return r.list(ctx,
		`WHERE patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *repoPG) ListPending(ctx context.Context, limit, offset int) ([]*MedicalRecord, int, error) {
	return r.list(ctx,
		`WHERE approval_status = $1`, []interface{}{StatusPending}, limit, offset)
}

func (r *repoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*MedicalRecord, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_records `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count medical records: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM medical_records %s ORDER BY submitted_at DESC LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list medical records: %w", err)
	}
	defer rows.Close()

	var records []*MedicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// ApplyDecision performs the approval transition as a conditional update on
// approval_status = pending. When the row exists but is already decided the
// update matches nothing and the current status is fetched to build an
// InvalidTransitionError.
func (r *repoPG) ApplyDecision(ctx context.Context, patientID, recordID uuid.UUID, d Decision) (*MedicalRecord, error) {
	row := r.pool.QueryRow(ctx, `UPDATE medical_records
		SET approval_status = $1, curator_id = $2, curator_notes = $3, approved_at = $4
		WHERE id = $5 AND patient_id = $6 AND approval_status = $7
		RETURNING `+recordColumns,
		d.Status, d.CuratorID, d.Notes, d.ApprovedAt,
		recordID, patientID, StatusPending)

	rec, err := scanRecord(row)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("apply decision: %w", err)
	}

	existing, getErr := r.GetByID(ctx, patientID, recordID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, &InvalidTransitionError{RecordID: recordID, Current: existing.ApprovalStatus}
}

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var rec MedicalRecord
	err := row.Scan(
		&rec.ID, &rec.PatientID, &rec.DoctorID, &rec.NamasteCode, &rec.NamasteTerm,
		&rec.ICDCode, &rec.ICDTerm, &rec.Prescription, &rec.ApprovalStatus,
		&rec.CuratorID, &rec.CuratorNotes, &rec.SubmittedAt, &rec.ApprovedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
