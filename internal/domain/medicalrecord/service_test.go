package medicalrecord

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayushbridge/emr/internal/domain/auditevent"
)

type mockRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*MedicalRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*MedicalRecord)}
}

func (m *mockRepo) Create(_ context.Context, r *MedicalRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.records[r.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, patientID, recordID uuid.UUID) (*MedicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok || r.PatientID != patientID {
		return nil, &NotFoundError{RecordID: recordID}
	}
	cp := *r
	return &cp, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID, _, _ int) ([]*MedicalRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*MedicalRecord
	for _, r := range m.records {
		if r.PatientID == patientID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListPending(_ context.Context, _, _ int) ([]*MedicalRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*MedicalRecord
	for _, r := range m.records {
		if r.ApprovalStatus == StatusPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ApplyDecision(_ context.Context, patientID, recordID uuid.UUID, d Decision) (*MedicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok || r.PatientID != patientID {
		return nil, &NotFoundError{RecordID: recordID}
	}
	if r.ApprovalStatus != StatusPending {
		return nil, &InvalidTransitionError{RecordID: recordID, Current: r.ApprovalStatus}
	}
	r.ApprovalStatus = d.Status
	r.CuratorID = &d.CuratorID
	r.CuratorNotes = &d.Notes
	r.ApprovedAt = d.ApprovedAt
	cp := *r
	return &cp, nil
}

type mockRecorder struct {
	mu      sync.Mutex
	entries []*auditevent.Entry
	fail    bool
}

func (m *mockRecorder) Record(_ context.Context, e *auditevent.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("audit sink down")
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockRecorder) byAction(action string) []*auditevent.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auditevent.Entry
	for _, e := range m.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func newTestService(repo Repository, rec auditevent.Recorder) *Service {
	return NewService(repo, rec, zerolog.Nop())
}

func validInput() CreateInput {
	return CreateInput{
		DoctorID:     uuid.New(),
		NamasteCode:  "NAM001",
		NamasteTerm:  "Madhumeha",
		ICDCode:      "5A11",
		ICDTerm:      "Type 2 diabetes mellitus",
		Prescription: "lifestyle counselling",
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockRecorder{})
	patientID := uuid.New()

	cases := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"missing doctor", func(in *CreateInput) { in.DoctorID = uuid.Nil }, "doctor_id"},
		{"missing namaste code", func(in *CreateInput) { in.NamasteCode = "" }, "namaste_code"},
		{"missing namaste term", func(in *CreateInput) { in.NamasteTerm = "" }, "namaste_term"},
		{"missing icd code", func(in *CreateInput) { in.ICDCode = "" }, "icd_code"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(context.Background(), patientID, in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

func TestCreateStartsPending(t *testing.T) {
	repo := newMockRepo()
	rec := &mockRecorder{}
	svc := newTestService(repo, rec)
	patientID := uuid.New()

	got, err := svc.Create(context.Background(), patientID, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.ApprovalStatus != StatusPending {
		t.Errorf("expected pending, got %s", got.ApprovalStatus)
	}
	if got.ApprovedAt != nil {
		t.Error("approved_at must be nil on creation")
	}
	if len(rec.byAction(auditevent.ActionRecordCreated)) != 1 {
		t.Error("expected one creation audit entry")
	}
}

func TestReviewApprove(t *testing.T) {
	repo := newMockRepo()
	rec := &mockRecorder{}
	svc := newTestService(repo, rec)
	patientID := uuid.New()

	created, err := svc.Create(context.Background(), patientID, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	curatorID := uuid.New()
	got, err := svc.Review(context.Background(), patientID, created.ID, ReviewInput{
		Decision:  StatusApproved,
		Notes:     "mapping verified",
		CuratorID: curatorID,
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if got.ApprovalStatus != StatusApproved {
		t.Errorf("expected approved, got %s", got.ApprovalStatus)
	}
	if got.ApprovedAt == nil {
		t.Error("approved_at must be set on approval")
	}
	if got.CuratorID == nil || *got.CuratorID != curatorID {
		t.Error("curator id not recorded")
	}

	entries := rec.byAction(auditevent.ActionRecordApproved)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one approval audit entry, got %d", len(entries))
	}
	if entries[0].Severity != "" && entries[0].Severity != auditevent.SeverityHigh {
		t.Errorf("unexpected severity %q", entries[0].Severity)
	}
	if entries[0].PreviousState["approval_status"] != string(StatusPending) {
		t.Error("previous state must capture pending status")
	}
}

func TestReviewRejectLeavesApprovedAtNil(t *testing.T) {
	repo := newMockRepo()
	rec := &mockRecorder{}
	svc := newTestService(repo, rec)
	patientID := uuid.New()

	created, _ := svc.Create(context.Background(), patientID, validInput())
	got, err := svc.Review(context.Background(), patientID, created.ID, ReviewInput{
		Decision:  StatusRejected,
		Notes:     "wrong ICD code",
		CuratorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if got.ApprovalStatus != StatusRejected {
		t.Errorf("expected rejected, got %s", got.ApprovalStatus)
	}
	if got.ApprovedAt != nil {
		t.Error("approved_at must stay nil on rejection")
	}
	if len(rec.byAction(auditevent.ActionRecordRejected)) != 1 {
		t.Error("expected one rejection audit entry")
	}
}

func TestReviewTerminalStateRejected(t *testing.T) {
	repo := newMockRepo()
	rec := &mockRecorder{}
	svc := newTestService(repo, rec)
	patientID := uuid.New()

	created, _ := svc.Create(context.Background(), patientID, validInput())
	first, err := svc.Review(context.Background(), patientID, created.ID, ReviewInput{
		Decision:  StatusApproved,
		CuratorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("first review: %v", err)
	}

	_, err = svc.Review(context.Background(), patientID, created.ID, ReviewInput{
		Decision:  StatusRejected,
		CuratorID: uuid.New(),
	})
	var terr *InvalidTransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if terr.Current != StatusApproved {
		t.Errorf("error must report current status approved, got %s", terr.Current)
	}

	after, err := svc.Get(context.Background(), patientID, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if after.ApprovalStatus != StatusApproved {
		t.Error("record must be unchanged after a rejected transition")
	}
	if after.ApprovedAt == nil || !after.ApprovedAt.Equal(*first.ApprovedAt) {
		t.Error("approved_at must be unchanged after a rejected transition")
	}
	if len(rec.byAction(auditevent.ActionRecordRejected)) != 0 {
		t.Error("failed transition must not emit an audit entry")
	}
}

func TestReviewInvalidDecision(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockRecorder{})
	_, err := svc.Review(context.Background(), uuid.New(), uuid.New(), ReviewInput{
		Decision:  ApprovalStatus("escalated"),
		CuratorID: uuid.New(),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "decision" {
		t.Errorf("expected field decision, got %q", verr.Field)
	}
}

func TestReviewNotFound(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockRecorder{})
	_, err := svc.Review(context.Background(), uuid.New(), uuid.New(), ReviewInput{
		Decision:  StatusApproved,
		CuratorID: uuid.New(),
	})
	var nerr *NotFoundError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestAuditFailureDoesNotFailReview(t *testing.T) {
	repo := newMockRepo()
	rec := &mockRecorder{}
	svc := newTestService(repo, rec)
	patientID := uuid.New()

	created, _ := svc.Create(context.Background(), patientID, validInput())

	rec.fail = true
	got, err := svc.Review(context.Background(), patientID, created.ID, ReviewInput{
		Decision:  StatusApproved,
		CuratorID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("review must succeed despite audit failure: %v", err)
	}
	if got.ApprovalStatus != StatusApproved {
		t.Errorf("expected approved, got %s", got.ApprovalStatus)
	}
}
