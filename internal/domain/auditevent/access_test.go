package auditevent

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayushbridge/emr/internal/platform/middleware"
)

type insertOnlyRepo struct {
	inserted []*Entry
}

func (r *insertOnlyRepo) Insert(ctx context.Context, e *Entry) error {
	r.inserted = append(r.inserted, e)
	return nil
}

func (r *insertOnlyRepo) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return nil, nil
}

func (r *insertOnlyRepo) List(ctx context.Context, filters ListFilters, limit, offset int) ([]*Entry, int, error) {
	return nil, 0, nil
}

func TestAccessRecorderPersistsRecordReads(t *testing.T) {
	repo := &insertOnlyRepo{}
	rec := NewAccessRecorder(NewService(repo, zerolog.Nop()))

	err := rec.RecordAccess(middleware.AccessEntry{
		UserID:       "user-1",
		UserName:     "Dr Rao",
		UserEmail:    "rao@example.org",
		UserRoles:    []string{"doctor", "admin"},
		ResourceType: "records",
		Action:       "read",
		Path:         "/api/v1/records/rec-42",
		Method:       "GET",
		Timestamp:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		RequestID:    "req-7",
		StatusCode:   200,
	})
	if err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted %d entries, want 1", len(repo.inserted))
	}
	e := repo.inserted[0]
	if e.Action != ActionRecordViewed {
		t.Errorf("Action = %q, want %q", e.Action, ActionRecordViewed)
	}
	if e.Actor.ID != "user-1" || e.Actor.Role != "doctor" {
		t.Errorf("Actor = %+v", e.Actor)
	}
	if e.Actor.Name != "Dr Rao" || e.Actor.Email != "rao@example.org" {
		t.Errorf("Actor identity = %+v", e.Actor)
	}
	if e.ResourceID != "rec-42" {
		t.Errorf("ResourceID = %q, want rec-42", e.ResourceID)
	}
	if e.Outcome != OutcomeSuccess {
		t.Errorf("Outcome = %q, want success", e.Outcome)
	}
}

func TestAccessRecorderSkipsMutationsAndOtherResources(t *testing.T) {
	cases := []middleware.AccessEntry{
		{ResourceType: "records", Action: "create", Path: "/api/v1/patients/p1/records"},
		{ResourceType: "records", Action: "update", Path: "/api/v1/records/rec-1/review"},
		{ResourceType: "CodeSystem", Action: "read", Path: "/fhir/CodeSystem/namaste"},
		{ResourceType: "terminology", Action: "read", Path: "/api/v1/terminology/search"},
	}
	repo := &insertOnlyRepo{}
	rec := NewAccessRecorder(NewService(repo, zerolog.Nop()))

	for _, entry := range cases {
		if err := rec.RecordAccess(entry); err != nil {
			t.Fatalf("RecordAccess(%s %s): %v", entry.Action, entry.Path, err)
		}
	}
	if len(repo.inserted) != 0 {
		t.Errorf("inserted %d entries, want 0", len(repo.inserted))
	}
}

func TestAccessRecorderFailureOutcome(t *testing.T) {
	repo := &insertOnlyRepo{}
	rec := NewAccessRecorder(NewService(repo, zerolog.Nop()))

	err := rec.RecordAccess(middleware.AccessEntry{
		UserID:       "user-2",
		ResourceType: "patients",
		Action:       "read",
		Path:         "/api/v1/patients/p9/records",
		Method:       "GET",
		StatusCode:   404,
	})
	if err != nil {
		t.Fatalf("RecordAccess: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted %d entries, want 1", len(repo.inserted))
	}
	e := repo.inserted[0]
	if e.Outcome != OutcomeFailure {
		t.Errorf("Outcome = %q, want failure", e.Outcome)
	}
	if e.ResourceID != "p9" {
		t.Errorf("ResourceID = %q, want p9", e.ResourceID)
	}
}
