package auditevent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Retention period attached to new entries. Entries are immutable; expiry is
// metadata for an external sweeper.
const retentionPeriod = 7 * 365 * 24 * time.Hour

// Recorder is the audit sink consumed by state-changing operations. Emission
// is best-effort: callers log failures and continue.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Record finalizes and persists an audit entry: id, derived severity,
// default outcome, retention expiry and timestamp.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Severity = SeverityForAction(e.Action)
	if e.Outcome == "" {
		e.Outcome = OutcomeSuccess
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ExpiresAt == nil {
		expiry := e.CreatedAt.Add(retentionPeriod)
		e.ExpiresAt = &expiry
	}

	if err := s.repo.Insert(ctx, e); err != nil {
		return err
	}

	s.logger.Info().
		Str("audit_id", e.ID.String()).
		Str("action", e.Action).
		Str("severity", e.Severity).
		Str("actor_id", e.Actor.ID).
		Str("resource", e.ResourceType+"/"+e.ResourceID).
		Msg("audit entry recorded")
	return nil
}

// GetEntry returns a single entry with sensitive state fields masked.
func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.Masked(), nil
}

// ListEntries returns entries with sensitive state fields masked.
func (s *Service) ListEntries(ctx context.Context, filters ListFilters, limit, offset int) ([]*Entry, int, error) {
	entries, total, err := s.repo.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	masked := make([]*Entry, len(entries))
	for i, e := range entries {
		masked[i] = e.Masked()
	}
	return masked, total, nil
}
