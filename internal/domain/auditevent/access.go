package auditevent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ayushbridge/emr/internal/platform/middleware"
)

// Resource types whose reads land in the persistent audit trail. Everything
// else stays in the structured access log only; mutations are covered by the
// domain services, which emit their own entries with state snapshots.
var persistedReadResources = map[string]bool{
	"patients": true,
	"records":  true,
}

// NewAccessRecorder adapts the audit service into a request-level access
// recorder. It persists reads of patient record resources as RECORD_VIEWED
// entries.
func NewAccessRecorder(svc *Service) middleware.AccessRecorderFunc {
	return func(entry middleware.AccessEntry) error {
		if entry.Action != "read" || !persistedReadResources[entry.ResourceType] {
			return nil
		}

		actor := Actor{
			ID:    entry.UserID,
			Name:  entry.UserName,
			Email: entry.UserEmail,
		}
		if len(entry.UserRoles) > 0 {
			actor.Role = entry.UserRoles[0]
		}

		outcome := OutcomeSuccess
		if entry.StatusCode >= 400 {
			outcome = OutcomeFailure
		}

		e := &Entry{
			Action:       ActionRecordViewed,
			Actor:        actor,
			ResourceType: entry.ResourceType,
			ResourceID:   resourceIDFromPath(entry.Path, entry.ResourceType),
			Description:  fmt.Sprintf("%s %s (request %s)", entry.Method, entry.Path, entry.RequestID),
			Outcome:      outcome,
			CreatedAt:    entry.Timestamp,
		}
		return svc.Record(context.Background(), e)
	}
}

// resourceIDFromPath returns the path segment following the resource type,
// or "" for collection-level reads.
func resourceIDFromPath(path, resourceType string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if seg == resourceType && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}
