package auditevent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG creates a Postgres-backed audit repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const entryColumns = `id, action, actor_id, actor_role, actor_name, actor_email,
	resource_type, resource_id, description, severity, outcome,
	previous_state, new_state, expires_at, created_at`

func (r *repoPG) Insert(ctx context.Context, e *Entry) error {
	prev, err := marshalState(e.PreviousState)
	if err != nil {
		return fmt.Errorf("marshal previous state: %w", err)
	}
	next, err := marshalState(e.NewState)
	if err != nil {
		return fmt.Errorf("marshal new state: %w", err)
	}

	_, err = r.pool.Exec(ctx, `INSERT INTO audit_log (
		id, action, actor_id, actor_role, actor_name, actor_email,
		resource_type, resource_id, description, severity, outcome,
		previous_state, new_state, expires_at, created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		e.ID, e.Action, e.Actor.ID, e.Actor.Role, e.Actor.Name, e.Actor.Email,
		e.ResourceType, e.ResourceID, e.Description, e.Severity, e.Outcome,
		prev, next, e.ExpiresAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM audit_log WHERE id = $1`, id)
	return scanEntry(row)
}

func (r *repoPG) List(ctx context.Context, filters ListFilters, limit, offset int) ([]*Entry, int, error) {
	if limit <= 0 {
		limit = 50
	}

	var conditions []string
	var args []interface{}
	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addFilter("action", filters.Action)
	addFilter("resource_type", filters.ResourceType)
	addFilter("resource_id", filters.ResourceID)
	addFilter("actor_id", filters.ActorID)
	addFilter("severity", filters.Severity)

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM audit_log%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		entryColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var prev, next []byte
	err := row.Scan(
		&e.ID, &e.Action, &e.Actor.ID, &e.Actor.Role, &e.Actor.Name, &e.Actor.Email,
		&e.ResourceType, &e.ResourceID, &e.Description, &e.Severity, &e.Outcome,
		&prev, &next, &e.ExpiresAt, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(prev) > 0 {
		if err := json.Unmarshal(prev, &e.PreviousState); err != nil {
			return nil, fmt.Errorf("unmarshal previous state: %w", err)
		}
	}
	if len(next) > 0 {
		if err := json.Unmarshal(next, &e.NewState); err != nil {
			return nil, fmt.Errorf("unmarshal new state: %w", err)
		}
	}
	return &e, nil
}

func marshalState(state map[string]interface{}) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	return json.Marshal(state)
}
