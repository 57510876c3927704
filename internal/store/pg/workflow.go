package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"crewplan.org/internal/workflow"
)

var _ workflow.Store = (*Store)(nil)

func (s *Store) CreateInstance(ctx context.Context, inst workflow.Instance) (workflow.Instance, error) {
	if s.db == nil {
		return workflow.Instance{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		insert into workflow_instances (tenant_id, entity_type, entity_id, current_state, version)
		values ($1, $2, $3, $4, 1)
		returning tenant_id, entity_type, entity_id, current_state, version, created_at, updated_at
	`, inst.TenantID, inst.EntityType, inst.EntityID, inst.CurrentState)
	created, err := scanInstance(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return workflow.Instance{}, fmt.Errorf("%w: %s/%s", workflow.ErrConflict, inst.EntityType, inst.EntityID)
		}
		return workflow.Instance{}, err
	}
	return created, nil
}

func (s *Store) GetInstance(ctx context.Context, tenantID, entityType, entityID string) (workflow.Instance, error) {
	if s.db == nil {
		return workflow.Instance{}, errors.New("database connection unavailable")
	}
	row := s.db.QueryRowContext(ctx, `
		select tenant_id, entity_type, entity_id, current_state, version, created_at, updated_at
		from workflow_instances
		where tenant_id = $1 and entity_type = $2 and entity_id = $3
	`, tenantID, entityType, entityID)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Missing row and foreign-tenant row are the same outcome on purpose.
		return workflow.Instance{}, fmt.Errorf("%w: %s/%s", workflow.ErrNotFoundOrForbidden, entityType, entityID)
	}
	if err != nil {
		return workflow.Instance{}, err
	}
	return inst, nil
}

// ApplyTransition updates the state and appends the event in one transaction.
// The update is conditioned on the version the engine read; losing the race
// yields ErrConcurrentModification, never a silent overwrite.
func (s *Store) ApplyTransition(ctx context.Context, read workflow.Instance, newState workflow.State, event workflow.Event) (workflow.Event, error) {
	if s.db == nil {
		return workflow.Event{}, errors.New("database connection unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return workflow.Event{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update workflow_instances
		set current_state = $1, version = version + 1, updated_at = now()
		where tenant_id = $2 and entity_type = $3 and entity_id = $4
		  and current_state = $5 and version = $6
	`, newState, read.TenantID, read.EntityType, read.EntityID, read.CurrentState, read.Version)
	if err != nil {
		return workflow.Event{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return workflow.Event{}, err
	}
	if aff == 0 {
		// The instance was visible at read time, so a zero update means the
		// condition no longer holds: someone else moved the instance.
		return workflow.Event{}, fmt.Errorf("%w: %s/%s", workflow.ErrConcurrentModification, read.EntityType, read.EntityID)
	}

	metaJSON := []byte("{}")
	if len(event.Metadata) > 0 {
		metaJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return workflow.Event{}, fmt.Errorf("marshal metadata: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		insert into workflow_events
			(id, tenant_id, entity_type, entity_id, previous_state, new_state, action, actor_id, metadata, occurred_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, event.ID, event.TenantID, event.EntityType, event.EntityID,
		event.PreviousState, event.NewState, event.Action, event.ActorID, metaJSON, event.OccurredAt); err != nil {
		return workflow.Event{}, err
	}

	if err := tx.Commit(); err != nil {
		return workflow.Event{}, err
	}
	return event, nil
}

func (s *Store) Events(ctx context.Context, tenantID, entityType, entityID string) ([]workflow.Event, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, tenant_id, entity_type, entity_id, previous_state, new_state, action, actor_id, metadata, occurred_at
		from workflow_events
		where tenant_id = $1 and entity_type = $2 and entity_id = $3
		order by occurred_at asc, id asc
	`, tenantID, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []workflow.Event
	for rows.Next() {
		var (
			ev      workflow.Event
			rawMeta []byte
		)
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.EntityType, &ev.EntityID,
			&ev.PreviousState, &ev.NewState, &ev.Action, &ev.ActorID, &rawMeta, &ev.OccurredAt); err != nil {
			return nil, err
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (workflow.Instance, error) {
	var inst workflow.Instance
	err := row.Scan(&inst.TenantID, &inst.EntityType, &inst.EntityID,
		&inst.CurrentState, &inst.Version, &inst.CreatedAt, &inst.UpdatedAt)
	return inst, err
}
