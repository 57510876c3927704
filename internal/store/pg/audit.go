package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"crewplan.org/internal/audit"
)

var (
	_ audit.Sink    = (*Store)(nil)
	_ audit.Querier = (*Store)(nil)
)

// Append writes one immutable audit entry. The table carries no update or
// delete paths; the row is final once inserted.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	metaJSON := []byte("{}")
	if len(entry.Metadata) > 0 {
		bytes, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		metaJSON = bytes
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_entries
			(id, tenant_id, actor_id, entity_type, entity_id, action,
			 previous_state, new_state, decision, metadata, request_id, occurred_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, entry.ID, entry.TenantID, entry.ActorID,
		nullIfEmpty(entry.EntityType), nullIfEmpty(entry.EntityID), entry.Action,
		nullIfEmpty(entry.PreviousState), nullIfEmpty(entry.NewState),
		entry.Decision, metaJSON, nullIfEmpty(entry.RequestID), entry.OccurredAt)
	return err
}

// Query reads entries back, always filtered by tenant first.
func (s *Store) Query(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if strings.TrimSpace(f.TenantID) == "" {
		return nil, errors.New("audit query requires tenant_id")
	}

	query := strings.Builder{}
	query.WriteString(`
		select id, tenant_id, actor_id,
		       coalesce(entity_type, ''), coalesce(entity_id, ''), action,
		       coalesce(previous_state, ''), coalesce(new_state, ''),
		       decision, metadata, coalesce(request_id, ''), occurred_at
		from audit_entries
		where tenant_id = $1`)
	args := []any{f.TenantID}
	idx := 2
	if f.ActorID != "" {
		query.WriteString(fmt.Sprintf(" and actor_id = $%d", idx))
		args = append(args, f.ActorID)
		idx++
	}
	if f.EntityType != "" {
		query.WriteString(fmt.Sprintf(" and entity_type = $%d", idx))
		args = append(args, f.EntityType)
		idx++
	}
	if f.EntityID != "" {
		query.WriteString(fmt.Sprintf(" and entity_id = $%d", idx))
		args = append(args, f.EntityID)
		idx++
	}
	if !f.From.IsZero() {
		query.WriteString(fmt.Sprintf(" and occurred_at >= $%d", idx))
		args = append(args, f.From)
		idx++
	}
	if !f.To.IsZero() {
		query.WriteString(fmt.Sprintf(" and occurred_at <= $%d", idx))
		args = append(args, f.To)
		idx++
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query.WriteString(fmt.Sprintf(" order by occurred_at desc limit $%d", idx))
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry   audit.Entry
			rawMeta []byte
		)
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.ActorID,
			&entry.EntityType, &entry.EntityID, &entry.Action,
			&entry.PreviousState, &entry.NewState,
			&entry.Decision, &rawMeta, &entry.RequestID, &entry.OccurredAt); err != nil {
			return nil, err
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
