package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/xid"
)

var auditColumns = []string{
	"id", "COALESCE(store_id::text, '') AS store_id", "COALESCE(user_id::text, '') AS user_id", "action",
	"entity_type", "COALESCE(entity_id, '') AS entity_id", "COALESCE(detail, '') AS detail", "created_at",
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New()
	}
	sql, args, err := builder().Insert("audit_logs").
		Columns("id", "store_id", "user_id", "action", "entity_type", "entity_id", "detail", "created_at").
		Values(entry.ID, nullIfEmpty(entry.StoreID), nullIfEmpty(entry.UserID), entry.Action, entry.EntityType,
			nullIfEmpty(entry.EntityID), nullIfEmpty(entry.Detail), entry.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit log: %w", err)
	}
	if _, err := s.q(ctx).Exec(ctx, sql, args...); err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, limit int) ([]domain.AuditLog, error) {
	q := builder().Select(auditColumns...).From("audit_logs").
		Where(squirrel.Eq{"store_id": storeID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list audit logs: %w", err)
	}

	logs := make([]domain.AuditLog, 0, 32)
	if err := pgxscan.Select(ctx, s.q(ctx), &logs, sql, args...); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", translate(err))
	}
	return logs, nil
}
