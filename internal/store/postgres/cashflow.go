package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

var cashFlowColumns = []string{
	"id", "store_id", "COALESCE(customer_id::text, '') AS customer_id", "type", "category", "description", "amount",
	"COALESCE(payment_method, '') AS payment_method", "COALESCE(reference, '') AS reference", "created_at", "updated_at",
}

func (s *Store) ListCashFlowEntries(ctx context.Context, storeID string, filter domain.CashFlowFilter) ([]domain.CashFlowEntry, error) {
	q := builder().Select(cashFlowColumns...).From("cash_flow_entries").
		Where(squirrel.Eq{"store_id": storeID}).
		OrderBy("created_at DESC", "id DESC")
	if filter.Type != "" {
		q = q.Where(squirrel.Eq{"type": filter.Type})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.To})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list cash flow: %w", err)
	}

	entries := make([]domain.CashFlowEntry, 0, 32)
	if err := pgxscan.Select(ctx, s.q(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("list cash flow: %w", translate(err))
	}
	return entries, nil
}

func (s *Store) GetCashFlowEntry(ctx context.Context, id string) (*domain.CashFlowEntry, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	sql, args, err := builder().Select(cashFlowColumns...).From("cash_flow_entries").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get cash flow: %w", err)
	}

	var e domain.CashFlowEntry
	if err := pgxscan.Get(ctx, s.q(ctx), &e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get cash flow: %w", translate(err))
	}
	return &e, nil
}

func (s *Store) CreateCashFlowEntry(ctx context.Context, e domain.CashFlowEntry) (*domain.CashFlowEntry, error) {
	sql, args, err := builder().Insert("cash_flow_entries").
		Columns("id", "store_id", "customer_id", "type", "category", "description", "amount", "payment_method", "reference", "created_at", "updated_at").
		Values(e.ID, e.StoreID, nullIfEmpty(e.CustomerID), e.Type, e.Category, e.Description, e.Amount,
			nullIfEmpty(e.PaymentMethod), nullIfEmpty(e.Reference), e.CreatedAt, e.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert cash flow: %w", err)
	}
	if _, err := s.q(ctx).Exec(ctx, sql, args...); err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *Store) UpdateCashFlowEntry(ctx context.Context, e domain.CashFlowEntry) (*domain.CashFlowEntry, error) {
	sql, args, err := builder().Update("cash_flow_entries").
		Set("type", e.Type).
		Set("category", e.Category).
		Set("description", e.Description).
		Set("amount", e.Amount).
		Set("payment_method", nullIfEmpty(e.PaymentMethod)).
		Set("reference", nullIfEmpty(e.Reference)).
		Set("updated_at", e.UpdatedAt).
		Where(squirrel.Eq{"id": e.ID}).
		Suffix("RETURNING " + joinColumns(cashFlowColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update cash flow: %w", err)
	}

	var updated domain.CashFlowEntry
	if err := pgxscan.Get(ctx, s.q(ctx), &updated, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, translate(err)
	}
	return &updated, nil
}

func (s *Store) DeleteCashFlowEntry(ctx context.Context, id string) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM cash_flow_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete cash flow: %w", translate(err))
	}
	return requireAffected(tag)
}
