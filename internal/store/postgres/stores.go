package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

var storeColumns = []string{
	"id", "name", "COALESCE(address, '') AS address", "COALESCE(phone, '') AS phone",
	"timezone", "currency", "low_stock_threshold", "created_at", "updated_at",
}

func (s *Store) ListStores(ctx context.Context, ids []string) ([]domain.Store, error) {
	q := builder().Select(storeColumns...).From("stores").OrderBy("name")
	if ids != nil {
		if len(ids) == 0 {
			return []domain.Store{}, nil
		}
		q = q.Where("id::text = ANY(?)", ids)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list stores: %w", err)
	}

	stores := make([]domain.Store, 0, 8)
	if err := pgxscan.Select(ctx, s.q(ctx), &stores, sql, args...); err != nil {
		return nil, fmt.Errorf("list stores: %w", translate(err))
	}
	return stores, nil
}

func (s *Store) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	sql, args, err := builder().Select(storeColumns...).From("stores").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get store: %w", err)
	}

	var st domain.Store
	if err := pgxscan.Get(ctx, s.q(ctx), &st, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get store: %w", translate(err))
	}
	return &st, nil
}

func (s *Store) CreateStore(ctx context.Context, st domain.Store) (*domain.Store, error) {
	sql, args, err := builder().Insert("stores").
		Columns("id", "name", "address", "phone", "timezone", "currency", "low_stock_threshold", "created_at", "updated_at").
		Values(st.ID, st.Name, nullIfEmpty(st.Address), nullIfEmpty(st.Phone), st.Timezone, st.Currency, st.LowStockThreshold, st.CreatedAt, st.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert store: %w", err)
	}
	if _, err := s.q(ctx).Exec(ctx, sql, args...); err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

func (s *Store) UpdateStore(ctx context.Context, st domain.Store) (*domain.Store, error) {
	sql, args, err := builder().Update("stores").
		Set("name", st.Name).
		Set("address", nullIfEmpty(st.Address)).
		Set("phone", nullIfEmpty(st.Phone)).
		Set("timezone", st.Timezone).
		Set("currency", st.Currency).
		Set("low_stock_threshold", st.LowStockThreshold).
		Set("updated_at", st.UpdatedAt).
		Where(squirrel.Eq{"id": st.ID}).
		Suffix("RETURNING " + joinColumns(storeColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update store: %w", err)
	}

	var updated domain.Store
	if err := pgxscan.Get(ctx, s.q(ctx), &updated, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, translate(err)
	}
	return &updated, nil
}
