package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

var productColumns = []string{
	"id", "store_id", "name", "sku", "price_buy", "price_sell", "stock", "unit",
	"COALESCE(category, '') AS category", "is_active", "created_at", "updated_at",
}

var movementColumns = []string{
	"id", "product_id", "store_id", "type", "quantity",
	"COALESCE(reference, '') AS reference", "COALESCE(notes, '') AS notes", "created_at",
}

func (s *Store) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	sql, args, err := builder().Select(productColumns...).From("products").
		Where(squirrel.Eq{"store_id": storeID, "is_active": true}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list products: %w", err)
	}

	products := make([]domain.Product, 0, 64)
	if err := pgxscan.Select(ctx, s.q(ctx), &products, sql, args...); err != nil {
		return nil, fmt.Errorf("list products: %w", translate(err))
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	sql, args, err := builder().Select(productColumns...).From("products").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get product: %w", err)
	}

	var p domain.Product
	if err := pgxscan.Get(ctx, s.q(ctx), &p, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", translate(err))
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, storeID string, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	sql, args, err := builder().Select(productColumns...).From("products").
		Where(squirrel.Eq{"store_id": storeID}).
		Where("id::text = ANY(?)", ids).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get products: %w", err)
	}

	var products []domain.Product
	if err := pgxscan.Select(ctx, s.q(ctx), &products, sql, args...); err != nil {
		return nil, fmt.Errorf("get products: %w", translate(err))
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		sql, args, err := builder().Insert("products").
			Columns("id", "store_id", "name", "sku", "price_buy", "price_sell", "stock", "unit", "category", "is_active", "created_at", "updated_at").
			Values(p.ID, p.StoreID, p.Name, p.SKU, p.PriceBuy, p.PriceSell, p.Stock, p.Unit, nullIfEmpty(p.Category), p.IsActive, p.CreatedAt, p.UpdatedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert product: %w", err)
		}
		if _, err := s.q(ctx).Exec(ctx, sql, args...); err != nil {
			return translate(err)
		}
		if p.Stock > 0 {
			return s.insertMovement(ctx, domain.StockMovement{
				ID:        xid.New(),
				ProductID: p.ID,
				StoreID:   p.StoreID,
				Type:      domain.MovementIn,
				Quantity:  p.Stock,
				Reference: "initial-stock",
				CreatedAt: p.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	sql, args, err := builder().Update("products").
		Set("name", p.Name).
		Set("sku", p.SKU).
		Set("price_buy", p.PriceBuy).
		Set("price_sell", p.PriceSell).
		Set("unit", p.Unit).
		Set("category", nullIfEmpty(p.Category)).
		Set("is_active", p.IsActive).
		Set("updated_at", p.UpdatedAt).
		Where(squirrel.Eq{"id": p.ID}).
		Suffix("RETURNING " + joinColumns(productColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update product: %w", err)
	}

	var updated domain.Product
	if err := pgxscan.Get(ctx, s.q(ctx), &updated, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, translate(err)
	}
	return &updated, nil
}

func (s *Store) DeactivateProduct(ctx context.Context, id string) error {
	tag, err := s.q(ctx).Exec(ctx, `UPDATE products SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate product: %w", translate(err))
	}
	return requireAffected(tag)
}

// ApplyStockMovement relies on the stock check constraint to reject a
// negative result, so concurrent adjustments cannot race past zero.
func (s *Store) ApplyStockMovement(ctx context.Context, m domain.StockMovement) (*domain.Product, error) {
	if m.Quantity == 0 {
		return nil, store.ErrInvalidInput
	}
	if m.ID == "" {
		m.ID = xid.New()
	}

	var updated domain.Product
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		sql := `UPDATE products SET stock = stock + $1, updated_at = $2 WHERE id = $3 RETURNING ` + joinColumns(productColumns)
		if err := pgxscan.Get(ctx, s.q(ctx), &updated, sql, m.Quantity, m.CreatedAt, m.ProductID); err != nil {
			if pgxscan.NotFound(err) {
				return store.ErrNotFound
			}
			return translate(err)
		}
		m.StoreID = updated.StoreID
		return s.insertMovement(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) insertMovement(ctx context.Context, m domain.StockMovement) error {
	sql, args, err := builder().Insert("stock_movements").
		Columns("id", "product_id", "store_id", "type", "quantity", "reference", "notes", "created_at").
		Values(m.ID, m.ProductID, m.StoreID, m.Type, m.Quantity, nullIfEmpty(m.Reference), nullIfEmpty(m.Notes), m.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert movement: %w", err)
	}
	if _, err := s.q(ctx).Exec(ctx, sql, args...); err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) ListStockMovements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	q := builder().Select(movementColumns...).From("stock_movements").
		Where(squirrel.Eq{"product_id": productID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list movements: %w", err)
	}

	movements := make([]domain.StockMovement, 0, 32)
	if err := pgxscan.Select(ctx, s.q(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", translate(err))
	}
	return movements, nil
}

func (s *Store) ListLowStockProducts(ctx context.Context, storeID string, threshold int) ([]domain.Product, error) {
	sql, args, err := builder().Select(productColumns...).From("products").
		Where(squirrel.Eq{"store_id": storeID, "is_active": true}).
		Where(squirrel.LtOrEq{"stock": threshold}).
		OrderBy("stock", "name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build low stock: %w", err)
	}

	products := make([]domain.Product, 0, 16)
	if err := pgxscan.Select(ctx, s.q(ctx), &products, sql, args...); err != nil {
		return nil, fmt.Errorf("list low stock: %w", translate(err))
	}
	return products, nil
}
