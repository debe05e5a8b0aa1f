package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

var customerColumns = []string{
	"id", "store_id", "name", "COALESCE(phone, '') AS phone", "COALESCE(email, '') AS email",
	"COALESCE(address, '') AS address", "balance", "created_at", "updated_at",
}

func (s *Store) ListCustomers(ctx context.Context, storeID string) ([]domain.Customer, error) {
	sql, args, err := builder().Select(customerColumns...).From("customers").
		Where(squirrel.Eq{"store_id": storeID}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list customers: %w", err)
	}

	customers := make([]domain.Customer, 0, 32)
	if err := pgxscan.Select(ctx, s.q(ctx), &customers, sql, args...); err != nil {
		return nil, fmt.Errorf("list customers: %w", translate(err))
	}
	return customers, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	sql, args, err := builder().Select(customerColumns...).From("customers").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get customer: %w", err)
	}

	var c domain.Customer
	if err := pgxscan.Get(ctx, s.q(ctx), &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get customer: %w", translate(err))
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	sql, args, err := builder().Insert("customers").
		Columns("id", "store_id", "name", "phone", "email", "address", "balance", "created_at", "updated_at").
		Values(c.ID, c.StoreID, c.Name, nullIfEmpty(c.Phone), nullIfEmpty(c.Email), nullIfEmpty(c.Address), c.Balance, c.CreatedAt, c.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert customer: %w", err)
	}
	if _, err := s.q(ctx).Exec(ctx, sql, args...); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	sql, args, err := builder().Update("customers").
		Set("name", c.Name).
		Set("phone", nullIfEmpty(c.Phone)).
		Set("email", nullIfEmpty(c.Email)).
		Set("address", nullIfEmpty(c.Address)).
		Set("balance", c.Balance).
		Set("updated_at", c.UpdatedAt).
		Where(squirrel.Eq{"id": c.ID}).
		Suffix("RETURNING " + joinColumns(customerColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update customer: %w", err)
	}

	var updated domain.Customer
	if err := pgxscan.Get(ctx, s.q(ctx), &updated, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, translate(err)
	}
	return &updated, nil
}

// DeleteCustomer is refused while debts reference the customer; transactions
// and cash flow entries keep their rows with the customer cleared.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		if code, _ := pgErrorCode(err); code == codeForeignKeyViolation {
			return fmt.Errorf("%w: customer has debts", store.ErrConflict)
		}
		return fmt.Errorf("delete customer: %w", translate(err))
	}
	return requireAffected(tag)
}
