package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

var debtColumns = []string{
	"id", "transaction_id", "store_id", "customer_id", "amount", "paid_amount", "due_date",
	"status", "reminder_sent", "last_reminder_date", "created_at", "updated_at",
}

func (s *Store) insertDebt(ctx context.Context, d domain.Debt) error {
	sql, args, err := builder().Insert("debts").
		Columns("id", "transaction_id", "store_id", "customer_id", "amount", "paid_amount", "due_date", "status", "created_at", "updated_at").
		Values(d.ID, d.TransactionID, d.StoreID, d.CustomerID, d.Amount, d.PaidAmount, nullTime(d.DueDate), d.Status, d.CreatedAt, d.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert debt: %w", err)
	}
	if _, err := s.q(ctx).Exec(ctx, sql, args...); err != nil {
		return translate(err)
	}
	return nil
}

func (s *Store) ListDebts(ctx context.Context, storeID string, filter domain.DebtFilter) ([]domain.Debt, error) {
	where := squirrel.Eq{"store_id": storeID}
	if filter.CustomerID != "" {
		if !validID(filter.CustomerID) {
			return []domain.Debt{}, nil
		}
		where["customer_id"] = filter.CustomerID
	}
	if filter.Status != "" {
		where["status"] = filter.Status
	}
	sql, args, err := builder().Select(debtColumns...).From("debts").
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list debts: %w", err)
	}

	debts := make([]domain.Debt, 0, 16)
	if err := pgxscan.Select(ctx, s.q(ctx), &debts, sql, args...); err != nil {
		return nil, fmt.Errorf("list debts: %w", translate(err))
	}
	return debts, nil
}

func (s *Store) GetDebt(ctx context.Context, id string) (*domain.Debt, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	sql, args, err := builder().Select(debtColumns...).From("debts").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get debt: %w", err)
	}

	var d domain.Debt
	if err := pgxscan.Get(ctx, s.q(ctx), &d, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get debt: %w", translate(err))
	}
	return &d, nil
}

func (s *Store) UpdateDebt(ctx context.Context, d domain.Debt) (*domain.Debt, error) {
	sql, args, err := builder().Update("debts").
		Set("due_date", nullTime(d.DueDate)).
		Set("updated_at", d.UpdatedAt).
		Where(squirrel.Eq{"id": d.ID}).
		Suffix("RETURNING " + joinColumns(debtColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update debt: %w", err)
	}
	return s.getDebtWith(ctx, sql, args...)
}

// RecordDebtPayment applies the payment in a single conditional statement, so
// two concurrent payments can never push the paid amount past the total.
func (s *Store) RecordDebtPayment(ctx context.Context, id string, amount decimal.Decimal, at time.Time) (*domain.Debt, error) {
	if !amount.IsPositive() {
		return nil, store.ErrInvalidInput
	}

	sql := `
		UPDATE debts
		SET paid_amount = paid_amount + $2,
		    status = CASE WHEN paid_amount + $2 >= amount THEN 'paid' ELSE 'pending' END,
		    updated_at = $3
		WHERE id = $1 AND status <> 'paid' AND paid_amount + $2 <= amount
		RETURNING ` + joinColumns(debtColumns)
	d, err := s.getDebtWith(ctx, sql, id, amount, at)
	if !errors.Is(err, store.ErrNotFound) {
		return d, err
	}

	current, getErr := s.GetDebt(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status == domain.DebtStatusPaid {
		return nil, fmt.Errorf("%w: debt already paid", store.ErrInvalidInput)
	}
	return nil, fmt.Errorf("%w: payment exceeds remaining balance", store.ErrInvalidInput)
}

func (s *Store) MarkDebtReminderSent(ctx context.Context, id string, at time.Time) (*domain.Debt, error) {
	sql := `UPDATE debts SET reminder_sent = true, last_reminder_date = $2, updated_at = $2 WHERE id = $1 RETURNING ` + joinColumns(debtColumns)
	return s.getDebtWith(ctx, sql, id, at)
}

func (s *Store) getDebtWith(ctx context.Context, sql string, args ...any) (*domain.Debt, error) {
	var d domain.Debt
	if err := pgxscan.Get(ctx, s.q(ctx), &d, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, translate(err)
	}
	return &d, nil
}
