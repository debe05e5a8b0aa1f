package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

const offlineIDConstraint = "transactions_store_offline_id_key"

var transactionColumns = []string{
	"id", "store_id", "COALESCE(customer_id::text, '') AS customer_id", "invoice_number", "items",
	"subtotal", "discount", "tax", "total", "payment_status",
	"COALESCE(payment_method, '') AS payment_method", "COALESCE(notes, '') AS notes",
	"COALESCE(offline_id, '') AS offline_id", "COALESCE(created_by::text, '') AS created_by",
	"created_at", "updated_at",
}

func (s *Store) ListTransactions(ctx context.Context, storeID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	q := builder().Select(transactionColumns...).From("transactions").
		Where(squirrel.Eq{"store_id": storeID}).
		OrderBy("created_at DESC", "id DESC")
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.To})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"payment_status": filter.Status})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list transactions: %w", err)
	}

	txs := make([]domain.Transaction, 0, 32)
	if err := pgxscan.Select(ctx, s.q(ctx), &txs, sql, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", translate(err))
	}
	return txs, nil
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	if !validID(id) {
		return nil, store.ErrNotFound
	}
	return s.findTransaction(ctx, squirrel.Eq{"id": id})
}

func (s *Store) FindTransactionByOfflineID(ctx context.Context, storeID string, offlineID string) (*domain.Transaction, error) {
	return s.findTransaction(ctx, squirrel.Eq{"store_id": storeID, "offline_id": offlineID})
}

func (s *Store) findTransaction(ctx context.Context, where squirrel.Eq) (*domain.Transaction, error) {
	sql, args, err := builder().Select(transactionColumns...).From("transactions").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get transaction: %w", err)
	}

	var tx domain.Transaction
	if err := pgxscan.Get(ctx, s.q(ctx), &tx, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", translate(err))
	}
	return &tx, nil
}

// PostSale writes the transaction, the guarded stock decrements with their
// movements and the optional debt in one database transaction. Losing an
// offline id race to a concurrent replay returns the winner's row.
func (s *Store) PostSale(ctx context.Context, posting domain.SalePosting) (*domain.SaleResult, error) {
	tx := posting.Transaction
	ctx, span := tracer.Start(ctx, "postgres.PostSale", trace.WithAttributes(
		attribute.String("store.id", tx.StoreID),
		attribute.Int("sale.items", len(tx.Items)),
	))
	defer span.End()

	if len(tx.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	items, err := json.Marshal(tx.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}

	result := &domain.SaleResult{Movements: make([]domain.StockMovement, 0, len(tx.Items))}
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		sql, args, err := builder().Insert("transactions").
			Columns("id", "store_id", "customer_id", "invoice_number", "items", "subtotal", "discount", "tax", "total",
				"payment_status", "payment_method", "notes", "offline_id", "created_by", "created_at", "updated_at").
			Values(tx.ID, tx.StoreID, nullIfEmpty(tx.CustomerID), tx.InvoiceNumber, items, tx.Subtotal, tx.Discount, tx.Tax, tx.Total,
				tx.PaymentStatus, nullIfEmpty(tx.PaymentMethod), nullIfEmpty(tx.Notes), nullIfEmpty(tx.OfflineID), nullIfEmpty(tx.CreatedBy),
				tx.CreatedAt, tx.UpdatedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert transaction: %w", err)
		}
		if _, err := s.q(ctx).Exec(ctx, sql, args...); err != nil {
			return err
		}

		for _, item := range tx.Items {
			if err := s.decrementStock(ctx, tx.StoreID, item, tx.CreatedAt); err != nil {
				return err
			}
			m := domain.StockMovement{
				ID:        xid.New(),
				ProductID: item.ProductID,
				StoreID:   tx.StoreID,
				Type:      domain.MovementOut,
				Quantity:  -item.Quantity,
				Reference: tx.ID,
				CreatedAt: tx.CreatedAt,
			}
			if err := s.insertMovement(ctx, m); err != nil {
				return err
			}
			result.Movements = append(result.Movements, m)
		}

		if posting.OpensDebt() {
			d := domain.Debt{
				ID:            xid.New(),
				TransactionID: tx.ID,
				StoreID:       tx.StoreID,
				CustomerID:    tx.CustomerID,
				Amount:        tx.Total,
				PaidAmount:    decimal.Zero,
				DueDate:       posting.DebtDueDate,
				Status:        domain.DebtStatusPending,
				CreatedAt:     tx.CreatedAt,
				UpdatedAt:     tx.CreatedAt,
			}
			if err := s.insertDebt(ctx, d); err != nil {
				return err
			}
			result.Debt = &d
		}
		return nil
	})
	if err != nil {
		if _, constraint := pgErrorCode(err); tx.OfflineID != "" && isUniqueViolation(err) && constraint == offlineIDConstraint {
			existing, findErr := s.FindTransactionByOfflineID(ctx, tx.StoreID, tx.OfflineID)
			if findErr == nil {
				return &domain.SaleResult{Transaction: *existing, Duplicate: true}, nil
			}
		}
		span.RecordError(err)
		return nil, translate(err)
	}

	result.Transaction = tx
	return result, nil
}

func (s *Store) decrementStock(ctx context.Context, storeID string, item domain.SaleItem, at time.Time) error {
	tag, err := s.q(ctx).Exec(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = $2
		WHERE id = $3 AND store_id = $4 AND is_active AND stock >= $1
	`, item.Quantity, at, item.ProductID, storeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var active bool
	err = s.q(ctx).QueryRow(ctx, `SELECT is_active FROM products WHERE id = $1 AND store_id = $2`, item.ProductID, storeID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && !active) {
		return fmt.Errorf("%w: product %s unavailable", store.ErrInvalidInput, item.ProductID)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", store.ErrInsufficientStock, item.ProductName)
}

func (s *Store) UpdateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	sql, args, err := builder().Update("transactions").
		Set("payment_status", tx.PaymentStatus).
		Set("payment_method", nullIfEmpty(tx.PaymentMethod)).
		Set("notes", nullIfEmpty(tx.Notes)).
		Set("updated_at", tx.UpdatedAt).
		Where(squirrel.Eq{"id": tx.ID}).
		Suffix("RETURNING " + joinColumns(transactionColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update transaction: %w", err)
	}

	var updated domain.Transaction
	if err := pgxscan.Get(ctx, s.q(ctx), &updated, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, translate(err)
	}
	return &updated, nil
}
