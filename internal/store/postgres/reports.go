package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"warungpos/backend/internal/domain"
)

type salesSummaryRow struct {
	Transactions     int             `db:"transactions"`
	PaidTransactions int             `db:"paid_transactions"`
	Revenue          decimal.Decimal `db:"revenue"`
	Tax              decimal.Decimal `db:"tax"`
}

func (s *Store) SalesSummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error) {
	var row salesSummaryRow
	err := pgxscan.Get(ctx, s.q(ctx), &row, `
		SELECT
			COUNT(*) AS transactions,
			COUNT(*) FILTER (WHERE payment_status = 'paid') AS paid_transactions,
			COALESCE(SUM(total) FILTER (WHERE payment_status = 'paid'), 0) AS revenue,
			COALESCE(SUM(tax) FILTER (WHERE payment_status = 'paid'), 0) AS tax
		FROM transactions
		WHERE store_id = $1 AND created_at >= $2 AND created_at < $3
	`, storeID, from, to)
	if err != nil {
		return domain.SalesSummary{}, fmt.Errorf("sales summary: %w", translate(err))
	}

	var cost decimal.Decimal
	err = s.q(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM((item->>'quantity')::int * COALESCE((item->>'cost_price')::numeric, 0)), 0)
		FROM transactions t
		CROSS JOIN LATERAL jsonb_array_elements(t.items) AS item
		WHERE t.store_id = $1 AND t.payment_status = 'paid' AND t.created_at >= $2 AND t.created_at < $3
	`, storeID, from, to).Scan(&cost)
	if err != nil {
		return domain.SalesSummary{}, fmt.Errorf("cost of goods: %w", translate(err))
	}

	return domain.SalesSummary{
		Revenue:          row.Revenue,
		Tax:              row.Tax,
		CostOfGoods:      cost,
		PaidTransactions: row.PaidTransactions,
		Transactions:     row.Transactions,
	}, nil
}

func (s *Store) OutstandingDebt(ctx context.Context, storeID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.q(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount - paid_amount), 0)
		FROM debts
		WHERE store_id = $1 AND status <> 'paid'
	`, storeID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("outstanding debt: %w", translate(err))
	}
	return total, nil
}

func (s *Store) CountLowStock(ctx context.Context, storeID string, threshold int) (int, error) {
	var count int
	err := s.q(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM products WHERE store_id = $1 AND is_active AND stock <= $2
	`, storeID, threshold).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count low stock: %w", translate(err))
	}
	return count, nil
}

func (s *Store) TopProducts(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error) {
	if limit < 1 {
		limit = 5
	}
	rows := make([]domain.ProductSales, 0, limit)
	err := pgxscan.Select(ctx, s.q(ctx), &rows, `
		SELECT
			item->>'product_id' AS product_id,
			MAX(item->>'product_name') AS product_name,
			SUM((item->>'quantity')::int) AS quantity,
			COALESCE(SUM((item->>'price')::numeric * (item->>'quantity')::int - COALESCE((item->>'discount')::numeric, 0)), 0) AS revenue
		FROM transactions t
		CROSS JOIN LATERAL jsonb_array_elements(t.items) AS item
		WHERE t.store_id = $1 AND t.payment_status = 'paid' AND t.created_at >= $2 AND t.created_at < $3
		GROUP BY item->>'product_id'
		ORDER BY quantity DESC, product_name
		LIMIT $4
	`, storeID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("top products: %w", translate(err))
	}
	return rows, nil
}

func (s *Store) PaymentMethodBreakdown(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.PaymentMethodSales, error) {
	rows := make([]domain.PaymentMethodSales, 0, 4)
	err := pgxscan.Select(ctx, s.q(ctx), &rows, `
		SELECT
			COALESCE(NULLIF(payment_method, ''), $4) AS payment_method,
			COUNT(*) AS transactions,
			COALESCE(SUM(total), 0) AS total
		FROM transactions
		WHERE store_id = $1 AND payment_status = 'paid' AND created_at >= $2 AND created_at < $3
		GROUP BY 1
		ORDER BY total DESC, payment_method
	`, storeID, from, to, domain.PaymentMethodOther)
	if err != nil {
		return nil, fmt.Errorf("payment breakdown: %w", translate(err))
	}
	return rows, nil
}
