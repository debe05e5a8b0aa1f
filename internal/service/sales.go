package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/events"
	"warungpos/backend/internal/metrics"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

// PostSale validates the cart, recomputes the totals and hands the sale to
// the repository as a single unit of work.
func (s *Service) PostSale(ctx context.Context, storeID string, req domain.SaleRequest) (domain.SaleResult, error) {
	st, actor, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return domain.SaleResult{}, err
	}

	result, err := s.postSale(ctx, st, actor, req)
	if err != nil {
		metrics.SalesRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return domain.SaleResult{}, err
	}
	return result, nil
}

func (s *Service) postSale(ctx context.Context, st *domain.Store, actor domain.Actor, req domain.SaleRequest) (domain.SaleResult, error) {
	req.PaymentStatus = strings.ToLower(defaultString(req.PaymentStatus, domain.PaymentStatusPaid))
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	req.OfflineID = strings.TrimSpace(req.OfflineID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)

	if !isPaymentStatus(req.PaymentStatus) {
		return domain.SaleResult{}, invalidf("payment_status must be paid, unpaid or partial")
	}
	if req.PaymentMethod != "" && !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.SaleResult{}, invalidf("unsupported payment_method %q", req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return domain.SaleResult{}, invalidf("at least one item is required")
	}
	if req.Discount.IsNegative() || req.Tax.IsNegative() {
		return domain.SaleResult{}, invalidf("discount and tax must not be negative")
	}

	if req.OfflineID != "" {
		existing, err := s.repo.FindTransactionByOfflineID(ctx, st.ID, req.OfflineID)
		if err == nil {
			metrics.SalesDuplicateTotal.Inc()
			return domain.SaleResult{Transaction: *existing, Movements: []domain.StockMovement{}, Duplicate: true}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.SaleResult{}, err
		}
	}

	if req.CustomerID != "" {
		customer, err := s.repo.GetCustomer(ctx, req.CustomerID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && customer.StoreID != st.ID) {
			return domain.SaleResult{}, invalidf("customer %s does not belong to this store", req.CustomerID)
		}
		if err != nil {
			return domain.SaleResult{}, err
		}
	}

	ids := make([]string, 0, len(req.Items))
	for i, item := range req.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return domain.SaleResult{}, invalidf("items[%d].product_id is required", i)
		}
		if item.Quantity <= 0 {
			return domain.SaleResult{}, invalidf("items[%d].quantity must be positive", i)
		}
		ids = append(ids, strings.TrimSpace(item.ProductID))
	}
	products, err := s.repo.GetProductsByIDs(ctx, st.ID, ids)
	if err != nil {
		return domain.SaleResult{}, err
	}

	items, subtotal, err := buildSaleItems(req.Items, products)
	if err != nil {
		return domain.SaleResult{}, err
	}
	total := subtotal.Sub(req.Discount).Add(req.Tax)
	if req.Subtotal != nil && !req.Subtotal.Equal(subtotal) {
		return domain.SaleResult{}, invalidf("subtotal %s does not match computed %s", req.Subtotal, subtotal)
	}
	if req.Total != nil && !req.Total.Equal(total) {
		return domain.SaleResult{}, invalidf("total %s does not match computed %s", req.Total, total)
	}
	if total.IsNegative() {
		return domain.SaleResult{}, invalidf("discount exceeds subtotal")
	}

	now := s.now()
	posting := domain.SalePosting{
		Transaction: domain.Transaction{
			ID:            xid.New(),
			StoreID:       st.ID,
			CustomerID:    req.CustomerID,
			InvoiceNumber: xid.InvoiceNumber(now),
			Items:         items,
			Subtotal:      subtotal,
			Discount:      req.Discount,
			Tax:           req.Tax,
			Total:         total,
			PaymentStatus: req.PaymentStatus,
			PaymentMethod: req.PaymentMethod,
			Notes:         strings.TrimSpace(req.Notes),
			OfflineID:     req.OfflineID,
			CreatedBy:     actor.UserID,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}
	if req.PaymentStatus == domain.PaymentStatusUnpaid {
		posting.DebtDueDate = req.DueDate
	}

	started := time.Now()
	result, err := s.repo.PostSale(ctx, posting)
	metrics.SalePostLatency.Observe(time.Since(started).Seconds())
	if err != nil {
		return domain.SaleResult{}, err
	}
	if result.Duplicate {
		metrics.SalesDuplicateTotal.Inc()
		if result.Movements == nil {
			result.Movements = []domain.StockMovement{}
		}
		return *result, nil
	}

	tx := result.Transaction
	metrics.SalesPostedTotal.WithLabelValues(tx.PaymentStatus).Inc()
	s.logAudit(ctx, st.ID, "sale_post", "transaction", tx.ID, fmt.Sprintf("invoice=%s,total=%s,status=%s,items=%d", tx.InvoiceNumber, tx.Total, tx.PaymentStatus, len(tx.Items)))
	s.publish(ctx, events.New(events.TypeSalePosted, st.ID, tx.ID, result))
	s.invalidateDashboard(ctx, st.ID)
	return *result, nil
}

// buildSaleItems snapshots name, price and cost from the catalogue and
// returns the lines with their subtotal.
func buildSaleItems(reqItems []domain.SaleItemRequest, products map[string]domain.Product) ([]domain.SaleItem, decimal.Decimal, error) {
	items := make([]domain.SaleItem, 0, len(reqItems))
	subtotal := decimal.Zero
	for i, reqItem := range reqItems {
		productID := strings.TrimSpace(reqItem.ProductID)
		product, ok := products[productID]
		if !ok || !product.IsActive {
			return nil, decimal.Zero, invalidf("items[%d]: product %s is not available in this store", i, productID)
		}

		price := product.PriceSell
		if reqItem.Price != nil {
			price = *reqItem.Price
		}
		if price.IsNegative() {
			return nil, decimal.Zero, invalidf("items[%d].price must not be negative", i)
		}
		gross := price.Mul(decimal.NewFromInt(int64(reqItem.Quantity)))
		if reqItem.Discount.IsNegative() || reqItem.Discount.GreaterThan(gross) {
			return nil, decimal.Zero, invalidf("items[%d].discount must be between 0 and %s", i, gross)
		}

		item := domain.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    reqItem.Quantity,
			Price:       price,
			Discount:    reqItem.Discount,
			CostPrice:   product.PriceBuy,
		}
		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)
	}
	return items, subtotal, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUnauthenticated):
		return "forbidden"
	default:
		return "error"
	}
}
