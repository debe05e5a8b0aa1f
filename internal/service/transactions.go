package service

import (
	"context"
	"fmt"
	"strings"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/events"
)

func (s *Service) ListTransactions(ctx context.Context, storeID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" && !isPaymentStatus(filter.Status) {
		return nil, invalidf("unknown payment status %q", filter.Status)
	}
	if filter.Limit < 0 {
		filter.Limit = 0
	}
	return s.repo.ListTransactions(ctx, st.ID, filter)
}

func (s *Service) transactionForCaller(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, invalidf("transaction id is required")
	}
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorizeStore(ctx, tx.StoreID); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Service) GetTransaction(ctx context.Context, transactionID string) (domain.Transaction, error) {
	tx, err := s.transactionForCaller(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return *tx, nil
}

// UpdateTransaction patches payment status, payment method and notes. Line
// items and totals never change after posting.
func (s *Service) UpdateTransaction(ctx context.Context, transactionID string, req domain.TransactionUpdateRequest) (domain.Transaction, error) {
	existing, err := s.transactionForCaller(ctx, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}

	updated := *existing
	if req.PaymentStatus != nil {
		status := strings.ToLower(strings.TrimSpace(*req.PaymentStatus))
		if !isPaymentStatus(status) {
			return domain.Transaction{}, invalidf("payment_status must be paid, unpaid or partial")
		}
		updated.PaymentStatus = status
	}
	if req.PaymentMethod != nil {
		method := strings.ToLower(strings.TrimSpace(*req.PaymentMethod))
		if method != "" && !isSupportedPaymentMethod(method) {
			return domain.Transaction{}, invalidf("unsupported payment_method %q", method)
		}
		updated.PaymentMethod = method
	}
	if req.Notes != nil {
		updated.Notes = strings.TrimSpace(*req.Notes)
	}

	return s.saveTransaction(ctx, *existing, updated)
}

// MarkTransactionPaid handles a payment gateway callback. Only "paid" changes
// the transaction; other statuses are acknowledged and ignored.
func (s *Service) MarkTransactionPaid(ctx context.Context, req domain.PaymentCallbackRequest) (domain.PaymentCallbackResponse, error) {
	id := strings.TrimSpace(req.TransactionID)
	if id == "" {
		return domain.PaymentCallbackResponse{}, invalidf("transaction_id is required")
	}
	existing, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return domain.PaymentCallbackResponse{}, err
	}

	resp := domain.PaymentCallbackResponse{Success: true, TransactionID: existing.ID, PaymentStatus: existing.PaymentStatus}
	if !strings.EqualFold(strings.TrimSpace(req.Status), domain.PaymentStatusPaid) || existing.PaymentStatus == domain.PaymentStatusPaid {
		return resp, nil
	}

	updated := *existing
	updated.PaymentStatus = domain.PaymentStatusPaid
	saved, err := s.saveTransaction(ctx, *existing, updated)
	if err != nil {
		return domain.PaymentCallbackResponse{}, err
	}
	resp.PaymentStatus = saved.PaymentStatus
	return resp, nil
}

func (s *Service) saveTransaction(ctx context.Context, before domain.Transaction, updated domain.Transaction) (domain.Transaction, error) {
	updated.UpdatedAt = s.now()
	saved, err := s.repo.UpdateTransaction(ctx, updated)
	if err != nil {
		return domain.Transaction{}, err
	}

	s.logAudit(ctx, saved.StoreID, "transaction_update", "transaction", saved.ID, fmt.Sprintf("status=%s->%s,method=%s", before.PaymentStatus, saved.PaymentStatus, saved.PaymentMethod))
	if before.PaymentStatus != domain.PaymentStatusPaid && saved.PaymentStatus == domain.PaymentStatusPaid {
		s.publish(ctx, events.New(events.TypeTransactionPaid, saved.StoreID, saved.ID, saved))
	}
	s.invalidateDashboard(ctx, saved.StoreID)
	return *saved, nil
}
