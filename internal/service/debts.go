package service

import (
	"context"
	"fmt"
	"strings"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/events"
	"warungpos/backend/internal/logger"
	"warungpos/backend/internal/metrics"
	"warungpos/backend/internal/notify"
	"warungpos/backend/internal/xid"
)

const ReminderSentMessage = "Reminder berhasil dikirim"

// ListDebts reports each debt with its derived status; filtering by status
// uses the derived value, so "overdue" selects pending debts past due.
func (s *Service) ListDebts(ctx context.Context, storeID string, filter domain.DebtFilter) ([]domain.Debt, error) {
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return s.listDebts(ctx, st.ID, filter)
}

func (s *Service) listDebts(ctx context.Context, storeID string, filter domain.DebtFilter) ([]domain.Debt, error) {
	want := strings.ToLower(strings.TrimSpace(filter.Status))
	switch want {
	case "":
	case domain.DebtStatusPaid:
		filter.Status = domain.DebtStatusPaid
	case domain.DebtStatusPending, domain.DebtStatusOverdue:
		filter.Status = domain.DebtStatusPending
	default:
		return nil, invalidf("unknown debt status %q", filter.Status)
	}

	debts, err := s.repo.ListDebts(ctx, storeID, filter)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]domain.Debt, 0, len(debts))
	for _, d := range debts {
		d = d.WithEffectiveStatus(now)
		if want != "" && d.Status != want {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Service) debtForCaller(ctx context.Context, debtID string) (*domain.Debt, *domain.Store, error) {
	debtID = strings.TrimSpace(debtID)
	if debtID == "" {
		return nil, nil, invalidf("debt id is required")
	}
	if _, err := requireActor(ctx); err != nil {
		return nil, nil, err
	}
	debt, err := s.repo.GetDebt(ctx, debtID)
	if err != nil {
		return nil, nil, err
	}
	st, _, err := s.authorizeStore(ctx, debt.StoreID)
	if err != nil {
		return nil, nil, err
	}
	return debt, st, nil
}

// UpdateDebt changes the due date; amounts only move through payments.
func (s *Service) UpdateDebt(ctx context.Context, debtID string, req domain.DebtUpdateRequest) (domain.Debt, error) {
	existing, st, err := s.debtForCaller(ctx, debtID)
	if err != nil {
		return domain.Debt{}, err
	}

	updated := *existing
	updated.DueDate = req.DueDate
	updated.UpdatedAt = s.now()
	saved, err := s.repo.UpdateDebt(ctx, updated)
	if err != nil {
		return domain.Debt{}, err
	}

	due := "none"
	if saved.DueDate != nil {
		due = saved.DueDate.Format("2006-01-02")
	}
	s.logAudit(ctx, st.ID, "debt_update", "debt", saved.ID, "due_date="+due)
	s.invalidateDashboard(ctx, st.ID)
	return saved.WithEffectiveStatus(s.now()), nil
}

// RecordDebtPayment adds a payment to an open debt. With RecordCashFlow set, an
// income entry is written afterwards; its failure does not undo the payment.
func (s *Service) RecordDebtPayment(ctx context.Context, debtID string, req domain.DebtPaymentRequest) (domain.DebtPaymentResponse, error) {
	existing, st, err := s.debtForCaller(ctx, debtID)
	if err != nil {
		return domain.DebtPaymentResponse{}, err
	}

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method != "" && !isSupportedPaymentMethod(method) {
		return domain.DebtPaymentResponse{}, invalidf("unsupported payment_method %q", method)
	}
	if !req.Amount.IsPositive() {
		return domain.DebtPaymentResponse{}, invalidf("amount must be positive")
	}
	if existing.Status == domain.DebtStatusPaid {
		return domain.DebtPaymentResponse{}, invalidf("debt is already paid")
	}
	if req.Amount.GreaterThan(existing.Remaining()) {
		return domain.DebtPaymentResponse{}, invalidf("amount exceeds remaining balance %s", existing.Remaining())
	}

	now := s.now()
	saved, err := s.repo.RecordDebtPayment(ctx, existing.ID, req.Amount, now)
	if err != nil {
		return domain.DebtPaymentResponse{}, err
	}
	metrics.DebtPaymentsTotal.Inc()

	resp := domain.DebtPaymentResponse{Debt: saved.WithEffectiveStatus(now)}
	if req.RecordCashFlow {
		entry, err := s.repo.CreateCashFlowEntry(ctx, domain.CashFlowEntry{
			ID:            xid.New(),
			StoreID:       st.ID,
			CustomerID:    saved.CustomerID,
			Type:          domain.CashFlowIncome,
			Category:      domain.CashFlowCategoryReceivable,
			Description:   "Pembayaran piutang",
			Amount:        req.Amount,
			PaymentMethod: method,
			Reference:     saved.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			logger.Warn(ctx, "debt payment saved but cash flow entry failed", "debt_id", saved.ID, "error", err)
		} else {
			resp.CashFlowEntry = entry
		}
	}

	s.logAudit(ctx, st.ID, "debt_payment", "debt", saved.ID, fmt.Sprintf("amount=%s,paid=%s,status=%s", req.Amount, saved.PaidAmount, saved.Status))
	s.publish(ctx, events.New(events.TypeDebtPaymentRecorded, st.ID, saved.ID, map[string]any{
		"amount":      req.Amount,
		"paid_amount": saved.PaidAmount,
		"status":      saved.Status,
	}))
	s.invalidateDashboard(ctx, st.ID)
	return resp, nil
}

func (s *Service) SendDebtReminder(ctx context.Context, debtID string) (domain.ReminderResponse, error) {
	debt, st, err := s.debtForCaller(ctx, debtID)
	if err != nil {
		return domain.ReminderResponse{}, err
	}
	if debt.Status == domain.DebtStatusPaid {
		return domain.ReminderResponse{}, invalidf("debt is already paid")
	}
	customer, err := s.repo.GetCustomer(ctx, debt.CustomerID)
	if err != nil {
		return domain.ReminderResponse{}, err
	}
	if strings.TrimSpace(customer.Phone) == "" {
		return domain.ReminderResponse{}, invalidf("customer has no phone number")
	}

	err = s.notifier.SendDebtReminder(ctx, notify.Reminder{
		DebtID:       debt.ID,
		Phone:        customer.Phone,
		CustomerName: customer.Name,
		StoreName:    st.Name,
		Outstanding:  debt.Remaining(),
		DueDate:      debt.DueDate,
	})
	if err != nil {
		return domain.ReminderResponse{}, fmt.Errorf("send reminder: %w", err)
	}

	now := s.now()
	saved, err := s.repo.MarkDebtReminderSent(ctx, debt.ID, now)
	if err != nil {
		return domain.ReminderResponse{}, err
	}

	s.logAudit(ctx, st.ID, "debt_reminder", "debt", saved.ID, "phone="+customer.Phone)
	s.publish(ctx, events.New(events.TypeDebtReminderSent, st.ID, saved.ID, map[string]any{
		"customer_id": customer.ID,
		"outstanding": saved.Remaining(),
	}))
	return domain.ReminderResponse{
		Success: true,
		Message: ReminderSentMessage,
		Debt:    saved.WithEffectiveStatus(now),
	}, nil
}
