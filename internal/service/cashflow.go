package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

func (s *Service) ListCashFlow(ctx context.Context, storeID string, filter domain.CashFlowFilter) (domain.CashFlowListResponse, error) {
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return domain.CashFlowListResponse{}, err
	}
	if filter.Type != "" && !isCashFlowType(filter.Type) {
		return domain.CashFlowListResponse{}, invalidf("type must be income or expense")
	}

	entries, err := s.repo.ListCashFlowEntries(ctx, st.ID, filter)
	if err != nil {
		return domain.CashFlowListResponse{}, err
	}

	resp := domain.CashFlowListResponse{Entries: entries, TotalIncome: decimal.Zero, TotalExpense: decimal.Zero}
	for _, e := range entries {
		if e.Type == domain.CashFlowIncome {
			resp.TotalIncome = resp.TotalIncome.Add(e.Amount)
		} else {
			resp.TotalExpense = resp.TotalExpense.Add(e.Amount)
		}
	}
	resp.Net = resp.TotalIncome.Sub(resp.TotalExpense)
	return resp, nil
}

func (s *Service) CreateCashFlow(ctx context.Context, storeID string, req domain.CashFlowCreateRequest) (domain.CashFlowEntry, error) {
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return domain.CashFlowEntry{}, err
	}

	entry := domain.CashFlowEntry{
		ID:            xid.New(),
		StoreID:       st.ID,
		CustomerID:    strings.TrimSpace(req.CustomerID),
		Type:          strings.ToLower(strings.TrimSpace(req.Type)),
		Category:      strings.TrimSpace(req.Category),
		Description:   strings.TrimSpace(req.Description),
		Amount:        req.Amount,
		PaymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		Reference:     strings.TrimSpace(req.Reference),
	}
	if err := validateCashFlow(entry); err != nil {
		return domain.CashFlowEntry{}, err
	}
	if entry.CustomerID != "" {
		customer, err := s.repo.GetCustomer(ctx, entry.CustomerID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && customer.StoreID != st.ID) {
			return domain.CashFlowEntry{}, invalidf("customer %s does not belong to this store", entry.CustomerID)
		}
		if err != nil {
			return domain.CashFlowEntry{}, err
		}
	}

	now := s.now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	created, err := s.repo.CreateCashFlowEntry(ctx, entry)
	if err != nil {
		return domain.CashFlowEntry{}, err
	}

	s.logAudit(ctx, st.ID, "cashflow_create", "cash_flow", created.ID, fmt.Sprintf("type=%s,amount=%s,category=%s", created.Type, created.Amount, created.Category))
	return *created, nil
}

func (s *Service) cashFlowForCaller(ctx context.Context, entryID string) (*domain.CashFlowEntry, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return nil, invalidf("cash flow id is required")
	}
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	entry, err := s.repo.GetCashFlowEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorizeStore(ctx, entry.StoreID); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) UpdateCashFlow(ctx context.Context, entryID string, req domain.CashFlowUpdateRequest) (domain.CashFlowEntry, error) {
	existing, err := s.cashFlowForCaller(ctx, entryID)
	if err != nil {
		return domain.CashFlowEntry{}, err
	}

	updated := *existing
	if req.Type != nil {
		updated.Type = strings.ToLower(strings.TrimSpace(*req.Type))
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Description != nil {
		updated.Description = strings.TrimSpace(*req.Description)
	}
	if req.Amount != nil {
		updated.Amount = *req.Amount
	}
	if req.PaymentMethod != nil {
		updated.PaymentMethod = strings.ToLower(strings.TrimSpace(*req.PaymentMethod))
	}
	if req.Reference != nil {
		updated.Reference = strings.TrimSpace(*req.Reference)
	}
	if err := validateCashFlow(updated); err != nil {
		return domain.CashFlowEntry{}, err
	}
	updated.UpdatedAt = s.now()

	saved, err := s.repo.UpdateCashFlowEntry(ctx, updated)
	if err != nil {
		return domain.CashFlowEntry{}, err
	}

	s.logAudit(ctx, saved.StoreID, "cashflow_update", "cash_flow", saved.ID, fmt.Sprintf("type=%s,amount=%s", saved.Type, saved.Amount))
	return *saved, nil
}

func (s *Service) DeleteCashFlow(ctx context.Context, entryID string) error {
	entry, err := s.cashFlowForCaller(ctx, entryID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCashFlowEntry(ctx, entry.ID); err != nil {
		return err
	}

	s.logAudit(ctx, entry.StoreID, "cashflow_delete", "cash_flow", entry.ID, fmt.Sprintf("type=%s,amount=%s", entry.Type, entry.Amount))
	return nil
}

func validateCashFlow(e domain.CashFlowEntry) error {
	if !isCashFlowType(e.Type) {
		return invalidf("type must be income or expense")
	}
	if e.Category == "" {
		return invalidf("category is required")
	}
	if !e.Amount.IsPositive() {
		return invalidf("amount must be positive")
	}
	if e.PaymentMethod != "" && !isSupportedPaymentMethod(e.PaymentMethod) {
		return invalidf("unsupported payment_method %q", e.PaymentMethod)
	}
	return nil
}

func isCashFlowType(kind string) bool {
	return kind == domain.CashFlowIncome || kind == domain.CashFlowExpense
}
