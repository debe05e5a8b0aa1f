package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/xid"
)

func (s *Service) ListCustomers(ctx context.Context, storeID string) ([]domain.Customer, error) {
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, st.ID)
}

func (s *Service) CreateCustomer(ctx context.Context, storeID string, req domain.CustomerCreateRequest) (domain.Customer, error) {
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return domain.Customer{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, invalidf("name is required")
	}

	now := s.now()
	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		ID:        xid.New(),
		StoreID:   st.ID,
		Name:      name,
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Address:   strings.TrimSpace(req.Address),
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, st.ID, "customer_create", "customer", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) customerForCaller(ctx context.Context, customerID string) (*domain.Customer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, invalidf("customer id is required")
	}
	if _, err := requireActor(ctx); err != nil {
		return nil, err
	}
	customer, err := s.repo.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.authorizeStore(ctx, customer.StoreID); err != nil {
		return nil, err
	}
	return customer, nil
}

// UpdateCustomer patches the customer. Balance is informational; debts stay authoritative.
func (s *Service) UpdateCustomer(ctx context.Context, customerID string, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	existing, err := s.customerForCaller(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Customer{}, invalidf("name must not be empty")
		}
		updated.Name = name
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		updated.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	if req.Balance != nil {
		updated.Balance = *req.Balance
	}
	updated.UpdatedAt = s.now()

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, saved.StoreID, "customer_update", "customer", saved.ID, fmt.Sprintf("name=%s,balance=%s", saved.Name, saved.Balance))
	return *saved, nil
}

// DeleteCustomer removes the customer. A customer with debts cannot be deleted.
func (s *Service) DeleteCustomer(ctx context.Context, customerID string) error {
	customer, err := s.customerForCaller(ctx, customerID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCustomer(ctx, customer.ID); err != nil {
		return err
	}

	s.logAudit(ctx, customer.StoreID, "customer_delete", "customer", customer.ID, fmt.Sprintf("name=%s", customer.Name))
	return nil
}

func (s *Service) ListCustomerDebts(ctx context.Context, customerID string) ([]domain.Debt, error) {
	customer, err := s.customerForCaller(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.listDebts(ctx, customer.StoreID, domain.DebtFilter{CustomerID: customer.ID})
}
