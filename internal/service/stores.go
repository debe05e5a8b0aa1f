package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/xid"
)

// ListStores returns the stores the caller can access.
func (s *Service) ListStores(ctx context.Context) ([]domain.Store, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleOwner {
		return s.repo.ListStores(ctx, nil)
	}
	if len(actor.StoreIDs) == 0 {
		return []domain.Store{}, nil
	}
	return s.repo.ListStores(ctx, actor.StoreIDs)
}

func (s *Service) GetStore(ctx context.Context, storeID string) (domain.Store, error) {
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return domain.Store{}, err
	}
	return *st, nil
}

func (s *Service) CreateStore(ctx context.Context, req domain.StoreCreateRequest) (domain.Store, error) {
	if _, err := requireRole(ctx, domain.RoleOwner); err != nil {
		return domain.Store{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Store{}, invalidf("name is required")
	}
	threshold := domain.DefaultLowStockThreshold
	if req.LowStockThreshold != nil {
		threshold = *req.LowStockThreshold
	}
	if threshold < 0 {
		return domain.Store{}, invalidf("low_stock_threshold must not be negative")
	}
	timezone := defaultString(req.Timezone, domain.DefaultTimezone)
	if _, err := time.LoadLocation(timezone); err != nil {
		return domain.Store{}, invalidf("unknown timezone %q", timezone)
	}

	now := s.now()
	created, err := s.repo.CreateStore(ctx, domain.Store{
		ID:                xid.New(),
		Name:              name,
		Address:           strings.TrimSpace(req.Address),
		Phone:             strings.TrimSpace(req.Phone),
		Timezone:          timezone,
		Currency:          strings.ToUpper(defaultString(req.Currency, domain.DefaultCurrency)),
		LowStockThreshold: threshold,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return domain.Store{}, err
	}

	s.logAudit(ctx, created.ID, "store_create", "store", created.ID, fmt.Sprintf("name=%s", created.Name))
	return *created, nil
}

func (s *Service) UpdateStore(ctx context.Context, storeID string, req domain.StoreUpdateRequest) (domain.Store, error) {
	existing, _, err := s.authorizeStore(ctx, storeID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return domain.Store{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Store{}, invalidf("name must not be empty")
		}
		updated.Name = name
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Timezone != nil {
		timezone := defaultString(*req.Timezone, domain.DefaultTimezone)
		if _, err := time.LoadLocation(timezone); err != nil {
			return domain.Store{}, invalidf("unknown timezone %q", timezone)
		}
		updated.Timezone = timezone
	}
	if req.Currency != nil {
		updated.Currency = strings.ToUpper(defaultString(*req.Currency, domain.DefaultCurrency))
	}
	if req.LowStockThreshold != nil {
		if *req.LowStockThreshold < 0 {
			return domain.Store{}, invalidf("low_stock_threshold must not be negative")
		}
		updated.LowStockThreshold = *req.LowStockThreshold
	}
	updated.UpdatedAt = s.now()

	saved, err := s.repo.UpdateStore(ctx, updated)
	if err != nil {
		return domain.Store{}, err
	}

	s.logAudit(ctx, saved.ID, "store_update", "store", saved.ID, fmt.Sprintf("name=%s,threshold=%d", saved.Name, saved.LowStockThreshold))
	s.invalidateDashboard(ctx, saved.ID)
	return *saved, nil
}
