package service

import (
	"context"
	"fmt"
	"strings"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/events"
	"warungpos/backend/internal/xid"
)

func (s *Service) ListProducts(ctx context.Context, storeID string) ([]domain.Product, error) {
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, st.ID)
}

func (s *Service) CreateProduct(ctx context.Context, storeID string, req domain.ProductCreateRequest) (domain.Product, error) {
	st, _, err := s.authorizeStore(ctx, storeID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return domain.Product{}, err
	}

	name := strings.TrimSpace(req.Name)
	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if name == "" || sku == "" {
		return domain.Product{}, invalidf("name and sku are required")
	}
	if req.PriceBuy.IsNegative() || req.PriceSell.IsNegative() {
		return domain.Product{}, invalidf("prices must not be negative")
	}
	if req.Stock < 0 {
		return domain.Product{}, invalidf("stock must not be negative")
	}

	now := s.now()
	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:        xid.New(),
		StoreID:   st.ID,
		Name:      name,
		SKU:       sku,
		PriceBuy:  req.PriceBuy,
		PriceSell: req.PriceSell,
		Stock:     req.Stock,
		Unit:      defaultString(req.Unit, domain.DefaultUnit),
		Category:  strings.TrimSpace(req.Category),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, st.ID, "product_create", "product", created.ID, fmt.Sprintf("sku=%s,price=%s,stock=%d", created.SKU, created.PriceSell, created.Stock))
	s.invalidateDashboard(ctx, st.ID)
	return *created, nil
}

// productForCaller loads a product and checks store access for the caller.
func (s *Service) productForCaller(ctx context.Context, productID string, roles ...string) (*domain.Product, *domain.Store, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, nil, invalidf("product id is required")
	}
	if _, err := requireActor(ctx); err != nil {
		return nil, nil, err
	}
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	st, _, err := s.authorizeStore(ctx, product.StoreID, roles...)
	if err != nil {
		return nil, nil, err
	}
	return product, st, nil
}

func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	existing, st, err := s.productForCaller(ctx, productID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, invalidf("name must not be empty")
		}
		updated.Name = name
	}
	if req.SKU != nil {
		sku := strings.ToUpper(strings.TrimSpace(*req.SKU))
		if sku == "" {
			return domain.Product{}, invalidf("sku must not be empty")
		}
		updated.SKU = sku
	}
	if req.PriceBuy != nil {
		if req.PriceBuy.IsNegative() {
			return domain.Product{}, invalidf("price_buy must not be negative")
		}
		updated.PriceBuy = *req.PriceBuy
	}
	if req.PriceSell != nil {
		if req.PriceSell.IsNegative() {
			return domain.Product{}, invalidf("price_sell must not be negative")
		}
		updated.PriceSell = *req.PriceSell
	}
	if req.Unit != nil {
		updated.Unit = defaultString(*req.Unit, domain.DefaultUnit)
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.IsActive != nil {
		updated.IsActive = *req.IsActive
	}
	updated.UpdatedAt = s.now()

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, st.ID, "product_update", "product", saved.ID, fmt.Sprintf("sku=%s,active=%t,price=%s", saved.SKU, saved.IsActive, saved.PriceSell))
	s.invalidateDashboard(ctx, st.ID)
	return *saved, nil
}

// DeleteProduct deactivates the product. Sales history keeps referencing it.
func (s *Service) DeleteProduct(ctx context.Context, productID string) error {
	product, st, err := s.productForCaller(ctx, productID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return err
	}
	if err := s.repo.DeactivateProduct(ctx, product.ID); err != nil {
		return err
	}

	s.logAudit(ctx, st.ID, "product_delete", "product", product.ID, fmt.Sprintf("sku=%s", product.SKU))
	s.invalidateDashboard(ctx, st.ID)
	return nil
}

// AdjustStock applies a manual stock change. "in" adds the quantity; an
// "adjustment" carries a signed delta.
func (s *Service) AdjustStock(ctx context.Context, productID string, req domain.StockAdjustmentRequest) (domain.Product, error) {
	product, st, err := s.productForCaller(ctx, productID, domain.RoleOwner, domain.RoleAdmin)
	if err != nil {
		return domain.Product{}, err
	}

	delta := req.Quantity
	switch req.Type {
	case domain.MovementIn:
		if delta <= 0 {
			return domain.Product{}, invalidf("quantity must be positive for stock in")
		}
	case domain.MovementAdjustment:
		if delta == 0 {
			return domain.Product{}, invalidf("adjustment quantity must not be zero")
		}
	default:
		return domain.Product{}, invalidf("type must be %q or %q", domain.MovementIn, domain.MovementAdjustment)
	}

	movement := domain.StockMovement{
		ID:        xid.New(),
		ProductID: product.ID,
		StoreID:   st.ID,
		Type:      req.Type,
		Quantity:  delta,
		Reference: "manual",
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: s.now(),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		movement.Reference = "manual:" + actor.UserID
	}

	saved, err := s.repo.ApplyStockMovement(ctx, movement)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, st.ID, "stock_adjust", "product", saved.ID, fmt.Sprintf("type=%s,delta=%d,stock=%d", req.Type, delta, saved.Stock))
	s.publish(ctx, events.New(events.TypeStockAdjusted, st.ID, saved.ID, movement))
	s.invalidateDashboard(ctx, st.ID)
	return *saved, nil
}

func (s *Service) ListStockMovements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	product, _, err := s.productForCaller(ctx, productID)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListStockMovements(ctx, product.ID, limit)
}

// ListLowStock returns active products at or below the store's threshold.
func (s *Service) ListLowStock(ctx context.Context, storeID string) ([]domain.Product, error) {
	st, _, err := s.authorizeStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLowStockProducts(ctx, st.ID, st.LowStockThreshold)
}
