package cache

import (
	"context"
	"time"

	"warungpos/backend/internal/domain"
)

// DashboardCache stores computed dashboard snapshots per store.
type DashboardCache interface {
	Get(ctx context.Context, storeID string) (*domain.DashboardStats, bool, error)
	Set(ctx context.Context, storeID string, value *domain.DashboardStats, ttl time.Duration) error
	Invalidate(ctx context.Context, storeID string) error
}

type NoopDashboardCache struct{}

func (NoopDashboardCache) Get(_ context.Context, _ string) (*domain.DashboardStats, bool, error) {
	return nil, false, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ *domain.DashboardStats, _ time.Duration) error {
	return nil
}

func (NoopDashboardCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

func dashboardKey(storeID string) string {
	return "dashboard:" + storeID
}
