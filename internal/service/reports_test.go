package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string]domain.DashboardStats
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]domain.DashboardStats)}
}

func (c *mapCache) Get(_ context.Context, storeID string) (*domain.DashboardStats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[storeID]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func (c *mapCache) Set(_ context.Context, storeID string, value *domain.DashboardStats, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[storeID] = *value
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, storeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, storeID)
	return nil
}

func TestDashboardAggregatesTodayAndUsesCache(t *testing.T) {
	dashCache := newMapCache()
	svc, _, _ := newTestService(t, Options{Cache: dashCache, CacheTTL: time.Minute})
	product := createProduct(t, svc, storeA, "DSH-01", 8000, 10000, 6)
	createProduct(t, svc, storeA, "DSH-02", 8000, 10000, 2)
	customer := createCustomer(t, svc, storeA, "0812")

	_, err := svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	_, err = svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		CustomerID:    customer.ID,
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentStatus: domain.PaymentStatusUnpaid,
	})
	require.NoError(t, err)

	stats, err := svc.Dashboard(cashierCtx(), storeA)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", stats.Date)
	assert.True(t, stats.DailySales.Equal(dec(20000)))
	assert.Equal(t, 2, stats.TransactionCount)
	assert.True(t, stats.TotalDebt.Equal(dec(10000)))
	// DSH-01 is at 3 and DSH-02 at 2, both under the threshold of 5.
	assert.Equal(t, 2, stats.LowStockCount)
	assert.Len(t, stats.RecentTransactions, 2)

	_, cached, _ := dashCache.Get(context.Background(), storeA)
	assert.True(t, cached)

	_, err = svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	_, cached, _ = dashCache.Get(context.Background(), storeA)
	assert.False(t, cached, "a sale must invalidate the cached dashboard")

	stats, err = svc.Dashboard(cashierCtx(), storeA)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TransactionCount)
}

func TestSalesReport(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	kopi := createProduct(t, svc, storeA, "KOP-01", 15000, 18000, 20)
	teh := createProduct(t, svc, storeA, "TEH-01", 8000, 10000, 20)
	customer := createCustomer(t, svc, storeA, "0812")

	_, err := svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: kopi.ID, Quantity: 1}, {ProductID: teh.ID, Quantity: 3}},
		Tax:           dec(1000),
		PaymentMethod: domain.PaymentMethodQRIS,
	})
	require.NoError(t, err)
	_, err = svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: kopi.ID, Quantity: 2}},
		PaymentMethod: domain.PaymentMethodCash,
	})
	require.NoError(t, err)
	_, err = svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		CustomerID:    customer.ID,
		Items:         []domain.SaleItemRequest{{ProductID: teh.ID, Quantity: 5}},
		PaymentStatus: domain.PaymentStatusUnpaid,
	})
	require.NoError(t, err)

	report, err := svc.SalesReport(cashierCtx(), storeA, "2025-03-10", "2025-03-10")
	require.NoError(t, err)

	// Paid sales: 18000+30000+1000 tax and 36000.
	assert.True(t, report.TotalRevenue.Equal(dec(85000)))
	assert.Equal(t, 3, report.TotalTransactions)
	// 85000 - 1000 tax - (15000 + 3*8000 + 2*15000).
	assert.True(t, report.GrossProfit.Equal(dec(15000)))
	assert.True(t, report.AverageTransaction.Equal(dec(42500)))
	require.NotEmpty(t, report.TopProducts)
	assert.Equal(t, kopi.ID, report.TopProducts[0].ProductID)
	assert.Equal(t, 3, report.TopProducts[0].Quantity)
	assert.Len(t, report.PaymentMethods, 2)

	_, err = svc.SalesReport(cashierCtx(), storeA, "", "2025-03-10")
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestParseRange(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	tests := []struct {
		name     string
		from, to string
		wantFrom time.Time
		wantTo   time.Time
		wantErr  bool
	}{
		{
			name: "dates in store zone with inclusive end",
			from: "2025-03-01", to: "2025-03-31",
			wantFrom: time.Date(2025, 2, 28, 17, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 3, 31, 17, 0, 0, 0, time.UTC),
		},
		{
			name: "rfc3339 bounds kept as given",
			from: "2025-03-01T00:00:00Z", to: "2025-03-02T00:00:00Z",
			wantFrom: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{name: "missing from", to: "2025-03-01", wantErr: true},
		{name: "garbage", from: "yesterday", to: "2025-03-01", wantErr: true},
		{name: "reversed", from: "2025-03-05", to: "2025-03-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to, err := ParseRange(tt.from, tt.to, jakarta)
			if tt.wantErr {
				assert.ErrorIs(t, err, store.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.True(t, from.Equal(tt.wantFrom), "from = %s", from)
			assert.True(t, to.Equal(tt.wantTo), "to = %s", to)
		})
	}
}

func TestAuditLogsRecordMutations(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	createProduct(t, svc, storeA, "AUD-01", 1000, 2000, 1)

	logs, err := svc.ListAuditLogs(ownerCtx(), storeA, 10)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	assert.Equal(t, "product_create", logs[0].Action)
	assert.Equal(t, ownerID, logs[0].UserID)

	_, err = svc.ListAuditLogs(cashierCtx(), storeA, 10)
	assert.ErrorIs(t, err, ErrForbidden)
}
