package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/events"
	"warungpos/backend/internal/logger"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/store/memory"
)

const (
	storeA    = "store-a"
	storeB    = "store-b"
	ownerID   = "user-owner"
	cashierID = "user-cashier"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func seedStores(t *testing.T, repo *memory.Store) {
	t.Helper()
	for _, st := range []domain.Store{
		{ID: storeA, Name: "Toko Sumber Rejeki", Timezone: domain.DefaultTimezone, Currency: domain.DefaultCurrency, LowStockThreshold: 5},
		{ID: storeB, Name: "Warung Bu Siti", Timezone: domain.DefaultTimezone, Currency: domain.DefaultCurrency, LowStockThreshold: 3},
	} {
		_, err := repo.CreateStore(context.Background(), st)
		require.NoError(t, err)
	}
}

func newServiceWithRepo(repo store.Repository, opts Options) (*Service, *testClock) {
	// 10:00 in Jakarta.
	clock := &testClock{t: time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)}
	if opts.Now == nil {
		opts.Now = clock.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return New(repo, opts), clock
}

func newTestService(t *testing.T, opts Options) (*Service, *memory.Store, *testClock) {
	t.Helper()
	repo := memory.New()
	seedStores(t, repo)
	svc, clock := newServiceWithRepo(repo, opts)
	return svc, repo, clock
}

func ownerCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: ownerID, Role: domain.RoleOwner})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{UserID: cashierID, Role: domain.RoleCashier, StoreIDs: []string{storeA}})
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func decp(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func createProduct(t *testing.T, svc *Service, storeID string, sku string, buy int64, sell int64, stock int) domain.Product {
	t.Helper()
	p, err := svc.CreateProduct(ownerCtx(), storeID, domain.ProductCreateRequest{
		Name:      "Produk " + sku,
		SKU:       sku,
		PriceBuy:  dec(buy),
		PriceSell: dec(sell),
		Stock:     stock,
	})
	require.NoError(t, err)
	return p
}

func createCustomer(t *testing.T, svc *Service, storeID string, phone string) domain.Customer {
	t.Helper()
	c, err := svc.CreateCustomer(ownerCtx(), storeID, domain.CustomerCreateRequest{Name: "Ibu Sari", Phone: phone})
	require.NoError(t, err)
	return c
}

func stockOf(t *testing.T, repo *memory.Store, productID string) int {
	t.Helper()
	p, err := repo.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Stock
}

func TestPostSaleDecrementsStockAndRecordsMovement(t *testing.T) {
	svc, repo, _ := newTestService(t, Options{})
	product := createProduct(t, svc, storeA, "MIE-01", 2500, 3500, 10)

	result, err := svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 3}},
		PaymentMethod: domain.PaymentMethodCash,
	})
	require.NoError(t, err)

	assert.Equal(t, 7, stockOf(t, repo, product.ID))
	require.Len(t, result.Movements, 1)
	assert.Equal(t, domain.MovementOut, result.Movements[0].Type)
	assert.Equal(t, -3, result.Movements[0].Quantity)
	assert.Equal(t, result.Transaction.ID, result.Movements[0].Reference)
	assert.Nil(t, result.Debt)

	tx := result.Transaction
	assert.True(t, tx.Total.Equal(dec(10500)))
	assert.Equal(t, domain.PaymentStatusPaid, tx.PaymentStatus)
	assert.Equal(t, cashierID, tx.CreatedBy)
	assert.Regexp(t, `^TRX-\d+-[0-9A-F]{4}$`, tx.InvoiceNumber)
	assert.Equal(t, "Produk MIE-01", tx.Items[0].ProductName)
	assert.True(t, tx.Items[0].CostPrice.Equal(dec(2500)))
}

func TestPostSaleUnpaidOpensDebt(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	product := createProduct(t, svc, storeA, "BRS-01", 45000, 52000, 10)
	customer := createCustomer(t, svc, storeA, "08123456789")

	result, err := svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		CustomerID:    customer.ID,
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}},
		Subtotal:      decp(52000),
		Discount:      dec(2000),
		Total:         decp(50000),
		PaymentStatus: domain.PaymentStatusUnpaid,
	})
	require.NoError(t, err)

	assert.True(t, result.Transaction.Total.Equal(dec(50000)))
	require.NotNil(t, result.Debt)
	assert.True(t, result.Debt.Amount.Equal(dec(50000)))
	assert.True(t, result.Debt.PaidAmount.IsZero())
	assert.Equal(t, domain.DebtStatusPending, result.Debt.Status)
	assert.Equal(t, customer.ID, result.Debt.CustomerID)
	assert.Equal(t, result.Transaction.ID, result.Debt.TransactionID)
}

func TestPostSaleRejectsInconsistentTotals(t *testing.T) {
	svc, repo, _ := newTestService(t, Options{})
	product := createProduct(t, svc, storeA, "GLP-01", 12000, 14000, 10)

	_, err := svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 2}},
		Total: decp(20000),
	})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	assert.Equal(t, 10, stockOf(t, repo, product.ID))
}

func TestPostSaleValidation(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	product := createProduct(t, svc, storeA, "TEH-01", 8000, 10000, 10)
	other := createProduct(t, svc, storeB, "TEH-01", 8000, 10000, 10)
	foreignCustomer := createCustomer(t, svc, storeB, "08111")

	tests := []struct {
		name string
		req  domain.SaleRequest
	}{
		{"empty cart", domain.SaleRequest{}},
		{"zero quantity", domain.SaleRequest{Items: []domain.SaleItemRequest{{ProductID: product.ID}}}},
		{"negative price", domain.SaleRequest{Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1, Price: decp(-1)}}}},
		{"line discount above line", domain.SaleRequest{Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1, Discount: dec(10001)}}}},
		{"discount above subtotal", domain.SaleRequest{Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}}, Discount: dec(20000)}},
		{"negative tax", domain.SaleRequest{Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}}, Tax: dec(-1)}},
		{"unknown status", domain.SaleRequest{Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}}, PaymentStatus: "later"}},
		{"unknown method", domain.SaleRequest{Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}}, PaymentMethod: "card"}},
		{"product of another store", domain.SaleRequest{Items: []domain.SaleItemRequest{{ProductID: other.ID, Quantity: 1}}}},
		{"customer of another store", domain.SaleRequest{CustomerID: foreignCustomer.ID, Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PostSale(ownerCtx(), storeA, tt.req)
			assert.ErrorIs(t, err, store.ErrInvalidInput)
		})
	}
}

func TestPostSaleRequiresStoreAccess(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	product := createProduct(t, svc, storeB, "KOP-01", 15000, 18000, 10)
	req := domain.SaleRequest{Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}}}

	_, err := svc.PostSale(cashierCtx(), storeB, req)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.PostSale(context.Background(), storeB, req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestPostSaleInsufficientStockRollsBack(t *testing.T) {
	svc, repo, _ := newTestService(t, Options{})
	a := createProduct(t, svc, storeA, "A-01", 1000, 2000, 10)
	b := createProduct(t, svc, storeA, "B-01", 1000, 2000, 1)

	_, err := svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		Items: []domain.SaleItemRequest{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 2}},
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, 10, stockOf(t, repo, a.ID))
	assert.Equal(t, 1, stockOf(t, repo, b.ID))

	txs, err := svc.ListTransactions(cashierCtx(), storeA, domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestPostSaleOfflineIDIsIdempotent(t *testing.T) {
	svc, repo, _ := newTestService(t, Options{})
	product := createProduct(t, svc, storeA, "SAB-01", 3500, 5000, 10)
	req := domain.SaleRequest{
		Items:     []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 2}},
		OfflineID: "device-1:42",
	}

	first, err := svc.PostSale(cashierCtx(), storeA, req)
	require.NoError(t, err)
	second, err := svc.PostSale(cashierCtx(), storeA, req)
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, 8, stockOf(t, repo, product.ID))
}

func TestPostSalePublishesEventAndSurvivesPublishFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := NewMockEventPublisher(ctrl)
	var published []events.Event
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e events.Event) error {
		published = append(published, e)
		return errors.New("broker unavailable")
	}).Times(1)

	svc, _, _ := newTestService(t, Options{Publisher: publisher})
	product := createProduct(t, svc, storeA, "MYG-01", 28000, 32000, 5)

	result, err := svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeSalePosted, published[0].Type)
	assert.Equal(t, storeA, published[0].StoreID)
	assert.Equal(t, result.Transaction.ID, published[0].EntityID)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	svc, repo, _ := newTestService(t, Options{})
	product := createProduct(t, svc, storeA, "HOT-01", 1000, 2000, 10)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
				Items: []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 6}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, store.ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, stockOf(t, repo, product.ID))
}

func TestMarkTransactionPaid(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	product := createProduct(t, svc, storeA, "QR-01", 1000, 2000, 5)
	sale, err := svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentStatus: domain.PaymentStatusUnpaid,
		PaymentMethod: domain.PaymentMethodQRIS,
	})
	require.NoError(t, err)

	ignored, err := svc.MarkTransactionPaid(context.Background(), domain.PaymentCallbackRequest{TransactionID: sale.Transaction.ID, Status: "expired"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusUnpaid, ignored.PaymentStatus)

	paid, err := svc.MarkTransactionPaid(context.Background(), domain.PaymentCallbackRequest{TransactionID: sale.Transaction.ID, Status: "paid"})
	require.NoError(t, err)
	assert.True(t, paid.Success)
	assert.Equal(t, domain.PaymentStatusPaid, paid.PaymentStatus)

	_, err = svc.MarkTransactionPaid(context.Background(), domain.PaymentCallbackRequest{TransactionID: "missing", Status: "paid"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateTransactionPatchesOnlyPaymentFields(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	product := createProduct(t, svc, storeA, "UP-01", 1000, 2000, 5)
	sale, err := svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 2}},
		PaymentStatus: domain.PaymentStatusPartial,
	})
	require.NoError(t, err)

	status := domain.PaymentStatusPaid
	method := domain.PaymentMethodTransfer
	notes := "lunas via transfer"
	updated, err := svc.UpdateTransaction(cashierCtx(), sale.Transaction.ID, domain.TransactionUpdateRequest{
		PaymentStatus: &status,
		PaymentMethod: &method,
		Notes:         &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, updated.PaymentStatus)
	assert.Equal(t, domain.PaymentMethodTransfer, updated.PaymentMethod)
	assert.True(t, updated.Total.Equal(sale.Transaction.Total))
	assert.Len(t, updated.Items, 1)

	bad := "card"
	_, err = svc.UpdateTransaction(cashierCtx(), sale.Transaction.ID, domain.TransactionUpdateRequest{PaymentMethod: &bad})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestAdjustStock(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	product := createProduct(t, svc, storeA, "ADJ-01", 1000, 2000, 5)

	updated, err := svc.AdjustStock(ownerCtx(), product.ID, domain.StockAdjustmentRequest{Type: domain.MovementIn, Quantity: 10, Notes: "restock"})
	require.NoError(t, err)
	assert.Equal(t, 15, updated.Stock)

	_, err = svc.AdjustStock(ownerCtx(), product.ID, domain.StockAdjustmentRequest{Type: domain.MovementAdjustment, Quantity: -16})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	_, err = svc.AdjustStock(cashierCtx(), product.ID, domain.StockAdjustmentRequest{Type: domain.MovementIn, Quantity: 1})
	assert.ErrorIs(t, err, ErrForbidden)

	movements, err := svc.ListStockMovements(ownerCtx(), product.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	total := 0
	for _, m := range movements {
		total += m.Quantity
	}
	assert.Equal(t, 15, total)
}

func TestListStoresForCashierIsScoped(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})

	all, err := svc.ListStores(ownerCtx())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := svc.ListStores(cashierCtx())
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, storeA, scoped[0].ID)

	_, err = svc.CreateStore(cashierCtx(), domain.StoreCreateRequest{Name: "Cabang"})
	assert.ErrorIs(t, err, ErrForbidden)

	created, err := svc.CreateStore(ownerCtx(), domain.StoreCreateRequest{Name: "Cabang Baru"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTimezone, created.Timezone)
	assert.Equal(t, domain.DefaultCurrency, created.Currency)
	assert.Equal(t, domain.DefaultLowStockThreshold, created.LowStockThreshold)

	_, err = svc.CreateStore(ownerCtx(), domain.StoreCreateRequest{Name: "Cabang", Timezone: "Mars/Olympus"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestDeleteCustomerWithDebtConflicts(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	product := createProduct(t, svc, storeA, "DC-01", 1000, 2000, 5)
	customer := createCustomer(t, svc, storeA, "0812")

	_, err := svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		CustomerID:    customer.ID,
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentStatus: domain.PaymentStatusUnpaid,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteCustomer(cashierCtx(), customer.ID), store.ErrConflict)

	plain := createCustomer(t, svc, storeA, "0813")
	require.NoError(t, svc.DeleteCustomer(cashierCtx(), plain.ID))
}
