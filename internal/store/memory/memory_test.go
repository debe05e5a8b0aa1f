package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

type fixture struct {
	repo     *Store
	storeID  string
	product  domain.Product
	customer domain.Customer
	now      time.Time
}

func newFixture(t *testing.T, stock int) fixture {
	t.Helper()
	ctx := context.Background()
	repo := New()
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	st, err := repo.CreateStore(ctx, domain.Store{ID: xid.New(), Name: "Toko Uji", Timezone: domain.DefaultTimezone, LowStockThreshold: 5, CreatedAt: now})
	require.NoError(t, err)
	p, err := repo.CreateProduct(ctx, domain.Product{
		ID: xid.New(), StoreID: st.ID, Name: "Beras Premium 5kg", SKU: "BRS001",
		PriceBuy: decimal.NewFromInt(45000), PriceSell: decimal.NewFromInt(52000),
		Stock: stock, Unit: "karung", IsActive: true, CreatedAt: now,
	})
	require.NoError(t, err)
	c, err := repo.CreateCustomer(ctx, domain.Customer{ID: xid.New(), StoreID: st.ID, Name: "Ibu Sari", Phone: "08123456789", CreatedAt: now})
	require.NoError(t, err)

	return fixture{repo: repo, storeID: st.ID, product: *p, customer: *c, now: now}
}

func (f fixture) sale(qty int, status string, customerID string) domain.SalePosting {
	price := f.product.PriceSell
	total := price.Mul(decimal.NewFromInt(int64(qty)))
	return domain.SalePosting{Transaction: domain.Transaction{
		ID:            xid.New(),
		StoreID:       f.storeID,
		CustomerID:    customerID,
		InvoiceNumber: xid.InvoiceNumber(f.now),
		Items: []domain.SaleItem{{
			ProductID: f.product.ID, ProductName: f.product.Name, Quantity: qty,
			Price: price, Discount: decimal.Zero, CostPrice: f.product.PriceBuy,
		}},
		Subtotal:      total,
		Total:         total,
		PaymentStatus: status,
		CreatedAt:     f.now,
	}}
}

func TestCreateProductRecordsInitialStockMovement(t *testing.T) {
	f := newFixture(t, 10)

	movements, err := f.repo.ListStockMovements(context.Background(), f.product.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.MovementIn, movements[0].Type)
	assert.Equal(t, 10, movements[0].Quantity)
	assert.Equal(t, "initial-stock", movements[0].Reference)
}

func TestPostSaleDecrementsStockAndAppendsMovement(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	result, err := f.repo.PostSale(ctx, f.sale(3, domain.PaymentStatusPaid, ""))
	require.NoError(t, err)
	assert.False(t, result.Duplicate)
	assert.Nil(t, result.Debt)
	require.Len(t, result.Movements, 1)
	assert.Equal(t, -3, result.Movements[0].Quantity)
	assert.Equal(t, domain.MovementOut, result.Movements[0].Type)
	assert.Equal(t, result.Transaction.ID, result.Movements[0].Reference)

	p, err := f.repo.GetProduct(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Stock)
}

func TestPostSaleOpensDebtForUnpaidCustomerSale(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	result, err := f.repo.PostSale(ctx, f.sale(1, domain.PaymentStatusUnpaid, f.customer.ID))
	require.NoError(t, err)
	require.NotNil(t, result.Debt)
	assert.True(t, result.Debt.Amount.Equal(decimal.NewFromInt(52000)))
	assert.True(t, result.Debt.PaidAmount.IsZero())
	assert.Equal(t, domain.DebtStatusPending, result.Debt.Status)
	assert.Equal(t, f.customer.ID, result.Debt.CustomerID)

	debts, err := f.repo.ListDebts(ctx, f.storeID, domain.DebtFilter{})
	require.NoError(t, err)
	assert.Len(t, debts, 1)
}

func TestPostSaleRollsBackOnUnknownProduct(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	posting := f.sale(2, domain.PaymentStatusUnpaid, f.customer.ID)
	posting.Transaction.Items = append(posting.Transaction.Items, domain.SaleItem{ProductID: "missing", Quantity: 1, Price: decimal.NewFromInt(1000)})

	_, err := f.repo.PostSale(ctx, posting)
	require.ErrorIs(t, err, store.ErrInvalidInput)

	p, err := f.repo.GetProduct(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)

	txs, err := f.repo.ListTransactions(ctx, f.storeID, domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
	debts, err := f.repo.ListDebts(ctx, f.storeID, domain.DebtFilter{})
	require.NoError(t, err)
	assert.Empty(t, debts)
	movements, err := f.repo.ListStockMovements(ctx, f.product.ID, 0)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

func TestPostSaleCountsRepeatedLinesAgainstStock(t *testing.T) {
	f := newFixture(t, 5)

	posting := f.sale(3, domain.PaymentStatusPaid, "")
	posting.Transaction.Items = append(posting.Transaction.Items, posting.Transaction.Items[0])

	_, err := f.repo.PostSale(context.Background(), posting)
	require.ErrorIs(t, err, store.ErrInsufficientStock)
}

func TestPostSaleReturnsExistingTransactionForOfflineID(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	first := f.sale(2, domain.PaymentStatusPaid, "")
	first.Transaction.OfflineID = "offline-1"
	created, err := f.repo.PostSale(ctx, first)
	require.NoError(t, err)

	retry := f.sale(2, domain.PaymentStatusPaid, "")
	retry.Transaction.OfflineID = "offline-1"
	dup, err := f.repo.PostSale(ctx, retry)
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, created.Transaction.ID, dup.Transaction.ID)

	p, err := f.repo.GetProduct(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, p.Stock)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.repo.PostSale(ctx, f.sale(6, domain.PaymentStatusPaid, ""))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, store.ErrInsufficientStock):
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	p, err := f.repo.GetProduct(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock)
}

func TestRecordDebtPayment(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	result, err := f.repo.PostSale(ctx, f.sale(1, domain.PaymentStatusUnpaid, f.customer.ID))
	require.NoError(t, err)
	debtID := result.Debt.ID

	_, err = f.repo.RecordDebtPayment(ctx, debtID, decimal.NewFromInt(60000), f.now)
	require.ErrorIs(t, err, store.ErrInvalidInput)

	d, err := f.repo.RecordDebtPayment(ctx, debtID, decimal.NewFromInt(20000), f.now)
	require.NoError(t, err)
	assert.Equal(t, domain.DebtStatusPending, d.Status)

	d, err = f.repo.RecordDebtPayment(ctx, debtID, decimal.NewFromInt(32000), f.now)
	require.NoError(t, err)
	assert.Equal(t, domain.DebtStatusPaid, d.Status)
	assert.True(t, d.PaidAmount.Equal(decimal.NewFromInt(52000)))

	_, err = f.repo.RecordDebtPayment(ctx, debtID, decimal.NewFromInt(1), f.now)
	require.ErrorIs(t, err, store.ErrInvalidInput)

	outstanding, err := f.repo.OutstandingDebt(ctx, f.storeID)
	require.NoError(t, err)
	assert.True(t, outstanding.IsZero())
}

func TestApplyStockMovementRejectsNegativeStock(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.repo.ApplyStockMovement(ctx, domain.StockMovement{ProductID: f.product.ID, Type: domain.MovementAdjustment, Quantity: -3, CreatedAt: f.now})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	p, err := f.repo.ApplyStockMovement(ctx, domain.StockMovement{ProductID: f.product.ID, Type: domain.MovementIn, Quantity: 8, CreatedAt: f.now})
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)

	movements, err := f.repo.ListStockMovements(ctx, f.product.ID, 1)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, 8, movements[0].Quantity)
}

func TestUpdateProductKeepsStock(t *testing.T) {
	f := newFixture(t, 10)

	patch := f.product
	patch.Name = "Beras Medium 5kg"
	patch.Stock = 999
	updated, err := f.repo.UpdateProduct(context.Background(), patch)
	require.NoError(t, err)
	assert.Equal(t, "Beras Medium 5kg", updated.Name)
	assert.Equal(t, 10, updated.Stock)
}

func TestDeleteCustomerWithDebtConflicts(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.repo.PostSale(ctx, f.sale(1, domain.PaymentStatusUnpaid, f.customer.ID))
	require.NoError(t, err)

	err = f.repo.DeleteCustomer(ctx, f.customer.ID)
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestSalesSummaryCountsPaidRevenueAndCost(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.repo.PostSale(ctx, f.sale(2, domain.PaymentStatusPaid, ""))
	require.NoError(t, err)
	_, err = f.repo.PostSale(ctx, f.sale(1, domain.PaymentStatusUnpaid, f.customer.ID))
	require.NoError(t, err)

	summary, err := f.repo.SalesSummary(ctx, f.storeID, f.now.Add(-time.Hour), f.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Transactions)
	assert.Equal(t, 1, summary.PaidTransactions)
	assert.True(t, summary.Revenue.Equal(decimal.NewFromInt(104000)))
	assert.True(t, summary.CostOfGoods.Equal(decimal.NewFromInt(90000)))

	top, err := f.repo.TopProducts(ctx, f.storeID, f.now.Add(-time.Hour), f.now.Add(time.Hour), 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 2, top[0].Quantity)
}

func TestNewSeededLoadsDemoData(t *testing.T) {
	repo, err := NewSeeded()
	require.NoError(t, err)

	stores, err := repo.ListStores(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, stores, 2)

	u, err := repo.GetUserByEmail(context.Background(), "ADMIN@pos.com")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, u.Role)
	assert.NotEmpty(t, u.PasswordHash)
}
