package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/notify"
	"warungpos/backend/internal/store"
)

func postUnpaidSale(t *testing.T, svc *Service, customerID string, total int64) domain.SaleResult {
	t.Helper()
	product := createProduct(t, svc, storeA, "D-"+customerID[:6], total/2, total, 10)
	result, err := svc.PostSale(cashierCtx(), storeA, domain.SaleRequest{
		CustomerID:    customerID,
		Items:         []domain.SaleItemRequest{{ProductID: product.ID, Quantity: 1}},
		PaymentStatus: domain.PaymentStatusUnpaid,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Debt)
	return result
}

func TestRecordDebtPaymentLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	customer := createCustomer(t, svc, storeA, "08123456789")
	debt := postUnpaidSale(t, svc, customer.ID, 50000).Debt

	partial, err := svc.RecordDebtPayment(cashierCtx(), debt.ID, domain.DebtPaymentRequest{Amount: dec(20000)})
	require.NoError(t, err)
	assert.True(t, partial.Debt.PaidAmount.Equal(dec(20000)))
	assert.Equal(t, domain.DebtStatusPending, partial.Debt.Status)
	assert.Nil(t, partial.CashFlowEntry)

	_, err = svc.RecordDebtPayment(cashierCtx(), debt.ID, domain.DebtPaymentRequest{Amount: dec(40000)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	full, err := svc.RecordDebtPayment(cashierCtx(), debt.ID, domain.DebtPaymentRequest{
		Amount:         dec(30000),
		PaymentMethod:  domain.PaymentMethodCash,
		RecordCashFlow: true,
	})
	require.NoError(t, err)
	assert.True(t, full.Debt.PaidAmount.Equal(dec(50000)))
	assert.Equal(t, domain.DebtStatusPaid, full.Debt.Status)
	require.NotNil(t, full.CashFlowEntry)
	assert.Equal(t, domain.CashFlowIncome, full.CashFlowEntry.Type)
	assert.Equal(t, domain.CashFlowCategoryReceivable, full.CashFlowEntry.Category)
	assert.Equal(t, debt.ID, full.CashFlowEntry.Reference)
	assert.Equal(t, customer.ID, full.CashFlowEntry.CustomerID)
	assert.True(t, full.CashFlowEntry.Amount.Equal(dec(30000)))

	_, err = svc.RecordDebtPayment(cashierCtx(), debt.ID, domain.DebtPaymentRequest{Amount: dec(1)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = svc.RecordDebtPayment(cashierCtx(), debt.ID, domain.DebtPaymentRequest{Amount: dec(0)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestListDebtsDerivesOverdue(t *testing.T) {
	svc, _, clock := newTestService(t, Options{})
	customer := createCustomer(t, svc, storeA, "08123456789")
	debt := postUnpaidSale(t, svc, customer.ID, 10000).Debt

	due := clock.Now().Add(-24 * time.Hour)
	updated, err := svc.UpdateDebt(cashierCtx(), debt.ID, domain.DebtUpdateRequest{DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, domain.DebtStatusOverdue, updated.Status)

	overdue, err := svc.ListDebts(cashierCtx(), storeA, domain.DebtFilter{Status: domain.DebtStatusOverdue})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, debt.ID, overdue[0].ID)

	pending, err := svc.ListDebts(cashierCtx(), storeA, domain.DebtFilter{Status: domain.DebtStatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)

	byCustomer, err := svc.ListCustomerDebts(cashierCtx(), customer.ID)
	require.NoError(t, err)
	assert.Len(t, byCustomer, 1)

	_, err = svc.ListDebts(cashierCtx(), storeA, domain.DebtFilter{Status: "lost"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestSendDebtReminder(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := NewMockNotifier(ctrl)
	svc, _, clock := newTestService(t, Options{Notifier: notifier})
	customer := createCustomer(t, svc, storeA, "08123456789")
	debt := postUnpaidSale(t, svc, customer.ID, 50000).Debt

	notifier.EXPECT().SendDebtReminder(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r notify.Reminder) error {
		assert.Equal(t, "08123456789", r.Phone)
		assert.Equal(t, "Toko Sumber Rejeki", r.StoreName)
		assert.True(t, r.Outstanding.Equal(dec(50000)))
		return nil
	})

	resp, err := svc.SendDebtReminder(cashierCtx(), debt.ID)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, ReminderSentMessage, resp.Message)
	assert.True(t, resp.Debt.ReminderSent)
	require.NotNil(t, resp.Debt.LastReminderDate)
	assert.True(t, resp.Debt.LastReminderDate.Equal(clock.Now()))
}

func TestSendDebtReminderFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := NewMockNotifier(ctrl)
	svc, _, _ := newTestService(t, Options{Notifier: notifier})

	noPhone := createCustomer(t, svc, storeA, "")
	debt := postUnpaidSale(t, svc, noPhone.ID, 10000).Debt
	_, err := svc.SendDebtReminder(cashierCtx(), debt.ID)
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	withPhone := createCustomer(t, svc, storeA, "0899")
	other := postUnpaidSale(t, svc, withPhone.ID, 10000).Debt
	notifier.EXPECT().SendDebtReminder(gomock.Any(), gomock.Any()).Return(errors.New("gateway timeout"))
	_, err = svc.SendDebtReminder(cashierCtx(), other.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrInvalidInput)

	_, err = svc.RecordDebtPayment(cashierCtx(), other.ID, domain.DebtPaymentRequest{Amount: dec(10000)})
	require.NoError(t, err)
	_, err = svc.SendDebtReminder(cashierCtx(), other.ID)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestCashFlowTotals(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := cashierCtx()

	_, err := svc.CreateCashFlow(ctx, storeA, domain.CashFlowCreateRequest{Type: domain.CashFlowIncome, Category: "Penjualan", Amount: dec(500000)})
	require.NoError(t, err)
	expense, err := svc.CreateCashFlow(ctx, storeA, domain.CashFlowCreateRequest{Type: domain.CashFlowExpense, Category: "Operasional", Amount: dec(50000)})
	require.NoError(t, err)

	_, err = svc.CreateCashFlow(ctx, storeA, domain.CashFlowCreateRequest{Type: "transfer", Category: "x", Amount: dec(1)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)
	_, err = svc.CreateCashFlow(ctx, storeA, domain.CashFlowCreateRequest{Type: domain.CashFlowIncome, Category: "x", Amount: dec(0)})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	list, err := svc.ListCashFlow(ctx, storeA, domain.CashFlowFilter{})
	require.NoError(t, err)
	assert.Len(t, list.Entries, 2)
	assert.True(t, list.TotalIncome.Equal(dec(500000)))
	assert.True(t, list.TotalExpense.Equal(dec(50000)))
	assert.True(t, list.Net.Equal(dec(450000)))

	amount := dec(75000)
	updated, err := svc.UpdateCashFlow(ctx, expense.ID, domain.CashFlowUpdateRequest{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(amount))

	require.NoError(t, svc.DeleteCashFlow(ctx, expense.ID))
	list, err = svc.ListCashFlow(ctx, storeA, domain.CashFlowFilter{Type: domain.CashFlowExpense})
	require.NoError(t, err)
	assert.Empty(t, list.Entries)
}
