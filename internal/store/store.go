package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"warungpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
)

type StoreRepository interface {
	// ListStores returns the stores with the given ids, or every store when ids is nil.
	ListStores(ctx context.Context, ids []string) ([]domain.Store, error)
	GetStore(ctx context.Context, id string) (*domain.Store, error)
	CreateStore(ctx context.Context, s domain.Store) (*domain.Store, error)
	UpdateStore(ctx context.Context, s domain.Store) (*domain.Store, error)
}

type ProductRepository interface {
	ListProducts(ctx context.Context, storeID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, storeID string, ids []string) (map[string]domain.Product, error)
	// CreateProduct inserts the product; a positive initial stock is recorded
	// as an "in" movement in the same unit of work.
	CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	// UpdateProduct writes every field except stock.
	UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error)
	DeactivateProduct(ctx context.Context, id string) error
	// ApplyStockMovement adds m.Quantity to the product's stock and appends m,
	// failing with ErrInsufficientStock when the result would be negative.
	ApplyStockMovement(ctx context.Context, m domain.StockMovement) (*domain.Product, error)
	ListStockMovements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error)
	ListLowStockProducts(ctx context.Context, storeID string, threshold int) ([]domain.Product, error)
}

type CustomerRepository interface {
	ListCustomers(ctx context.Context, storeID string) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
}

type TransactionRepository interface {
	ListTransactions(ctx context.Context, storeID string, filter domain.TransactionFilter) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	FindTransactionByOfflineID(ctx context.Context, storeID string, offlineID string) (*domain.Transaction, error)
	// PostSale persists the transaction, its stock decrements and movements and
	// the optional debt as one all-or-nothing unit. A concurrent duplicate
	// offline id yields the existing transaction with Duplicate set.
	PostSale(ctx context.Context, posting domain.SalePosting) (*domain.SaleResult, error)
	// UpdateTransaction writes payment status, payment method and notes only.
	UpdateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
}

type DebtRepository interface {
	ListDebts(ctx context.Context, storeID string, filter domain.DebtFilter) ([]domain.Debt, error)
	GetDebt(ctx context.Context, id string) (*domain.Debt, error)
	// UpdateDebt writes the due date only.
	UpdateDebt(ctx context.Context, d domain.Debt) (*domain.Debt, error)
	// RecordDebtPayment atomically adds amount to the paid amount of an open
	// debt. It fails with ErrInvalidInput when the debt is already paid or the
	// amount exceeds the remaining balance.
	RecordDebtPayment(ctx context.Context, id string, amount decimal.Decimal, at time.Time) (*domain.Debt, error)
	MarkDebtReminderSent(ctx context.Context, id string, at time.Time) (*domain.Debt, error)
}

type CashFlowRepository interface {
	ListCashFlowEntries(ctx context.Context, storeID string, filter domain.CashFlowFilter) ([]domain.CashFlowEntry, error)
	GetCashFlowEntry(ctx context.Context, id string) (*domain.CashFlowEntry, error)
	CreateCashFlowEntry(ctx context.Context, e domain.CashFlowEntry) (*domain.CashFlowEntry, error)
	UpdateCashFlowEntry(ctx context.Context, e domain.CashFlowEntry) (*domain.CashFlowEntry, error)
	DeleteCashFlowEntry(ctx context.Context, id string) error
}

type ReportRepository interface {
	SalesSummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error)
	OutstandingDebt(ctx context.Context, storeID string) (decimal.Decimal, error)
	CountLowStock(ctx context.Context, storeID string, threshold int) (int, error)
	TopProducts(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error)
	PaymentMethodBreakdown(ctx context.Context, storeID string, from time.Time, to time.Time) ([]domain.PaymentMethodSales, error)
}

type AuditRepository interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, limit int) ([]domain.AuditLog, error)
}

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, u domain.User) (*domain.User, error)
}

type Repository interface {
	StoreRepository
	ProductRepository
	CustomerRepository
	TransactionRepository
	DebtRepository
	CashFlowRepository
	ReportRepository
	AuditRepository
	UserRepository
}
