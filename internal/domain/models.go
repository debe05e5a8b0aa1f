package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusUnpaid  = "unpaid"
	PaymentStatusPartial = "partial"

	DebtStatusPending = "pending"
	DebtStatusPaid    = "paid"
	DebtStatusOverdue = "overdue"

	PaymentMethodCash     = "cash"
	PaymentMethodTransfer = "transfer"
	PaymentMethodQRIS     = "qris"
	PaymentMethodEWallet  = "ewallet"
	PaymentMethodOther    = "other"

	MovementIn         = "in"
	MovementOut        = "out"
	MovementAdjustment = "adjustment"

	CashFlowIncome  = "income"
	CashFlowExpense = "expense"

	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleCashier = "cashier"

	DefaultTimezone          = "Asia/Jakarta"
	DefaultCurrency          = "IDR"
	DefaultLowStockThreshold = 5
	DefaultUnit              = "pcs"

	CashFlowCategoryReceivable = "Piutang"
)

// Actor is the authenticated caller attached to a request context.
type Actor struct {
	UserID   string
	Email    string
	Role     string
	StoreIDs []string
}

// CanAccessStore reports whether the actor may read or write data owned by storeID.
// Owners see every store.
func (a Actor) CanAccessStore(storeID string) bool {
	if a.Role == RoleOwner {
		return true
	}
	return slices.Contains(a.StoreIDs, storeID)
}

type Store struct {
	ID                string    `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Address           string    `json:"address,omitempty" db:"address"`
	Phone             string    `json:"phone,omitempty" db:"phone"`
	Timezone          string    `json:"timezone" db:"timezone"`
	Currency          string    `json:"currency" db:"currency"`
	LowStockThreshold int       `json:"low_stock_threshold" db:"low_stock_threshold"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Location returns the store's configured time zone, falling back to UTC
// when the zone name cannot be loaded.
func (s Store) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Product struct {
	ID        string          `json:"id" db:"id"`
	StoreID   string          `json:"store_id" db:"store_id"`
	Name      string          `json:"name" db:"name"`
	SKU       string          `json:"sku" db:"sku"`
	PriceBuy  decimal.Decimal `json:"price_buy" db:"price_buy"`
	PriceSell decimal.Decimal `json:"price_sell" db:"price_sell"`
	Stock     int             `json:"stock" db:"stock"`
	Unit      string          `json:"unit" db:"unit"`
	Category  string          `json:"category,omitempty" db:"category"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

type Customer struct {
	ID        string          `json:"id" db:"id"`
	StoreID   string          `json:"store_id" db:"store_id"`
	Name      string          `json:"name" db:"name"`
	Phone     string          `json:"phone,omitempty" db:"phone"`
	Email     string          `json:"email,omitempty" db:"email"`
	Address   string          `json:"address,omitempty" db:"address"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// SaleItem is the immutable line snapshot stored with a transaction.
type SaleItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	CostPrice   decimal.Decimal `json:"cost_price"`
}

func (i SaleItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))).Sub(i.Discount)
}

type Transaction struct {
	ID            string          `json:"id" db:"id"`
	StoreID       string          `json:"store_id" db:"store_id"`
	CustomerID    string          `json:"customer_id,omitempty" db:"customer_id"`
	InvoiceNumber string          `json:"invoice_number" db:"invoice_number"`
	Items         []SaleItem      `json:"items" db:"items"`
	Subtotal      decimal.Decimal `json:"subtotal" db:"subtotal"`
	Discount      decimal.Decimal `json:"discount" db:"discount"`
	Tax           decimal.Decimal `json:"tax" db:"tax"`
	Total         decimal.Decimal `json:"total" db:"total"`
	PaymentStatus string          `json:"payment_status" db:"payment_status"`
	PaymentMethod string          `json:"payment_method,omitempty" db:"payment_method"`
	Notes         string          `json:"notes,omitempty" db:"notes"`
	OfflineID     string          `json:"offline_id,omitempty" db:"offline_id"`
	CreatedBy     string          `json:"created_by,omitempty" db:"created_by"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

type Debt struct {
	ID               string          `json:"id" db:"id"`
	TransactionID    string          `json:"transaction_id" db:"transaction_id"`
	StoreID          string          `json:"store_id" db:"store_id"`
	CustomerID       string          `json:"customer_id" db:"customer_id"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	PaidAmount       decimal.Decimal `json:"paid_amount" db:"paid_amount"`
	DueDate          *time.Time      `json:"due_date,omitempty" db:"due_date"`
	Status           string          `json:"status" db:"status"`
	ReminderSent     bool            `json:"reminder_sent" db:"reminder_sent"`
	LastReminderDate *time.Time      `json:"last_reminder_date,omitempty" db:"last_reminder_date"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

func (d Debt) Remaining() decimal.Decimal {
	return d.Amount.Sub(d.PaidAmount)
}

// EffectiveStatus derives the read-time status. Overdue is never stored.
func (d Debt) EffectiveStatus(now time.Time) string {
	if d.Status == DebtStatusPaid {
		return DebtStatusPaid
	}
	if d.DueDate != nil && d.DueDate.Before(now) {
		return DebtStatusOverdue
	}
	return DebtStatusPending
}

// WithEffectiveStatus returns a copy whose Status is the derived status.
func (d Debt) WithEffectiveStatus(now time.Time) Debt {
	d.Status = d.EffectiveStatus(now)
	return d
}

// NextPaymentState applies a payment to the persisted paid amount and returns
// the resulting paid amount and status.
func (d Debt) NextPaymentState(payment decimal.Decimal) (decimal.Decimal, string) {
	paid := d.PaidAmount.Add(payment)
	if paid.GreaterThanOrEqual(d.Amount) {
		return paid, DebtStatusPaid
	}
	return paid, DebtStatusPending
}

type StockMovement struct {
	ID        string    `json:"id" db:"id"`
	ProductID string    `json:"product_id" db:"product_id"`
	StoreID   string    `json:"store_id" db:"store_id"`
	Type      string    `json:"type" db:"type"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Reference string    `json:"reference,omitempty" db:"reference"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CashFlowEntry struct {
	ID            string          `json:"id" db:"id"`
	StoreID       string          `json:"store_id" db:"store_id"`
	CustomerID    string          `json:"customer_id,omitempty" db:"customer_id"`
	Type          string          `json:"type" db:"type"`
	Category      string          `json:"category" db:"category"`
	Description   string          `json:"description,omitempty" db:"description"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	PaymentMethod string          `json:"payment_method,omitempty" db:"payment_method"`
	Reference     string          `json:"reference,omitempty" db:"reference"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

type AuditLog struct {
	ID         string    `json:"id" db:"id"`
	StoreID    string    `json:"store_id" db:"store_id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	Detail     string    `json:"detail,omitempty" db:"detail"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	Role         string    `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	StoreIDs     []string  `json:"store_ids" db:"store_ids"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SalePosting is the unit of work handed to the repository's sale poster.
type SalePosting struct {
	Transaction Transaction
	DebtDueDate *time.Time
}

// OpensDebt reports whether posting this sale must open a receivable.
func (p SalePosting) OpensDebt() bool {
	tx := p.Transaction
	return tx.PaymentStatus == PaymentStatusUnpaid && tx.CustomerID != "" && tx.Total.IsPositive()
}

type SaleResult struct {
	Transaction Transaction     `json:"transaction"`
	Debt        *Debt           `json:"debt,omitempty"`
	Movements   []StockMovement `json:"stock_movements"`
	Duplicate   bool            `json:"duplicate"`
}

type TransactionFilter struct {
	From   *time.Time
	To     *time.Time
	Status string
	Limit  int
}

type DebtFilter struct {
	CustomerID string
	Status     string
}

type CashFlowFilter struct {
	From *time.Time
	To   *time.Time
	Type string
}

type SalesSummary struct {
	Revenue          decimal.Decimal
	Tax              decimal.Decimal
	CostOfGoods      decimal.Decimal
	PaidTransactions int
	Transactions     int
}

type ProductSales struct {
	ProductID   string          `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	Revenue     decimal.Decimal `json:"revenue" db:"revenue"`
}

type PaymentMethodSales struct {
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	Transactions  int             `json:"transactions" db:"transactions"`
	Total         decimal.Decimal `json:"total" db:"total"`
}

type DashboardStats struct {
	StoreID            string          `json:"store_id"`
	Date               string          `json:"date"`
	DailySales         decimal.Decimal `json:"daily_sales"`
	TransactionCount   int             `json:"transaction_count"`
	TotalDebt          decimal.Decimal `json:"total_debt"`
	LowStockCount      int             `json:"low_stock_count"`
	RecentTransactions []Transaction   `json:"recent_transactions"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

type SalesReport struct {
	StoreID            string               `json:"store_id"`
	From               time.Time            `json:"from"`
	To                 time.Time            `json:"to"`
	TotalRevenue       decimal.Decimal      `json:"total_revenue"`
	TotalTransactions  int                  `json:"total_transactions"`
	GrossProfit        decimal.Decimal      `json:"gross_profit"`
	AverageTransaction decimal.Decimal      `json:"average_transaction"`
	TopProducts        []ProductSales       `json:"top_products"`
	PaymentMethods     []PaymentMethodSales `json:"payment_methods"`
}
