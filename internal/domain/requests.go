package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
	User        User   `json:"user"`
}

type StoreCreateRequest struct {
	Name              string `json:"name"`
	Address           string `json:"address"`
	Phone             string `json:"phone"`
	Timezone          string `json:"timezone"`
	Currency          string `json:"currency"`
	LowStockThreshold *int   `json:"low_stock_threshold"`
}

type StoreUpdateRequest struct {
	Name              *string `json:"name"`
	Address           *string `json:"address"`
	Phone             *string `json:"phone"`
	Timezone          *string `json:"timezone"`
	Currency          *string `json:"currency"`
	LowStockThreshold *int    `json:"low_stock_threshold"`
}

type ProductCreateRequest struct {
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	PriceBuy  decimal.Decimal `json:"price_buy"`
	PriceSell decimal.Decimal `json:"price_sell"`
	Stock     int             `json:"stock"`
	Unit      string          `json:"unit"`
	Category  string          `json:"category"`
}

// ProductUpdateRequest deliberately has no stock field: stock only moves
// through sales and stock adjustments.
type ProductUpdateRequest struct {
	Name      *string          `json:"name"`
	SKU       *string          `json:"sku"`
	PriceBuy  *decimal.Decimal `json:"price_buy"`
	PriceSell *decimal.Decimal `json:"price_sell"`
	Unit      *string          `json:"unit"`
	Category  *string          `json:"category"`
	IsActive  *bool            `json:"is_active"`
}

type StockAdjustmentRequest struct {
	Type     string `json:"type"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
}

type CustomerCreateRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type CustomerUpdateRequest struct {
	Name    *string          `json:"name"`
	Phone   *string          `json:"phone"`
	Email   *string          `json:"email"`
	Address *string          `json:"address"`
	Balance *decimal.Decimal `json:"balance"`
}

type SaleItemRequest struct {
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
	Discount  decimal.Decimal  `json:"discount"`
}

// SaleRequest is the cart submitted to the sale poster. Subtotal and Total are
// optional; when present they must match the server-side computation.
type SaleRequest struct {
	CustomerID    string            `json:"customer_id"`
	Items         []SaleItemRequest `json:"items"`
	Subtotal      *decimal.Decimal  `json:"subtotal"`
	Discount      decimal.Decimal   `json:"discount"`
	Tax           decimal.Decimal   `json:"tax"`
	Total         *decimal.Decimal  `json:"total"`
	PaymentStatus string            `json:"payment_status"`
	PaymentMethod string            `json:"payment_method"`
	Notes         string            `json:"notes"`
	OfflineID     string            `json:"offline_id"`
	DueDate       *time.Time        `json:"due_date"`
}

type TransactionUpdateRequest struct {
	PaymentStatus *string `json:"payment_status"`
	PaymentMethod *string `json:"payment_method"`
	Notes         *string `json:"notes"`
}

type PaymentCallbackRequest struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

type PaymentCallbackResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

type OfflineSyncRequest struct {
	Transactions []SaleRequest `json:"transactions"`
}

type OfflineSyncStatus struct {
	OfflineID     string `json:"offline_id"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type OfflineSyncResponse struct {
	Statuses []OfflineSyncStatus `json:"statuses"`
}

const (
	SyncStatusAccepted  = "accepted"
	SyncStatusDuplicate = "duplicate"
	SyncStatusRejected  = "rejected"
	SyncStatusQueued    = "queued"
)

type DebtUpdateRequest struct {
	DueDate *time.Time `json:"due_date"`
}

type DebtPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	RecordCashFlow bool            `json:"record_cash_flow"`
}

type DebtPaymentResponse struct {
	Debt          Debt           `json:"debt"`
	CashFlowEntry *CashFlowEntry `json:"cash_flow_entry,omitempty"`
}

type ReminderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Debt    Debt   `json:"debt"`
}

type CashFlowCreateRequest struct {
	CustomerID    string          `json:"customer_id"`
	Type          string          `json:"type"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Reference     string          `json:"reference"`
}

type CashFlowUpdateRequest struct {
	Type          *string          `json:"type"`
	Category      *string          `json:"category"`
	Description   *string          `json:"description"`
	Amount        *decimal.Decimal `json:"amount"`
	PaymentMethod *string          `json:"payment_method"`
	Reference     *string          `json:"reference"`
}

type CashFlowListResponse struct {
	Entries      []CashFlowEntry `json:"entries"`
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Net          decimal.Decimal `json:"net"`
}
