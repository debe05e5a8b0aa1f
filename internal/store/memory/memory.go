package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/logger"
	"warungpos/backend/internal/seed"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

const initialStockReference = "initial-stock"

type Store struct {
	mu             sync.RWMutex
	stores         map[string]domain.Store
	products       map[string]domain.Product
	movements      []domain.StockMovement
	customers      map[string]domain.Customer
	transactions   map[string]domain.Transaction
	offlineIndex   map[string]string
	invoiceIndex   map[string]string
	debts          map[string]domain.Debt
	cashFlow       map[string]domain.CashFlowEntry
	auditLogs      []domain.AuditLog
	usersByID      map[string]domain.User
	userIDsByEmail map[string]string
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		stores:         make(map[string]domain.Store),
		products:       make(map[string]domain.Product),
		movements:      make([]domain.StockMovement, 0, 128),
		customers:      make(map[string]domain.Customer),
		transactions:   make(map[string]domain.Transaction),
		offlineIndex:   make(map[string]string),
		invoiceIndex:   make(map[string]string),
		debts:          make(map[string]domain.Debt),
		cashFlow:       make(map[string]domain.CashFlowEntry),
		auditLogs:      make([]domain.AuditLog, 0, 128),
		usersByID:      make(map[string]domain.User),
		userIDsByEmail: make(map[string]string),
	}
}

// NewSeeded returns a store preloaded with the demo dataset. Seed credentials
// come from SEED_OWNER_PASSWORD and SEED_CASHIER_PASSWORD; the dev defaults are
// used with a warning when they are unset. The seeded store backs local dev
// runs only, the server uses PostgreSQL whenever DATABASE_URL is set.
func NewSeeded() (*Store, error) {
	s := New()
	ds := seed.Build(time.Now())
	if ds.DefaultPasswords {
		logger.Default().WithComponent("memory-store").Warn("using default dev credentials, set SEED_OWNER_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	for _, st := range ds.Stores {
		s.stores[st.ID] = st
	}
	for _, p := range ds.Products {
		s.products[p.ID] = p
		if p.Stock > 0 {
			s.movements = append(s.movements, initialStockMovement(p))
		}
	}
	for _, c := range ds.Customers {
		s.customers[c.ID] = c
	}
	for _, e := range ds.CashFlow {
		s.cashFlow[e.ID] = e
	}
	for _, cred := range ds.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(cred.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", cred.User.Email, err)
		}
		u := cred.User
		u.PasswordHash = string(hash)
		s.usersByID[u.ID] = u
		s.userIDsByEmail[normalizeEmail(u.Email)] = u.ID
	}
	return s, nil
}

// Stores

func (s *Store) ListStores(_ context.Context, ids []string) ([]domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Store, 0, len(s.stores))
	for _, st := range s.stores {
		if ids != nil && !slices.Contains(ids, st.ID) {
			continue
		}
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b domain.Store) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetStore(_ context.Context, id string) (*domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.stores[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (s *Store) CreateStore(_ context.Context, st domain.Store) (*domain.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.ID == "" || strings.TrimSpace(st.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.stores[st.ID]; exists {
		return nil, store.ErrConflict
	}
	s.stores[st.ID] = st
	return &st, nil
}

func (s *Store) UpdateStore(_ context.Context, st domain.Store) (*domain.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.stores[st.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	st.CreatedAt = existing.CreatedAt
	s.stores[st.ID] = st
	return &st, nil
}

// Products

func (s *Store) ListProducts(_ context.Context, storeID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.StoreID != storeID || !p.IsActive {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) })
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, storeID string, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.StoreID == storeID {
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" || p.Name == "" || p.SKU == "" || p.Stock < 0 {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.stores[p.StoreID]; !ok {
		return nil, fmt.Errorf("%w: store does not exist", store.ErrInvalidInput)
	}
	if s.skuTaken(p.StoreID, p.SKU, "") {
		return nil, fmt.Errorf("%w: sku %s already exists", store.ErrConflict, p.SKU)
	}

	s.products[p.ID] = p
	if p.Stock > 0 {
		s.movements = append(s.movements, initialStockMovement(p))
	}
	return &p, nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.products[p.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if s.skuTaken(existing.StoreID, p.SKU, p.ID) {
		return nil, fmt.Errorf("%w: sku %s already exists", store.ErrConflict, p.SKU)
	}
	p.StoreID = existing.StoreID
	p.Stock = existing.Stock
	p.CreatedAt = existing.CreatedAt
	s.products[p.ID] = p
	return &p, nil
}

func (s *Store) DeactivateProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.IsActive = false
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return nil
}

func (s *Store) ApplyStockMovement(_ context.Context, m domain.StockMovement) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[m.ProductID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if m.Quantity == 0 {
		return nil, store.ErrInvalidInput
	}
	if p.Stock+m.Quantity < 0 {
		return nil, store.ErrInsufficientStock
	}

	if m.ID == "" {
		m.ID = xid.New()
	}
	m.StoreID = p.StoreID
	p.Stock += m.Quantity
	p.UpdatedAt = m.CreatedAt
	s.products[p.ID] = p
	s.movements = append(s.movements, m)
	return &p, nil
}

func (s *Store) ListStockMovements(_ context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StockMovement, 0, 16)
	for i := len(s.movements) - 1; i >= 0; i-- {
		if s.movements[i].ProductID != productID {
			continue
		}
		out = append(out, s.movements[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) ListLowStockProducts(_ context.Context, storeID string, threshold int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, 8)
	for _, p := range s.products {
		if p.StoreID == storeID && p.IsActive && p.Stock <= threshold {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		if a.Stock != b.Stock {
			return a.Stock - b.Stock
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// Customers

func (s *Store) ListCustomers(_ context.Context, storeID string) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if c.StoreID == storeID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Customer) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCustomer(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" || c.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.stores[c.StoreID]; !ok {
		return nil, fmt.Errorf("%w: store does not exist", store.ErrInvalidInput)
	}
	s.customers[c.ID] = c
	return &c, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.customers[c.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	c.StoreID = existing.StoreID
	c.CreatedAt = existing.CreatedAt
	s.customers[c.ID] = c
	return &c, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return store.ErrNotFound
	}
	for _, d := range s.debts {
		if d.CustomerID == id {
			return fmt.Errorf("%w: customer has debts", store.ErrConflict)
		}
	}

	for txID, tx := range s.transactions {
		if tx.CustomerID == id {
			tx.CustomerID = ""
			s.transactions[txID] = tx
		}
	}
	for entryID, e := range s.cashFlow {
		if e.CustomerID == id {
			e.CustomerID = ""
			s.cashFlow[entryID] = e
		}
	}
	delete(s.customers, id)
	return nil
}

// Transactions

func (s *Store) ListTransactions(_ context.Context, storeID string, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0, 32)
	for _, tx := range s.transactions {
		if tx.StoreID != storeID {
			continue
		}
		if !inRange(tx.CreatedAt, filter.From, filter.To) {
			continue
		}
		if filter.Status != "" && tx.PaymentStatus != filter.Status {
			continue
		}
		out = append(out, cloneTransaction(tx))
	}
	slices.SortFunc(out, func(a, b domain.Transaction) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneTransaction(tx)
	return &dup, nil
}

func (s *Store) FindTransactionByOfflineID(_ context.Context, storeID string, offlineID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.offlineIndex[offlineKey(storeID, offlineID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneTransaction(s.transactions[id])
	return &dup, nil
}

// PostSale checks every precondition before touching state, so a failed
// posting leaves nothing behind.
func (s *Store) PostSale(_ context.Context, posting domain.SalePosting) (*domain.SaleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := posting.Transaction
	if tx.ID == "" || tx.InvoiceNumber == "" || len(tx.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if tx.OfflineID != "" {
		if id, ok := s.offlineIndex[offlineKey(tx.StoreID, tx.OfflineID)]; ok {
			return &domain.SaleResult{Transaction: cloneTransaction(s.transactions[id]), Duplicate: true}, nil
		}
	}
	if _, ok := s.invoiceIndex[tx.InvoiceNumber]; ok {
		return nil, fmt.Errorf("%w: invoice number %s already used", store.ErrConflict, tx.InvoiceNumber)
	}
	if _, ok := s.stores[tx.StoreID]; !ok {
		return nil, fmt.Errorf("%w: store does not exist", store.ErrInvalidInput)
	}
	if tx.CustomerID != "" {
		c, ok := s.customers[tx.CustomerID]
		if !ok || c.StoreID != tx.StoreID {
			return nil, fmt.Errorf("%w: customer %s not found in store", store.ErrInvalidInput, tx.CustomerID)
		}
	}

	demand := make(map[string]int, len(tx.Items))
	for _, item := range tx.Items {
		if item.Quantity < 1 {
			return nil, store.ErrInvalidInput
		}
		p, ok := s.products[item.ProductID]
		if !ok || p.StoreID != tx.StoreID || !p.IsActive {
			return nil, fmt.Errorf("%w: product %s unavailable", store.ErrInvalidInput, item.ProductID)
		}
		demand[item.ProductID] += item.Quantity
		if p.Stock < demand[item.ProductID] {
			return nil, fmt.Errorf("%w: %s", store.ErrInsufficientStock, p.Name)
		}
	}

	result := &domain.SaleResult{Movements: make([]domain.StockMovement, 0, len(tx.Items))}
	for _, item := range tx.Items {
		p := s.products[item.ProductID]
		p.Stock -= item.Quantity
		p.UpdatedAt = tx.CreatedAt
		s.products[p.ID] = p

		m := domain.StockMovement{
			ID:        xid.New(),
			ProductID: p.ID,
			StoreID:   tx.StoreID,
			Type:      domain.MovementOut,
			Quantity:  -item.Quantity,
			Reference: tx.ID,
			CreatedAt: tx.CreatedAt,
		}
		s.movements = append(s.movements, m)
		result.Movements = append(result.Movements, m)
	}

	stored := cloneTransaction(tx)
	s.transactions[tx.ID] = stored
	s.invoiceIndex[tx.InvoiceNumber] = tx.ID
	if tx.OfflineID != "" {
		s.offlineIndex[offlineKey(tx.StoreID, tx.OfflineID)] = tx.ID
	}

	if posting.OpensDebt() {
		d := domain.Debt{
			ID:            xid.New(),
			TransactionID: tx.ID,
			StoreID:       tx.StoreID,
			CustomerID:    tx.CustomerID,
			Amount:        tx.Total,
			PaidAmount:    decimal.Zero,
			DueDate:       cloneTime(posting.DebtDueDate),
			Status:        domain.DebtStatusPending,
			CreatedAt:     tx.CreatedAt,
			UpdatedAt:     tx.CreatedAt,
		}
		s.debts[d.ID] = d
		result.Debt = cloneDebt(d)
	}

	result.Transaction = cloneTransaction(stored)
	return result, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[tx.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.PaymentStatus = tx.PaymentStatus
	existing.PaymentMethod = tx.PaymentMethod
	existing.Notes = tx.Notes
	existing.UpdatedAt = tx.UpdatedAt
	s.transactions[tx.ID] = existing
	dup := cloneTransaction(existing)
	return &dup, nil
}

// Debts

func (s *Store) ListDebts(_ context.Context, storeID string, filter domain.DebtFilter) ([]domain.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Debt, 0, 16)
	for _, d := range s.debts {
		if d.StoreID != storeID {
			continue
		}
		if filter.CustomerID != "" && d.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		out = append(out, *cloneDebt(d))
	}
	slices.SortFunc(out, func(a, b domain.Debt) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *Store) GetDebt(_ context.Context, id string) (*domain.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.debts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneDebt(d), nil
}

func (s *Store) UpdateDebt(_ context.Context, d domain.Debt) (*domain.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.debts[d.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	existing.DueDate = cloneTime(d.DueDate)
	existing.UpdatedAt = d.UpdatedAt
	s.debts[d.ID] = existing
	return cloneDebt(existing), nil
}

func (s *Store) RecordDebtPayment(_ context.Context, id string, amount decimal.Decimal, at time.Time) (*domain.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.debts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if !amount.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if d.Status == domain.DebtStatusPaid {
		return nil, fmt.Errorf("%w: debt already paid", store.ErrInvalidInput)
	}
	if amount.GreaterThan(d.Remaining()) {
		return nil, fmt.Errorf("%w: payment exceeds remaining balance", store.ErrInvalidInput)
	}

	d.PaidAmount, d.Status = d.NextPaymentState(amount)
	d.UpdatedAt = at
	s.debts[id] = d
	return cloneDebt(d), nil
}

func (s *Store) MarkDebtReminderSent(_ context.Context, id string, at time.Time) (*domain.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.debts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	d.ReminderSent = true
	d.LastReminderDate = &at
	d.UpdatedAt = at
	s.debts[id] = d
	return cloneDebt(d), nil
}

// Cash flow

func (s *Store) ListCashFlowEntries(_ context.Context, storeID string, filter domain.CashFlowFilter) ([]domain.CashFlowEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.CashFlowEntry, 0, 16)
	for _, e := range s.cashFlow {
		if e.StoreID != storeID {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if !inRange(e.CreatedAt, filter.From, filter.To) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b domain.CashFlowEntry) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *Store) GetCashFlowEntry(_ context.Context, id string) (*domain.CashFlowEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.cashFlow[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) CreateCashFlowEntry(_ context.Context, e domain.CashFlowEntry) (*domain.CashFlowEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" || e.Category == "" || !e.Amount.IsPositive() {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.stores[e.StoreID]; !ok {
		return nil, fmt.Errorf("%w: store does not exist", store.ErrInvalidInput)
	}
	if e.CustomerID != "" {
		if _, ok := s.customers[e.CustomerID]; !ok {
			return nil, fmt.Errorf("%w: customer does not exist", store.ErrInvalidInput)
		}
	}
	s.cashFlow[e.ID] = e
	return &e, nil
}

func (s *Store) UpdateCashFlowEntry(_ context.Context, e domain.CashFlowEntry) (*domain.CashFlowEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cashFlow[e.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	e.StoreID = existing.StoreID
	e.CustomerID = existing.CustomerID
	e.CreatedAt = existing.CreatedAt
	s.cashFlow[e.ID] = e
	return &e, nil
}

func (s *Store) DeleteCashFlowEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cashFlow[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.cashFlow, id)
	return nil
}

// Reports

func (s *Store) SalesSummary(_ context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{Revenue: decimal.Zero, Tax: decimal.Zero, CostOfGoods: decimal.Zero}
	for _, tx := range s.transactions {
		if tx.StoreID != storeID || !inRange(tx.CreatedAt, &from, &to) {
			continue
		}
		summary.Transactions++
		if tx.PaymentStatus != domain.PaymentStatusPaid {
			continue
		}
		summary.PaidTransactions++
		summary.Revenue = summary.Revenue.Add(tx.Total)
		summary.Tax = summary.Tax.Add(tx.Tax)
		for _, item := range tx.Items {
			summary.CostOfGoods = summary.CostOfGoods.Add(item.CostPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return summary, nil
}

func (s *Store) OutstandingDebt(_ context.Context, storeID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, d := range s.debts {
		if d.StoreID == storeID && d.Status != domain.DebtStatusPaid {
			total = total.Add(d.Remaining())
		}
	}
	return total, nil
}

func (s *Store) CountLowStock(_ context.Context, storeID string, threshold int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, p := range s.products {
		if p.StoreID == storeID && p.IsActive && p.Stock <= threshold {
			count++
		}
	}
	return count, nil
}

func (s *Store) TopProducts(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.ProductSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := make(map[string]*domain.ProductSales)
	for _, tx := range s.transactions {
		if tx.StoreID != storeID || tx.PaymentStatus != domain.PaymentStatusPaid || !inRange(tx.CreatedAt, &from, &to) {
			continue
		}
		for _, item := range tx.Items {
			row, ok := byProduct[item.ProductID]
			if !ok {
				row = &domain.ProductSales{ProductID: item.ProductID, ProductName: item.ProductName, Revenue: decimal.Zero}
				byProduct[item.ProductID] = row
			}
			row.Quantity += item.Quantity
			row.Revenue = row.Revenue.Add(item.LineTotal())
		}
	}

	out := make([]domain.ProductSales, 0, len(byProduct))
	for _, row := range byProduct {
		out = append(out, *row)
	}
	slices.SortFunc(out, func(a, b domain.ProductSales) int {
		if a.Quantity != b.Quantity {
			return b.Quantity - a.Quantity
		}
		return strings.Compare(a.ProductName, b.ProductName)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) PaymentMethodBreakdown(_ context.Context, storeID string, from time.Time, to time.Time) ([]domain.PaymentMethodSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byMethod := make(map[string]*domain.PaymentMethodSales)
	for _, tx := range s.transactions {
		if tx.StoreID != storeID || tx.PaymentStatus != domain.PaymentStatusPaid || !inRange(tx.CreatedAt, &from, &to) {
			continue
		}
		method := tx.PaymentMethod
		if method == "" {
			method = domain.PaymentMethodOther
		}
		row, ok := byMethod[method]
		if !ok {
			row = &domain.PaymentMethodSales{PaymentMethod: method, Total: decimal.Zero}
			byMethod[method] = row
		}
		row.Transactions++
		row.Total = row.Total.Add(tx.Total)
	}

	out := make([]domain.PaymentMethodSales, 0, len(byMethod))
	for _, row := range byMethod {
		out = append(out, *row)
	}
	slices.SortFunc(out, func(a, b domain.PaymentMethodSales) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		return strings.Compare(a.PaymentMethod, b.PaymentMethod)
	})
	return out, nil
}

// Audit

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, storeID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, 32)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		if s.auditLogs[i].StoreID != storeID {
			continue
		}
		out = append(out, s.auditLogs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Users

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.userIDsByEmail[normalizeEmail(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := cloneUser(s.usersByID[id])
	return &u, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	dup := cloneUser(u)
	return &dup, nil
}

func (s *Store) CreateUser(_ context.Context, u domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalizeEmail(u.Email)
	if u.ID == "" || email == "" || u.PasswordHash == "" {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.userIDsByEmail[email]; exists {
		return nil, store.ErrConflict
	}
	u.Email = email
	u = cloneUser(u)
	s.usersByID[u.ID] = u
	s.userIDsByEmail[email] = u.ID
	dup := cloneUser(u)
	return &dup, nil
}

func (s *Store) skuTaken(storeID, sku, exceptID string) bool {
	for _, p := range s.products {
		if p.StoreID == storeID && p.SKU == sku && p.ID != exceptID {
			return true
		}
	}
	return false
}

func initialStockMovement(p domain.Product) domain.StockMovement {
	return domain.StockMovement{
		ID:        xid.New(),
		ProductID: p.ID,
		StoreID:   p.StoreID,
		Type:      domain.MovementIn,
		Quantity:  p.Stock,
		Reference: initialStockReference,
		CreatedAt: p.CreatedAt,
	}
}

// inRange treats from as inclusive and to as exclusive.
func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}

func offlineKey(storeID, offlineID string) string {
	return storeID + "|" + offlineID
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneTransaction(src domain.Transaction) domain.Transaction {
	dup := src
	dup.Items = slices.Clone(src.Items)
	return dup
}

func cloneDebt(src domain.Debt) *domain.Debt {
	dup := src
	dup.DueDate = cloneTime(src.DueDate)
	dup.LastReminderDate = cloneTime(src.LastReminderDate)
	return &dup
}

func cloneUser(src domain.User) domain.User {
	dup := src
	dup.StoreIDs = slices.Clone(src.StoreIDs)
	return dup
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
