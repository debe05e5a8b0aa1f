// Package seed holds the demo dataset loaded by the in-memory store and by cmd/seed.
package seed

import (
	"os"
	"time"

	"github.com/shopspring/decimal"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/xid"
)

const (
	MainStoreID   = "550e8400-e29b-41d4-a716-446655440001"
	SecondStoreID = "550e8400-e29b-41d4-a716-446655440002"

	OwnerEmail   = "admin@pos.com"
	CashierEmail = "kasir@pos.com"
)

// Credential pairs a seed user with its plaintext password; callers hash it.
type Credential struct {
	User     domain.User
	Password string
}

type Dataset struct {
	Stores    []domain.Store
	Products  []domain.Product
	Customers []domain.Customer
	CashFlow  []domain.CashFlowEntry
	Users     []Credential
	// DefaultPasswords is true when SEED_OWNER_PASSWORD or SEED_CASHIER_PASSWORD was not set.
	DefaultPasswords bool
}

type productSeed struct {
	name      string
	sku       string
	priceBuy  int64
	priceSell int64
	stock     int
	unit      string
	category  string
}

var products = []productSeed{
	{"Beras Premium 5kg", "BRS001", 45000, 52000, 25, "karung", "Sembako"},
	{"Minyak Goreng 2L", "MYG001", 28000, 32000, 15, "botol", "Sembako"},
	{"Gula Pasir 1kg", "GLP001", 12000, 14000, 30, "kg", "Sembako"},
	{"Teh Celup 25 pcs", "TEH001", 8000, 10000, 50, "kotak", "Minuman"},
	{"Kopi Instan", "KOP001", 15000, 18000, 20, "sachet", "Minuman"},
	{"Sabun Mandi", "SAB001", 3500, 5000, 40, "batang", "Kebersihan"},
}

var customers = []domain.Customer{
	{Name: "Ibu Sari", Phone: "08123456789", Email: "sari@email.com", Address: "Jl. Kenanga No. 10"},
	{Name: "Pak Budi", Phone: "08234567890", Address: "Jl. Anggrek No. 15"},
	{Name: "Ibu Maya", Phone: "08345678901", Email: "maya@email.com", Address: "Jl. Cempaka No. 20"},
	{Name: "Pak Joko", Phone: "08456789012", Address: "Jl. Dahlia No. 25"},
}

var cashFlow = []struct {
	kind        string
	amount      int64
	description string
	category    string
}{
	{domain.CashFlowIncome, 500000, "Penjualan hari ini", "Penjualan"},
	{domain.CashFlowExpense, 200000, "Beli stok barang", "Pembelian"},
	{domain.CashFlowIncome, 150000, "Pelunasan piutang", domain.CashFlowCategoryReceivable},
	{domain.CashFlowExpense, 50000, "Bayar listrik", "Operasional"},
}

// Build returns a fresh copy of the demo data stamped with now.
func Build(now time.Time) Dataset {
	now = now.UTC()
	ds := Dataset{
		Stores: []domain.Store{
			{
				ID:                MainStoreID,
				Name:              "Toko Sumber Rejeki",
				Address:           "Jl. Mawar No. 123, Jakarta Selatan",
				Phone:             "021-12345678",
				Timezone:          domain.DefaultTimezone,
				Currency:          domain.DefaultCurrency,
				LowStockThreshold: 5,
				CreatedAt:         now,
				UpdatedAt:         now,
			},
			{
				ID:                SecondStoreID,
				Name:              "Warung Bu Siti",
				Address:           "Jl. Melati No. 456, Bandung",
				Phone:             "022-87654321",
				Timezone:          domain.DefaultTimezone,
				Currency:          domain.DefaultCurrency,
				LowStockThreshold: 3,
				CreatedAt:         now,
				UpdatedAt:         now,
			},
		},
	}

	for _, st := range ds.Stores {
		suffix := st.ID[len(st.ID)-4:]
		for _, p := range products {
			ds.Products = append(ds.Products, domain.Product{
				ID:        xid.New(),
				StoreID:   st.ID,
				Name:      p.name,
				SKU:       p.sku + "-" + suffix,
				PriceBuy:  decimal.NewFromInt(p.priceBuy),
				PriceSell: decimal.NewFromInt(p.priceSell),
				Stock:     p.stock,
				Unit:      p.unit,
				Category:  p.category,
				IsActive:  true,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		for _, c := range customers {
			c.ID = xid.New()
			c.StoreID = st.ID
			c.Balance = decimal.Zero
			c.CreatedAt = now
			c.UpdatedAt = now
			ds.Customers = append(ds.Customers, c)
		}
		for _, e := range cashFlow {
			ds.CashFlow = append(ds.CashFlow, domain.CashFlowEntry{
				ID:          xid.New(),
				StoreID:     st.ID,
				Type:        e.kind,
				Category:    e.category,
				Description: e.description,
				Amount:      decimal.NewFromInt(e.amount),
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}

	ownerPwd, ownerSet := os.LookupEnv("SEED_OWNER_PASSWORD")
	cashierPwd, cashierSet := os.LookupEnv("SEED_CASHIER_PASSWORD")
	if !ownerSet || ownerPwd == "" {
		ownerPwd = "admin123"
		ds.DefaultPasswords = true
	}
	if !cashierSet || cashierPwd == "" {
		cashierPwd = "cashier123"
		ds.DefaultPasswords = true
	}

	ds.Users = []Credential{
		{
			User: domain.User{
				ID:        "00000000-0000-4000-8000-000000000001",
				Name:      "Pemilik Toko",
				Email:     OwnerEmail,
				Role:      domain.RoleOwner,
				StoreIDs:  []string{MainStoreID, SecondStoreID},
				Active:    true,
				CreatedAt: now,
			},
			Password: ownerPwd,
		},
		{
			User: domain.User{
				ID:        "00000000-0000-4000-8000-000000000002",
				Name:      "Kasir Utama",
				Email:     CashierEmail,
				Role:      domain.RoleCashier,
				StoreIDs:  []string{MainStoreID},
				Active:    true,
				CreatedAt: now,
			},
			Password: cashierPwd,
		},
	}
	return ds
}
