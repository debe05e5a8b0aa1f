// Command seed loads the demo dataset into PostgreSQL. Stores that already
// exist are skipped together with their products, customers and cash flow.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"warungpos/backend/internal/config"
	"warungpos/backend/internal/httpapi"
	"warungpos/backend/internal/logger"
	"warungpos/backend/internal/seed"
	"warungpos/backend/internal/store"
	pgstore "warungpos/backend/internal/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pg, err := pgstore.New(ctx, pgstore.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.Migrate(ctx); err != nil {
		return err
	}

	ds := seed.Build(time.Now())
	if ds.DefaultPasswords {
		log.Warn("using default dev credentials, set SEED_OWNER_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}
	return load(ctx, pg, ds, log)
}

type seedRepository interface {
	store.StoreRepository
	store.ProductRepository
	store.CustomerRepository
	store.CashFlowRepository
	store.UserRepository
}

func load(ctx context.Context, repo seedRepository, ds seed.Dataset, log *logger.Logger) error {
	fresh := make(map[string]bool, len(ds.Stores))
	for _, st := range ds.Stores {
		_, err := repo.CreateStore(ctx, st)
		switch {
		case errors.Is(err, store.ErrConflict):
			log.Infow("store exists, skipping", "store_id", st.ID)
			continue
		case err != nil:
			return fmt.Errorf("create store %s: %w", st.ID, err)
		}
		fresh[st.ID] = true
	}

	for _, p := range ds.Products {
		if !fresh[p.StoreID] {
			continue
		}
		if _, err := repo.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("create product %s: %w", p.SKU, err)
		}
	}
	for _, c := range ds.Customers {
		if !fresh[c.StoreID] {
			continue
		}
		if _, err := repo.CreateCustomer(ctx, c); err != nil {
			return fmt.Errorf("create customer %s: %w", c.Name, err)
		}
	}
	for _, e := range ds.CashFlow {
		if !fresh[e.StoreID] {
			continue
		}
		if _, err := repo.CreateCashFlowEntry(ctx, e); err != nil {
			return fmt.Errorf("create cash flow entry: %w", err)
		}
	}

	for _, cred := range ds.Users {
		hash, err := httpapi.HashPassword(cred.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", cred.User.Email, err)
		}
		u := cred.User
		u.PasswordHash = hash
		_, err = repo.CreateUser(ctx, u)
		switch {
		case errors.Is(err, store.ErrConflict):
			log.Infow("user exists, skipping", "email", u.Email)
		case err != nil:
			return fmt.Errorf("create user %s: %w", u.Email, err)
		default:
			log.Infow("user created", "email", u.Email, "role", u.Role)
		}
	}

	log.Infow("seed complete", "stores", len(fresh), "users", len(ds.Users))
	return nil
}
