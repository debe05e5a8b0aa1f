package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warungpos/backend/internal/logger"
	"warungpos/backend/internal/seed"
	"warungpos/backend/internal/store/memory"
)

func TestLoadIsIdempotent(t *testing.T) {
	t.Setenv("SEED_OWNER_PASSWORD", "owner-pass-123")
	t.Setenv("SEED_CASHIER_PASSWORD", "cashier-pass-123")
	ctx := context.Background()
	repo := memory.New()
	ds := seed.Build(time.Now())

	require.NoError(t, load(ctx, repo, ds, logger.Nop()))
	require.NoError(t, load(ctx, repo, seed.Build(time.Now()), logger.Nop()), "second run skips existing rows")

	products, err := repo.ListProducts(ctx, seed.MainStoreID)
	require.NoError(t, err)
	var wantProducts int
	for _, p := range ds.Products {
		if p.StoreID == seed.MainStoreID {
			wantProducts++
		}
	}
	assert.Len(t, products, wantProducts)

	owner, err := repo.GetUserByEmail(ctx, seed.OwnerEmail)
	require.NoError(t, err)
	assert.NotEqual(t, "owner-pass-123", owner.PasswordHash)
	assert.NotEmpty(t, owner.PasswordHash)
}
