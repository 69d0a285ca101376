//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/SoftyPy-IT/fashion-client-saas/internal/domain/coupon"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "store",
				"POSTGRES_PASSWORD": "store",
				"POSTGRES_DB":       "store",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, fmt.Sprintf("postgres://store:store@%s:%s/store?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestCouponRepository(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	applied, err := RunMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_coupons.sql", "002_coupons_active_idx.sql"}, applied)

	applied, err = RunMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, applied, "migrations are applied once")

	until := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := NewCouponRepository(pool)
	require.NoError(t, repo.Upsert(ctx, []coupon.Rule{
		{Code: "TAKA50", DiscountType: coupon.DiscountFlat, Value: decimal.NewFromInt(50), Description: "50 off"},
		{Code: "eid10", DiscountType: coupon.DiscountPercentage, Value: decimal.RequireFromString("10.5"), MaxUses: 3, ValidUntil: &until},
	}))

	codes, err := repo.ListCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"EID10", "TAKA50"}, codes)

	t.Run("FindByCode", func(t *testing.T) {
		rule, err := repo.FindByCode(ctx, "eid10")
		require.NoError(t, err)
		assert.Equal(t, "EID10", rule.Code)
		assert.Equal(t, coupon.DiscountPercentage, rule.DiscountType)
		assert.True(t, decimal.RequireFromString("10.5").Equal(rule.Value))
		assert.Equal(t, 3, rule.MaxUses)
		require.NotNil(t, rule.ValidUntil)
		assert.True(t, until.Equal(*rule.ValidUntil))
		assert.Nil(t, rule.ValidFrom)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := repo.FindByCode(ctx, "NOPE")
		require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
	})

	t.Run("Inactive", func(t *testing.T) {
		_, err := pool.Exec(ctx, `UPDATE coupons SET active = FALSE WHERE code = 'TAKA50'`)
		require.NoError(t, err)
		_, err = repo.FindByCode(ctx, "TAKA50")
		require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
	})

	t.Run("UpsertKeepsUses", func(t *testing.T) {
		_, err := pool.Exec(ctx, `UPDATE coupons SET uses = 2 WHERE code = 'EID10'`)
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, []coupon.Rule{
			{Code: "EID10", DiscountType: coupon.DiscountPercentage, Value: decimal.NewFromInt(12), MaxUses: 5},
		}))
		rule, err := repo.FindByCode(ctx, "EID10")
		require.NoError(t, err)
		assert.Equal(t, 2, rule.Uses)
		assert.Equal(t, 5, rule.MaxUses)
		assert.Nil(t, rule.ValidUntil)
	})

	t.Run("ValidatorOverFilter", func(t *testing.T) {
		codes, err := repo.ListCodes(ctx)
		require.NoError(t, err)
		v := coupon.NewRepoValidator(coupon.NewFilteredRepository(repo, codes))

		c, err := v.Validate(ctx, " eid10 ")
		require.NoError(t, err)
		assert.Equal(t, "EID10", c.Code)

		_, err = v.Validate(ctx, "TAKA50")
		require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
	})
}
