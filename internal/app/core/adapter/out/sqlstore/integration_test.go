//go:build integration

package sqlstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/adapter/out/sqlstore"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-bank-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-bank-ledger/pkg/database"
)

func setupPostgres(t *testing.T) *database.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Driver:      database.DriverPostgres,
		DSNOverride: dsn,
		LogLevel:    "silent",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, sqlstore.Migrate(ctx, client.DB()))
	return client
}

func debit(number string, amount int64) domain.TransactionRequest {
	return domain.TransactionRequest{AccountNumber: number, Amount: decimal.NewFromInt(amount), Kind: domain.TransactionKindDebit}
}

func credit(number string, amount int64) domain.TransactionRequest {
	return domain.TransactionRequest{AccountNumber: number, Amount: decimal.NewFromInt(amount), Kind: domain.TransactionKindCredit}
}

func TestIntegration_Postgres_Ledger(t *testing.T) {
	client := setupPostgres(t)
	uow := sqlstore.NewUnitOfWork(client, sqlstore.WithLockTimeout(5*time.Second))
	core := usecase.NewCoreUseCase(uow)
	ctx := context.Background()

	seeder := usecase.NewInitializer(uow, nil)
	seeds := []usecase.SeedAccount{
		{Number: "1001-1", InitialBalance: decimal.RequireFromString("1000.00")},
		{Number: "1002-2", InitialBalance: decimal.RequireFromString("500.00")},
		{Number: "A", InitialBalance: decimal.NewFromInt(150)},
	}
	seeder.SeedAll(ctx, seeds)
	seeder.SeedAll(ctx, seeds)

	var count int64
	require.NoError(t, client.DB().Table("accounts").Count(&count).Error)
	assert.Equal(t, int64(3), count)

	t.Run("credit then debit", func(t *testing.T) {
		res, err := core.PerformBatch(ctx, domain.NewBatch("", []domain.TransactionRequest{credit("1001-1", 100), debit("1001-1", 50)}))
		require.NoError(t, err)
		assert.Equal(t, 2, res.Applied)

		acct, err := core.GetBalance(ctx, "1001-1")
		require.NoError(t, err)
		assert.Equal(t, "1050.00", acct.Balance.StringFixed(2))
	})

	t.Run("failed batch rolls back", func(t *testing.T) {
		_, err := core.PerformBatch(ctx, domain.NewBatch("", []domain.TransactionRequest{credit("1002-2", 10), debit("1002-2", 10000)}))
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)

		acct, err := core.GetBalance(ctx, "1002-2")
		require.NoError(t, err)
		assert.Equal(t, "500.00", acct.Balance.StringFixed(2))
	})

	t.Run("concurrent debits serialize on the row lock", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = core.PerformBatch(ctx, domain.NewBatch("", []domain.TransactionRequest{debit("A", 100)}))
			}(i)
		}
		wg.Wait()

		ok, rejected := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientFunds):
				rejected++
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, rejected)

		acct, err := core.GetBalance(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, "50.00", acct.Balance.StringFixed(2))
	})

	t.Run("replayed ref is a no-op", func(t *testing.T) {
		_, err := core.PerformBatch(ctx, domain.NewBatch("ref-42", []domain.TransactionRequest{credit("1002-2", 1)}))
		require.NoError(t, err)
		res, err := core.PerformBatch(ctx, domain.NewBatch("ref-42", []domain.TransactionRequest{credit("1002-2", 1)}))
		require.NoError(t, err)
		assert.True(t, res.Replayed)

		acct, err := core.GetBalance(ctx, "1002-2")
		require.NoError(t, err)
		assert.Equal(t, "501.00", acct.Balance.StringFixed(2))
	})
}
