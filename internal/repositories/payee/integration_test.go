//go:build integration

package payee_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/internal/repositories/payee"
	"github.com/Ramsey-B/clover/internal/repositories/transaction"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/models"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const tenant = "tenant-int"

// startPostgres runs a throwaway postgres and applies the migrations under db/pg.
func startPostgres(t *testing.T) database.DB {
	t.Helper()
	ctx := context.Background()
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "user",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "clover",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := database.Open(ctx, database.Config{
		Driver: "postgres",
		DSN:    fmt.Sprintf("host=%s port=%s user=user password=password dbname=clover sslmode=disable", host, port.Port()),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, ok := database.SQLDB(db)
	require.True(t, ok)
	require.NoError(t, database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: "../../../db/pg",
		DatabaseName:        "clover",
	}).Migrate(sqlDB))

	return db
}

func seedTransaction(t *testing.T, db database.DB, payeeID int64, amount int64) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		"INSERT INTO transactions (tenant_id, payee_id, amount) VALUES ($1, $2, $3)", tenant, payeeID, amount)
	require.NoError(t, err)
}

func TestPayeeDeduplication(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	db := startPostgres(t)
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	payees := payee.NewRepository(db, logger)
	transactions := transaction.NewRepository(db, logger)
	service := dedupe.NewService(logger, payees, transactions, nil)

	walmart, err := payees.Create(ctx, &models.Payee{TenantID: tenant, Name: "Walmart", IsActive: true})
	require.NoError(t, err)
	store, err := payees.Create(ctx, &models.Payee{TenantID: tenant, Name: "WALMART #4521", Phone: "555-123-4567", IsActive: true})
	require.NoError(t, err)
	_, err = payees.Create(ctx, &models.Payee{TenantID: tenant, Name: "Target", IsActive: true})
	require.NoError(t, err)
	_, err = payees.Create(ctx, &models.Payee{TenantID: "other-tenant", Name: "Walmart", IsActive: true})
	require.NoError(t, err)

	seedTransaction(t, db, store.ID, -2500)
	seedTransaction(t, db, store.ID, -1200)

	t.Run("should detect the merchant duplicate within the tenant", func(t *testing.T) {
		result, err := service.FindDuplicatePayees(ctx, dedupe.FindRequest{
			Threshold:     0.8,
			DetectionMode: models.DetectionModeML,
		}, tenant)
		require.NoError(t, err)

		assert.Equal(t, 3, result.PayeeCount)
		require.Len(t, result.Groups, 1)
		assert.Equal(t, walmart.ID, result.Groups[0].PrimaryPayeeID)
		assert.Equal(t, []int64{store.ID}, result.Groups[0].DuplicatePayeeIDs)
	})

	t.Run("should merge the duplicate into the primary", func(t *testing.T) {
		result, err := service.MergeDuplicatePayees(ctx, dedupe.MergeRequest{
			PrimaryPayeeID:    walmart.ID,
			DuplicatePayeeIDs: []int64{store.ID},
			Confirmed:         true,
		}, tenant)
		require.NoError(t, err)

		assert.Equal(t, []int64{store.ID}, result.MergedPayeeIDs)
		assert.Equal(t, int64(2), result.TransactionsReassigned)
		assert.Contains(t, result.ContactFieldsBackfilled, "phone")

		primary, err := payees.Get(ctx, tenant, walmart.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, primary.Phone)

		_, err = payees.Get(ctx, tenant, store.ID)
		assert.True(t, models.IsKind(err, models.ErrorKindNotFound))

		moved, err := transactions.ListByPayee(ctx, tenant, walmart.ID)
		require.NoError(t, err)
		assert.Len(t, moved, 2)
	})

	t.Run("should treat a repeated merge as a no-op", func(t *testing.T) {
		result, err := service.MergeDuplicatePayees(ctx, dedupe.MergeRequest{
			PrimaryPayeeID:    walmart.ID,
			DuplicatePayeeIDs: []int64{store.ID},
			Confirmed:         true,
		}, tenant)
		require.NoError(t, err)
		assert.Empty(t, result.MergedPayeeIDs)
		assert.Zero(t, result.TransactionsReassigned)
	})

	t.Run("should free the unique key of the merged payee", func(t *testing.T) {
		recreated, err := payees.Create(ctx, &models.Payee{TenantID: tenant, Name: "Walmart #4521", IsActive: true})
		require.NoError(t, err)
		assert.NotEqual(t, store.ID, recreated.ID)
	})
}
