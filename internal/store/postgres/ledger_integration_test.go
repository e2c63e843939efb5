//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) (*Ledger, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	ledger, err := NewLedger(ctx, &Config{
		ConnString:  connString,
		AutoMigrate: true,
	})
	require.NoError(t, err)

	cleanup := func() {
		ledger.Close()
		_ = container.Terminate(ctx)
	}

	return ledger, cleanup
}

func newOrg(admin uuid.UUID) *models.Organization {
	now := time.Now()
	return &models.Organization{
		AdminID:     admin,
		Name:        "acme",
		Metadata:    map[string]string{"region": "ap-southeast-2"},
		EmployeeCap: 2,
		Treasury: models.Treasury{
			SpendLimit: 10_000,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newWallet(owner, org uuid.UUID) *models.Wallet {
	now := time.Now()
	return &models.Wallet{
		WalletID:  uuid.Must(uuid.NewV7()),
		OwnerID:   owner,
		OrgID:     org,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestIntegration_OrganizationStore(t *testing.T) {
	ctx := context.Background()
	ledger, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	admin := uuid.Must(uuid.NewV7())

	t.Run("create and fetch organization", func(t *testing.T) {
		require.NoError(t, ledger.CreateOrganization(ctx, newOrg(admin)))

		err := ledger.CreateOrganization(ctx, newOrg(admin))
		require.ErrorIs(t, err, store.ErrOrganizationAlreadyExists)

		got, err := ledger.GetOrganization(ctx, admin)
		require.NoError(t, err)
		require.Equal(t, "acme", got.Name)
		require.Equal(t, "ap-southeast-2", got.Metadata["region"])
		require.Equal(t, int64(10_000), got.Treasury.SpendLimit)
	})

	t.Run("roster respects the employee cap", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			profile := &models.EmployeeProfile{
				EmployeeID: uuid.Must(uuid.NewV7()),
				WalletID:   uuid.Must(uuid.NewV7()),
				Role:       "engineer",
				Active:     true,
			}
			require.NoError(t, ledger.PutEmployee(ctx, admin, profile))
		}

		err := ledger.PutEmployee(ctx, admin, &models.EmployeeProfile{
			EmployeeID: uuid.Must(uuid.NewV7()),
			WalletID:   uuid.Must(uuid.NewV7()),
		})
		require.ErrorIs(t, err, store.ErrEmployeeCapReached)

		count, err := ledger.CountEmployees(ctx, admin)
		require.NoError(t, err)
		require.Equal(t, 2, count)
	})

	t.Run("treasury enforces the spend limit", func(t *testing.T) {
		treasury, err := ledger.ApplyTreasuryDeposit(ctx, admin, 8_000)
		require.NoError(t, err)
		require.Equal(t, int64(8_000), treasury.TotalDeposited)

		_, err = ledger.ApplyTreasuryDeposit(ctx, admin, 5_000)
		require.ErrorIs(t, err, store.ErrTreasuryLimitExceeded)

		treasury, err = ledger.ApplyTreasuryWithdrawal(ctx, admin, 3_000)
		require.NoError(t, err)
		require.Equal(t, int64(5_000), treasury.Available())

		// The withdrawal freed headroom under the spend limit.
		_, err = ledger.ApplyTreasuryDeposit(ctx, admin, 5_000)
		require.NoError(t, err)

		_, err = ledger.ApplyTreasuryWithdrawal(ctx, admin, 20_000)
		require.ErrorIs(t, err, store.ErrInsufficientFunds)
	})
}

func TestIntegration_WalletStore(t *testing.T) {
	ctx := context.Background()
	ledger, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	org := uuid.Must(uuid.NewV7())

	t.Run("credit and debit keep lifetime totals", func(t *testing.T) {
		wallet := newWallet(uuid.Must(uuid.NewV7()), org)
		require.NoError(t, ledger.CreateWallet(ctx, wallet))

		got, err := ledger.Credit(ctx, wallet.WalletID, 1_000)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), got.Balance)

		got, err = ledger.Debit(ctx, wallet.WalletID, 400)
		require.NoError(t, err)
		require.Equal(t, int64(600), got.Balance)
		require.Equal(t, int64(1_000), got.TotalDeposited)
		require.Equal(t, int64(400), got.TotalWithdrawn)

		_, err = ledger.Debit(ctx, wallet.WalletID, 601)
		require.ErrorIs(t, err, store.ErrInsufficientFunds)
	})

	t.Run("transfer moves funds atomically", func(t *testing.T) {
		src := newWallet(uuid.Must(uuid.NewV7()), org)
		dst := newWallet(uuid.Must(uuid.NewV7()), org)
		require.NoError(t, ledger.CreateWallet(ctx, src))
		require.NoError(t, ledger.CreateWallet(ctx, dst))

		_, err := ledger.Credit(ctx, src.WalletID, 500)
		require.NoError(t, err)

		require.NoError(t, ledger.Transfer(ctx, src.WalletID, dst.WalletID, 300))

		err = ledger.Transfer(ctx, src.WalletID, dst.WalletID, 300)
		require.ErrorIs(t, err, store.ErrInsufficientFunds)

		gotSrc, err := ledger.GetWallet(ctx, src.WalletID)
		require.NoError(t, err)
		gotDst, err := ledger.GetWallet(ctx, dst.WalletID)
		require.NoError(t, err)
		require.Equal(t, int64(200), gotSrc.Balance)
		require.Equal(t, int64(300), gotDst.Balance)
	})
}

func TestIntegration_PoolStore(t *testing.T) {
	ctx := context.Background()
	ledger, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	now := time.Now()
	pool := &models.Pool{
		PoolID:       uuid.Must(uuid.NewV7()),
		Denomination: 1_000,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, ledger.CreatePool(ctx, pool))

	t.Run("commitments are insert-once", func(t *testing.T) {
		got, err := ledger.AddCommitment(ctx, pool.PoolID, []byte("c-1"), 1_000)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), got.Balance)

		_, err = ledger.AddCommitment(ctx, pool.PoolID, []byte("c-1"), 1_000)
		require.ErrorIs(t, err, store.ErrCommitmentExists)

		has, err := ledger.HasCommitment(ctx, pool.PoolID, []byte("c-1"))
		require.NoError(t, err)
		require.True(t, has)
	})

	t.Run("merkle root update returns the previous root", func(t *testing.T) {
		old, err := ledger.SetMerkleRoot(ctx, pool.PoolID, []byte("r-1"))
		require.NoError(t, err)
		require.Empty(t, old)

		old, err = ledger.SetMerkleRoot(ctx, pool.PoolID, []byte("r-2"))
		require.NoError(t, err)
		require.Equal(t, []byte("r-1"), old)
	})

	t.Run("nullifiers spend exactly once", func(t *testing.T) {
		got, err := ledger.SpendNullifier(ctx, pool.PoolID, []byte("n-1"), 1_000)
		require.NoError(t, err)
		require.Equal(t, int64(0), got.Balance)

		_, err = ledger.SpendNullifier(ctx, pool.PoolID, []byte("n-1"), 1_000)
		require.ErrorIs(t, err, store.ErrNullifierSpent)

		// An empty pool rejects new nullifiers without marking them.
		_, err = ledger.SpendNullifier(ctx, pool.PoolID, []byte("n-2"), 1_000)
		require.ErrorIs(t, err, store.ErrInsufficientFunds)

		spent, err := ledger.NullifierSpent(ctx, pool.PoolID, []byte("n-2"))
		require.NoError(t, err)
		require.False(t, spent)
	})

	t.Run("unspend reverses a spend", func(t *testing.T) {
		require.NoError(t, ledger.UnspendNullifier(ctx, pool.PoolID, []byte("n-1"), 1_000))

		spent, err := ledger.NullifierSpent(ctx, pool.PoolID, []byte("n-1"))
		require.NoError(t, err)
		require.False(t, spent)

		got, err := ledger.GetPool(ctx, pool.PoolID)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), got.Balance)
	})
}

func TestIntegration_PayrollStore(t *testing.T) {
	ctx := context.Background()
	ledger, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	org := uuid.Must(uuid.NewV7())
	now := time.Now()
	batch := &models.Batch{
		BatchID:    uuid.Must(uuid.NewV7()),
		OrgID:      org,
		Balance:    1_000,
		Recipients: make(map[uuid.UUID]int64),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, ledger.CreateBatch(ctx, batch))

	employee := uuid.Must(uuid.NewV7())

	t.Run("duplicate recipients are ignored", func(t *testing.T) {
		added, err := ledger.AddRecipient(ctx, batch.BatchID, employee, 400)
		require.NoError(t, err)
		require.True(t, added)

		added, err = ledger.AddRecipient(ctx, batch.BatchID, employee, 900)
		require.NoError(t, err)
		require.False(t, added)

		amount, pending, err := ledger.RecipientAmount(ctx, batch.BatchID, employee)
		require.NoError(t, err)
		require.True(t, pending)
		require.Equal(t, int64(400), amount)
	})

	t.Run("pending amounts cannot exceed escrow", func(t *testing.T) {
		_, err := ledger.AddRecipient(ctx, batch.BatchID, uuid.Must(uuid.NewV7()), 700)
		require.ErrorIs(t, err, store.ErrInsufficientFunds)
	})

	t.Run("consume and restore round trip", func(t *testing.T) {
		amount, err := ledger.ConsumeRecipient(ctx, batch.BatchID, employee)
		require.NoError(t, err)
		require.Equal(t, int64(400), amount)

		_, err = ledger.ConsumeRecipient(ctx, batch.BatchID, employee)
		require.ErrorIs(t, err, store.ErrRecipientNotFound)

		require.NoError(t, ledger.RestoreRecipient(ctx, batch.BatchID, employee, 400))

		count, err := ledger.RecipientCount(ctx, batch.BatchID)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("run history is monotonic", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			run := &models.PayrollRun{
				OrgID:         org,
				ExecutorID:    uuid.Must(uuid.NewV7()),
				TotalAmount:   100,
				EmployeeCount: 1,
				ExecutedAt:    time.Now(),
				Status:        models.RunStatusCompleted,
			}
			runID, err := ledger.AppendRun(ctx, run)
			require.NoError(t, err)
			require.Equal(t, int64(i), runID)
		}

		runs, err := ledger.ListRuns(ctx, org)
		require.NoError(t, err)
		require.Len(t, runs, 3)
	})

	t.Run("close returns residual escrow", func(t *testing.T) {
		residual, err := ledger.CloseBatch(ctx, batch.BatchID)
		require.NoError(t, err)
		require.Equal(t, int64(1_000), residual)

		_, err = ledger.GetBatch(ctx, batch.BatchID)
		require.ErrorIs(t, err, store.ErrBatchNotFound)
	})
}
