package merging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakePayeeStore struct {
	payees        map[int64]*models.Payee
	updateErr     error
	softDeleteErr map[int64]error
	patches       []models.PayeePatch
}

func newFakePayeeStore(payees ...*models.Payee) *fakePayeeStore {
	s := &fakePayeeStore{payees: make(map[int64]*models.Payee), softDeleteErr: make(map[int64]error)}
	for _, p := range payees {
		s.payees[p.ID] = p
	}
	return s
}

func (s *fakePayeeStore) FindByIDs(ctx context.Context, tenantID string, ids []int64) ([]*models.Payee, error) {
	var out []*models.Payee
	for _, id := range ids {
		if p, ok := s.payees[id]; ok && p.TenantID == tenantID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *fakePayeeStore) Update(ctx context.Context, tenantID string, id int64, patch models.PayeePatch) (*models.Payee, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	p, ok := s.payees[id]
	if !ok || p.IsDeleted() {
		return nil, models.NewNotFoundError("payee %d not found", id)
	}
	s.patches = append(s.patches, patch)
	patch.Apply(p)
	return p, nil
}

func (s *fakePayeeStore) SoftDelete(ctx context.Context, tenantID string, id int64, archivedKey string) error {
	if err := s.softDeleteErr[id]; err != nil {
		return err
	}
	p, ok := s.payees[id]
	if !ok || p.IsDeleted() {
		return models.NewNotFoundError("payee %d not found", id)
	}
	now := time.Now()
	p.DeletedAt = &now
	p.IsActive = false
	p.UniqueKey = archivedKey
	return nil
}

type fakeTransactionStore struct {
	// transaction id -> payee id
	payeeOf map[int64]int64
	failFor map[int64]error
}

func (s *fakeTransactionStore) UpdateTransactionPayee(ctx context.Context, tenantID string, from, to int64) (int64, error) {
	if err := s.failFor[from]; err != nil {
		return 0, err
	}
	var moved int64
	for tx, payee := range s.payeeOf {
		if payee == from {
			s.payeeOf[tx] = to
			moved++
		}
	}
	return moved, nil
}

const tenant = "tenant-a"

func scenarioPayees() []*models.Payee {
	return []*models.Payee{
		{ID: 1, TenantID: tenant, Name: "Walmart", UniqueKey: "walmart", IsActive: true},
		{ID: 2, TenantID: tenant, Name: "WALMART #4521", UniqueKey: "walmart #4521", Email: "help@walmart.com", IsActive: true},
		{ID: 3, TenantID: tenant, Name: "Wal-Mart", UniqueKey: "wal-mart", IsActive: true},
	}
}

func scenarioTransactions() *fakeTransactionStore {
	return &fakeTransactionStore{
		payeeOf: map[int64]int64{10: 1, 11: 2, 12: 2, 13: 3, 14: 4},
		failFor: map[int64]error{},
	}
}

func TestEngine_Merge(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	newEngine := func(payees *fakePayeeStore, txs *fakeTransactionStore) *Engine {
		e := NewEngine(testLogger(), payees, txs)
		e.now = func() time.Time { return at }
		return e
	}

	t.Run("should move transactions and soft-delete duplicates", func(t *testing.T) {
		payees := newFakePayeeStore(scenarioPayees()...)
		txs := scenarioTransactions()
		e := newEngine(payees, txs)

		result, err := e.Merge(ctx, tenant, 1, []int64{2, 3}, models.DefaultMergeStrategy(), true)
		require.NoError(t, err)

		assert.Equal(t, int64(1), result.SurvivingPayeeID)
		assert.Equal(t, []int64{2, 3}, result.MergedPayeeIDs)
		assert.Equal(t, int64(3), result.TransactionsReassigned)
		assert.Empty(t, result.Warnings)

		for _, tx := range []int64{10, 11, 12, 13} {
			assert.Equal(t, int64(1), txs.payeeOf[tx], "transaction %d", tx)
		}
		assert.Equal(t, int64(4), txs.payeeOf[14])

		for _, id := range []int64{2, 3} {
			p, ok := payees.payees[id]
			require.True(t, ok, "payee %d must still exist", id)
			assert.True(t, p.IsDeleted())
			assert.False(t, p.IsActive)
		}
		assert.Equal(t, ArchivedKey("walmart #4521", 2, at), payees.payees[2].UniqueKey)
		assert.False(t, payees.payees[1].IsDeleted())

		assert.Equal(t, []string{"email"}, result.ContactFieldsBackfilled)
		assert.Equal(t, "help@walmart.com", payees.payees[1].Email)
	})

	t.Run("should be a no-op with warnings when repeated", func(t *testing.T) {
		payees := newFakePayeeStore(scenarioPayees()...)
		txs := scenarioTransactions()
		e := newEngine(payees, txs)

		_, err := e.Merge(ctx, tenant, 1, []int64{2, 3}, models.DefaultMergeStrategy(), true)
		require.NoError(t, err)

		again, err := e.Merge(ctx, tenant, 1, []int64{2, 3}, models.DefaultMergeStrategy(), true)
		require.NoError(t, err)
		assert.Empty(t, again.MergedPayeeIDs)
		assert.Zero(t, again.TransactionsReassigned)
		assert.Len(t, again.Warnings, 2)
		assert.Len(t, payees.patches, 1)
	})

	t.Run("should reject invalid requests before writing", func(t *testing.T) {
		tests := []struct {
			name      string
			primary   int64
			dups      []int64
			confirmed bool
		}{
			{"unconfirmed", 1, []int64{2}, false},
			{"no duplicates", 1, nil, true},
			{"primary listed as duplicate", 1, []int64{2, 1}, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				payees := newFakePayeeStore(scenarioPayees()...)
				txs := scenarioTransactions()

				_, err := newEngine(payees, txs).Merge(ctx, tenant, tt.primary, tt.dups, models.DefaultMergeStrategy(), tt.confirmed)
				assert.True(t, models.IsKind(err, models.ErrorKindValidation), "got %v", err)
				assert.False(t, payees.payees[2].IsDeleted())
				assert.Equal(t, int64(2), txs.payeeOf[11])
			})
		}
	})

	t.Run("should fail when the primary is missing or deleted", func(t *testing.T) {
		deletedAt := time.Now()
		payees := newFakePayeeStore(
			&models.Payee{ID: 1, TenantID: tenant, Name: "Gone", DeletedAt: &deletedAt},
			&models.Payee{ID: 2, TenantID: tenant, Name: "Gone too"},
		)
		e := newEngine(payees, scenarioTransactions())

		_, err := e.Merge(ctx, tenant, 1, []int64{2}, models.DefaultMergeStrategy(), true)
		assert.True(t, models.IsKind(err, models.ErrorKindNotFound))

		_, err = e.Merge(ctx, tenant, 99, []int64{2}, models.DefaultMergeStrategy(), true)
		assert.True(t, models.IsKind(err, models.ErrorKindNotFound))

		_, err = e.Merge(ctx, "tenant-b", 2, []int64{1}, models.DefaultMergeStrategy(), true)
		assert.True(t, models.IsKind(err, models.ErrorKindNotFound))
	})

	t.Run("should leave a duplicate live when its transactions cannot move", func(t *testing.T) {
		payees := newFakePayeeStore(scenarioPayees()...)
		txs := scenarioTransactions()
		txs.failFor[3] = errors.New("deadlock detected")
		e := newEngine(payees, txs)

		result, err := e.Merge(ctx, tenant, 1, []int64{2, 3}, models.DefaultMergeStrategy(), true)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, result.MergedPayeeIDs)
		assert.Equal(t, int64(2), result.TransactionsReassigned)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "payee 3")
		assert.False(t, payees.payees[3].IsDeleted())
		assert.Equal(t, int64(3), txs.payeeOf[13])
	})

	t.Run("should warn when a duplicate is deleted concurrently", func(t *testing.T) {
		payees := newFakePayeeStore(scenarioPayees()...)
		payees.softDeleteErr[3] = models.NewNotFoundError("payee 3 not found")
		e := newEngine(payees, scenarioTransactions())

		result, err := e.Merge(ctx, tenant, 1, []int64{2, 3}, models.DefaultMergeStrategy(), true)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, result.MergedPayeeIDs)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "deleted concurrently")
	})

	t.Run("should warn about unknown duplicates and merge the rest", func(t *testing.T) {
		payees := newFakePayeeStore(scenarioPayees()...)
		e := newEngine(payees, scenarioTransactions())

		result, err := e.Merge(ctx, tenant, 1, []int64{2, 2, 42}, models.DefaultMergeStrategy(), true)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, result.MergedPayeeIDs)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "42")
	})

	t.Run("should honour the merge strategy", func(t *testing.T) {
		payees := newFakePayeeStore(scenarioPayees()...)
		txs := scenarioTransactions()
		e := newEngine(payees, txs)

		result, err := e.Merge(ctx, tenant, 1, []int64{2}, models.MergeStrategy{}, true)
		require.NoError(t, err)
		assert.Equal(t, []int64{2}, result.MergedPayeeIDs)
		assert.Zero(t, result.TransactionsReassigned)
		assert.Empty(t, result.ContactFieldsBackfilled)
		assert.Empty(t, payees.patches)
		assert.Equal(t, int64(2), txs.payeeOf[11])
	})

	t.Run("should keep merging when the backfill fails", func(t *testing.T) {
		payees := newFakePayeeStore(scenarioPayees()...)
		payees.updateErr = errors.New("connection refused")
		e := newEngine(payees, scenarioTransactions())

		result, err := e.Merge(ctx, tenant, 1, []int64{2, 3}, models.DefaultMergeStrategy(), true)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 3}, result.MergedPayeeIDs)
		assert.Empty(t, result.ContactFieldsBackfilled)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "contact info")
	})
}

func TestArchivedKey(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, "acme#merged-7-1700000000", ArchivedKey("acme", 7, at))
}
