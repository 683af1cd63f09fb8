package payee

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenant = "tenant-a"

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return NewRepository(database.NewDatabaseInstance(sqlx.NewDb(db, "postgres"), logger), logger), mock
}

func payeeRows() *sqlmock.Rows {
	return sqlmock.NewRows(columns)
}

func addPayeeRow(rows *sqlmock.Rows, id int64, name string, deletedAt *time.Time) *sqlmock.Rows {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var deleted any
	if deletedAt != nil {
		deleted = *deletedAt
	}
	return rows.AddRow(id, tenant, name, "", "", "", "", "", nil, int64(3), true, models.UniqueKeyFor(name), now, now, deleted)
}

func TestRepository_Create(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`INSERT INTO payees \(.+\) VALUES \(.+\) RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	payee, err := repo.Create(context.Background(), &models.Payee{TenantID: tenant, Name: "  Blue   Bottle ", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, int64(42), payee.ID)
	assert.Equal(t, "blue bottle", payee.UniqueKey)
	assert.False(t, payee.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindAllPayees(t *testing.T) {
	t.Run("should list active live payees", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		rows := addPayeeRow(addPayeeRow(payeeRows(), 1, "Walmart", nil), 2, "WALMART #4521", nil)
		mock.ExpectQuery(`SELECT (.+) FROM payees WHERE tenant_id = \$1 AND deleted_at IS NULL AND is_active = \$2 ORDER BY id ASC`).
			WithArgs(tenant, true).
			WillReturnRows(rows)

		payees, err := repo.FindAllPayees(context.Background(), tenant, false)
		require.NoError(t, err)
		require.Len(t, payees, 2)
		assert.Equal(t, "Walmart", payees[0].Name)
		assert.Nil(t, payees[0].DefaultCategoryID)
		require.NotNil(t, payees[0].DefaultBudgetID)
		assert.Equal(t, int64(3), *payees[0].DefaultBudgetID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should include inactive payees on request", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM payees WHERE tenant_id = \$1 AND deleted_at IS NULL ORDER BY id ASC`).
			WithArgs(tenant).
			WillReturnRows(payeeRows())

		payees, err := repo.FindAllPayees(context.Background(), tenant, true)
		require.NoError(t, err)
		assert.NotNil(t, payees)
		assert.Empty(t, payees)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should wrap database errors", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectQuery(`SELECT (.+) FROM payees`).WillReturnError(errors.New("connection refused"))

		_, err := repo.FindAllPayees(context.Background(), tenant, false)
		require.Error(t, err)
		assert.Equal(t, http.StatusInternalServerError, httperror.GetStatusCode(err))
	})
}

func TestRepository_FindByIDs(t *testing.T) {
	t.Run("should not query for no ids", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		payees, err := repo.FindByIDs(context.Background(), tenant, nil)
		require.NoError(t, err)
		assert.Empty(t, payees)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should return deleted rows too", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		deleted := time.Now().UTC()

		rows := addPayeeRow(addPayeeRow(payeeRows(), 1, "Walmart", nil), 2, "Wal-Mart", &deleted)
		mock.ExpectQuery(`SELECT (.+) FROM payees WHERE tenant_id = \$1 AND id IN \(\$2, \$3\)`).
			WithArgs(tenant, int64(1), int64(2)).
			WillReturnRows(rows)

		payees, err := repo.FindByIDs(context.Background(), tenant, []int64{1, 2})
		require.NoError(t, err)
		require.Len(t, payees, 2)
		assert.False(t, payees[0].IsDeleted())
		assert.True(t, payees[1].IsDeleted())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_Get(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT (.+) FROM payees WHERE id = \$1 AND tenant_id = \$2 AND deleted_at IS NULL`).
		WithArgs(int64(9), tenant).
		WillReturnRows(payeeRows())

	_, err := repo.Get(context.Background(), tenant, 9)
	assert.True(t, models.IsKind(err, models.ErrorKindNotFound), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Update(t *testing.T) {
	t.Run("should update the patched fields and reload", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		name := "Blue Bottle Coffee"
		email := "hi@bluebottle.com"

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE payees SET updated_at = $1, name = $2, unique_key = $3, email = $4 WHERE id = $5 AND tenant_id = $6 AND deleted_at IS NULL`)).
			WithArgs(sqlmock.AnyArg(), name, "blue bottle coffee", email, int64(1), tenant).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT (.+) FROM payees WHERE id = \$1`).
			WillReturnRows(addPayeeRow(payeeRows(), 1, name, nil))

		payee, err := repo.Update(context.Background(), tenant, 1, models.PayeePatch{Name: &name, Email: &email})
		require.NoError(t, err)
		assert.Equal(t, name, payee.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should report a missing payee", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		notes := "net 30"

		mock.ExpectExec(`UPDATE payees SET`).WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := repo.Update(context.Background(), tenant, 1, models.PayeePatch{Notes: &notes})
		assert.True(t, models.IsKind(err, models.ErrorKindNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_SoftDelete(t *testing.T) {
	t.Run("should lock then mark the payee deleted", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM payees WHERE id = \$1 AND tenant_id = \$2 AND deleted_at IS NULL FOR UPDATE`).
			WithArgs(int64(2), tenant).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(2)))
		mock.ExpectExec(`UPDATE payees SET deleted_at = \$1, updated_at = \$2, is_active = \$3, unique_key = \$4 WHERE id = \$5 AND tenant_id = \$6`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), false, "walmart#merged-2-1700000000", int64(2), tenant).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.SoftDelete(context.Background(), tenant, 2, "walmart#merged-2-1700000000")
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("should report a payee that is already gone", func(t *testing.T) {
		repo, mock := newMockRepository(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM payees`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		err := repo.SoftDelete(context.Background(), tenant, 2, "walmart#merged")
		assert.True(t, models.IsKind(err, models.ErrorKindNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
