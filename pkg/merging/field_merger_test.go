package merging

import (
	"testing"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestFieldMerger_Backfill(t *testing.T) {
	m := NewFieldMerger()

	t.Run("should fill only empty primary fields", func(t *testing.T) {
		primary := &models.Payee{ID: 1, Name: "Acme", Phone: "555-000-1111"}
		dup := &models.Payee{
			ID:                2,
			Email:             "  AP@Acme.com ",
			Phone:             "555-999-8888",
			Website:           " acme.com ",
			DefaultCategoryID: int64Ptr(4),
		}

		patch, filled := m.Backfill(primary, []*models.Payee{dup})
		assert.Equal(t, []string{"email", "website", "default_category_id"}, filled)
		require.NotNil(t, patch.Email)
		assert.Equal(t, "ap@acme.com", *patch.Email)
		require.NotNil(t, patch.Website)
		assert.Equal(t, "acme.com", *patch.Website)
		assert.Nil(t, patch.Phone)
		require.NotNil(t, patch.DefaultCategoryID)
		assert.Equal(t, int64(4), *patch.DefaultCategoryID)
		assert.Nil(t, patch.Name)
	})

	t.Run("should skip invalid contact values and try the next duplicate", func(t *testing.T) {
		primary := &models.Payee{ID: 1, Name: "Acme"}
		bad := &models.Payee{ID: 2, Email: "not-an-email", Phone: "12-34"}
		good := &models.Payee{ID: 3, Email: "billing@acme.com", Phone: "+1 (555) 123-4567"}

		patch, filled := m.Backfill(primary, []*models.Payee{bad, good})
		assert.ElementsMatch(t, []string{"email", "phone"}, filled)
		assert.Equal(t, "billing@acme.com", *patch.Email)
		assert.Equal(t, "15551234567", *patch.Phone)
	})

	t.Run("should take the first usable duplicate in order", func(t *testing.T) {
		primary := &models.Payee{ID: 1}
		first := &models.Payee{ID: 2, Notes: "first"}
		second := &models.Payee{ID: 3, Notes: "second"}

		patch, _ := m.Backfill(primary, []*models.Payee{first, second})
		assert.Equal(t, "first", *patch.Notes)
	})

	t.Run("should return an empty patch when nothing is missing", func(t *testing.T) {
		primary := &models.Payee{
			ID:                1,
			Email:             "a@b.com",
			Phone:             "5551234567",
			Website:           "acme.com",
			Address:           "1 Main St",
			Notes:             "vip",
			DefaultCategoryID: int64Ptr(1),
			DefaultBudgetID:   int64Ptr(2),
		}
		dup := &models.Payee{ID: 2, Email: "x@y.com", Notes: "other"}

		patch, filled := m.Backfill(primary, []*models.Payee{dup})
		assert.True(t, patch.IsEmpty())
		assert.Empty(t, filled)
	})

	t.Run("should treat whitespace as empty", func(t *testing.T) {
		primary := &models.Payee{ID: 1, Address: "   "}
		dup := &models.Payee{ID: 2, Address: "2 Side St"}

		patch, filled := m.Backfill(primary, []*models.Payee{dup})
		assert.Equal(t, []string{"address"}, filled)
		assert.Equal(t, "2 Side St", *patch.Address)
	})
}

func TestValidEmail(t *testing.T) {
	assert.True(t, validEmail("a@b.com"))
	assert.False(t, validEmail("@b.com"))
	assert.False(t, validEmail("a@"))
	assert.False(t, validEmail("a b@c.com"))
	assert.False(t, validEmail(""))
}
