package matching

import (
	"testing"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func TestCompleteness(t *testing.T) {
	bare := &models.Payee{ID: 1, Name: "Acme"}
	contact := &models.Payee{ID: 2, Name: "Acme", Email: "ap@acme.com", Phone: "5551234567"}
	full := &models.Payee{
		ID:                3,
		Name:              "Acme",
		Email:             "ap@acme.com",
		Phone:             "5551234567",
		Website:           "acme.com",
		Address:           "1 Main St",
		Notes:             "net 30",
		DefaultCategoryID: int64Ptr(7),
		DefaultBudgetID:   int64Ptr(9),
	}

	assert.Equal(t, 0.0, Completeness(nil))
	assert.Equal(t, 0.0, Completeness(&models.Payee{Name: "   "}))
	assert.Less(t, Completeness(bare), Completeness(contact))
	assert.Less(t, Completeness(contact), Completeness(full))
}

func TestChoosePrimary(t *testing.T) {
	bare := &models.Payee{ID: 1, Name: "Acme"}
	rich := &models.Payee{ID: 2, Name: "Acme", Email: "ap@acme.com"}

	t.Run("should prefer the more complete payee", func(t *testing.T) {
		primary, duplicate := ChoosePrimary(bare, rich)
		assert.Equal(t, int64(2), primary.ID)
		assert.Equal(t, int64(1), duplicate.ID)

		primary, duplicate = ChoosePrimary(rich, bare)
		assert.Equal(t, int64(2), primary.ID)
		assert.Equal(t, int64(1), duplicate.ID)
	})

	t.Run("should keep the first operand on a tie", func(t *testing.T) {
		other := &models.Payee{ID: 3, Name: "ACME"}
		primary, _ := ChoosePrimary(bare, other)
		assert.Equal(t, int64(1), primary.ID)
	})
}
