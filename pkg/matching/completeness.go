package matching

import (
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Completeness weights. Only the relative order between two payees matters.
const (
	nameWeight     = 2.0
	contactWeight  = 1.0
	notesWeight    = 0.5
	categoryWeight = 1.0
	budgetWeight   = 1.0
)

// Completeness scores how much usable data a payee carries.
func Completeness(p *models.Payee) float64 {
	if p == nil {
		return 0
	}
	score := 0.0
	if present(p.Name) {
		score += nameWeight
	}
	for _, field := range []string{p.Email, p.Phone, p.Website, p.Address} {
		if present(field) {
			score += contactWeight
		}
	}
	if present(p.Notes) {
		score += notesWeight
	}
	if p.DefaultCategoryID != nil {
		score += categoryWeight
	}
	if p.DefaultBudgetID != nil {
		score += budgetWeight
	}
	return score
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}

// ChoosePrimary returns (primary, duplicate) for a pair. The more complete payee wins and
// a tie keeps the first operand.
func ChoosePrimary(a, b *models.Payee) (*models.Payee, *models.Payee) {
	if Completeness(b) > Completeness(a) {
		return b, a
	}
	return a, b
}
