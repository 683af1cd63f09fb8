package merging

import (
	"strings"

	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// contactField is one backfillable payee field.
type contactField struct {
	name string
	// empty reports whether the primary has no value yet
	empty func(p *models.Payee) bool
	// take copies a revalidated value from src into the patch, returning false when src
	// has nothing usable
	take func(src *models.Payee, patch *models.PayeePatch) bool
}

// FieldMerger fills a primary payee's empty contact fields from its duplicates.
type FieldMerger struct {
	fields []contactField
}

// NewFieldMerger creates a new FieldMerger
func NewFieldMerger() *FieldMerger {
	return &FieldMerger{fields: []contactField{
		{
			name:  "email",
			empty: func(p *models.Payee) bool { return blank(p.Email) },
			take: func(src *models.Payee, patch *models.PayeePatch) bool {
				email := normalizers.NormalizeEmail(src.Email)
				if !validEmail(email) {
					return false
				}
				patch.Email = &email
				return true
			},
		},
		{
			name:  "phone",
			empty: func(p *models.Payee) bool { return blank(p.Phone) },
			take: func(src *models.Payee, patch *models.PayeePatch) bool {
				phone := normalizers.NormalizePhone(src.Phone)
				if len(phone) < matching.MinPhoneDigits {
					return false
				}
				patch.Phone = &phone
				return true
			},
		},
		{
			name:  "website",
			empty: func(p *models.Payee) bool { return blank(p.Website) },
			take: func(src *models.Payee, patch *models.PayeePatch) bool {
				website := strings.TrimSpace(src.Website)
				if website == "" {
					return false
				}
				patch.Website = &website
				return true
			},
		},
		{
			name:  "address",
			empty: func(p *models.Payee) bool { return blank(p.Address) },
			take: func(src *models.Payee, patch *models.PayeePatch) bool {
				address := strings.TrimSpace(src.Address)
				if address == "" {
					return false
				}
				patch.Address = &address
				return true
			},
		},
		{
			name:  "notes",
			empty: func(p *models.Payee) bool { return blank(p.Notes) },
			take: func(src *models.Payee, patch *models.PayeePatch) bool {
				notes := strings.TrimSpace(src.Notes)
				if notes == "" {
					return false
				}
				patch.Notes = &notes
				return true
			},
		},
		{
			name:  "default_category_id",
			empty: func(p *models.Payee) bool { return p.DefaultCategoryID == nil },
			take: func(src *models.Payee, patch *models.PayeePatch) bool {
				if src.DefaultCategoryID == nil {
					return false
				}
				id := *src.DefaultCategoryID
				patch.DefaultCategoryID = &id
				return true
			},
		},
		{
			name:  "default_budget_id",
			empty: func(p *models.Payee) bool { return p.DefaultBudgetID == nil },
			take: func(src *models.Payee, patch *models.PayeePatch) bool {
				if src.DefaultBudgetID == nil {
					return false
				}
				id := *src.DefaultBudgetID
				patch.DefaultBudgetID = &id
				return true
			},
		},
	}}
}

// Backfill builds the patch that fills primary's empty fields. For each field the first
// duplicate, in order, with a usable value wins. Populated primary fields are never touched.
// The returned names list the fields the patch sets.
func (m *FieldMerger) Backfill(primary *models.Payee, duplicates []*models.Payee) (models.PayeePatch, []string) {
	var patch models.PayeePatch
	var filled []string
	for _, field := range m.fields {
		if !field.empty(primary) {
			continue
		}
		for _, dup := range duplicates {
			if field.take(dup, &patch) {
				filled = append(filled, field.name)
				break
			}
		}
	}
	return patch, filled
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}
