package models

import (
	"strings"
	"time"
)

// Payee is a tenant-scoped merchant or person money is paid to.
type Payee struct {
	ID                int64      `json:"id" db:"id"`
	TenantID          string     `json:"tenant_id" db:"tenant_id"`
	Name              string     `json:"name" db:"name"`
	Email             string     `json:"email,omitempty" db:"email"`
	Phone             string     `json:"phone,omitempty" db:"phone"`
	Website           string     `json:"website,omitempty" db:"website"`
	Address           string     `json:"address,omitempty" db:"address"`
	Notes             string     `json:"notes,omitempty" db:"notes"`
	DefaultCategoryID *int64     `json:"default_category_id,omitempty" db:"default_category_id"`
	DefaultBudgetID   *int64     `json:"default_budget_id,omitempty" db:"default_budget_id"`
	IsActive          bool       `json:"is_active" db:"is_active"`
	UniqueKey         string     `json:"unique_key" db:"unique_key"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsDeleted reports whether the payee has been soft-deleted.
func (p *Payee) IsDeleted() bool {
	return p.DeletedAt != nil
}

// UniqueKeyFor is the identity-uniqueness key for a display name within a tenant.
func UniqueKeyFor(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// PayeePatch is a partial update. Nil fields are left unchanged.
type PayeePatch struct {
	Name              *string `json:"name,omitempty"`
	Email             *string `json:"email,omitempty"`
	Phone             *string `json:"phone,omitempty"`
	Website           *string `json:"website,omitempty"`
	Address           *string `json:"address,omitempty"`
	Notes             *string `json:"notes,omitempty"`
	DefaultCategoryID *int64  `json:"default_category_id,omitempty"`
	DefaultBudgetID   *int64  `json:"default_budget_id,omitempty"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p PayeePatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Website == nil &&
		p.Address == nil && p.Notes == nil && p.DefaultCategoryID == nil &&
		p.DefaultBudgetID == nil && p.IsActive == nil
}

// Apply writes the patch onto payee.
func (p PayeePatch) Apply(payee *Payee) {
	if p.Name != nil {
		payee.Name = *p.Name
	}
	if p.Email != nil {
		payee.Email = *p.Email
	}
	if p.Phone != nil {
		payee.Phone = *p.Phone
	}
	if p.Website != nil {
		payee.Website = *p.Website
	}
	if p.Address != nil {
		payee.Address = *p.Address
	}
	if p.Notes != nil {
		payee.Notes = *p.Notes
	}
	if p.DefaultCategoryID != nil {
		payee.DefaultCategoryID = p.DefaultCategoryID
	}
	if p.DefaultBudgetID != nil {
		payee.DefaultBudgetID = p.DefaultBudgetID
	}
	if p.IsActive != nil {
		payee.IsActive = *p.IsActive
	}
}

// Transaction is the slice of a ledger transaction the payee engine touches.
type Transaction struct {
	ID        int64     `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	PayeeID   *int64    `json:"payee_id,omitempty" db:"payee_id"`
	Amount    int64     `json:"amount" db:"amount"`
	PostedAt  time.Time `json:"posted_at" db:"posted_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
