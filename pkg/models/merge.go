package models

// MergeStrategy selects the optional steps of a payee merge.
type MergeStrategy struct {
	// MergeContactInfo backfills empty primary contact fields from duplicates.
	MergeContactInfo bool `json:"merge_contact_info"`
	// PreserveTransactionHistory moves duplicate transactions onto the primary.
	PreserveTransactionHistory bool `json:"preserve_transaction_history"`
}

// DefaultMergeStrategy runs every step.
func DefaultMergeStrategy() MergeStrategy {
	return MergeStrategy{
		MergeContactInfo:           true,
		PreserveTransactionHistory: true,
	}
}

// MergeResult reports what a merge changed and what it could not.
type MergeResult struct {
	SurvivingPayeeID        int64    `json:"surviving_payee_id"`
	MergedPayeeIDs          []int64  `json:"merged_payee_ids"`
	TransactionsReassigned  int64    `json:"transactions_reassigned"`
	ContactFieldsBackfilled []string `json:"contact_fields_backfilled,omitempty"`
	Warnings                []string `json:"warnings"`
}

func (r *MergeResult) Warn(warning string) {
	r.Warnings = append(r.Warnings, warning)
}
