package events

import "github.com/Ramsey-B/clover/pkg/models"

// EventType defines the type of event
type EventType string

const (
	EventTypePayeeMerged             EventType = "payee.merged"
	EventTypePayeeDuplicatesDetected EventType = "payee.duplicates_detected"
)

// PayeeMergedData is the payload of a payee.merged event.
type PayeeMergedData struct {
	SurvivingPayeeID        int64    `json:"surviving_payee_id"`
	MergedPayeeIDs          []int64  `json:"merged_payee_ids"`
	TransactionsReassigned  int64    `json:"transactions_reassigned"`
	ContactFieldsBackfilled []string `json:"contact_fields_backfilled,omitempty"`
	WarningCount            int      `json:"warning_count"`
}

// DuplicatesDetectedData is the payload of a payee.duplicates_detected event.
type DuplicatesDetectedData struct {
	Mode        models.DetectionMode `json:"detection_mode"`
	Strategy    models.MatchStrategy `json:"strategy"`
	Threshold   float64              `json:"threshold"`
	PayeeCount  int                  `json:"payee_count"`
	GroupCount  int                  `json:"group_count"`
	MergeCount  int                  `json:"merge_recommended"`
	ReviewCount int                  `json:"review_recommended"`
	PrimaryIDs  []int64              `json:"primary_payee_ids"`
}
