package models

import "time"

type DiagnosticStatus string

const (
	DiagnosticStatusSuccess     DiagnosticStatus = "success"
	DiagnosticStatusFailed      DiagnosticStatus = "failed"
	DiagnosticStatusUnavailable DiagnosticStatus = "unavailable"
)

// PairCandidate is one payee pair submitted to the semantic gateway.
type PairCandidate struct {
	Index            int     `json:"index"`
	PrimaryID        int64   `json:"primary_id"`
	DuplicateID      int64   `json:"duplicate_id"`
	PrimaryName      string  `json:"primary_name"`
	DuplicateName    string  `json:"duplicate_name"`
	HeuristicScore   float64 `json:"heuristic_score,omitempty"`
	PrimaryContact   string  `json:"primary_contact,omitempty"`
	DuplicateContact string  `json:"duplicate_contact,omitempty"`
}

// PairVerdict is the gateway's answer for one pair.
type PairVerdict struct {
	Index      int     `json:"index"`
	IsMatch    bool    `json:"isMatch"`
	Confidence float64 `json:"confidence"`
}

// BatchResponse is the JSON object the gateway embeds in its free-form reply.
type BatchResponse struct {
	Pairs []PairVerdict `json:"pairs"`
}

// Diagnostic records one semantic gateway interaction, or the reason none took place.
type Diagnostic struct {
	Timestamp     time.Time        `json:"timestamp"`
	Mode          DetectionMode    `json:"mode"`
	Status        DiagnosticStatus `json:"status"`
	BatchIndex    int              `json:"batch_index"`
	Provider      string           `json:"provider,omitempty"`
	Model         string           `json:"model,omitempty"`
	Pairs         []PairCandidate  `json:"pairs,omitempty"`
	Prompt        string           `json:"prompt,omitempty"`
	RawResponse   string           `json:"raw_response,omitempty"`
	Parsed        *BatchResponse   `json:"parsed,omitempty"`
	ParseError    string           `json:"parse_error,omitempty"`
	Error         string           `json:"error,omitempty"`
	MissingConfig []string         `json:"missing_config,omitempty"`
	DurationMs    int64            `json:"duration_ms"`
}
