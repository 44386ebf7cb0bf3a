package model

import "time"

// Beneficiary is a locally annotated reference record for a beneficiary
// known to the backend. The financial core never reads these; they exist so
// the operator surface can attach display names and notes to backend ids.
type Beneficiary struct {
	ID          int64
	Environment Environment
	BackendID   string
	DisplayName string
	Notes       string
	UpdatedAt   time.Time
}
