package models

import "time"

// ChatRecord is one persisted question/answer pair. Records are append-only.
type ChatRecord struct {
	ID        string    `json:"id,omitempty"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CompanyID string    `json:"companyId"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
