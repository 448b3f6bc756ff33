// internal/domain/evidence.go
package domain

import "time"

// EvidenceStatus tracks the review state of an appeal artifact.
type EvidenceStatus string

const (
	EvidencePending  EvidenceStatus = "pending"
	EvidenceApproved EvidenceStatus = "approved"
	EvidenceRejected EvidenceStatus = "rejected"
)

// SuspensionEvidence backs an appeal of a permanent suspension. A user holds
// at most one active appeal artifact; re-appealing replaces the description
// and file and resets the status to pending.
type SuspensionEvidence struct {
	ID          int64          `db:"id" json:"id"`
	UserID      int64          `db:"user_id" json:"user_id"`
	FileHandle  string         `db:"file_handle" json:"-"`
	Description string         `db:"description" json:"description"`
	Status      EvidenceStatus `db:"status" json:"status"`
	ReviewedBy  *int64         `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// NewSuspensionEvidence creates a pending evidence record.
func NewSuspensionEvidence(userID int64, description, fileHandle string) *SuspensionEvidence {
	return &SuspensionEvidence{
		UserID:      userID,
		FileHandle:  fileHandle,
		Description: description,
		Status:      EvidencePending,
		CreatedAt:   time.Now().UTC(),
	}
}
