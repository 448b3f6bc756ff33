// internal/repository/evidence_repo.go
package repository

import (
	"context"

	"traderiser/internal/domain"
)

// EvidenceRepository defines the interface for suspension evidence data
// operations.
type EvidenceRepository interface {
	// CreateEvidence adds a new pending evidence record.
	CreateEvidence(ctx context.Context, q DBExecutor, evidence *domain.SuspensionEvidence) error
	// GetEvidenceByID retrieves an evidence record by its ID.
	GetEvidenceByID(ctx context.Context, q DBExecutor, id int64) (*domain.SuspensionEvidence, error)
	// GetEvidenceByIDForUpdate is GetEvidenceByID with a row lock so two
	// reviewers cannot decide the same appeal.
	GetEvidenceByIDForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.SuspensionEvidence, error)
	// GetLatestEvidenceByUserID retrieves a user's most recent evidence record.
	GetLatestEvidenceByUserID(ctx context.Context, q DBExecutor, userID int64) (*domain.SuspensionEvidence, error)
	// ResubmitEvidence replaces description and file of an existing record and
	// resets its status to pending.
	ResubmitEvidence(ctx context.Context, q DBExecutor, evidence *domain.SuspensionEvidence) error
	// MarkReviewed records the review outcome; the record is immutable
	// afterwards.
	MarkReviewed(ctx context.Context, q DBExecutor, evidence *domain.SuspensionEvidence) error
}
