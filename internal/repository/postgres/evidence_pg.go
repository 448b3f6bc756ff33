// internal/repository/postgres/evidence_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"traderiser/internal/domain"
	"traderiser/internal/repository"
	"traderiser/internal/util"

	"github.com/jmoiron/sqlx"
)

const evidenceColumns = `id, user_id, file_handle, description, status, reviewed_by, reviewed_at, created_at`

// EvidenceRepository implements repository.EvidenceRepository for PostgreSQL.
type EvidenceRepository struct{}

// NewEvidenceRepository creates a new EvidenceRepository.
func NewEvidenceRepository(db *sqlx.DB) repository.EvidenceRepository {
	return &EvidenceRepository{}
}

// CreateEvidence inserts a new pending evidence record.
func (r *EvidenceRepository) CreateEvidence(ctx context.Context, q repository.DBExecutor, evidence *domain.SuspensionEvidence) error {
	query := `INSERT INTO suspension_evidence (user_id, file_handle, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		evidence.UserID, evidence.FileHandle, evidence.Description, evidence.Status, evidence.CreatedAt,
	).Scan(&evidence.ID)
	if err != nil {
		return fmt.Errorf("failed to create suspension evidence: %w", err)
	}
	return nil
}

func (r *EvidenceRepository) getEvidence(ctx context.Context, q repository.DBExecutor, query string, arg interface{}) (*domain.SuspensionEvidence, error) {
	var evidence domain.SuspensionEvidence
	err := q.GetContext(ctx, &evidence, query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get suspension evidence: %w", err)
	}
	return &evidence, nil
}

// GetEvidenceByID retrieves an evidence record by its ID.
func (r *EvidenceRepository) GetEvidenceByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.SuspensionEvidence, error) {
	return r.getEvidence(ctx, q, `SELECT `+evidenceColumns+` FROM suspension_evidence WHERE id = $1`, id)
}

// GetEvidenceByIDForUpdate is GetEvidenceByID with a row lock.
func (r *EvidenceRepository) GetEvidenceByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.SuspensionEvidence, error) {
	return r.getEvidence(ctx, q, `SELECT `+evidenceColumns+` FROM suspension_evidence WHERE id = $1 FOR UPDATE`, id)
}

// GetLatestEvidenceByUserID retrieves a user's most recent evidence record.
func (r *EvidenceRepository) GetLatestEvidenceByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.SuspensionEvidence, error) {
	return r.getEvidence(ctx, q,
		`SELECT `+evidenceColumns+` FROM suspension_evidence WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		userID)
}

// ResubmitEvidence replaces description and file of an existing record and
// resets its status to pending.
func (r *EvidenceRepository) ResubmitEvidence(ctx context.Context, q repository.DBExecutor, evidence *domain.SuspensionEvidence) error {
	query := `UPDATE suspension_evidence
		SET description = $1, file_handle = $2, status = $3, reviewed_by = NULL, reviewed_at = NULL
		WHERE id = $4`
	_, err := q.ExecContext(ctx, query, evidence.Description, evidence.FileHandle, domain.EvidencePending, evidence.ID)
	if err != nil {
		return fmt.Errorf("failed to resubmit suspension evidence %d: %w", evidence.ID, err)
	}
	return nil
}

// MarkReviewed records the review outcome.
func (r *EvidenceRepository) MarkReviewed(ctx context.Context, q repository.DBExecutor, evidence *domain.SuspensionEvidence) error {
	query := `UPDATE suspension_evidence SET status = $1, reviewed_by = $2, reviewed_at = $3 WHERE id = $4`
	_, err := q.ExecContext(ctx, query, evidence.Status, evidence.ReviewedBy, evidence.ReviewedAt, evidence.ID)
	if err != nil {
		return fmt.Errorf("failed to mark suspension evidence %d reviewed: %w", evidence.ID, err)
	}
	return nil
}
