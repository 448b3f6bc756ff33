// internal/service/suspension.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"traderiser/internal/blob"
	"traderiser/internal/domain"
	"traderiser/internal/notify"
	"traderiser/internal/repository"
	"traderiser/internal/util"
	"traderiser/pkg/db"
)

// SuspensionService owns a user's suspension status, its transitions and the
// append-only history log. State changes commit before any notification is
// attempted; a failed notification never rolls a transition back.
type SuspensionService interface {
	// Suspend places a user under a temporary or permanent suspension.
	// A no-op when the user is already suspended, whatever the kind.
	Suspend(ctx context.Context, userID int64, kind domain.SuspensionType, reason string, durationDays int, by *domain.User) error
	// Unsuspend lifts a suspension. A no-op when the user is not suspended.
	Unsuspend(ctx context.Context, userID int64, by *domain.User) error
	// CleanupExpired lifts a temporary suspension whose expiry has passed.
	// Safe and idempotent on every read path; mutates the passed handle to
	// reflect the new state.
	CleanupExpired(ctx context.Context, user *domain.User) error
	// SubmitAppeal files (or refiles) the evidence backing an appeal of a
	// permanent suspension.
	SubmitAppeal(ctx context.Context, user *domain.User, description, filename string, file []byte) (*domain.SuspensionEvidence, error)
	// ReviewEvidence decides a pending appeal. Approval unsuspends the owner;
	// rejection only notifies. Reviewed evidence is immutable.
	ReviewEvidence(ctx context.Context, evidenceID int64, approve bool, reviewer *domain.User) error
	// LatestEvidence returns a user's most recent appeal artifact.
	LatestEvidence(ctx context.Context, userID int64) (*domain.SuspensionEvidence, error)
}

type suspensionService struct {
	dbBeginner   db.DBTxBeginner
	dbExecutor   repository.DBExecutor
	userRepo     repository.UserRepository
	evidenceRepo repository.EvidenceRepository
	notifier     notify.Notifier
	blobStore    blob.Store
	logger       *slog.Logger
	beginTx      db.BeginTxFunc
	commitTx     db.CommitTxFunc
	rollbackTx   db.RollbackTxFunc
	now          func() time.Time
}

// NewSuspensionService creates a new instance of SuspensionService.
func NewSuspensionService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	evidenceRepo repository.EvidenceRepository,
	notifier notify.Notifier,
	blobStore blob.Store,
	logger *slog.Logger,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) SuspensionService {
	return &suspensionService{
		dbBeginner:   dbBeginner,
		dbExecutor:   dbExecutor,
		userRepo:     userRepo,
		evidenceRepo: evidenceRepo,
		notifier:     notifier,
		blobStore:    blobStore,
		logger:       logger,
		beginTx:      beginTx,
		commitTx:     commitTx,
		rollbackTx:   rollbackTx,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func actorName(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}

// Suspend places a user under suspension and records the transition.
func (s *suspensionService) Suspend(ctx context.Context, userID int64, kind domain.SuspensionType, reason string, durationDays int, by *domain.User) error {
	if kind != domain.SuspensionTemporary && kind != domain.SuspensionPermanent {
		return fmt.Errorf("suspend: unknown suspension type %q: %w", kind, util.ErrInvalidInput)
	}
	if kind == domain.SuspensionTemporary && durationDays <= 0 {
		return fmt.Errorf("suspend: temporary suspension requires a duration: %w", util.ErrInvalidInput)
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("suspend: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("suspend: transaction controller does not implement DBExecutor")
	}

	user, err := s.userRepo.GetUserByIDForUpdate(ctx, txExecutor, userID)
	if err != nil {
		return fmt.Errorf("suspend: failed to get user %d: %w", userID, err)
	}
	if user.IsSuspended {
		// Already suspended, whatever the kind. Benign no-op.
		return nil
	}

	suspendedAt := s.now()
	user.IsSuspended = true
	user.SuspensionType = kind
	user.SuspensionReason = reason
	user.SuspendedAt = &suspendedAt
	user.SuspendedUntil = nil
	if kind == domain.SuspensionTemporary {
		until := suspendedAt.Add(time.Duration(durationDays) * 24 * time.Hour)
		user.SuspendedUntil = &until
	}
	user.AppendSuspensionEvent(suspendedAt, string(kind), reason, actorName(by))

	if err := s.userRepo.UpdateSuspension(ctx, txExecutor, user); err != nil {
		return fmt.Errorf("suspend: failed to persist suspension for user %d: %w", userID, err)
	}
	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("suspend: failed to commit transaction: %w", err)
	}

	subject, body := notify.SuspensionNotice(user.Email, string(kind), reason, user.SuspendedUntil)
	notify.BestEffort(ctx, s.notifier, s.logger, user.Email, subject, body)

	s.logger.Info("user suspended", "user_id", userID, "type", kind, "by", actorName(by))
	return nil
}

// unsuspendLocked clears suspension state on an already row-locked user and
// appends the history entry. The entry and the cleared fields persist in one
// write so a crash cannot leave the log and the flags disagreeing.
func (s *suspensionService) unsuspendLocked(ctx context.Context, q repository.DBExecutor, user *domain.User, by *domain.User, reason string) error {
	user.AppendSuspensionEvent(s.now(), "unsuspended", reason, actorName(by))
	user.IsSuspended = false
	user.SuspensionType = domain.SuspensionNone
	user.SuspensionReason = ""
	user.SuspendedAt = nil
	user.SuspendedUntil = nil
	if err := s.userRepo.UpdateSuspension(ctx, q, user); err != nil {
		return fmt.Errorf("failed to persist unsuspension for user %d: %w", user.ID, err)
	}
	return nil
}

// Unsuspend lifts a suspension and notifies the user.
func (s *suspensionService) Unsuspend(ctx context.Context, userID int64, by *domain.User) error {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("unsuspend: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("unsuspend: transaction controller does not implement DBExecutor")
	}

	user, err := s.userRepo.GetUserByIDForUpdate(ctx, txExecutor, userID)
	if err != nil {
		return fmt.Errorf("unsuspend: failed to get user %d: %w", userID, err)
	}
	if !user.IsSuspended {
		return nil
	}

	if err := s.unsuspendLocked(ctx, txExecutor, user, by, ""); err != nil {
		return fmt.Errorf("unsuspend: %w", err)
	}
	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("unsuspend: failed to commit transaction: %w", err)
	}

	subject, body := notify.ReactivationNotice(user.Email)
	notify.BestEffort(ctx, s.notifier, s.logger, user.Email, subject, body)

	s.logger.Info("user unsuspended", "user_id", userID, "by", actorName(by))
	return nil
}

// CleanupExpired is the only automatic transition: a temporary suspension
// whose expiry has passed becomes Active. Called opportunistically at
// authentication and on user reads.
func (s *suspensionService) CleanupExpired(ctx context.Context, user *domain.User) error {
	if !user.SuspensionExpired(s.now()) {
		return nil
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("cleanup expired suspension: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("cleanup expired suspension: transaction controller does not implement DBExecutor")
	}

	locked, err := s.userRepo.GetUserByIDForUpdate(ctx, txExecutor, user.ID)
	if err != nil {
		return fmt.Errorf("cleanup expired suspension: failed to get user %d: %w", user.ID, err)
	}
	// Recheck under the lock: a concurrent caller may have cleaned up already.
	if !locked.SuspensionExpired(s.now()) {
		*user = *locked
		return nil
	}

	if err := s.unsuspendLocked(ctx, txExecutor, locked, nil, ""); err != nil {
		return fmt.Errorf("cleanup expired suspension: %w", err)
	}
	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("cleanup expired suspension: failed to commit transaction: %w", err)
	}
	*user = *locked

	subject, body := notify.ReactivationNotice(user.Email)
	notify.BestEffort(ctx, s.notifier, s.logger, user.Email, subject, body)

	s.logger.Info("expired temporary suspension lifted", "user_id", user.ID)
	return nil
}

// SubmitAppeal files the evidence backing an appeal of a permanent
// suspension. A re-appeal replaces the previous description and file and
// resets the review status to pending.
func (s *suspensionService) SubmitAppeal(ctx context.Context, user *domain.User, description, filename string, file []byte) (*domain.SuspensionEvidence, error) {
	if !user.IsPermanentlySuspended() {
		return nil, fmt.Errorf("submit appeal: only permanent suspensions can be appealed: %w", util.ErrInvalidInput)
	}
	if description == "" {
		return nil, fmt.Errorf("submit appeal: description required: %w", util.ErrInvalidInput)
	}

	fileHandle := ""
	if len(file) > 0 {
		handle, err := s.blobStore.Save(ctx, filename, file)
		if err != nil {
			return nil, fmt.Errorf("submit appeal: failed to store evidence file: %w", err)
		}
		fileHandle = handle
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("submit appeal: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("submit appeal: transaction controller does not implement DBExecutor")
	}

	evidence, err := s.evidenceRepo.GetLatestEvidenceByUserID(ctx, txExecutor, user.ID)
	switch {
	case err == nil:
		evidence.Description = description
		if fileHandle != "" {
			evidence.FileHandle = fileHandle
		}
		evidence.Status = domain.EvidencePending
		evidence.ReviewedBy = nil
		evidence.ReviewedAt = nil
		if err := s.evidenceRepo.ResubmitEvidence(ctx, txExecutor, evidence); err != nil {
			return nil, fmt.Errorf("submit appeal: failed to resubmit evidence: %w", err)
		}
	case util.IsError(err, util.ErrNotFound):
		evidence = domain.NewSuspensionEvidence(user.ID, description, fileHandle)
		if err := s.evidenceRepo.CreateEvidence(ctx, txExecutor, evidence); err != nil {
			return nil, fmt.Errorf("submit appeal: failed to create evidence: %w", err)
		}
	default:
		return nil, fmt.Errorf("submit appeal: failed to look up evidence: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("submit appeal: failed to commit transaction: %w", err)
	}

	subject, body := notify.AppealSubmittedNotice(user.Username, user.Email, description)
	notify.BestEffort(ctx, s.notifier, s.logger, notify.SupportAddress(), subject, body)

	return evidence, nil
}

// ReviewEvidence decides a pending appeal.
func (s *suspensionService) ReviewEvidence(ctx context.Context, evidenceID int64, approve bool, reviewer *domain.User) error {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("review evidence: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("review evidence: transaction controller does not implement DBExecutor")
	}

	evidence, err := s.evidenceRepo.GetEvidenceByIDForUpdate(ctx, txExecutor, evidenceID)
	if err != nil {
		return fmt.Errorf("review evidence: failed to get evidence %d: %w", evidenceID, err)
	}
	if evidence.Status != domain.EvidencePending {
		return fmt.Errorf("review evidence: evidence %d already reviewed: %w", evidenceID, util.ErrConflict)
	}

	reviewedAt := s.now()
	evidence.ReviewedAt = &reviewedAt
	if reviewer != nil {
		evidence.ReviewedBy = &reviewer.ID
	}
	if approve {
		evidence.Status = domain.EvidenceApproved
	} else {
		evidence.Status = domain.EvidenceRejected
	}
	if err := s.evidenceRepo.MarkReviewed(ctx, txExecutor, evidence); err != nil {
		return fmt.Errorf("review evidence: failed to persist review: %w", err)
	}

	user, err := s.userRepo.GetUserByIDForUpdate(ctx, txExecutor, evidence.UserID)
	if err != nil {
		return fmt.Errorf("review evidence: failed to get user %d: %w", evidence.UserID, err)
	}

	if approve && user.IsSuspended {
		if err := s.unsuspendLocked(ctx, txExecutor, user, reviewer, "appeal approved"); err != nil {
			return fmt.Errorf("review evidence: %w", err)
		}
	}
	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("review evidence: failed to commit transaction: %w", err)
	}

	if approve {
		subject, body := notify.AppealApprovedNotice(user.Username)
		notify.BestEffort(ctx, s.notifier, s.logger, user.Email, subject, body)
	} else {
		subject, body := notify.AppealRejectedNotice(user.Username, evidence.Description)
		notify.BestEffort(ctx, s.notifier, s.logger, user.Email, subject, body)
	}

	s.logger.Info("suspension evidence reviewed",
		"evidence_id", evidenceID, "approved", approve, "user_id", evidence.UserID, "reviewer", actorName(reviewer))
	return nil
}

// LatestEvidence returns a user's most recent appeal artifact.
func (s *suspensionService) LatestEvidence(ctx context.Context, userID int64) (*domain.SuspensionEvidence, error) {
	evidence, err := s.evidenceRepo.GetLatestEvidenceByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("latest evidence: %w", err)
	}
	return evidence, nil
}
