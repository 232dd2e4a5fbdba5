package app

import (
	"context"

	"github.com/fd1az/torus-bridge/business/history/domain"
	"github.com/fd1az/torus-bridge/internal/apperror"
	"github.com/fd1az/torus-bridge/internal/logger"
)

// RecoveryAction is what the caller should do with a recovered item.
type RecoveryAction string

const (
	// RecoveryNone means no transfer is referenced by the recovery URL.
	RecoveryNone RecoveryAction = "none"
	// RecoveryResume re-enters polling or step 2 of an interrupted transfer.
	RecoveryResume RecoveryAction = "resume"
	// RecoveryRestore shows a failed transfer so it can be retried.
	RecoveryRestore RecoveryAction = "restore"
	// RecoveryCompleted means the referenced transfer already finished.
	RecoveryCompleted RecoveryAction = "completed"
)

// RecoveryPlan is the outcome of Recovery.Check.
type RecoveryPlan struct {
	Action RecoveryAction
	Item   domain.Item
	Phase  domain.ResumePhase
}

// ResumePlan returns the phase an interrupted item continues from.
func ResumePlan(item domain.Item) domain.ResumePhase {
	return item.ResumePhase()
}

// Recovery finds the transfer to pick up after a restart.
type Recovery struct {
	urls    *URLState
	history *Service
	log     logger.LoggerInterface
}

// NewRecovery returns a Recovery over the URL state and history.
func NewRecovery(urls *URLState, history *Service, log logger.LoggerInterface) *Recovery {
	return &Recovery{urls: urls, history: history, log: log}
}

// Check looks up the transfer referenced by the recovery URL. An id that
// is not in history clears the URL and returns RECOVERY_NOT_FOUND; a
// completed transfer clears the URL too.
func (r *Recovery) Check(ctx context.Context) (RecoveryPlan, error) {
	id, ok := r.urls.GetTransactionFromURL()
	if !ok || id == "" {
		return RecoveryPlan{Action: RecoveryNone}, nil
	}

	item, found, err := r.history.GetTransactionByID(ctx, id)
	if err != nil {
		return RecoveryPlan{Action: RecoveryNone}, err
	}
	if !found {
		r.log.Warn(ctx, "recovery url references an unknown transfer", "id", id)
		r.urls.ClearTransactionFromURL(ctx)
		return RecoveryPlan{Action: RecoveryNone}, apperror.New(apperror.CodeRecoveryNotFound, apperror.WithContext(id))
	}

	switch item.Status {
	case domain.StatusCompleted:
		r.log.Info(ctx, "recovered transfer already completed", "id", id)
		r.urls.ClearTransactionFromURL(ctx)
		return RecoveryPlan{Action: RecoveryCompleted, Item: item}, nil
	case domain.StatusError:
		return RecoveryPlan{Action: RecoveryRestore, Item: item}, nil
	}

	phase := ResumePlan(item)
	if phase == domain.ResumeNone || phase == domain.ResumeRestore {
		return RecoveryPlan{Action: RecoveryRestore, Item: item, Phase: phase}, nil
	}
	r.log.Info(ctx, "resuming interrupted transfer", "id", id, "phase", phase)
	return RecoveryPlan{Action: RecoveryResume, Item: item, Phase: phase}, nil
}

// Forget clears the recovery URL once the transfer is settled.
func (r *Recovery) Forget(ctx context.Context) {
	r.urls.ClearTransactionFromURL(ctx)
}

// Track points the recovery URL at id. It matches the orchestrator's
// transaction-created hook.
func (r *Recovery) Track(ctx context.Context, id string) {
	r.urls.SetTransactionInURL(ctx, id)
}
