package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ledgerline/installment-service/internal/cache"
	"github.com/ledgerline/installment-service/internal/config"
	"github.com/ledgerline/installment-service/internal/models"
	"github.com/ledgerline/installment-service/internal/mutation"
	"github.com/ledgerline/installment-service/internal/repository"
)

// ErrValidation wraps input errors rejected before any mutation is
// attempted. Nothing has been written when it is returned.
var ErrValidation = errors.New("validation failed")

// ErrOperationFailed is the generic error surfaced for mid-sequence write
// failures. Internal details (topology, transaction state) never reach the
// caller; they are logged instead.
var ErrOperationFailed = errors.New("operation failed, try again")

// ErrDuplicateSubmission is returned when an identical payment submission
// is already in flight within the idempotency window but its record has not
// been persisted yet.
var ErrDuplicateSubmission = errors.New("duplicate submission")

// RateSource provides the reference annual rate used as the default for
// plans created without an explicit rate.
type RateSource interface {
	KeyRate(ctx context.Context) (float64, error)
}

// Service handles business logic for the installment ledger.
type Service struct {
	store  repository.Store
	cache  cache.IdempotencyCache
	exec   *mutation.Executor
	rates  RateSource
	log    *logrus.Logger
	config *config.Config
}

// NewService initializes a new service.
func NewService(store repository.Store, idem cache.IdempotencyCache, rates RateSource, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{
		store:  store,
		cache:  idem,
		exec:   mutation.NewExecutor(log),
		rates:  rates,
		log:    log,
		config: cfg,
	}
}

// runProtocol applies one logical mutation through whichever path the store
// topology currently supports. The probe runs here, per operation: with
// transactions available every step commits or none does; without them the
// executor applies steps in order and compensates on failure. Callers never
// learn which path ran.
func (s *Service) runProtocol(ctx context.Context, operation string, build func(st repository.Store) []mutation.Step) error {
	var err error
	if s.store.SupportsAtomicMultiWrite(ctx) {
		err = s.store.WithinTx(ctx, func(tx repository.Store) error {
			return mutation.RunAtomic(ctx, build(tx))
		})
	} else {
		err = s.exec.Run(ctx, operation, build(s.store))
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrInsufficientFunds) {
		return repository.ErrInsufficientFunds
	}
	s.log.WithFields(logrus.Fields{
		"operation": operation,
		"error":     err.Error(),
	}).Error("mutation failed")
	return ErrOperationFailed
}

// validationError builds a caller-facing input rejection.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// cloneSchedule copies a schedule so in-memory allocation never aliases the
// entries loaded from the store.
func cloneSchedule(schedule []models.ScheduleEntry) []models.ScheduleEntry {
	out := make([]models.ScheduleEntry, len(schedule))
	copy(out, schedule)
	return out
}
