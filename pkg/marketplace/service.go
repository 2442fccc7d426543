package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service runs marketplace transactions over a Store and publishes their
// notifications once the transaction has committed.
type Service struct {
	store              Store
	nowFn              func() time.Time
	idFn               func() string
	logger             OperationLogger
	publisher          Publisher
	topicPrefix        string
	transactionTimeout time.Duration
	publishTimeout     time.Duration
	ledger             creditLedger
	guard              availabilityGuard
	threads            conversationThreads
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:              store,
		nowFn:              now,
		idFn:               uuid.NewString,
		topicPrefix:        DefaultTopicPrefix,
		transactionTimeout: defaultTransactionTimeout,
		publishTimeout:     defaultPublishTimeout,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if service.idFn == nil {
		return nil, fmt.Errorf("%w: id generator is nil", ErrInvalidServiceConfig)
	}
	if service.transactionTimeout <= 0 || service.publishTimeout <= 0 {
		return nil, fmt.Errorf("%w: timeouts must be positive", ErrInvalidServiceConfig)
	}
	service.threads = conversationThreads{newID: service.newIdentifier}
	return service, nil
}

// WithPublisher wires the realtime publisher used after commit.
func WithPublisher(publisher Publisher) ServiceOption {
	return func(service *Service) {
		service.publisher = publisher
	}
}

// WithTopicPrefix overrides DefaultTopicPrefix.
func WithTopicPrefix(prefix string) ServiceOption {
	return func(service *Service) {
		service.topicPrefix = prefix
	}
}

// WithIDGenerator overrides the UUID generator used for new records.
func WithIDGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		service.idFn = generate
	}
}

// WithTransactionTimeout bounds every transaction, lock waits included.
func WithTransactionTimeout(timeout time.Duration) ServiceOption {
	return func(service *Service) {
		service.transactionTimeout = timeout
	}
}

// WithPublishTimeout bounds each post-commit publish call.
func WithPublishTimeout(timeout time.Duration) ServiceOption {
	return func(service *Service) {
		service.publishTimeout = timeout
	}
}

func (service *Service) now() time.Time {
	return service.nowFn().UTC()
}

func (service *Service) newIdentifier() (string, error) {
	identifier := service.idFn()
	if identifier == "" {
		return "", WrapError(errorOperationGenerate, errorSubjectIdentifier, errorCodeEmpty, ErrInvalidServiceConfig)
	}
	return identifier, nil
}

// withTransaction runs fn in a store transaction bounded by the transaction timeout.
// A deadline hit inside the transaction surfaces as ErrLockTimeout.
func (service *Service) withTransaction(ctx context.Context, fn func(ctx context.Context, transactionStore Store) error) error {
	transactionCtx, cancel := context.WithTimeout(ctx, service.transactionTimeout)
	defer cancel()
	err := service.store.WithTx(transactionCtx, fn)
	if err == nil || errors.Is(err, ErrLockTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	}
	return err
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Error != nil {
		entry.Status = operationStatusError
	} else {
		entry.Status = operationStatusOK
	}
	service.logger.LogOperation(ctx, entry)
}
