package marketplace

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing marketplace operation.
type OperationLog struct {
	Operation      string
	ProfileID      ProfileID
	ServiceID      ServiceID
	ReservationID  ReservationID
	ConversationID ConversationID
	SessionID      PaymentSessionID
	Amount         Credits
	Topic          string
	Status         string
	Error          error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}
