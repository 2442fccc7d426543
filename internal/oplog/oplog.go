// Package oplog adapts marketplace operation callbacks to zap.
package oplog

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const operationMessage = "marketplace operation"

var businessErrors = []error{
	marketplace.ErrUnauthenticated,
	marketplace.ErrUnknownProfile,
	marketplace.ErrUnknownService,
	marketplace.ErrUnknownReservation,
	marketplace.ErrUnknownConversation,
	marketplace.ErrSelfPurchase,
	marketplace.ErrServiceNotPublished,
	marketplace.ErrServiceUnavailable,
	marketplace.ErrAvailabilityConflict,
	marketplace.ErrInsufficientCredits,
	marketplace.ErrLockTimeout,
	marketplace.ErrAccessDenied,
	marketplace.ErrInvalidReservationState,
	marketplace.ErrEmptyContent,
	marketplace.ErrPaymentAlreadyConfirmed,
}

// Logger writes one structured entry per marketplace operation.
type Logger struct {
	logger *zap.Logger
}

// New returns a Logger backed by logger.
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

// LogOperation implements marketplace.OperationLogger.
func (operationLogger *Logger) LogOperation(_ context.Context, entry marketplace.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
	}
	fields = appendIdentifier(fields, "profile_id", entry.ProfileID.String())
	fields = appendIdentifier(fields, "service_id", entry.ServiceID.String())
	fields = appendIdentifier(fields, "reservation_id", entry.ReservationID.String())
	fields = appendIdentifier(fields, "conversation_id", entry.ConversationID.String())
	fields = appendIdentifier(fields, "session_id", entry.SessionID.String())
	fields = appendIdentifier(fields, "topic", entry.Topic)
	if amount := entry.Amount.Int64(); amount != 0 {
		fields = append(fields, zap.Int64("amount", amount))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
	}
	operationLogger.logger.Log(levelFor(entry.Error), operationMessage, fields...)
}

func appendIdentifier(fields []zap.Field, key string, value string) []zap.Field {
	if value == "" {
		return fields
	}
	return append(fields, zap.String(key, value))
}

func levelFor(err error) zapcore.Level {
	if err == nil {
		return zapcore.InfoLevel
	}
	if IsBusinessError(err) {
		return zapcore.WarnLevel
	}
	return zapcore.ErrorLevel
}

// IsBusinessError reports whether err is an expected rejection rather than an infrastructure failure.
func IsBusinessError(err error) bool {
	for _, businessErr := range businessErrors {
		if errors.Is(err, businessErr) {
			return true
		}
	}
	return false
}
