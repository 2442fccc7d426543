package pgstore

import (
	"errors"
	"fmt"

	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	constraintPaymentSession          = "uniq_payment_confirmations_session_id"
	constraintConversationReservation = "uniq_conversations_reservation_id"
	pgUniqueViolationCode             = "23505"
	pgLockNotAvailableCode            = "55P03"
	errorOperationStore               = "store"
	errorSubjectSchema                = "schema"
	errorSubjectTransaction           = "transaction"
	errorSubjectProfile               = "profile"
	errorSubjectService               = "service"
	errorSubjectReservation           = "reservation"
	errorSubjectConversation          = "conversation"
	errorSubjectMessage               = "message"
	errorSubjectPayment               = "payment_confirmation"
	errorCodeBegin                    = "begin"
	errorCodeCommit                   = "commit"
	errorCodeCreate                   = "create"
	errorCodeDuplicate                = "duplicate"
	errorCodeGet                      = "get"
	errorCodeInsert                   = "insert"
	errorCodeInvalid                  = "invalid"
	errorCodeList                     = "list"
	errorCodeLock                     = "lock"
	errorCodeLockTimeout              = "lock_timeout"
	errorCodeUpdate                   = "update"
	errorCodeUpdateStatus             = "update_status"
)

func wrapStoreError(subject string, code string, err error) error {
	return marketplace.WrapError(errorOperationStore, subject, code, err)
}

func classifyReadError(err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return classifyError(err)
}

func classifyError(err error) error {
	if isLockTimeout(err) {
		return fmt.Errorf("%w: %w", marketplace.ErrLockTimeout, err)
	}
	return err
}

func isLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailableCode
}

func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	return false
}
