package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	constraintPaymentSession          = "uniq_payment_confirmations_session_id"
	constraintConversationReservation = "uniq_conversations_reservation_id"
	defaultMetadataJSON               = "{}"
	postgresDialect                   = "postgres"
	lockTimeoutStatement              = "SET LOCAL lock_timeout = '%dms'"
	pgUniqueViolationCode             = "23505"
	pgLockNotAvailableCode            = "55P03"
	sqliteConstraintCode              = 19
	sqliteBusyCode                    = 5
	sqliteLockedCode                  = 6
	errorOperationStore               = "store"
	errorSubjectTransaction           = "transaction"
	errorSubjectProfile               = "profile"
	errorSubjectService               = "service"
	errorSubjectReservation           = "reservation"
	errorSubjectConversation          = "conversation"
	errorSubjectMessage               = "message"
	errorSubjectPayment               = "payment_confirmation"
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
	lockingStrengthUpdate             = "UPDATE"
)

// Store implements marketplace.Store using GORM.
type Store struct {
	db            *gorm.DB
	lockTimeout   time.Duration
	inTransaction bool
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds row lock waits on PostgreSQL. Zero leaves the server default.
func WithLockTimeout(timeout time.Duration) Option {
	return func(store *Store) {
		store.lockTimeout = timeout
	}
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB, options ...Option) *Store {
	store := &Store{db: db}
	for _, option := range options {
		if option != nil {
			option(store)
		}
	}
	return store
}

// WithTx executes fn within a transaction. Nested calls reuse the open transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore marketplace.Store) error) error {
	if store.inTransaction {
		return fn(ctx, store)
	}
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if store.lockTimeout > 0 && transaction.Dialector.Name() == postgresDialect {
			statement := fmt.Sprintf(lockTimeoutStatement, store.lockTimeout.Milliseconds())
			if err := transaction.Exec(statement).Error; err != nil {
				return wrapStoreError(errorSubjectTransaction, errorCodeLockTimeout, err)
			}
		}
		return fn(ctx, &Store{db: transaction, lockTimeout: store.lockTimeout, inTransaction: true})
	})
}

// Ping reports whether the database answers.
func (store *Store) Ping(ctx context.Context) error {
	sqlDB, err := store.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (store *Store) GetProfile(ctx context.Context, profileID marketplace.ProfileID) (marketplace.Profile, error) {
	return store.loadProfile(ctx, profileID, false)
}

func (store *Store) LockProfile(ctx context.Context, profileID marketplace.ProfileID) (marketplace.Profile, error) {
	return store.loadProfile(ctx, profileID, true)
}

func (store *Store) loadProfile(ctx context.Context, profileID marketplace.ProfileID, lock bool) (marketplace.Profile, error) {
	var model Profile
	err := store.query(ctx, lock).Where("profile_id = ?", profileID.String()).Take(&model).Error
	if err != nil {
		return marketplace.Profile{}, wrapStoreError(errorSubjectProfile, readCode(lock), classifyReadError(err, marketplace.ErrUnknownProfile))
	}
	profile, err := mapProfile(model)
	if err != nil {
		return marketplace.Profile{}, wrapStoreError(errorSubjectProfile, errorCodeInvalid, err)
	}
	return profile, nil
}

func (store *Store) UpdateProfileCredits(ctx context.Context, profileID marketplace.ProfileID, credits marketplace.Credits, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Profile{}).
		Where("profile_id = ?", profileID.String()).
		Updates(map[string]interface{}{"credits": credits.Int64(), "updated_at": at.UTC()})
	if result.Error != nil {
		return wrapStoreError(errorSubjectProfile, errorCodeUpdate, classifyWriteError(result.Error))
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectProfile, errorCodeUpdate, marketplace.ErrUnknownProfile)
	}
	return nil
}

func (store *Store) GetService(ctx context.Context, serviceID marketplace.ServiceID) (marketplace.ServiceListing, error) {
	return store.loadService(ctx, serviceID, false)
}

func (store *Store) LockService(ctx context.Context, serviceID marketplace.ServiceID) (marketplace.ServiceListing, error) {
	return store.loadService(ctx, serviceID, true)
}

func (store *Store) loadService(ctx context.Context, serviceID marketplace.ServiceID, lock bool) (marketplace.ServiceListing, error) {
	var model Service
	err := store.query(ctx, lock).Where("service_id = ?", serviceID.String()).Take(&model).Error
	if err != nil {
		return marketplace.ServiceListing{}, wrapStoreError(errorSubjectService, readCode(lock), classifyReadError(err, marketplace.ErrUnknownService))
	}
	listing, err := mapService(model)
	if err != nil {
		return marketplace.ServiceListing{}, wrapStoreError(errorSubjectService, errorCodeInvalid, err)
	}
	return listing, nil
}

func (store *Store) UpdateServiceAvailability(ctx context.Context, serviceID marketplace.ServiceID, from, to bool, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Service{}).
		Where("service_id = ? AND is_available = ?", serviceID.String(), from).
		Updates(map[string]interface{}{"is_available": to, "updated_at": at.UTC()})
	if result.Error != nil {
		return wrapStoreError(errorSubjectService, errorCodeUpdate, classifyWriteError(result.Error))
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectService, errorCodeUpdate, marketplace.ErrAvailabilityConflict)
	}
	return nil
}

func (store *Store) CreateReservation(ctx context.Context, reservation marketplace.Reservation) error {
	model := Reservation{
		ReservationID: reservation.ID.String(),
		BuyerID:       reservation.BuyerID.String(),
		SellerID:      reservation.SellerID.String(),
		ServiceID:     reservation.ServiceID.String(),
		PriceTokens:   reservation.Price.Int64(),
		Status:        string(reservation.Status),
		CreatedAt:     reservation.CreatedAt.UTC(),
		UpdatedAt:     reservation.UpdatedAt.UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeCreate, classifyWriteError(err))
	}
	return nil
}

func (store *Store) LockReservation(ctx context.Context, reservationID marketplace.ReservationID) (marketplace.Reservation, error) {
	var model Reservation
	err := store.query(ctx, true).Where("reservation_id = ?", reservationID.String()).Take(&model).Error
	if err != nil {
		return marketplace.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeLock, classifyReadError(err, marketplace.ErrUnknownReservation))
	}
	reservation, err := mapReservation(model)
	if err != nil {
		return marketplace.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return reservation, nil
}

func (store *Store) UpdateReservationStatus(ctx context.Context, reservationID marketplace.ReservationID, from, to marketplace.ReservationStatus, at time.Time) error {
	result := store.db.WithContext(ctx).
		Model(&Reservation{}).
		Where("reservation_id = ? AND status = ?", reservationID.String(), string(from)).
		Updates(map[string]interface{}{"status": string(to), "updated_at": at.UTC()})
	if result.Error != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, classifyWriteError(result.Error))
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, marketplace.ErrInvalidReservationState)
	}
	return nil
}

func (store *Store) CreateConversation(ctx context.Context, conversation marketplace.Conversation) error {
	var reservationID *string
	if !conversation.ReservationID.IsZero() {
		value := conversation.ReservationID.String()
		reservationID = &value
	}
	model := Conversation{
		ConversationID: conversation.ID.String(),
		BuyerID:        conversation.BuyerID.String(),
		SellerID:       conversation.SellerID.String(),
		ServiceID:      conversation.ServiceID.String(),
		ReservationID:  reservationID,
		CreatedAt:      conversation.CreatedAt.UTC(),
		UpdatedAt:      conversation.UpdatedAt.UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintConversationReservation) {
		return wrapStoreError(errorSubjectConversation, errorCodeDuplicate, marketplace.ErrConversationExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectConversation, errorCodeCreate, classifyWriteError(err))
	}
	return nil
}

func (store *Store) GetConversation(ctx context.Context, conversationID marketplace.ConversationID) (marketplace.Conversation, error) {
	var model Conversation
	err := store.query(ctx, false).Where("conversation_id = ?", conversationID.String()).Take(&model).Error
	if err != nil {
		return marketplace.Conversation{}, wrapStoreError(errorSubjectConversation, errorCodeGet, classifyReadError(err, marketplace.ErrUnknownConversation))
	}
	conversation, err := mapConversation(model)
	if err != nil {
		return marketplace.Conversation{}, wrapStoreError(errorSubjectConversation, errorCodeInvalid, err)
	}
	return conversation, nil
}

func (store *Store) ListConversations(ctx context.Context, profileID marketplace.ProfileID) ([]marketplace.Conversation, error) {
	var rows []Conversation
	err := store.db.WithContext(ctx).
		Where("buyer_id = ? OR seller_id = ?", profileID.String(), profileID.String()).
		Order("updated_at DESC").
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectConversation, errorCodeList, err)
	}
	conversations := make([]marketplace.Conversation, 0, len(rows))
	for _, row := range rows {
		conversation, err := mapConversation(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectConversation, errorCodeInvalid, err)
		}
		conversations = append(conversations, conversation)
	}
	return conversations, nil
}

func (store *Store) TouchConversation(ctx context.Context, conversationID marketplace.ConversationID, at time.Time) error {
	var model Conversation
	err := store.query(ctx, true).
		Select("conversation_id", "updated_at").
		Where("conversation_id = ?", conversationID.String()).
		Take(&model).Error
	if err != nil {
		return wrapStoreError(errorSubjectConversation, errorCodeLock, classifyReadError(err, marketplace.ErrUnknownConversation))
	}
	if !at.After(model.UpdatedAt) {
		return nil
	}
	result := store.db.WithContext(ctx).
		Model(&Conversation{}).
		Where("conversation_id = ?", conversationID.String()).
		Update("updated_at", at.UTC())
	if result.Error != nil {
		return wrapStoreError(errorSubjectConversation, errorCodeUpdate, classifyWriteError(result.Error))
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectConversation, errorCodeUpdate, marketplace.ErrUnknownConversation)
	}
	return nil
}

func (store *Store) InsertMessage(ctx context.Context, message marketplace.Message) error {
	model := Message{
		MessageID:      message.ID.String(),
		ConversationID: message.ConversationID.String(),
		SenderID:       message.SenderID.String(),
		Content:        message.Content,
		CreatedAt:      message.CreatedAt.UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectMessage, errorCodeInsert, classifyWriteError(err))
	}
	return nil
}

func (store *Store) ListMessages(ctx context.Context, conversationID marketplace.ConversationID) ([]marketplace.Message, error) {
	var rows []Message
	err := store.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID.String()).
		Order("sequence ASC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectMessage, errorCodeList, err)
	}
	messages := make([]marketplace.Message, 0, len(rows))
	for _, row := range rows {
		message, err := mapMessage(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectMessage, errorCodeInvalid, err)
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (store *Store) FindPaymentConfirmation(ctx context.Context, sessionID marketplace.PaymentSessionID) (marketplace.PaymentConfirmation, bool, error) {
	var model PaymentConfirmation
	err := store.db.WithContext(ctx).Where("session_id = ?", sessionID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return marketplace.PaymentConfirmation{}, false, nil
	}
	if err != nil {
		return marketplace.PaymentConfirmation{}, false, wrapStoreError(errorSubjectPayment, errorCodeGet, err)
	}
	confirmation, err := mapPaymentConfirmation(model)
	if err != nil {
		return marketplace.PaymentConfirmation{}, false, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
	}
	return confirmation, true, nil
}

func (store *Store) InsertPaymentConfirmation(ctx context.Context, confirmation marketplace.PaymentConfirmation) error {
	model := PaymentConfirmation{
		OrderID:     confirmation.ID.String(),
		ProfileID:   confirmation.ProfileID.String(),
		SessionID:   confirmation.SessionID.String(),
		AmountCents: confirmation.AmountCents.Int64(),
		Coins:       confirmation.Coins.Int64(),
		Metadata:    datatypesJSON(confirmation.Metadata.String()),
		CreatedAt:   confirmation.CreatedAt.UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintPaymentSession) {
		return wrapStoreError(errorSubjectPayment, errorCodeDuplicate, marketplace.ErrPaymentAlreadyConfirmed)
	}
	if err != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeInsert, classifyWriteError(err))
	}
	return nil
}

func (store *Store) ListPaymentConfirmations(ctx context.Context, profileID marketplace.ProfileID) ([]marketplace.PaymentConfirmation, error) {
	var rows []PaymentConfirmation
	err := store.db.WithContext(ctx).
		Where("profile_id = ?", profileID.String()).
		Order("created_at DESC").
		Order("order_id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}
	confirmations := make([]marketplace.PaymentConfirmation, 0, len(rows))
	for _, row := range rows {
		confirmation, err := mapPaymentConfirmation(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
		}
		confirmations = append(confirmations, confirmation)
	}
	return confirmations, nil
}

func (store *Store) query(ctx context.Context, lock bool) *gorm.DB {
	query := store.db.WithContext(ctx)
	if lock {
		query = query.Clauses(clause.Locking{Strength: lockingStrengthUpdate})
	}
	return query
}

func readCode(lock bool) string {
	if lock {
		return errorCodeLock
	}
	return errorCodeGet
}

func wrapStoreError(subject string, code string, err error) error {
	return marketplace.WrapError(errorOperationStore, subject, code, err)
}

func classifyReadError(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return classifyWriteError(err)
}

func classifyWriteError(err error) error {
	if isLockTimeout(err) {
		return fmt.Errorf("%w: %w", marketplace.ErrLockTimeout, err)
	}
	return err
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func isLockTimeout(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgLockNotAvailableCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		primary := sqliteErr.Code() & 0xFF
		return primary == sqliteBusyCode || primary == sqliteLockedCode
	}
	return false
}
