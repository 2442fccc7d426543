package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	sqlSetLockTimeout = `set local lock_timeout = '%dms'`

	sqlSelectProfile = `
		select profile_id, username, credits, created_at, updated_at
		from profiles
		where profile_id = $1
	`

	sqlUpdateProfileCredits = `
		update profiles set credits = $2, updated_at = $3
		where profile_id = $1
	`

	sqlSelectService = `
		select service_id, owner_id, title, cost, is_available, status, created_at, updated_at
		from services
		where service_id = $1
	`

	sqlUpdateServiceAvailability = `
		update services set is_available = $3, updated_at = $4
		where service_id = $1 and is_available = $2
	`

	sqlInsertReservation = `
		insert into reservations(reservation_id, buyer_id, seller_id, service_id, price_tokens, status, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	sqlSelectReservationForUpdate = `
		select reservation_id, buyer_id, seller_id, service_id, price_tokens, status, created_at, updated_at
		from reservations
		where reservation_id = $1
		for update
	`

	sqlUpdateReservationStatus = `
		update reservations set status = $3, updated_at = $4
		where reservation_id = $1 and status = $2
	`

	sqlInsertConversation = `
		insert into conversations(conversation_id, buyer_id, seller_id, service_id, reservation_id, created_at, updated_at)
		values ($1, $2, $3, $4, nullif($5, ''), $6, $7)
	`

	sqlConversationColumns = `
		select conversation_id, buyer_id, seller_id, service_id, coalesce(reservation_id, ''), created_at, updated_at
		from conversations
	`

	sqlSelectConversation = sqlConversationColumns + `where conversation_id = $1`

	sqlListConversations = sqlConversationColumns + `
		where buyer_id = $1 or seller_id = $1
		order by updated_at desc, created_at desc
	`

	sqlTouchConversation = `
		update conversations set updated_at = greatest(updated_at, $2)
		where conversation_id = $1
	`

	sqlInsertMessage = `
		insert into messages(message_id, conversation_id, sender_id, content, created_at)
		values ($1, $2, $3, $4, $5)
	`

	sqlListMessages = `
		select message_id, conversation_id, sender_id, content, created_at
		from messages
		where conversation_id = $1
		order by sequence asc
	`

	sqlPaymentColumns = `
		select order_id, profile_id, session_id, amount_cents, coins, metadata::text, created_at
		from payment_confirmations
	`

	sqlSelectPaymentBySession = sqlPaymentColumns + `where session_id = $1`

	sqlListPayments = sqlPaymentColumns + `
		where profile_id = $1
		order by created_at desc, order_id desc
	`

	sqlInsertPayment = `
		insert into payment_confirmations(order_id, profile_id, session_id, amount_cents, coins, metadata, created_at)
		values ($1, $2, $3, $4, $5, coalesce(nullif($6, ''), '{}')::jsonb, $7)
	`

	forUpdateSuffix = ` for update`
)

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

type queries struct {
	db queryer
}

func (q queries) GetProfile(ctx context.Context, profileID marketplace.ProfileID) (marketplace.Profile, error) {
	return q.loadProfile(ctx, sqlSelectProfile, errorCodeGet, profileID)
}

func (q queries) LockProfile(ctx context.Context, profileID marketplace.ProfileID) (marketplace.Profile, error) {
	return q.loadProfile(ctx, sqlSelectProfile+forUpdateSuffix, errorCodeLock, profileID)
}

func (q queries) loadProfile(ctx context.Context, sql string, code string, profileID marketplace.ProfileID) (marketplace.Profile, error) {
	var row profileRow
	err := q.db.QueryRow(ctx, sql, profileID.String()).Scan(&row.profileID, &row.username, &row.credits, &row.createdAt, &row.updatedAt)
	if err != nil {
		return marketplace.Profile{}, wrapStoreError(errorSubjectProfile, code, classifyReadError(err, marketplace.ErrUnknownProfile))
	}
	profile, err := row.toDomain()
	if err != nil {
		return marketplace.Profile{}, wrapStoreError(errorSubjectProfile, errorCodeInvalid, err)
	}
	return profile, nil
}

func (q queries) UpdateProfileCredits(ctx context.Context, profileID marketplace.ProfileID, credits marketplace.Credits, at time.Time) error {
	tag, err := q.db.Exec(ctx, sqlUpdateProfileCredits, profileID.String(), credits.Int64(), at.UTC())
	if err != nil {
		return wrapStoreError(errorSubjectProfile, errorCodeUpdate, classifyError(err))
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectProfile, errorCodeUpdate, marketplace.ErrUnknownProfile)
	}
	return nil
}

func (q queries) GetService(ctx context.Context, serviceID marketplace.ServiceID) (marketplace.ServiceListing, error) {
	return q.loadService(ctx, sqlSelectService, errorCodeGet, serviceID)
}

func (q queries) LockService(ctx context.Context, serviceID marketplace.ServiceID) (marketplace.ServiceListing, error) {
	return q.loadService(ctx, sqlSelectService+forUpdateSuffix, errorCodeLock, serviceID)
}

func (q queries) loadService(ctx context.Context, sql string, code string, serviceID marketplace.ServiceID) (marketplace.ServiceListing, error) {
	var row serviceRow
	err := q.db.QueryRow(ctx, sql, serviceID.String()).Scan(&row.serviceID, &row.ownerID, &row.title, &row.cost, &row.isAvailable, &row.status, &row.createdAt, &row.updatedAt)
	if err != nil {
		return marketplace.ServiceListing{}, wrapStoreError(errorSubjectService, code, classifyReadError(err, marketplace.ErrUnknownService))
	}
	listing, err := row.toDomain()
	if err != nil {
		return marketplace.ServiceListing{}, wrapStoreError(errorSubjectService, errorCodeInvalid, err)
	}
	return listing, nil
}

func (q queries) UpdateServiceAvailability(ctx context.Context, serviceID marketplace.ServiceID, from, to bool, at time.Time) error {
	tag, err := q.db.Exec(ctx, sqlUpdateServiceAvailability, serviceID.String(), from, to, at.UTC())
	if err != nil {
		return wrapStoreError(errorSubjectService, errorCodeUpdate, classifyError(err))
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectService, errorCodeUpdate, marketplace.ErrAvailabilityConflict)
	}
	return nil
}

func (q queries) CreateReservation(ctx context.Context, reservation marketplace.Reservation) error {
	_, err := q.db.Exec(ctx, sqlInsertReservation,
		reservation.ID.String(),
		reservation.BuyerID.String(),
		reservation.SellerID.String(),
		reservation.ServiceID.String(),
		reservation.Price.Int64(),
		string(reservation.Status),
		reservation.CreatedAt.UTC(),
		reservation.UpdatedAt.UTC(),
	)
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeCreate, classifyError(err))
	}
	return nil
}

func (q queries) LockReservation(ctx context.Context, reservationID marketplace.ReservationID) (marketplace.Reservation, error) {
	var row reservationRow
	err := q.db.QueryRow(ctx, sqlSelectReservationForUpdate, reservationID.String()).
		Scan(&row.reservationID, &row.buyerID, &row.sellerID, &row.serviceID, &row.priceTokens, &row.status, &row.createdAt, &row.updatedAt)
	if err != nil {
		return marketplace.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeLock, classifyReadError(err, marketplace.ErrUnknownReservation))
	}
	reservation, err := row.toDomain()
	if err != nil {
		return marketplace.Reservation{}, wrapStoreError(errorSubjectReservation, errorCodeInvalid, err)
	}
	return reservation, nil
}

func (q queries) UpdateReservationStatus(ctx context.Context, reservationID marketplace.ReservationID, from, to marketplace.ReservationStatus, at time.Time) error {
	tag, err := q.db.Exec(ctx, sqlUpdateReservationStatus, reservationID.String(), string(from), string(to), at.UTC())
	if err != nil {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, classifyError(err))
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectReservation, errorCodeUpdateStatus, marketplace.ErrInvalidReservationState)
	}
	return nil
}

func (q queries) CreateConversation(ctx context.Context, conversation marketplace.Conversation) error {
	_, err := q.db.Exec(ctx, sqlInsertConversation,
		conversation.ID.String(),
		conversation.BuyerID.String(),
		conversation.SellerID.String(),
		conversation.ServiceID.String(),
		conversation.ReservationID.String(),
		conversation.CreatedAt.UTC(),
		conversation.UpdatedAt.UTC(),
	)
	if isUniqueViolation(err, constraintConversationReservation) {
		return wrapStoreError(errorSubjectConversation, errorCodeDuplicate, marketplace.ErrConversationExists)
	}
	if err != nil {
		return wrapStoreError(errorSubjectConversation, errorCodeCreate, classifyError(err))
	}
	return nil
}

func (q queries) GetConversation(ctx context.Context, conversationID marketplace.ConversationID) (marketplace.Conversation, error) {
	var row conversationRow
	err := q.db.QueryRow(ctx, sqlSelectConversation, conversationID.String()).Scan(row.destinations()...)
	if err != nil {
		return marketplace.Conversation{}, wrapStoreError(errorSubjectConversation, errorCodeGet, classifyReadError(err, marketplace.ErrUnknownConversation))
	}
	conversation, err := row.toDomain()
	if err != nil {
		return marketplace.Conversation{}, wrapStoreError(errorSubjectConversation, errorCodeInvalid, err)
	}
	return conversation, nil
}

func (q queries) ListConversations(ctx context.Context, profileID marketplace.ProfileID) ([]marketplace.Conversation, error) {
	rows, err := q.db.Query(ctx, sqlListConversations, profileID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectConversation, errorCodeList, err)
	}
	defer rows.Close()

	var conversations []marketplace.Conversation
	for rows.Next() {
		var row conversationRow
		if err := rows.Scan(row.destinations()...); err != nil {
			return nil, wrapStoreError(errorSubjectConversation, errorCodeList, err)
		}
		conversation, err := row.toDomain()
		if err != nil {
			return nil, wrapStoreError(errorSubjectConversation, errorCodeInvalid, err)
		}
		conversations = append(conversations, conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectConversation, errorCodeList, err)
	}
	return conversations, nil
}

func (q queries) TouchConversation(ctx context.Context, conversationID marketplace.ConversationID, at time.Time) error {
	tag, err := q.db.Exec(ctx, sqlTouchConversation, conversationID.String(), at.UTC())
	if err != nil {
		return wrapStoreError(errorSubjectConversation, errorCodeUpdate, classifyError(err))
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectConversation, errorCodeUpdate, marketplace.ErrUnknownConversation)
	}
	return nil
}

func (q queries) InsertMessage(ctx context.Context, message marketplace.Message) error {
	_, err := q.db.Exec(ctx, sqlInsertMessage,
		message.ID.String(),
		message.ConversationID.String(),
		message.SenderID.String(),
		message.Content,
		message.CreatedAt.UTC(),
	)
	if err != nil {
		return wrapStoreError(errorSubjectMessage, errorCodeInsert, classifyError(err))
	}
	return nil
}

func (q queries) ListMessages(ctx context.Context, conversationID marketplace.ConversationID) ([]marketplace.Message, error) {
	rows, err := q.db.Query(ctx, sqlListMessages, conversationID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectMessage, errorCodeList, err)
	}
	defer rows.Close()

	var messages []marketplace.Message
	for rows.Next() {
		var row messageRow
		if err := rows.Scan(&row.messageID, &row.conversationID, &row.senderID, &row.content, &row.createdAt); err != nil {
			return nil, wrapStoreError(errorSubjectMessage, errorCodeList, err)
		}
		message, err := row.toDomain()
		if err != nil {
			return nil, wrapStoreError(errorSubjectMessage, errorCodeInvalid, err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectMessage, errorCodeList, err)
	}
	return messages, nil
}

func (q queries) FindPaymentConfirmation(ctx context.Context, sessionID marketplace.PaymentSessionID) (marketplace.PaymentConfirmation, bool, error) {
	var row paymentRow
	err := q.db.QueryRow(ctx, sqlSelectPaymentBySession, sessionID.String()).Scan(row.destinations()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return marketplace.PaymentConfirmation{}, false, nil
	}
	if err != nil {
		return marketplace.PaymentConfirmation{}, false, wrapStoreError(errorSubjectPayment, errorCodeGet, classifyError(err))
	}
	confirmation, err := row.toDomain()
	if err != nil {
		return marketplace.PaymentConfirmation{}, false, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
	}
	return confirmation, true, nil
}

func (q queries) InsertPaymentConfirmation(ctx context.Context, confirmation marketplace.PaymentConfirmation) error {
	_, err := q.db.Exec(ctx, sqlInsertPayment,
		confirmation.ID.String(),
		confirmation.ProfileID.String(),
		confirmation.SessionID.String(),
		confirmation.AmountCents.Int64(),
		confirmation.Coins.Int64(),
		confirmation.Metadata.String(),
		confirmation.CreatedAt.UTC(),
	)
	if isUniqueViolation(err, constraintPaymentSession) {
		return wrapStoreError(errorSubjectPayment, errorCodeDuplicate, marketplace.ErrPaymentAlreadyConfirmed)
	}
	if err != nil {
		return wrapStoreError(errorSubjectPayment, errorCodeInsert, classifyError(err))
	}
	return nil
}

func (q queries) ListPaymentConfirmations(ctx context.Context, profileID marketplace.ProfileID) ([]marketplace.PaymentConfirmation, error) {
	rows, err := q.db.Query(ctx, sqlListPayments, profileID.String())
	if err != nil {
		return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}
	defer rows.Close()

	var confirmations []marketplace.PaymentConfirmation
	for rows.Next() {
		var row paymentRow
		if err := rows.Scan(row.destinations()...); err != nil {
			return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
		}
		confirmation, err := row.toDomain()
		if err != nil {
			return nil, wrapStoreError(errorSubjectPayment, errorCodeInvalid, err)
		}
		confirmations = append(confirmations, confirmation)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError(errorSubjectPayment, errorCodeList, err)
	}
	return confirmations, nil
}
