package marketplace

import (
	"context"
	"time"
)

// Store is the persistence contract used by Service.
//
// Lock* methods acquire row locks that are held until the enclosing
// WithTx returns. Implementations must report a lock that cannot be acquired
// before the context deadline as ErrLockTimeout. Callers acquire locks in the
// order reservation, service, profile.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	GetProfile(ctx context.Context, profileID ProfileID) (Profile, error)
	LockProfile(ctx context.Context, profileID ProfileID) (Profile, error)
	UpdateProfileCredits(ctx context.Context, profileID ProfileID, credits Credits, at time.Time) error

	GetService(ctx context.Context, serviceID ServiceID) (ServiceListing, error)
	LockService(ctx context.Context, serviceID ServiceID) (ServiceListing, error)
	// UpdateServiceAvailability flips availability only when it currently equals from;
	// otherwise it returns ErrAvailabilityConflict.
	UpdateServiceAvailability(ctx context.Context, serviceID ServiceID, from, to bool, at time.Time) error

	CreateReservation(ctx context.Context, reservation Reservation) error
	LockReservation(ctx context.Context, reservationID ReservationID) (Reservation, error)
	// UpdateReservationStatus moves a reservation only when it currently has status from;
	// otherwise it returns ErrInvalidReservationState.
	UpdateReservationStatus(ctx context.Context, reservationID ReservationID, from, to ReservationStatus, at time.Time) error

	CreateConversation(ctx context.Context, conversation Conversation) error
	GetConversation(ctx context.Context, conversationID ConversationID) (Conversation, error)
	ListConversations(ctx context.Context, profileID ProfileID) ([]Conversation, error)
	// TouchConversation moves UpdatedAt forward to at and never moves it backwards.
	TouchConversation(ctx context.Context, conversationID ConversationID, at time.Time) error
	InsertMessage(ctx context.Context, message Message) error
	ListMessages(ctx context.Context, conversationID ConversationID) ([]Message, error)

	FindPaymentConfirmation(ctx context.Context, sessionID PaymentSessionID) (PaymentConfirmation, bool, error)
	// InsertPaymentConfirmation returns ErrPaymentAlreadyConfirmed when the session id is taken.
	InsertPaymentConfirmation(ctx context.Context, confirmation PaymentConfirmation) error
	ListPaymentConfirmations(ctx context.Context, profileID ProfileID) ([]PaymentConfirmation, error)
}
