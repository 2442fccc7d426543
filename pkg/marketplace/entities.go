package marketplace

import (
	"fmt"
	"strings"
	"time"
)

// Profile is a marketplace participant holding a credit balance.
type Profile struct {
	ID        ProfileID
	Username  string
	Credits   Credits
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServiceListing is an offering published by its owner.
type ServiceListing struct {
	ID        ServiceID
	OwnerID   ProfileID
	Title     string
	Cost      Credits
	Available bool
	Status    ServiceStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Purchasable reports whether a buyer may currently reserve the listing.
func (listing ServiceListing) Purchasable() bool {
	return listing.Status == ServiceStatusPublished && listing.Available
}

// Reservation records a purchased service and the price debited for it.
type Reservation struct {
	ID        ReservationID
	BuyerID   ProfileID
	SellerID  ProfileID
	ServiceID ServiceID
	Price     Credits
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewReservation validates reservation fields.
func NewReservation(id ReservationID, buyerID ProfileID, sellerID ProfileID, serviceID ServiceID, price Credits, status ReservationStatus, at time.Time) (Reservation, error) {
	if id.IsZero() || buyerID.IsZero() || sellerID.IsZero() || serviceID.IsZero() {
		return Reservation{}, fmt.Errorf("%w: missing identifier", ErrInvalidReservation)
	}
	if buyerID == sellerID {
		return Reservation{}, fmt.Errorf("%w: buyer and seller are the same profile", ErrInvalidReservation)
	}
	if _, err := ParseReservationStatus(string(status)); err != nil {
		return Reservation{}, err
	}
	return Reservation{
		ID:        id,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		ServiceID: serviceID,
		Price:     price,
		Status:    status,
		CreatedAt: at,
		UpdatedAt: at,
	}, nil
}

// IsParticipant reports whether profileID is the buyer or the seller.
func (reservation Reservation) IsParticipant(profileID ProfileID) bool {
	return profileID == reservation.BuyerID || profileID == reservation.SellerID
}

// Conversation is the message thread between a buyer and a seller.
type Conversation struct {
	ID            ConversationID
	BuyerID       ProfileID
	SellerID      ProfileID
	ServiceID     ServiceID
	ReservationID ReservationID
	Messages      []Message
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewConversation validates conversation fields. reservationID may be zero.
func NewConversation(id ConversationID, buyerID ProfileID, sellerID ProfileID, serviceID ServiceID, reservationID ReservationID, at time.Time) (Conversation, error) {
	if id.IsZero() || buyerID.IsZero() || sellerID.IsZero() || serviceID.IsZero() {
		return Conversation{}, fmt.Errorf("%w: missing identifier", ErrInvalidConversation)
	}
	if buyerID == sellerID {
		return Conversation{}, fmt.Errorf("%w: buyer and seller are the same profile", ErrInvalidConversation)
	}
	return Conversation{
		ID:            id,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		ServiceID:     serviceID,
		ReservationID: reservationID,
		CreatedAt:     at,
		UpdatedAt:     at,
	}, nil
}

// IsParticipant reports whether profileID is the buyer or the seller.
func (conversation Conversation) IsParticipant(profileID ProfileID) bool {
	return profileID == conversation.BuyerID || profileID == conversation.SellerID
}

// Counterpart returns the other participant.
func (conversation Conversation) Counterpart(profileID ProfileID) ProfileID {
	if profileID == conversation.BuyerID {
		return conversation.SellerID
	}
	return conversation.BuyerID
}

// Message is a single entry in a conversation.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       ProfileID
	Content        string
	CreatedAt      time.Time
}

// NewMessage trims content and rejects empty messages.
func NewMessage(id MessageID, conversationID ConversationID, senderID ProfileID, content string, at time.Time) (Message, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Message{}, ErrEmptyContent
	}
	return Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        trimmed,
		CreatedAt:      at,
	}, nil
}

// PaymentConfirmation is the idempotency record of a credited checkout session.
type PaymentConfirmation struct {
	ID          OrderID
	ProfileID   ProfileID
	SessionID   PaymentSessionID
	AmountCents AmountCents
	Coins       PositiveCredits
	Metadata    MetadataJSON
	CreatedAt   time.Time
}
