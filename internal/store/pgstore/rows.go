package pgstore

import (
	"time"

	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
)

type profileRow struct {
	profileID string
	username  string
	credits   int64
	createdAt time.Time
	updatedAt time.Time
}

func (row profileRow) toDomain() (marketplace.Profile, error) {
	profileID, err := marketplace.NewProfileID(row.profileID)
	if err != nil {
		return marketplace.Profile{}, err
	}
	credits, err := marketplace.NewCredits(row.credits)
	if err != nil {
		return marketplace.Profile{}, err
	}
	return marketplace.Profile{
		ID:        profileID,
		Username:  row.username,
		Credits:   credits,
		CreatedAt: row.createdAt.UTC(),
		UpdatedAt: row.updatedAt.UTC(),
	}, nil
}

type serviceRow struct {
	serviceID   string
	ownerID     string
	title       string
	cost        int64
	isAvailable bool
	status      string
	createdAt   time.Time
	updatedAt   time.Time
}

func (row serviceRow) toDomain() (marketplace.ServiceListing, error) {
	serviceID, err := marketplace.NewServiceID(row.serviceID)
	if err != nil {
		return marketplace.ServiceListing{}, err
	}
	ownerID, err := marketplace.NewProfileID(row.ownerID)
	if err != nil {
		return marketplace.ServiceListing{}, err
	}
	cost, err := marketplace.NewCredits(row.cost)
	if err != nil {
		return marketplace.ServiceListing{}, err
	}
	status, err := marketplace.ParseServiceStatus(row.status)
	if err != nil {
		return marketplace.ServiceListing{}, err
	}
	return marketplace.ServiceListing{
		ID:        serviceID,
		OwnerID:   ownerID,
		Title:     row.title,
		Cost:      cost,
		Available: row.isAvailable,
		Status:    status,
		CreatedAt: row.createdAt.UTC(),
		UpdatedAt: row.updatedAt.UTC(),
	}, nil
}

type reservationRow struct {
	reservationID string
	buyerID       string
	sellerID      string
	serviceID     string
	priceTokens   int64
	status        string
	createdAt     time.Time
	updatedAt     time.Time
}

func (row reservationRow) toDomain() (marketplace.Reservation, error) {
	reservationID, err := marketplace.NewReservationID(row.reservationID)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	buyerID, err := marketplace.NewProfileID(row.buyerID)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	sellerID, err := marketplace.NewProfileID(row.sellerID)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	serviceID, err := marketplace.NewServiceID(row.serviceID)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	price, err := marketplace.NewCredits(row.priceTokens)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	status, err := marketplace.ParseReservationStatus(row.status)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	reservation, err := marketplace.NewReservation(reservationID, buyerID, sellerID, serviceID, price, status, row.createdAt.UTC())
	if err != nil {
		return marketplace.Reservation{}, err
	}
	reservation.UpdatedAt = row.updatedAt.UTC()
	return reservation, nil
}

type conversationRow struct {
	conversationID string
	buyerID        string
	sellerID       string
	serviceID      string
	reservationID  string
	createdAt      time.Time
	updatedAt      time.Time
}

func (row *conversationRow) destinations() []any {
	return []any{&row.conversationID, &row.buyerID, &row.sellerID, &row.serviceID, &row.reservationID, &row.createdAt, &row.updatedAt}
}

func (row conversationRow) toDomain() (marketplace.Conversation, error) {
	conversationID, err := marketplace.NewConversationID(row.conversationID)
	if err != nil {
		return marketplace.Conversation{}, err
	}
	buyerID, err := marketplace.NewProfileID(row.buyerID)
	if err != nil {
		return marketplace.Conversation{}, err
	}
	sellerID, err := marketplace.NewProfileID(row.sellerID)
	if err != nil {
		return marketplace.Conversation{}, err
	}
	serviceID, err := marketplace.NewServiceID(row.serviceID)
	if err != nil {
		return marketplace.Conversation{}, err
	}
	var reservationID marketplace.ReservationID
	if row.reservationID != "" {
		reservationID, err = marketplace.NewReservationID(row.reservationID)
		if err != nil {
			return marketplace.Conversation{}, err
		}
	}
	conversation, err := marketplace.NewConversation(conversationID, buyerID, sellerID, serviceID, reservationID, row.createdAt.UTC())
	if err != nil {
		return marketplace.Conversation{}, err
	}
	conversation.UpdatedAt = row.updatedAt.UTC()
	return conversation, nil
}

type messageRow struct {
	messageID      string
	conversationID string
	senderID       string
	content        string
	createdAt      time.Time
}

func (row messageRow) toDomain() (marketplace.Message, error) {
	messageID, err := marketplace.NewMessageID(row.messageID)
	if err != nil {
		return marketplace.Message{}, err
	}
	conversationID, err := marketplace.NewConversationID(row.conversationID)
	if err != nil {
		return marketplace.Message{}, err
	}
	senderID, err := marketplace.NewProfileID(row.senderID)
	if err != nil {
		return marketplace.Message{}, err
	}
	return marketplace.NewMessage(messageID, conversationID, senderID, row.content, row.createdAt.UTC())
}

type paymentRow struct {
	orderID     string
	profileID   string
	sessionID   string
	amountCents int64
	coins       int64
	metadata    string
	createdAt   time.Time
}

func (row *paymentRow) destinations() []any {
	return []any{&row.orderID, &row.profileID, &row.sessionID, &row.amountCents, &row.coins, &row.metadata, &row.createdAt}
}

func (row paymentRow) toDomain() (marketplace.PaymentConfirmation, error) {
	orderID, err := marketplace.NewOrderID(row.orderID)
	if err != nil {
		return marketplace.PaymentConfirmation{}, err
	}
	profileID, err := marketplace.NewProfileID(row.profileID)
	if err != nil {
		return marketplace.PaymentConfirmation{}, err
	}
	sessionID, err := marketplace.NewPaymentSessionID(row.sessionID)
	if err != nil {
		return marketplace.PaymentConfirmation{}, err
	}
	amountCents, err := marketplace.NewAmountCents(row.amountCents)
	if err != nil {
		return marketplace.PaymentConfirmation{}, err
	}
	coins, err := marketplace.NewPositiveCredits(row.coins)
	if err != nil {
		return marketplace.PaymentConfirmation{}, err
	}
	metadata, err := marketplace.NewMetadataJSON(row.metadata)
	if err != nil {
		return marketplace.PaymentConfirmation{}, err
	}
	return marketplace.PaymentConfirmation{
		ID:          orderID,
		ProfileID:   profileID,
		SessionID:   sessionID,
		AmountCents: amountCents,
		Coins:       coins,
		Metadata:    metadata,
		CreatedAt:   row.createdAt.UTC(),
	}, nil
}
