package gormstore

import (
	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
)

func mapProfile(row Profile) (marketplace.Profile, error) {
	profileID, err := marketplace.NewProfileID(row.ProfileID)
	if err != nil {
		return marketplace.Profile{}, err
	}
	credits, err := marketplace.NewCredits(row.Credits)
	if err != nil {
		return marketplace.Profile{}, err
	}
	return marketplace.Profile{
		ID:        profileID,
		Username:  row.Username,
		Credits:   credits,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}

func mapService(row Service) (marketplace.ServiceListing, error) {
	serviceID, err := marketplace.NewServiceID(row.ServiceID)
	if err != nil {
		return marketplace.ServiceListing{}, err
	}
	ownerID, err := marketplace.NewProfileID(row.OwnerID)
	if err != nil {
		return marketplace.ServiceListing{}, err
	}
	cost, err := marketplace.NewCredits(row.Cost)
	if err != nil {
		return marketplace.ServiceListing{}, err
	}
	status, err := marketplace.ParseServiceStatus(row.Status)
	if err != nil {
		return marketplace.ServiceListing{}, err
	}
	return marketplace.ServiceListing{
		ID:        serviceID,
		OwnerID:   ownerID,
		Title:     row.Title,
		Cost:      cost,
		Available: row.IsAvailable,
		Status:    status,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}, nil
}

func mapReservation(row Reservation) (marketplace.Reservation, error) {
	reservationID, err := marketplace.NewReservationID(row.ReservationID)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	buyerID, err := marketplace.NewProfileID(row.BuyerID)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	sellerID, err := marketplace.NewProfileID(row.SellerID)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	serviceID, err := marketplace.NewServiceID(row.ServiceID)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	price, err := marketplace.NewCredits(row.PriceTokens)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	status, err := marketplace.ParseReservationStatus(row.Status)
	if err != nil {
		return marketplace.Reservation{}, err
	}
	reservation, err := marketplace.NewReservation(reservationID, buyerID, sellerID, serviceID, price, status, row.CreatedAt.UTC())
	if err != nil {
		return marketplace.Reservation{}, err
	}
	reservation.UpdatedAt = row.UpdatedAt.UTC()
	return reservation, nil
}

func mapConversation(row Conversation) (marketplace.Conversation, error) {
	conversationID, err := marketplace.NewConversationID(row.ConversationID)
	if err != nil {
		return marketplace.Conversation{}, err
	}
	buyerID, err := marketplace.NewProfileID(row.BuyerID)
	if err != nil {
		return marketplace.Conversation{}, err
	}
	sellerID, err := marketplace.NewProfileID(row.SellerID)
	if err != nil {
		return marketplace.Conversation{}, err
	}
	serviceID, err := marketplace.NewServiceID(row.ServiceID)
	if err != nil {
		return marketplace.Conversation{}, err
	}
	var reservationID marketplace.ReservationID
	if row.ReservationID != nil {
		reservationID, err = marketplace.NewReservationID(*row.ReservationID)
		if err != nil {
			return marketplace.Conversation{}, err
		}
	}
	conversation, err := marketplace.NewConversation(conversationID, buyerID, sellerID, serviceID, reservationID, row.CreatedAt.UTC())
	if err != nil {
		return marketplace.Conversation{}, err
	}
	conversation.UpdatedAt = row.UpdatedAt.UTC()
	return conversation, nil
}

func mapMessage(row Message) (marketplace.Message, error) {
	messageID, err := marketplace.NewMessageID(row.MessageID)
	if err != nil {
		return marketplace.Message{}, err
	}
	conversationID, err := marketplace.NewConversationID(row.ConversationID)
	if err != nil {
		return marketplace.Message{}, err
	}
	senderID, err := marketplace.NewProfileID(row.SenderID)
	if err != nil {
		return marketplace.Message{}, err
	}
	return marketplace.NewMessage(messageID, conversationID, senderID, row.Content, row.CreatedAt.UTC())
}

func mapPaymentConfirmation(row PaymentConfirmation) (marketplace.PaymentConfirmation, error) {
	orderID, err := marketplace.NewOrderID(row.OrderID)
	if err != nil {
		return marketplace.PaymentConfirmation{}, err
	}
	profileID, err := marketplace.NewProfileID(row.ProfileID)
	if err != nil {
		return marketplace.PaymentConfirmation{}, err
	}
	sessionID, err := marketplace.NewPaymentSessionID(row.SessionID)
	if err != nil {
		return marketplace.PaymentConfirmation{}, err
	}
	amountCents, err := marketplace.NewAmountCents(row.AmountCents)
	if err != nil {
		return marketplace.PaymentConfirmation{}, err
	}
	coins, err := marketplace.NewPositiveCredits(row.Coins)
	if err != nil {
		return marketplace.PaymentConfirmation{}, err
	}
	metadata, err := marketplace.NewMetadataJSON(string(row.Metadata))
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
		CreatedAt:   row.CreatedAt.UTC(),
	}, nil
}
