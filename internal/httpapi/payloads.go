package httpapi

import (
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/marketplace/pkg/marketplace"
	"github.com/shopspring/decimal"
)

const centsExponent = -2

type purchaseRequest struct {
	Message string `json:"message"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type confirmCheckoutRequest struct {
	SessionID   string          `json:"session_id"`
	ProfileID   string          `json:"profile_id"`
	Coins       int64           `json:"coins"`
	AmountCents int64           `json:"amount_cents"`
	Metadata    json.RawMessage `json:"metadata"`
}

type reservationPayload struct {
	ID              string `json:"id"`
	BuyerProfileID  string `json:"buyer_profile_id"`
	SellerProfileID string `json:"seller_profile_id"`
	ServiceID       string `json:"service_id"`
	Price           int64  `json:"price"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

type conversationPayload struct {
	ID              string           `json:"id"`
	BuyerProfileID  string           `json:"buyer_profile_id"`
	SellerProfileID string           `json:"seller_profile_id"`
	ServiceID       string           `json:"service_id"`
	ReservationID   string           `json:"reservation_id,omitempty"`
	Messages        []messagePayload `json:"messages,omitempty"`
	CreatedAt       string           `json:"created_at"`
	UpdatedAt       string           `json:"updated_at"`
}

type messagePayload struct {
	ID              string `json:"id"`
	ConversationID  string `json:"conversation_id"`
	SenderProfileID string `json:"sender_profile_id"`
	Content         string `json:"content"`
	CreatedAt       string `json:"created_at"`
}

type orderPayload struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Coins       int64           `json:"coins"`
	AmountCents int64           `json:"amount_cents"`
	Amount      string          `json:"amount"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   string          `json:"created_at"`
}

type streamFrame struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339)
}

func newReservationPayload(reservation marketplace.Reservation) reservationPayload {
	return reservationPayload{
		ID:              reservation.ID.String(),
		BuyerProfileID:  reservation.BuyerID.String(),
		SellerProfileID: reservation.SellerID.String(),
		ServiceID:       reservation.ServiceID.String(),
		Price:           reservation.Price.Int64(),
		Status:          string(reservation.Status),
		CreatedAt:       formatTime(reservation.CreatedAt),
		UpdatedAt:       formatTime(reservation.UpdatedAt),
	}
}

func newConversationPayload(conversation marketplace.Conversation) conversationPayload {
	payload := conversationPayload{
		ID:              conversation.ID.String(),
		BuyerProfileID:  conversation.BuyerID.String(),
		SellerProfileID: conversation.SellerID.String(),
		ServiceID:       conversation.ServiceID.String(),
		ReservationID:   conversation.ReservationID.String(),
		CreatedAt:       formatTime(conversation.CreatedAt),
		UpdatedAt:       formatTime(conversation.UpdatedAt),
	}
	for _, message := range conversation.Messages {
		payload.Messages = append(payload.Messages, newMessagePayload(message))
	}
	return payload
}

func newMessagePayload(message marketplace.Message) messagePayload {
	return messagePayload{
		ID:              message.ID.String(),
		ConversationID:  message.ConversationID.String(),
		SenderProfileID: message.SenderID.String(),
		Content:         message.Content,
		CreatedAt:       formatTime(message.CreatedAt),
	}
}

// newOrderPayload renders cents as a fixed two-decimal amount.
func newOrderPayload(order marketplace.PaymentConfirmation) orderPayload {
	return orderPayload{
		ID:          order.ID.String(),
		SessionID:   order.SessionID.String(),
		Coins:       order.Coins.Int64(),
		AmountCents: order.AmountCents.Int64(),
		Amount:      decimal.New(order.AmountCents.Int64(), centsExponent).StringFixed(2),
		Metadata:    json.RawMessage(order.Metadata.String()),
		CreatedAt:   formatTime(order.CreatedAt),
	}
}
