package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher delivers a payload to realtime subscribers of a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, topic string, payload []byte) error

// Publish calls fn.
func (fn PublisherFunc) Publish(ctx context.Context, topic string, payload []byte) error {
	return fn(ctx, topic, payload)
}

// Notification is a topic-addressed payload queued for delivery after commit.
type Notification struct {
	Topic   string
	Payload []byte
}

type notificationEvent struct {
	Type           string `json:"type"`
	Event          string `json:"event"`
	ReservationID  string `json:"reservationId,omitempty"`
	ServiceID      string `json:"serviceId,omitempty"`
	BuyerProfileID string `json:"buyerProfileId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
	OrderID        string `json:"orderId,omitempty"`
	Coins          int64  `json:"coins,omitempty"`
}

type conversationEvent struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Message        *messagePayload `json:"message,omitempty"`
}

type messagePayload struct {
	ID              string `json:"id"`
	Content         string `json:"content"`
	SenderProfileID string `json:"senderProfileId"`
	CreatedAt       string `json:"createdAt"`
}

// ProfileTopic returns the private notification topic of a profile.
func (service *Service) ProfileTopic(profileID ProfileID) string {
	return fmt.Sprintf(profileTopicFormat, service.topicPrefix, profileID.String())
}

// ConversationTopic returns the topic carrying new messages of a conversation.
func (service *Service) ConversationTopic(conversationID ConversationID) string {
	return fmt.Sprintf(conversationTopicFormat, service.topicPrefix, conversationID.String())
}

// notificationBatch collects the notifications of one transaction.
// It is only dispatched when the transaction commits.
type notificationBatch struct {
	service       *Service
	notifications []Notification
}

func (service *Service) newNotificationBatch() *notificationBatch {
	return &notificationBatch{service: service}
}

func (batch *notificationBatch) add(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification for %s: %w", topic, err)
	}
	batch.notifications = append(batch.notifications, Notification{Topic: topic, Payload: payload})
	return nil
}

func (batch *notificationBatch) reservationCreated(reservation Reservation) error {
	return batch.add(batch.service.ProfileTopic(reservation.SellerID), notificationEvent{
		Type:           eventTypeNotification,
		Event:          eventReservationCreated,
		ReservationID:  reservation.ID.String(),
		ServiceID:      reservation.ServiceID.String(),
		BuyerProfileID: reservation.BuyerID.String(),
	})
}

func (batch *notificationBatch) reservationClosed(reservation Reservation, event string) error {
	for _, profileID := range []ProfileID{reservation.SellerID, reservation.BuyerID} {
		if err := batch.add(batch.service.ProfileTopic(profileID), notificationEvent{
			Type:          eventTypeNotification,
			Event:         event,
			ReservationID: reservation.ID.String(),
			ServiceID:     reservation.ServiceID.String(),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (batch *notificationBatch) conversationCreated(conversation Conversation) error {
	return batch.add(batch.service.ConversationTopic(conversation.ID), conversationEvent{
		Type:           eventConversationCreated,
		ConversationID: conversation.ID.String(),
	})
}

// messageCreated publishes the message on the conversation topic and notifies receiver.
func (batch *notificationBatch) messageCreated(message Message, receiverID ProfileID) error {
	err := batch.add(batch.service.ConversationTopic(message.ConversationID), conversationEvent{
		Type:           eventMessageCreated,
		ConversationID: message.ConversationID.String(),
		Message: &messagePayload{
			ID:              message.ID.String(),
			Content:         message.Content,
			SenderProfileID: message.SenderID.String(),
			CreatedAt:       message.CreatedAt.UTC().Format(messageTimestampLayout),
		},
	})
	if err != nil {
		return err
	}
	return batch.add(batch.service.ProfileTopic(receiverID), notificationEvent{
		Type:           eventTypeNotification,
		Event:          eventMessageCreated,
		ConversationID: message.ConversationID.String(),
		MessageID:      message.ID.String(),
	})
}

func (batch *notificationBatch) paymentConfirmed(confirmation PaymentConfirmation) error {
	return batch.add(batch.service.ProfileTopic(confirmation.ProfileID), notificationEvent{
		Type:    eventTypeNotification,
		Event:   eventPaymentConfirmed,
		OrderID: confirmation.ID.String(),
		Coins:   confirmation.Coins.Int64(),
	})
}

// dispatch publishes committed notifications in order. Failures are logged and
// never change the outcome of the committed operation.
func (service *Service) dispatch(ctx context.Context, batch *notificationBatch) {
	if service.publisher == nil || batch == nil {
		return
	}
	publishParent := context.WithoutCancel(ctx)
	for _, notification := range batch.notifications {
		publishCtx, cancel := context.WithTimeout(publishParent, service.publishTimeout)
		err := service.publisher.Publish(publishCtx, notification.Topic, notification.Payload)
		cancel()
		if err != nil {
			service.logOperation(ctx, OperationLog{
				Operation: operationNotify,
				Topic:     notification.Topic,
				Error:     err,
			})
		}
	}
}
