package marketplace

import (
	"context"
	"time"
)

// conversationThreads creates conversations and appends messages inside a caller's transaction.
type conversationThreads struct {
	newID func() (string, error)
}

func (threads conversationThreads) create(ctx context.Context, transactionStore Store, buyerID ProfileID, sellerID ProfileID, serviceID ServiceID, reservationID ReservationID, at time.Time) (Conversation, error) {
	rawID, err := threads.newID()
	if err != nil {
		return Conversation{}, err
	}
	conversationID, err := NewConversationID(rawID)
	if err != nil {
		return Conversation{}, err
	}
	conversation, err := NewConversation(conversationID, buyerID, sellerID, serviceID, reservationID, at)
	if err != nil {
		return Conversation{}, err
	}
	if err := transactionStore.CreateConversation(ctx, conversation); err != nil {
		return Conversation{}, err
	}
	return conversation, nil
}

// appendMessage rejects non-participants before validating content.
func (threads conversationThreads) appendMessage(ctx context.Context, transactionStore Store, conversation Conversation, senderID ProfileID, content string, at time.Time) (Message, error) {
	if !conversation.IsParticipant(senderID) {
		return Message{}, ErrAccessDenied
	}
	rawID, err := threads.newID()
	if err != nil {
		return Message{}, err
	}
	messageID, err := NewMessageID(rawID)
	if err != nil {
		return Message{}, err
	}
	message, err := NewMessage(messageID, conversation.ID, senderID, content, at)
	if err != nil {
		return Message{}, err
	}
	if err := transactionStore.InsertMessage(ctx, message); err != nil {
		return Message{}, err
	}
	if err := transactionStore.TouchConversation(ctx, conversation.ID, at); err != nil {
		return Message{}, err
	}
	return message, nil
}

// SendMessage appends a message from a participant and notifies the other side.
func (service *Service) SendMessage(ctx context.Context, senderID ProfileID, conversationID ConversationID, content string) (Message, error) {
	var message Message
	batch := service.newNotificationBatch()
	operationError := func() error {
		if senderID.IsZero() {
			return ErrUnauthenticated
		}
		return service.withTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
			conversation, err := transactionStore.GetConversation(ctx, conversationID)
			if err != nil {
				return err
			}
			message, err = service.threads.appendMessage(ctx, transactionStore, conversation, senderID, content, service.now())
			if err != nil {
				return err
			}
			return batch.messageCreated(message, conversation.Counterpart(senderID))
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:      operationSendMessage,
		ProfileID:      senderID,
		ConversationID: conversationID,
		Error:          operationError,
	})
	if operationError != nil {
		return Message{}, operationError
	}
	service.dispatch(ctx, batch)
	return message, nil
}

// ListConversations returns the conversations of a participant, most recently active first.
func (service *Service) ListConversations(ctx context.Context, profileID ProfileID) ([]Conversation, error) {
	if profileID.IsZero() {
		return nil, ErrUnauthenticated
	}
	return service.store.ListConversations(ctx, profileID)
}

// GetConversation returns a thread with its messages in append order.
func (service *Service) GetConversation(ctx context.Context, profileID ProfileID, conversationID ConversationID) (Conversation, error) {
	conversation, err := service.participantConversation(ctx, profileID, conversationID)
	if err != nil {
		return Conversation{}, err
	}
	messages, err := service.store.ListMessages(ctx, conversationID)
	if err != nil {
		return Conversation{}, err
	}
	conversation.Messages = messages
	return conversation, nil
}

// AuthorizeConversation reports whether profileID may read conversationID without loading its messages.
func (service *Service) AuthorizeConversation(ctx context.Context, profileID ProfileID, conversationID ConversationID) error {
	_, err := service.participantConversation(ctx, profileID, conversationID)
	return err
}

func (service *Service) participantConversation(ctx context.Context, profileID ProfileID, conversationID ConversationID) (Conversation, error) {
	if profileID.IsZero() {
		return Conversation{}, ErrUnauthenticated
	}
	conversation, err := service.store.GetConversation(ctx, conversationID)
	if err != nil {
		return Conversation{}, err
	}
	if !conversation.IsParticipant(profileID) {
		return Conversation{}, ErrAccessDenied
	}
	return conversation, nil
}
