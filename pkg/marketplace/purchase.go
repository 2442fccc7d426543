package marketplace

import (
	"context"
	"fmt"
	"strings"
)

// PurchaseRequest describes a buyer reserving a service.
type PurchaseRequest struct {
	BuyerID        ProfileID
	ServiceID      ServiceID
	InitialMessage string
}

// PurchaseResult is the committed outcome of a purchase.
type PurchaseResult struct {
	Reservation  Reservation
	Conversation Conversation
}

// Purchase debits the buyer, reserves the service, and opens the conversation
// with the seller in a single transaction. Notifications go out after commit.
func (service *Service) Purchase(ctx context.Context, request PurchaseRequest) (PurchaseResult, error) {
	var result PurchaseResult
	batch := service.newNotificationBatch()
	operationError := func() error {
		if request.BuyerID.IsZero() {
			return ErrUnauthenticated
		}
		initialMessage := strings.TrimSpace(request.InitialMessage)
		return service.withTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
			purchased, err := service.purchase(ctx, transactionStore, request.BuyerID, request.ServiceID, initialMessage, batch)
			if err != nil {
				return err
			}
			result = purchased
			return nil
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:      operationPurchase,
		ProfileID:      request.BuyerID,
		ServiceID:      request.ServiceID,
		ReservationID:  result.Reservation.ID,
		ConversationID: result.Conversation.ID,
		Amount:         result.Reservation.Price,
		Error:          operationError,
	})
	if operationError != nil {
		return PurchaseResult{}, operationError
	}
	service.dispatch(ctx, batch)
	return result, nil
}

func (service *Service) purchase(ctx context.Context, transactionStore Store, buyerID ProfileID, serviceID ServiceID, initialMessage string, batch *notificationBatch) (PurchaseResult, error) {
	listing, err := transactionStore.GetService(ctx, serviceID)
	if err != nil {
		return PurchaseResult{}, err
	}
	if listing.OwnerID == buyerID {
		return PurchaseResult{}, ErrSelfPurchase
	}
	if listing.Status != ServiceStatusPublished {
		return PurchaseResult{}, ErrServiceNotPublished
	}
	buyer, err := transactionStore.GetProfile(ctx, buyerID)
	if err != nil {
		return PurchaseResult{}, err
	}
	if buyer.Credits < listing.Cost {
		return PurchaseResult{}, fmt.Errorf("%w: balance %d below %d", ErrInsufficientCredits, buyer.Credits, listing.Cost)
	}

	now := service.now()
	listing, err = service.guard.tryReserve(ctx, transactionStore, serviceID, now)
	if err != nil {
		return PurchaseResult{}, err
	}
	if listing.OwnerID == buyerID {
		return PurchaseResult{}, ErrSelfPurchase
	}
	if _, err := service.ledger.debit(ctx, transactionStore, buyerID, listing.Cost, now); err != nil {
		return PurchaseResult{}, err
	}

	rawID, err := service.newIdentifier()
	if err != nil {
		return PurchaseResult{}, err
	}
	reservationID, err := NewReservationID(rawID)
	if err != nil {
		return PurchaseResult{}, err
	}
	reservation, err := NewReservation(reservationID, buyerID, listing.OwnerID, serviceID, listing.Cost, ReservationStatusReserved, now)
	if err != nil {
		return PurchaseResult{}, err
	}
	if err := transactionStore.CreateReservation(ctx, reservation); err != nil {
		return PurchaseResult{}, err
	}
	conversation, err := service.threads.create(ctx, transactionStore, buyerID, listing.OwnerID, serviceID, reservationID, now)
	if err != nil {
		return PurchaseResult{}, err
	}

	if err := batch.reservationCreated(reservation); err != nil {
		return PurchaseResult{}, err
	}
	if err := batch.conversationCreated(conversation); err != nil {
		return PurchaseResult{}, err
	}
	if initialMessage != "" {
		message, err := service.threads.appendMessage(ctx, transactionStore, conversation, buyerID, initialMessage, now)
		if err != nil {
			return PurchaseResult{}, err
		}
		conversation.Messages = append(conversation.Messages, message)
		if err := batch.messageCreated(message, listing.OwnerID); err != nil {
			return PurchaseResult{}, err
		}
	}
	return PurchaseResult{Reservation: reservation, Conversation: conversation}, nil
}
