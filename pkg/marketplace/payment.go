package marketplace

import (
	"context"
	"fmt"
)

// PaymentConfirmationRequest describes a completed external checkout session.
type PaymentConfirmationRequest struct {
	SessionID   PaymentSessionID
	ProfileID   ProfileID
	Coins       PositiveCredits
	AmountCents AmountCents
	Metadata    MetadataJSON
}

// ConfirmPayment credits the purchased coins exactly once per checkout session.
func (service *Service) ConfirmPayment(ctx context.Context, request PaymentConfirmationRequest) (PaymentConfirmation, error) {
	var confirmation PaymentConfirmation
	batch := service.newNotificationBatch()
	operationError := func() error {
		if request.SessionID.IsZero() {
			return ErrInvalidPaymentSessionID
		}
		if request.ProfileID.IsZero() {
			return ErrInvalidProfileID
		}
		if request.Coins <= 0 {
			return fmt.Errorf("%w: coins must be greater than zero", ErrInvalidCredits)
		}
		return service.withTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
			_, found, err := transactionStore.FindPaymentConfirmation(ctx, request.SessionID)
			if err != nil {
				return err
			}
			if found {
				return ErrPaymentAlreadyConfirmed
			}
			now := service.now()
			if _, err := transactionStore.LockProfile(ctx, request.ProfileID); err != nil {
				return err
			}
			rawID, err := service.newIdentifier()
			if err != nil {
				return err
			}
			orderID, err := NewOrderID(rawID)
			if err != nil {
				return err
			}
			confirmation = PaymentConfirmation{
				ID:          orderID,
				ProfileID:   request.ProfileID,
				SessionID:   request.SessionID,
				AmountCents: request.AmountCents,
				Coins:       request.Coins,
				Metadata:    request.Metadata,
				CreatedAt:   now,
			}
			if err := transactionStore.InsertPaymentConfirmation(ctx, confirmation); err != nil {
				return err
			}
			if _, err := service.ledger.credit(ctx, transactionStore, request.ProfileID, request.Coins.ToCredits(), now); err != nil {
				return err
			}
			return batch.paymentConfirmed(confirmation)
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation: operationConfirmPayment,
		ProfileID: request.ProfileID,
		SessionID: request.SessionID,
		Amount:    request.Coins.ToCredits(),
		Error:     operationError,
	})
	if operationError != nil {
		return PaymentConfirmation{}, operationError
	}
	service.dispatch(ctx, batch)
	return confirmation, nil
}

// ListOrders returns the payment confirmations of a profile, newest first.
func (service *Service) ListOrders(ctx context.Context, profileID ProfileID) ([]PaymentConfirmation, error) {
	if profileID.IsZero() {
		return nil, ErrUnauthenticated
	}
	return service.store.ListPaymentConfirmations(ctx, profileID)
}
