package marketplace

import (
	"context"
	"fmt"
	"time"
)

// CompleteReservation lets the seller mark a reserved service as delivered.
// The service becomes purchasable again.
func (service *Service) CompleteReservation(ctx context.Context, sellerID ProfileID, reservationID ReservationID) (Reservation, error) {
	var reservation Reservation
	batch := service.newNotificationBatch()
	operationError := func() error {
		if sellerID.IsZero() {
			return ErrUnauthenticated
		}
		return service.withTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
			current, err := transactionStore.LockReservation(ctx, reservationID)
			if err != nil {
				return err
			}
			if current.SellerID != sellerID {
				return ErrAccessDenied
			}
			now := service.now()
			reservation, err = transitionReservation(ctx, transactionStore, current, ReservationStatusCompleted, now)
			if err != nil {
				return err
			}
			if err := service.guard.release(ctx, transactionStore, reservation.ServiceID, now); err != nil {
				return err
			}
			return batch.reservationClosed(reservation, eventReservationCompleted)
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:     operationCompleteReservation,
		ProfileID:     sellerID,
		ServiceID:     reservation.ServiceID,
		ReservationID: reservationID,
		Amount:        reservation.Price,
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	service.dispatch(ctx, batch)
	return reservation, nil
}

// CancelReservation lets either participant cancel a reserved service.
// The price is refunded to the buyer and the service becomes purchasable again.
func (service *Service) CancelReservation(ctx context.Context, actorID ProfileID, reservationID ReservationID) (Reservation, error) {
	var reservation Reservation
	batch := service.newNotificationBatch()
	operationError := func() error {
		if actorID.IsZero() {
			return ErrUnauthenticated
		}
		return service.withTransaction(ctx, func(ctx context.Context, transactionStore Store) error {
			current, err := transactionStore.LockReservation(ctx, reservationID)
			if err != nil {
				return err
			}
			if !current.IsParticipant(actorID) {
				return ErrAccessDenied
			}
			now := service.now()
			reservation, err = transitionReservation(ctx, transactionStore, current, ReservationStatusCanceled, now)
			if err != nil {
				return err
			}
			if err := service.guard.release(ctx, transactionStore, reservation.ServiceID, now); err != nil {
				return err
			}
			if _, err := service.ledger.credit(ctx, transactionStore, reservation.BuyerID, reservation.Price, now); err != nil {
				return err
			}
			return batch.reservationClosed(reservation, eventReservationCanceled)
		})
	}()
	service.logOperation(ctx, OperationLog{
		Operation:     operationCancelReservation,
		ProfileID:     actorID,
		ServiceID:     reservation.ServiceID,
		ReservationID: reservationID,
		Amount:        reservation.Price,
		Error:         operationError,
	})
	if operationError != nil {
		return Reservation{}, operationError
	}
	service.dispatch(ctx, batch)
	return reservation, nil
}

func transitionReservation(ctx context.Context, transactionStore Store, reservation Reservation, next ReservationStatus, at time.Time) (Reservation, error) {
	if !reservation.Status.CanTransitionTo(next) {
		return Reservation{}, fmt.Errorf("%w: %s to %s", ErrInvalidReservationState, reservation.Status, next)
	}
	if err := transactionStore.UpdateReservationStatus(ctx, reservation.ID, reservation.Status, next, at); err != nil {
		return Reservation{}, err
	}
	reservation.Status = next
	reservation.UpdatedAt = at
	return reservation, nil
}
