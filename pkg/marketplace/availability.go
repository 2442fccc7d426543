package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// availabilityGuard serializes reservations of a listing through its row lock.
type availabilityGuard struct{}

// tryReserve locks the listing, re-validates it, and marks it unavailable.
// The returned listing reflects the locked row, so its cost is authoritative.
func (availabilityGuard) tryReserve(ctx context.Context, transactionStore Store, serviceID ServiceID, at time.Time) (ServiceListing, error) {
	listing, err := transactionStore.LockService(ctx, serviceID)
	if err != nil {
		return ServiceListing{}, err
	}
	if !listing.Purchasable() {
		if listing.Status != ServiceStatusPublished {
			return ServiceListing{}, ErrServiceNotPublished
		}
		return ServiceListing{}, ErrServiceUnavailable
	}
	if err := transactionStore.UpdateServiceAvailability(ctx, serviceID, true, false, at); err != nil {
		if errors.Is(err, ErrAvailabilityConflict) {
			return ServiceListing{}, fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
		}
		return ServiceListing{}, err
	}
	listing.Available = false
	listing.UpdatedAt = at
	return listing, nil
}

// release makes the listing purchasable again. Releasing an available listing is a no-op.
func (availabilityGuard) release(ctx context.Context, transactionStore Store, serviceID ServiceID, at time.Time) error {
	listing, err := transactionStore.LockService(ctx, serviceID)
	if err != nil {
		return err
	}
	if listing.Available {
		return nil
	}
	return transactionStore.UpdateServiceAvailability(ctx, serviceID, false, true, at)
}
