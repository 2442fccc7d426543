package marketplace

import (
	"context"
	"fmt"
	"math"
	"time"
)

// creditLedger moves credits on locked profile rows inside a caller's transaction.
type creditLedger struct{}

// debit subtracts amount from the profile balance. The balance never goes negative.
func (creditLedger) debit(ctx context.Context, transactionStore Store, profileID ProfileID, amount Credits, at time.Time) (Profile, error) {
	profile, err := transactionStore.LockProfile(ctx, profileID)
	if err != nil {
		return Profile{}, err
	}
	if profile.Credits < amount {
		return Profile{}, fmt.Errorf("%w: balance %d below %d", ErrInsufficientCredits, profile.Credits, amount)
	}
	remaining, err := NewCredits(profile.Credits.Int64() - amount.Int64())
	if err != nil {
		return Profile{}, err
	}
	if err := transactionStore.UpdateProfileCredits(ctx, profileID, remaining, at); err != nil {
		return Profile{}, err
	}
	profile.Credits = remaining
	profile.UpdatedAt = at
	return profile, nil
}

// credit adds amount to the profile balance.
func (creditLedger) credit(ctx context.Context, transactionStore Store, profileID ProfileID, amount Credits, at time.Time) (Profile, error) {
	profile, err := transactionStore.LockProfile(ctx, profileID)
	if err != nil {
		return Profile{}, err
	}
	if amount > Credits(math.MaxInt64)-profile.Credits {
		return Profile{}, fmt.Errorf("%w: balance overflow", ErrInvalidCredits)
	}
	total := profile.Credits + amount
	if err := transactionStore.UpdateProfileCredits(ctx, profileID, total, at); err != nil {
		return Profile{}, err
	}
	profile.Credits = total
	profile.UpdatedAt = at
	return profile, nil
}

// Balance returns the current credit balance of a profile.
func (service *Service) Balance(ctx context.Context, profileID ProfileID) (Credits, error) {
	if profileID.IsZero() {
		return 0, ErrUnauthenticated
	}
	profile, err := service.store.GetProfile(ctx, profileID)
	if err != nil {
		return 0, err
	}
	return profile.Credits, nil
}
