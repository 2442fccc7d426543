package marketplace

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestConfirmPaymentCreditsCoinsOnce(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	publisher := &recordingPublisher{store: store}
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithPublisher(publisher), WithOperationLogger(logger))
	profileID := store.addProfile(test, "collector", 5)
	request := PaymentConfirmationRequest{
		SessionID:   mustSessionID(test, "cs_test_123"),
		ProfileID:   profileID,
		Coins:       mustPositiveCredits(test, 100),
		AmountCents: 999,
		Metadata:    mustMetadata(test, `{"pack":"starter"}`),
	}

	confirmation, err := service.ConfirmPayment(context.Background(), request)
	if err != nil {
		test.Fatalf("confirm: %v", err)
	}
	if confirmation.ID.String() == "" || confirmation.SessionID != request.SessionID || confirmation.AmountCents != 999 {
		test.Fatalf("unexpected confirmation: %+v", confirmation)
	}
	if got := store.profile(test, profileID).Credits; got != 105 {
		test.Fatalf("expected credits 105, got %d", got)
	}

	_, err = service.ConfirmPayment(context.Background(), request)
	if !errors.Is(err, ErrPaymentAlreadyConfirmed) {
		test.Fatalf("expected ErrPaymentAlreadyConfirmed, got %v", err)
	}
	if got := store.profile(test, profileID).Credits; got != 105 {
		test.Fatalf("expected credits unchanged on replay, got %d", got)
	}
	if _, _, _, confirmations := store.counts(); confirmations != 1 {
		test.Fatalf("expected one confirmation, got %d", confirmations)
	}
	published := publisher.notifications()
	if len(published) != 1 || published[0].topic != service.ProfileTopic(profileID) {
		test.Fatalf("expected one payment notification, got %+v", published)
	}
	entries := logger.operations(operationConfirmPayment)
	if len(entries) != 2 || entries[0].Status != operationStatusOK || entries[1].Status != operationStatusError {
		test.Fatalf("unexpected payment logs: %+v", entries)
	}
}

func TestConcurrentConfirmPaymentCreditsOnce(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	profileID := store.addProfile(test, "collector", 0)
	request := PaymentConfirmationRequest{
		SessionID:   mustSessionID(test, "cs_test_race"),
		ProfileID:   profileID,
		Coins:       mustPositiveCredits(test, 50),
		AmountCents: 499,
	}

	const attempts = 2
	errs := make([]error, attempts)
	start := make(chan struct{})
	var group sync.WaitGroup
	for index := 0; index < attempts; index++ {
		group.Add(1)
		go func(index int) {
			defer group.Done()
			<-start
			_, errs[index] = service.ConfirmPayment(context.Background(), request)
		}(index)
	}
	close(start)
	group.Wait()

	var succeeded, replayed int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrPaymentAlreadyConfirmed):
			replayed++
		default:
			test.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || replayed != 1 {
		test.Fatalf("expected one success and one replay, got %d and %d", succeeded, replayed)
	}
	if got := store.profile(test, profileID).Credits; got != 50 {
		test.Fatalf("expected credits 50, got %d", got)
	}
	if _, _, _, confirmations := store.counts(); confirmations != 1 {
		test.Fatalf("expected one confirmation, got %d", confirmations)
	}
}

func TestConfirmPaymentUnknownProfile(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)

	_, err := service.ConfirmPayment(context.Background(), PaymentConfirmationRequest{
		SessionID: mustSessionID(test, "cs_test_unknown"),
		ProfileID: mustProfileID(test, "ghost"),
		Coins:     mustPositiveCredits(test, 10),
	})
	if !errors.Is(err, ErrUnknownProfile) {
		test.Fatalf("expected ErrUnknownProfile, got %v", err)
	}
	if _, _, _, confirmations := store.counts(); confirmations != 0 {
		test.Fatalf("expected no confirmation recorded, got %d", confirmations)
	}
}

func TestConfirmPaymentValidatesRequest(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	profileID := store.addProfile(test, "collector", 0)
	testCases := []struct {
		name     string
		request  PaymentConfirmationRequest
		expected error
	}{
		{name: "missing session", request: PaymentConfirmationRequest{ProfileID: profileID, Coins: 1}, expected: ErrInvalidPaymentSessionID},
		{name: "missing profile", request: PaymentConfirmationRequest{SessionID: mustSessionID(test, "cs_1"), Coins: 1}, expected: ErrInvalidProfileID},
		{name: "zero coins", request: PaymentConfirmationRequest{SessionID: mustSessionID(test, "cs_2"), ProfileID: profileID}, expected: ErrInvalidCredits},
	}
	for _, testCase := range testCases {
		if _, err := service.ConfirmPayment(context.Background(), testCase.request); !errors.Is(err, testCase.expected) {
			test.Fatalf("%s: expected %v, got %v", testCase.name, testCase.expected, err)
		}
	}
}

func TestListOrdersNewestFirst(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	service := mustNewService(test, store)
	profileID := store.addProfile(test, "collector", 0)
	otherID := store.addProfile(test, "other", 0)
	for _, confirmation := range []struct {
		session string
		profile ProfileID
	}{
		{session: "cs_a", profile: profileID},
		{session: "cs_b", profile: otherID},
		{session: "cs_c", profile: profileID},
	} {
		if _, err := service.ConfirmPayment(context.Background(), PaymentConfirmationRequest{
			SessionID: mustSessionID(test, confirmation.session),
			ProfileID: confirmation.profile,
			Coins:     mustPositiveCredits(test, 10),
		}); err != nil {
			test.Fatalf("confirm %s: %v", confirmation.session, err)
		}
	}

	orders, err := service.ListOrders(context.Background(), profileID)
	if err != nil {
		test.Fatalf("list orders: %v", err)
	}
	if len(orders) != 2 || orders[0].SessionID.String() != "cs_c" || orders[1].SessionID.String() != "cs_a" {
		test.Fatalf("unexpected orders: %+v", orders)
	}
	balance, err := service.Balance(context.Background(), profileID)
	if err != nil {
		test.Fatalf("balance: %v", err)
	}
	if balance != 20 {
		test.Fatalf("expected balance 20, got %d", balance)
	}
}
