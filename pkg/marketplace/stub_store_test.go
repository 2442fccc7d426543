package marketplace

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var stubNow = time.Date(2025, time.September, 5, 7, 51, 44, 0, time.UTC)

type stubState struct {
	mu               sync.Mutex
	profiles         map[ProfileID]Profile
	services         map[ServiceID]ServiceListing
	reservations     map[ReservationID]Reservation
	conversations    map[ConversationID]Conversation
	messages         []Message
	confirmations    []PaymentConfirmation
	locks            map[string]chan struct{}
	failures         map[string]error
	openTransactions int
}

type stubTransaction struct {
	held []chan struct{}
	keys map[string]bool
	undo []func()
}

type stubStore struct {
	state       *stubState
	transaction *stubTransaction
}

func newStubStore(test *testing.T) *stubStore {
	test.Helper()
	return &stubStore{state: &stubState{
		profiles:      make(map[ProfileID]Profile),
		services:      make(map[ServiceID]ServiceListing),
		reservations:  make(map[ReservationID]Reservation),
		conversations: make(map[ConversationID]Conversation),
		locks:         make(map[string]chan struct{}),
		failures:      make(map[string]error),
	}}
}

func (store *stubStore) addProfile(test *testing.T, raw string, credits int64) ProfileID {
	test.Helper()
	profileID := mustProfileID(test, raw)
	store.state.profiles[profileID] = Profile{
		ID:        profileID,
		Username:  raw,
		Credits:   mustCredits(test, credits),
		CreatedAt: stubNow,
		UpdatedAt: stubNow,
	}
	return profileID
}

func (store *stubStore) addService(test *testing.T, raw string, ownerID ProfileID, cost int64, status ServiceStatus, available bool) ServiceID {
	test.Helper()
	serviceID := mustServiceID(test, raw)
	store.state.services[serviceID] = ServiceListing{
		ID:        serviceID,
		OwnerID:   ownerID,
		Title:     raw,
		Cost:      mustCredits(test, cost),
		Available: available,
		Status:    status,
		CreatedAt: stubNow,
		UpdatedAt: stubNow,
	}
	return serviceID
}

func (store *stubStore) failOn(method string, err error) {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	store.state.failures[method] = err
}

func (store *stubStore) profile(test *testing.T, profileID ProfileID) Profile {
	test.Helper()
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	profile, ok := store.state.profiles[profileID]
	if !ok {
		test.Fatalf("profile %s not found", profileID)
	}
	return profile
}

func (store *stubStore) listing(test *testing.T, serviceID ServiceID) ServiceListing {
	test.Helper()
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	listing, ok := store.state.services[serviceID]
	if !ok {
		test.Fatalf("service %s not found", serviceID)
	}
	return listing
}

func (store *stubStore) counts() (reservations int, conversations int, messages int, confirmations int) {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	return len(store.state.reservations), len(store.state.conversations), len(store.state.messages), len(store.state.confirmations)
}

func (store *stubStore) openTransactions() int {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	return store.state.openTransactions
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	if store.transaction != nil {
		return fn(ctx, store)
	}
	transaction := &stubTransaction{keys: make(map[string]bool)}
	store.state.mu.Lock()
	store.state.openTransactions++
	store.state.mu.Unlock()
	err := fn(ctx, &stubStore{state: store.state, transaction: transaction})
	store.state.mu.Lock()
	if err != nil {
		for index := len(transaction.undo) - 1; index >= 0; index-- {
			transaction.undo[index]()
		}
	}
	store.state.openTransactions--
	store.state.mu.Unlock()
	for _, lock := range transaction.held {
		<-lock
	}
	return err
}

// lock blocks until the row lock is free or ctx is done.
func (store *stubStore) lock(ctx context.Context, key string) error {
	if store.transaction == nil || store.transaction.keys[key] {
		return nil
	}
	store.state.mu.Lock()
	lock, ok := store.state.locks[key]
	if !ok {
		lock = make(chan struct{}, 1)
		store.state.locks[key] = lock
	}
	store.state.mu.Unlock()
	select {
	case lock <- struct{}{}:
		store.transaction.held = append(store.transaction.held, lock)
		store.transaction.keys[key] = true
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s", ErrLockTimeout, key)
	}
}

// mutate applies change under the state mutex and records undo when inside a transaction.
func (store *stubStore) mutate(change func(), undo func()) {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	change()
	if store.transaction != nil {
		store.transaction.undo = append(store.transaction.undo, undo)
	}
}

func (store *stubStore) failure(method string) error {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	return store.state.failures[method]
}

func (store *stubStore) GetProfile(_ context.Context, profileID ProfileID) (Profile, error) {
	if err := store.failure("GetProfile"); err != nil {
		return Profile{}, err
	}
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	profile, ok := store.state.profiles[profileID]
	if !ok {
		return Profile{}, ErrUnknownProfile
	}
	return profile, nil
}

func (store *stubStore) LockProfile(ctx context.Context, profileID ProfileID) (Profile, error) {
	if err := store.lock(ctx, "profile:"+profileID.String()); err != nil {
		return Profile{}, err
	}
	return store.GetProfile(ctx, profileID)
}

func (store *stubStore) UpdateProfileCredits(_ context.Context, profileID ProfileID, credits Credits, at time.Time) error {
	if err := store.failure("UpdateProfileCredits"); err != nil {
		return err
	}
	store.state.mu.Lock()
	previous, ok := store.state.profiles[profileID]
	store.state.mu.Unlock()
	if !ok {
		return ErrUnknownProfile
	}
	updated := previous
	updated.Credits = credits
	updated.UpdatedAt = at
	store.mutate(
		func() { store.state.profiles[profileID] = updated },
		func() { store.state.profiles[profileID] = previous },
	)
	return nil
}

func (store *stubStore) GetService(_ context.Context, serviceID ServiceID) (ServiceListing, error) {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	listing, ok := store.state.services[serviceID]
	if !ok {
		return ServiceListing{}, ErrUnknownService
	}
	return listing, nil
}

func (store *stubStore) LockService(ctx context.Context, serviceID ServiceID) (ServiceListing, error) {
	if err := store.lock(ctx, "service:"+serviceID.String()); err != nil {
		return ServiceListing{}, err
	}
	return store.GetService(ctx, serviceID)
}

func (store *stubStore) UpdateServiceAvailability(_ context.Context, serviceID ServiceID, from, to bool, at time.Time) error {
	store.state.mu.Lock()
	previous, ok := store.state.services[serviceID]
	store.state.mu.Unlock()
	if !ok {
		return ErrUnknownService
	}
	if previous.Available != from {
		return ErrAvailabilityConflict
	}
	updated := previous
	updated.Available = to
	updated.UpdatedAt = at
	store.mutate(
		func() { store.state.services[serviceID] = updated },
		func() { store.state.services[serviceID] = previous },
	)
	return nil
}

func (store *stubStore) CreateReservation(_ context.Context, reservation Reservation) error {
	if err := store.failure("CreateReservation"); err != nil {
		return err
	}
	store.mutate(
		func() { store.state.reservations[reservation.ID] = reservation },
		func() { delete(store.state.reservations, reservation.ID) },
	)
	return nil
}

func (store *stubStore) LockReservation(ctx context.Context, reservationID ReservationID) (Reservation, error) {
	if err := store.lock(ctx, "reservation:"+reservationID.String()); err != nil {
		return Reservation{}, err
	}
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	reservation, ok := store.state.reservations[reservationID]
	if !ok {
		return Reservation{}, ErrUnknownReservation
	}
	return reservation, nil
}

func (store *stubStore) UpdateReservationStatus(_ context.Context, reservationID ReservationID, from, to ReservationStatus, at time.Time) error {
	store.state.mu.Lock()
	previous, ok := store.state.reservations[reservationID]
	store.state.mu.Unlock()
	if !ok {
		return ErrUnknownReservation
	}
	if previous.Status != from {
		return ErrInvalidReservationState
	}
	updated := previous
	updated.Status = to
	updated.UpdatedAt = at
	store.mutate(
		func() { store.state.reservations[reservationID] = updated },
		func() { store.state.reservations[reservationID] = previous },
	)
	return nil
}

func (store *stubStore) CreateConversation(_ context.Context, conversation Conversation) error {
	if err := store.failure("CreateConversation"); err != nil {
		return err
	}
	store.state.mu.Lock()
	for _, existing := range store.state.conversations {
		if !conversation.ReservationID.IsZero() && existing.ReservationID == conversation.ReservationID {
			store.state.mu.Unlock()
			return ErrConversationExists
		}
	}
	store.state.mu.Unlock()
	conversation.Messages = nil
	store.mutate(
		func() { store.state.conversations[conversation.ID] = conversation },
		func() { delete(store.state.conversations, conversation.ID) },
	)
	return nil
}

func (store *stubStore) GetConversation(_ context.Context, conversationID ConversationID) (Conversation, error) {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	conversation, ok := store.state.conversations[conversationID]
	if !ok {
		return Conversation{}, ErrUnknownConversation
	}
	return conversation, nil
}

func (store *stubStore) ListConversations(_ context.Context, profileID ProfileID) ([]Conversation, error) {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	var conversations []Conversation
	for _, conversation := range store.state.conversations {
		if conversation.IsParticipant(profileID) {
			conversations = append(conversations, conversation)
		}
	}
	sort.Slice(conversations, func(left, right int) bool {
		return conversations[left].UpdatedAt.After(conversations[right].UpdatedAt)
	})
	return conversations, nil
}

func (store *stubStore) TouchConversation(_ context.Context, conversationID ConversationID, at time.Time) error {
	store.state.mu.Lock()
	previous, ok := store.state.conversations[conversationID]
	store.state.mu.Unlock()
	if !ok {
		return ErrUnknownConversation
	}
	if !at.After(previous.UpdatedAt) {
		return nil
	}
	updated := previous
	updated.UpdatedAt = at
	store.mutate(
		func() { store.state.conversations[conversationID] = updated },
		func() { store.state.conversations[conversationID] = previous },
	)
	return nil
}

func (store *stubStore) InsertMessage(_ context.Context, message Message) error {
	if err := store.failure("InsertMessage"); err != nil {
		return err
	}
	store.mutate(
		func() { store.state.messages = append(store.state.messages, message) },
		func() { store.state.messages = store.state.messages[:len(store.state.messages)-1] },
	)
	return nil
}

func (store *stubStore) ListMessages(_ context.Context, conversationID ConversationID) ([]Message, error) {
	if err := store.failure("ListMessages"); err != nil {
		return nil, err
	}
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	var messages []Message
	for _, message := range store.state.messages {
		if message.ConversationID == conversationID {
			messages = append(messages, message)
		}
	}
	return messages, nil
}

func (store *stubStore) FindPaymentConfirmation(_ context.Context, sessionID PaymentSessionID) (PaymentConfirmation, bool, error) {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	for _, confirmation := range store.state.confirmations {
		if confirmation.SessionID == sessionID {
			return confirmation, true, nil
		}
	}
	return PaymentConfirmation{}, false, nil
}

func (store *stubStore) InsertPaymentConfirmation(ctx context.Context, confirmation PaymentConfirmation) error {
	if _, found, _ := store.FindPaymentConfirmation(ctx, confirmation.SessionID); found {
		return ErrPaymentAlreadyConfirmed
	}
	store.mutate(
		func() { store.state.confirmations = append(store.state.confirmations, confirmation) },
		func() { store.state.confirmations = store.state.confirmations[:len(store.state.confirmations)-1] },
	)
	return nil
}

func (store *stubStore) ListPaymentConfirmations(_ context.Context, profileID ProfileID) ([]PaymentConfirmation, error) {
	store.state.mu.Lock()
	defer store.state.mu.Unlock()
	var confirmations []PaymentConfirmation
	for index := len(store.state.confirmations) - 1; index >= 0; index-- {
		if store.state.confirmations[index].ProfileID == profileID {
			confirmations = append(confirmations, store.state.confirmations[index])
		}
	}
	return confirmations, nil
}

type publishedNotification struct {
	topic            string
	payload          string
	openTransactions int
}

type recordingPublisher struct {
	mu        sync.Mutex
	store     *stubStore
	published []publishedNotification
}

func (publisher *recordingPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	publisher.published = append(publisher.published, publishedNotification{
		topic:            topic,
		payload:          string(payload),
		openTransactions: publisher.store.openTransactions(),
	})
	return nil
}

func (publisher *recordingPublisher) notifications() []publishedNotification {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	return append([]publishedNotification(nil), publisher.published...)
}

type recorderLogger struct {
	mu      sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) operations(operation string) []OperationLog {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	var matching []OperationLog
	for _, entry := range logger.entries {
		if entry.Operation == operation {
			matching = append(matching, entry)
		}
	}
	return matching
}

func sequentialIDs(prefix string) func() string {
	var counter atomic.Int64
	return func() string {
		return prefix + "-" + strconv.FormatInt(counter.Add(1), 10)
	}
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	defaults := []ServiceOption{WithIDGenerator(sequentialIDs("id"))}
	service, err := NewService(store, func() time.Time { return stubNow }, append(defaults, options...)...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustProfileID(test *testing.T, raw string) ProfileID {
	test.Helper()
	profileID, err := NewProfileID(raw)
	if err != nil {
		test.Fatalf("profile id: %v", err)
	}
	return profileID
}

func mustServiceID(test *testing.T, raw string) ServiceID {
	test.Helper()
	serviceID, err := NewServiceID(raw)
	if err != nil {
		test.Fatalf("service id: %v", err)
	}
	return serviceID
}

func mustReservationID(test *testing.T, raw string) ReservationID {
	test.Helper()
	reservationID, err := NewReservationID(raw)
	if err != nil {
		test.Fatalf("reservation id: %v", err)
	}
	return reservationID
}

func mustConversationID(test *testing.T, raw string) ConversationID {
	test.Helper()
	conversationID, err := NewConversationID(raw)
	if err != nil {
		test.Fatalf("conversation id: %v", err)
	}
	return conversationID
}

func mustSessionID(test *testing.T, raw string) PaymentSessionID {
	test.Helper()
	sessionID, err := NewPaymentSessionID(raw)
	if err != nil {
		test.Fatalf("session id: %v", err)
	}
	return sessionID
}

func mustCredits(test *testing.T, raw int64) Credits {
	test.Helper()
	credits, err := NewCredits(raw)
	if err != nil {
		test.Fatalf("credits: %v", err)
	}
	return credits
}

func mustPositiveCredits(test *testing.T, raw int64) PositiveCredits {
	test.Helper()
	credits, err := NewPositiveCredits(raw)
	if err != nil {
		test.Fatalf("positive credits: %v", err)
	}
	return credits
}

func mustMetadata(test *testing.T, raw string) MetadataJSON {
	test.Helper()
	metadata, err := NewMetadataJSON(raw)
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	return metadata
}
