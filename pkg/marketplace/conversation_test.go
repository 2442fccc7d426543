package marketplace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type steppingClock struct {
	mu      sync.Mutex
	current time.Time
}

func (clock *steppingClock) now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.current = clock.current.Add(time.Minute)
	return clock.current
}

type settableClock struct {
	mu      sync.Mutex
	current time.Time
}

func (clock *settableClock) now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	return clock.current
}

func (clock *settableClock) set(current time.Time) {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.current = current
}

func TestSendMessageNeverRewindsConversationActivity(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	clock := &settableClock{current: stubNow}
	service, err := NewService(store, clock.now, WithIDGenerator(sequentialIDs("skew")))
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	sellerID := store.addProfile(test, "seller", 0)
	buyerID := store.addProfile(test, "buyer", 100)
	serviceID := store.addService(test, "pottery", sellerID, 10, ServiceStatusPublished, true)
	purchased, err := service.Purchase(context.Background(), PurchaseRequest{BuyerID: buyerID, ServiceID: serviceID})
	if err != nil {
		test.Fatalf("purchase: %v", err)
	}

	later := stubNow.Add(10 * time.Second)
	clock.set(later)
	if _, err := service.SendMessage(context.Background(), buyerID, purchased.Conversation.ID, "first"); err != nil {
		test.Fatalf("first send: %v", err)
	}
	clock.set(stubNow.Add(8 * time.Second))
	if _, err := service.SendMessage(context.Background(), sellerID, purchased.Conversation.ID, "second"); err != nil {
		test.Fatalf("second send: %v", err)
	}

	conversation, err := service.GetConversation(context.Background(), buyerID, purchased.Conversation.ID)
	if err != nil {
		test.Fatalf("get: %v", err)
	}
	if !conversation.UpdatedAt.Equal(later) {
		test.Fatalf("expected updatedAt %s, got %s", later, conversation.UpdatedAt)
	}
	if len(conversation.Messages) != 2 {
		test.Fatalf("expected 2 messages, got %d", len(conversation.Messages))
	}
}

func TestAuthorizeConversationSkipsMessages(test *testing.T) {
	test.Parallel()
	fixture := newPurchaseFixture(test, 100, 30, ServiceStatusPublished, true)
	purchased := purchaseForTest(test, fixture)
	outsiderID := fixture.store.addProfile(test, "outsider", 0)
	fixture.store.failOn("ListMessages", errors.New("messages unavailable"))
	testCases := []struct {
		name      string
		profileID ProfileID
		expected  error
	}{
		{name: "buyer", profileID: fixture.buyerID},
		{name: "seller", profileID: fixture.sellerID},
		{name: "outsider", profileID: outsiderID, expected: ErrAccessDenied},
		{name: "anonymous", profileID: ProfileID{}, expected: ErrUnauthenticated},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			err := fixture.service.AuthorizeConversation(context.Background(), testCase.profileID, purchased.Conversation.ID)
			if testCase.expected == nil && err != nil {
				test.Fatalf("expected access, got %v", err)
			}
			if testCase.expected != nil && !errors.Is(err, testCase.expected) {
				test.Fatalf("expected %v, got %v", testCase.expected, err)
			}
		})
	}
	missingID := mustConversationID(test, "missing")
	if err := fixture.service.AuthorizeConversation(context.Background(), fixture.buyerID, missingID); !errors.Is(err, ErrUnknownConversation) {
		test.Fatalf("expected ErrUnknownConversation, got %v", err)
	}
}

func TestSendMessageAppendsAndNotifiesCounterpart(test *testing.T) {
	test.Parallel()
	fixture := newPurchaseFixture(test, 100, 30, ServiceStatusPublished, true)
	purchased := purchaseForTest(test, fixture)
	before := len(fixture.publisher.notifications())

	message, err := fixture.service.SendMessage(context.Background(), fixture.sellerID, purchased.Conversation.ID, "  See you Monday ")
	if err != nil {
		test.Fatalf("send: %v", err)
	}
	if message.Content != "See you Monday" || message.SenderID != fixture.sellerID {
		test.Fatalf("unexpected message: %+v", message)
	}
	published := fixture.publisher.notifications()[before:]
	if len(published) != 2 {
		test.Fatalf("expected 2 notifications, got %d", len(published))
	}
	if published[0].topic != fixture.service.ConversationTopic(purchased.Conversation.ID) {
		test.Fatalf("unexpected conversation topic %s", published[0].topic)
	}
	if published[1].topic != fixture.service.ProfileTopic(fixture.buyerID) {
		test.Fatalf("expected buyer notification, got %s", published[1].topic)
	}
	notification := decodePayload(test, published[1].payload)
	if notification["messageId"] != message.ID.String() || notification["conversationId"] != purchased.Conversation.ID.String() {
		test.Fatalf("unexpected notification payload: %v", notification)
	}
}

func TestSendMessageRejections(test *testing.T) {
	test.Parallel()
	fixture := newPurchaseFixture(test, 100, 30, ServiceStatusPublished, true)
	purchased := purchaseForTest(test, fixture)
	outsiderID := fixture.store.addProfile(test, "outsider", 0)
	testCases := []struct {
		name           string
		senderID       ProfileID
		conversationID ConversationID
		content        string
		expected       error
	}{
		{name: "unauthenticated", conversationID: purchased.Conversation.ID, content: "hi", expected: ErrUnauthenticated},
		{name: "outsider", senderID: outsiderID, conversationID: purchased.Conversation.ID, content: "hi", expected: ErrAccessDenied},
		{name: "outsider empty content", senderID: outsiderID, conversationID: purchased.Conversation.ID, content: " ", expected: ErrAccessDenied},
		{name: "empty content", senderID: fixture.buyerID, conversationID: purchased.Conversation.ID, content: " \t", expected: ErrEmptyContent},
		{name: "unknown conversation", senderID: fixture.buyerID, conversationID: mustConversationID(test, "missing"), content: "hi", expected: ErrUnknownConversation},
	}
	for _, testCase := range testCases {
		if _, err := fixture.service.SendMessage(context.Background(), testCase.senderID, testCase.conversationID, testCase.content); !errors.Is(err, testCase.expected) {
			test.Fatalf("%s: expected %v, got %v", testCase.name, testCase.expected, err)
		}
	}
	if _, _, messages, _ := fixture.store.counts(); messages != 0 {
		test.Fatalf("expected no stored messages, got %d", messages)
	}
}

func TestConversationQueries(test *testing.T) {
	test.Parallel()
	store := newStubStore(test)
	clock := &steppingClock{current: stubNow}
	service, err := NewService(store, clock.now, WithIDGenerator(sequentialIDs("conv")))
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	sellerID := store.addProfile(test, "seller", 0)
	buyerID := store.addProfile(test, "buyer", 100)
	outsiderID := store.addProfile(test, "outsider", 0)
	firstServiceID := store.addService(test, "first", sellerID, 10, ServiceStatusPublished, true)
	secondServiceID := store.addService(test, "second", sellerID, 10, ServiceStatusPublished, true)

	first, err := service.Purchase(context.Background(), PurchaseRequest{BuyerID: buyerID, ServiceID: firstServiceID, InitialMessage: "one"})
	if err != nil {
		test.Fatalf("first purchase: %v", err)
	}
	second, err := service.Purchase(context.Background(), PurchaseRequest{BuyerID: buyerID, ServiceID: secondServiceID})
	if err != nil {
		test.Fatalf("second purchase: %v", err)
	}
	if _, err := service.SendMessage(context.Background(), sellerID, first.Conversation.ID, "two"); err != nil {
		test.Fatalf("send: %v", err)
	}

	conversations, err := service.ListConversations(context.Background(), buyerID)
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if len(conversations) != 2 || conversations[0].ID != first.Conversation.ID || conversations[1].ID != second.Conversation.ID {
		test.Fatalf("expected most recently active conversation first, got %+v", conversations)
	}
	outsiderConversations, err := service.ListConversations(context.Background(), outsiderID)
	if err != nil {
		test.Fatalf("outsider list: %v", err)
	}
	if len(outsiderConversations) != 0 {
		test.Fatalf("expected no conversations for outsider, got %d", len(outsiderConversations))
	}

	thread, err := service.GetConversation(context.Background(), sellerID, first.Conversation.ID)
	if err != nil {
		test.Fatalf("get: %v", err)
	}
	if len(thread.Messages) != 2 || thread.Messages[0].Content != "one" || thread.Messages[1].Content != "two" {
		test.Fatalf("expected messages in append order, got %+v", thread.Messages)
	}
	if _, err := service.GetConversation(context.Background(), outsiderID, first.Conversation.ID); !errors.Is(err, ErrAccessDenied) {
		test.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if _, err := service.ListConversations(context.Background(), ProfileID{}); !errors.Is(err, ErrUnauthenticated) {
		test.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
