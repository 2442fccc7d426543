package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultBufferSize = 64

// Message is a payload delivered on a topic.
type Message struct {
	Topic   string
	Payload []byte
}

// Hub fans topic payloads out to in-process subscribers.
// Slow subscribers lose messages instead of blocking publishers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{}
	bufferSize  int
	logger      *zap.Logger
}

// Subscription receives the messages of one or more topics until closed.
type Subscription struct {
	hub       *Hub
	topics    []string
	messages  chan Message
	closeOnce sync.Once
}

// NewHub returns a Hub whose subscriptions buffer bufferSize messages.
func NewHub(logger *zap.Logger, bufferSize int) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{
		subscribers: make(map[string]map[*Subscription]struct{}),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe registers a subscription for topics.
func (hub *Hub) Subscribe(topics ...string) *Subscription {
	subscription := &Subscription{
		hub:      hub,
		topics:   append([]string(nil), topics...),
		messages: make(chan Message, hub.bufferSize),
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for _, topic := range subscription.topics {
		if hub.subscribers[topic] == nil {
			hub.subscribers[topic] = make(map[*Subscription]struct{})
		}
		hub.subscribers[topic][subscription] = struct{}{}
	}
	return subscription
}

// Publish delivers payload to every current subscriber of topic without blocking.
func (hub *Hub) Publish(_ context.Context, topic string, payload []byte) error {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for subscription := range hub.subscribers[topic] {
		select {
		case subscription.messages <- Message{Topic: topic, Payload: payload}:
		default:
			hub.logger.Warn("subscriber buffer full, dropping message", zap.String("topic", topic))
		}
	}
	return nil
}

// SubscriberCount returns the number of subscriptions on topic.
func (hub *Hub) SubscriberCount(topic string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscribers[topic])
}

// Messages returns the delivery channel. It is closed by Close.
func (subscription *Subscription) Messages() <-chan Message {
	return subscription.messages
}

// Close unregisters the subscription. It is safe to call more than once.
func (subscription *Subscription) Close() {
	subscription.closeOnce.Do(func() {
		hub := subscription.hub
		hub.mu.Lock()
		defer hub.mu.Unlock()
		for _, topic := range subscription.topics {
			delete(hub.subscribers[topic], subscription)
			if len(hub.subscribers[topic]) == 0 {
				delete(hub.subscribers, topic)
			}
		}
		close(subscription.messages)
	})
}
