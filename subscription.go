package coophub

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// allConversations subscribes to messages from every conversation.
const allConversations = ""

// subscription represents an active chat message subscription.
type subscription struct {
	id             string
	conversationID string
	callback       func(*Message)
	active         atomic.Bool
}

// subscriptionManager handles chat subscriptions with safe lifecycle management.
// It ensures callbacks are never invoked after unsubscription completes.
type subscriptionManager struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*subscription // conversationID -> subID -> subscription
	nextID atomic.Uint64
}

// newSubscriptionManager creates a new subscription manager.
func newSubscriptionManager() *subscriptionManager {
	return &subscriptionManager{
		subs: make(map[string]map[string]*subscription),
	}
}

// subscribe registers a callback for messages in the given conversation.
// Returns an unsubscribe function that must be called to clean up.
func (m *subscriptionManager) subscribe(conversationID string, callback func(*Message)) func() {
	id := strconv.FormatUint(m.nextID.Add(1), 10)

	sub := &subscription{
		id:             id,
		conversationID: conversationID,
		callback:       callback,
	}
	sub.active.Store(true)

	m.mu.Lock()
	if m.subs[conversationID] == nil {
		m.subs[conversationID] = make(map[string]*subscription)
	}
	m.subs[conversationID][id] = sub
	m.mu.Unlock()

	return func() {
		m.unsubscribe(conversationID, id)
	}
}

// unsubscribe removes a subscription. Safe to call multiple times.
func (m *subscriptionManager) unsubscribe(conversationID, subID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if convSubs, ok := m.subs[conversationID]; ok {
		if sub, ok := convSubs[subID]; ok {
			sub.active.Store(false)
			delete(convSubs, subID)
			if len(convSubs) == 0 {
				delete(m.subs, conversationID)
			}
		}
	}
}

// notify calls the callbacks for msg's conversation and the catch-all
// subscribers. Callbacks run synchronously, outside the lock.
func (m *subscriptionManager) notify(msg *Message) {
	m.mu.RLock()
	var subs []*subscription
	for _, key := range []string{msg.ConversationID, allConversations} {
		for _, sub := range m.subs[key] {
			subs = append(subs, sub)
		}
		if msg.ConversationID == allConversations {
			break
		}
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.callback(msg)
		}
	}
}

// conversations returns the IDs with at least one specific subscriber.
func (m *subscriptionManager) conversations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.subs))
	for id := range m.subs {
		if id != allConversations {
			ids = append(ids, id)
		}
	}
	return ids
}

// clear removes all subscriptions. Called during Client.Close().
func (m *subscriptionManager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, convSubs := range m.subs {
		for _, sub := range convSubs {
			sub.active.Store(false)
		}
	}
	m.subs = make(map[string]map[string]*subscription)
}
