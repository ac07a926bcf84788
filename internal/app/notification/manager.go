// Package notification provides the notification manager for broadcasting
// player notifications to watchers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/podbox/internal/api/playerapi"
)

const sendTimeout = 500 * time.Millisecond

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*playerapi.Notification) error
}

// subscription represents a subscriber's subscription.
// Broadcasts wait for ready and skip anything numbered below after.
type subscription struct {
	id     string
	stream Stream
	ready  chan struct{}
	after  uint64
}

func (s *subscription) send(n *playerapi.Notification) error {
	<-s.ready
	if n.SequenceNo < s.after {
		return nil
	}
	return s.stream.Send(n)
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	done          chan struct{}
	closeOnce     sync.Once
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		done:          make(chan struct{}),
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	sub := m.add(stream)
	close(sub.ready)
	return sub.id
}

// SubscribeWithInitial adds a subscription and sends it the notification
// built by initial before any broadcast. initial runs after registration,
// so no change between the snapshot and the subscription is lost.
// On a failed send the subscription is removed.
func (m *Manager) SubscribeWithInitial(stream Stream, initial func() *playerapi.Notification) (string, error) {
	sub := m.add(stream)

	n := initial()
	n.SequenceNo = m.NextSequenceNo()
	sub.after = n.SequenceNo
	err := stream.Send(n)
	close(sub.ready)

	if err != nil {
		m.Unsubscribe(sub.id)
		return "", err
	}
	return sub.id, nil
}

func (m *Manager) add(stream Stream) *subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub := &subscription{
		id:     uuid.New().String(),
		stream: stream,
		ready:  make(chan struct{}),
	}
	m.subscriptions[sub.id] = sub
	zlog.Debug().Msgf("notification: subscribed: id=%s", sub.id)
	return sub
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
	zlog.Debug().Msgf("notification: unsubscribed: id=%s", subscriptionID)
}

// Broadcast stamps notification with the next sequence number and sends it
// to all subscribers. Each send runs in its own goroutine and is abandoned
// after a timeout so a slow watcher cannot block the others.
func (m *Manager) Broadcast(notification *playerapi.Notification) {
	notification.SequenceNo = m.NextSequenceNo()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.send(notification)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Err(err).Msgf("notification: send failed: id=%s", s.id)
				}
			case <-ctx.Done():
				zlog.Warn().Msgf("notification: send timed out: id=%s type=%s", s.id, notification.Type)
			}
		}(sub)
	}

	wg.Wait()
}

// Send sends a notification to a specific subscriber.
func (m *Manager) Send(subscriptionID string, notification *playerapi.Notification) error {
	m.mu.RLock()
	sub, ok := m.subscriptions[subscriptionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return sub.send(notification)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Done is closed by Close so long-lived streams can return.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close removes all subscriptions and releases waiting streams.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.subscriptions = make(map[string]*subscription)
		m.mu.Unlock()
		close(m.done)
	})
}
