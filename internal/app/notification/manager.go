// Package notification provides the notification manager for broadcasting
// session state changes.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19remote/internal/app/playback"
	"github.com/osa030/19remote/internal/domain/session"
)

// sendTimeout bounds a single stream send during broadcast.
const sendTimeout = 500 * time.Millisecond

// Notification is one pushed state change. SequenceNo is the session
// revision the state was committed under, so a higher number always carries
// a newer state of that session.
type Notification struct {
	SequenceNo uint64         `json:"sequence_no"`
	Event      string         `json:"event"`
	SessionKey session.Key    `json:"session_key"`
	Command    string         `json:"command,omitempty"`
	State      playback.State `json:"state"`
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// StreamFunc adapts a function to Stream.
type StreamFunc func(*Notification) error

// Send implements Stream.
func (f StreamFunc) Send(n *Notification) error {
	return f(n)
}

// Ordered wraps a stream and drops any notification whose sequence number
// is not newer than the last one delivered for the same session. Publishing
// happens after the session lock is released, so two commits can reach a
// subscriber in reverse order; Ordered keeps the newest state last.
type Ordered struct {
	mu   sync.Mutex
	next Stream
	last map[session.Key]uint64
}

// NewOrdered creates an ordering wrapper around next.
func NewOrdered(next Stream) *Ordered {
	return &Ordered{
		next: next,
		last: make(map[session.Key]uint64),
	}
}

// Send implements Stream. A stale notification is dropped without error.
func (o *Ordered) Send(n *Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if last, ok := o.last[n.SessionKey]; ok && n.SequenceNo <= last {
		zlog.Debug().Msgf("stale notification dropped: key=%s sequence_no=%d last=%d", n.SessionKey, n.SequenceNo, last)
		return nil
	}
	if err := o.next.Send(n); err != nil {
		return err
	}
	o.last[n.SessionKey] = n.SequenceNo
	return nil
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	key    session.Key // Empty receives every session
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a subscription for one session (or every session when key
// is empty) and returns the subscription ID.
func (m *Manager) Subscribe(key session.Key, stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		key:    key,
		stream: stream,
	}
	zlog.Debug().Msgf("subscribed: id=%s key=%s", id, key)
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Publish broadcasts a committed playback event, numbered by its revision.
func (m *Manager) Publish(e playback.Event) {
	m.Broadcast(&Notification{
		SequenceNo: e.Revision,
		Event:      e.Type.String(),
		SessionKey: e.SessionKey,
		Command:    string(e.Command),
		State:      e.State,
	})
}

// Broadcast sends a notification to every subscriber of its session.
// Each stream send is done in a goroutine with a timeout to prevent blocking.
// Returns the number of streams that accepted the notification.
func (m *Manager) Broadcast(notification *Notification) int {
	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if sub.key == "" || sub.key == notification.SessionKey {
			subs = append(subs, sub)
		}
	}
	m.mu.RUnlock()

	var (
		wg        sync.WaitGroup
		deliverMu sync.Mutex
		delivered int
	)
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(notification)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification send failed: id=%s err=%v", s.id, err)
					return
				}
				deliverMu.Lock()
				delivered++
				deliverMu.Unlock()
			case <-ctx.Done():
				zlog.Debug().Msgf("notification send timed out: id=%s", s.id)
			}
		}(sub)
	}

	wg.Wait()
	return delivered
}

// Send sends a notification to a specific subscriber.
func (m *Manager) Send(subscriptionID string, notification *Notification) error {
	m.mu.RLock()
	sub, ok := m.subscriptions[subscriptionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	return sub.stream.Send(notification)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
