// Package broadcast delivers live notification events to connected subscribers keyed by user id.
package broadcast

import (
	"context"
	"sync"

	"github.com/spec-kit/case-service/internal/domain"
)

const subscriberBuffer = 16

// Broadcaster fans out events to the current subscribers of a user. There is no replay.
type Broadcaster interface {
	Publish(ctx context.Context, userID string, event domain.NotificationEvent) error
	// Subscribe returns a channel that is closed once ctx is done.
	Subscribe(ctx context.Context, userID string) (<-chan domain.NotificationEvent, error)
}

type subscriber struct {
	ch chan domain.NotificationEvent
}

// Memory is an in-process channel-per-user broadcaster.
type Memory struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

// NewMemory creates an empty broadcaster.
func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[*subscriber]struct{})}
}

// Publish delivers to every subscriber whose buffer has room; slow readers miss events.
func (m *Memory) Publish(_ context.Context, userID string, event domain.NotificationEvent) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for sub := range m.subs[userID] {
		select {
		case sub.ch <- event:
		default:
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, userID string) (<-chan domain.NotificationEvent, error) {
	sub := &subscriber{ch: make(chan domain.NotificationEvent, subscriberBuffer)}

	m.mu.Lock()
	if m.subs[userID] == nil {
		m.subs[userID] = make(map[*subscriber]struct{})
	}
	m.subs[userID][sub] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[userID], sub)
		if len(m.subs[userID]) == 0 {
			delete(m.subs, userID)
		}
		close(sub.ch)
		m.mu.Unlock()
	}()

	return sub.ch, nil
}

// Subscribers reports how many live subscribers a user has.
func (m *Memory) Subscribers(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[userID])
}
