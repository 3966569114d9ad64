package pubsub

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"visits-observer/src/interfaces"
)

// MemoryPubsub is an in-process transport. Publish fans out to every listener
// on its own goroutine and returns once all of them have run.
type MemoryPubsub struct {
	mut       sync.RWMutex
	listeners map[string]map[uuid.UUID]interfaces.Listener
}

func NewInMemory() *MemoryPubsub {
	return &MemoryPubsub{
		listeners: make(map[string]map[uuid.UUID]interfaces.Listener),
	}
}

func (m *MemoryPubsub) Subscribe(channel, event string, listener interfaces.Listener) (cancel func(), err error) {
	m.mut.Lock()
	defer m.mut.Unlock()

	key := topic(channel, event)
	listeners, ok := m.listeners[key]
	if !ok {
		listeners = map[uuid.UUID]interfaces.Listener{}
		m.listeners[key] = listeners
	}

	var id uuid.UUID
	for {
		id = uuid.New()
		if _, ok = listeners[id]; !ok {
			break
		}
	}
	listeners[id] = listener

	return func() {
		m.mut.Lock()
		defer m.mut.Unlock()
		delete(m.listeners[key], id)
	}, nil
}

func (m *MemoryPubsub) Publish(channel, event string, message []byte) error {
	m.mut.RLock()
	defer m.mut.RUnlock()

	listeners, ok := m.listeners[topic(channel, event)]
	if !ok {
		return nil
	}

	var wg sync.WaitGroup
	for _, listener := range listeners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener(context.Background(), message)
		}()
	}
	wg.Wait()

	return nil
}

// Listeners returns the number of registrations for channel/event
func (m *MemoryPubsub) Listeners(channel, event string) int {
	m.mut.RLock()
	defer m.mut.RUnlock()
	return len(m.listeners[topic(channel, event)])
}

func (m *MemoryPubsub) Close() error {
	m.mut.Lock()
	defer m.mut.Unlock()
	m.listeners = make(map[string]map[uuid.UUID]interfaces.Listener)
	return nil
}
