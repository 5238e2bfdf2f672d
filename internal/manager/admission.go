package manager

import (
	"context"
	"time"
)

// beginGeneration reserves a queue slot and then the single in-flight slot.
// Returns a release func that must be called exactly once when the generation
// has fully stopped using the model.
func (m *Manager) beginGeneration(ctx context.Context) (func(), error) {
	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()
	// If draining, reject new work to allow graceful shutdown
	if state == StateDraining || state == StateClosed {
		return func() {}, ErrDependencyUnavailable("server is shutting down")
	}

	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}

	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case m.queueCh <- struct{}{}:
		// reserved queue slot
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		m.publisher.Publish(Event{Name: "admission_timeout", ModelID: m.modelID(), Fields: map[string]any{"phase": "queue"}})
		return func() {}, tooBusyError{reason: "queue full"}
	}

	// Wait to acquire the single in-flight slot
	acquired := false
	defer func() {
		if !acquired {
			<-m.queueCh
		}
	}()
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer2 := time.NewTimer(m.maxWait)
	defer timer2.Stop()
	select {
	case m.genCh <- struct{}{}:
		acquired = true
		return func() { <-m.genCh; <-m.queueCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer2.C:
		m.publisher.Publish(Event{Name: "admission_timeout", ModelID: m.modelID(), Fields: map[string]any{"phase": "generation"}})
		return func() {}, tooBusyError{reason: "generation slot wait exceeded"}
	}
}

func (m *Manager) modelID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return ""
	}
	return m.cur.ID
}
