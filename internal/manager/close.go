package manager

import (
	"context"
	"time"
)

// Close drains the manager and tears the model down.
//   - Sets state to draining so new requests are rejected with 503.
//   - Waits up to DrainTimeout (or ctx) for queued and in-flight generations.
//   - Closes the model.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed || m.state == StateDraining {
		m.mu.Unlock()
		return nil
	}
	m.state = StateDraining
	mdl := m.model
	m.mu.Unlock()
	id := m.modelID()
	m.publisher.Publish(Event{Name: "drain_start", ModelID: id, Fields: map[string]any{}})

	deadline := time.NewTimer(m.drainTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		qlen, inflight := len(m.queueCh), len(m.genCh)
		if inflight == 0 && qlen == 0 {
			break
		}
		select {
		case <-tick.C:
		case <-deadline.C:
			m.publisher.Publish(Event{Name: "drain_timeout", ModelID: id, Fields: map[string]any{"inflight": inflight, "queue": qlen}})
			break wait
		case <-ctx.Done():
			m.publisher.Publish(Event{Name: "drain_timeout", ModelID: id, Fields: map[string]any{"inflight": inflight, "queue": qlen}})
			break wait
		}
	}

	var err error
	if mdl != nil {
		err = mdl.Close()
	}
	m.mu.Lock()
	m.state = StateClosed
	m.mu.Unlock()
	m.publisher.Publish(Event{Name: "drain_done", ModelID: id, Fields: map[string]any{}})
	m.log.Info().Str("model", id).Msg("manager closed")
	return err
}
