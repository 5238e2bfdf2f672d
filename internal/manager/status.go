package manager

import (
	"time"

	"vlmd/pkg/types"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var cur *ModelInfo
	if m.cur != nil {
		c := *m.cur
		cur = &c
	}
	return Snapshot{State: m.state, CurrentModel: cur, Err: m.err}
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := types.StatusResponse{
		State:            string(m.state),
		QueueLen:         len(m.queueCh) - len(m.genCh),
		Inflight:         len(m.genCh),
		MaxQueueDepth:    cap(m.queueCh),
		GenerationsTotal: m.generations.Load(),
		TokensTotal:      m.tokens.Load(),
		LastError:        m.err,
		UptimeSeconds:    int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix:   time.Now().Unix(),
	}
	if resp.QueueLen < 0 {
		resp.QueueLen = 0
	}
	if m.cur != nil {
		resp.Model = types.Model{ID: m.cur.ID, Backend: m.cur.Backend, Path: m.cur.Path}
	}
	return resp
}
