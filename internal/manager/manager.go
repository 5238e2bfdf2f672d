package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"vlmd/internal/chat"
	"vlmd/internal/generate"
	"vlmd/internal/model"
	"vlmd/pkg/types"
)

type Manager struct {
	mu      sync.RWMutex
	state   State
	model   model.Model
	cur     *ModelInfo
	decoder *chat.Decoder
	err     string

	images           chat.ImageResolver
	defaultMaxTokens int
	worker           *generate.Worker
	hooks            Hooks
	publisher        EventPublisher
	log              zerolog.Logger

	// Queueing primitives
	genCh         chan struct{} // size 1: single in-flight generation
	queueCh       chan struct{} // buffered: queue slots
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	startTime   time.Time
	generations atomic.Uint64
	tokens      atomic.Uint64
}

// SetModel installs the loaded model and makes the manager ready.
func (m *Manager) SetModel(mdl model.Model, backend, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = mdl
	m.cur = &ModelInfo{ID: mdl.ID(), Backend: backend, Path: path}
	m.decoder = &chat.Decoder{
		Images:           m.images,
		Model:            mdl,
		DefaultMaxTokens: m.defaultMaxTokens,
	}
	m.state = StateReady
	m.err = ""
	m.log.Info().Str("model", mdl.ID()).Str("backend", backend).Msg("model ready")
	m.publisher.Publish(Event{Name: "model_ready", ModelID: mdl.ID(), Fields: map[string]any{"backend": backend}})
}

// SetLoadError records a failed model load.
func (m *Manager) SetLoadError(err error) {
	m.mu.Lock()
	m.state = StateError
	m.err = err.Error()
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.err = err.Error()
	m.mu.Unlock()
}

func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateReady && m.model != nil
}

// ListModels returns the served model, if any.
func (m *Manager) ListModels() []types.Model {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cur == nil {
		return []types.Model{}
	}
	return []types.Model{{ID: m.cur.ID, Backend: m.cur.Backend, Path: m.cur.Path}}
}
