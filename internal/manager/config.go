package manager

import (
	"time"

	"github.com/rs/zerolog"

	"vlmd/internal/chat"
	"vlmd/internal/generate"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 30 * time.Second
)

// Config encapsulates all tunables for Manager construction.
type Config struct {
	// Images resolves image parts. Nil rejects requests carrying images.
	Images chat.ImageResolver
	// DefaultMaxTokens applies when a request sets no limit.
	DefaultMaxTokens int
	// StreamBuffer is the token stream capacity per request.
	StreamBuffer  int
	MaxQueueDepth int
	MaxWait       time.Duration
	DrainTimeout  time.Duration
	Hooks         Hooks
	Publisher     EventPublisher
	Logger        zerolog.Logger
}

// New constructs a Manager in the loading state. Call SetModel once the model is open.
func New(cfg Config) *Manager {
	m := &Manager{
		state:            StateLoading,
		images:           cfg.Images,
		defaultMaxTokens: cfg.DefaultMaxTokens,
		hooks:            cfg.Hooks,
		publisher:        cfg.Publisher,
		log:              cfg.Logger,
		maxQueueDepth:    cfg.MaxQueueDepth,
		maxWait:          cfg.MaxWait,
		drainTimeout:     cfg.DrainTimeout,
		startTime:        time.Now(),
	}
	if m.maxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	}
	if m.maxWait <= 0 {
		m.maxWait = defaultMaxWait
	}
	if m.drainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	}
	if m.hooks == nil {
		m.hooks = NoopHooks{}
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	m.worker = &generate.Worker{Buffer: cfg.StreamBuffer, Logger: cfg.Logger}
	m.genCh = make(chan struct{}, 1)
	m.queueCh = make(chan struct{}, m.maxQueueDepth)
	return m
}
