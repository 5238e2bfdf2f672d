package manager

// State represents the lifecycle state of the manager.
type State string

const (
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateError    State = "error"
	StateDraining State = "draining"
	StateClosed   State = "closed"
)

// ModelInfo is a minimal view of the served model.
type ModelInfo struct {
	ID      string
	Backend string
	Path    string
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State        State
	CurrentModel *ModelInfo
	Err          string
}
