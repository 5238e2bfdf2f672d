// Package manager owns the served model and coordinates requests against it.
// It is structured into small files by concern:
//
//   - manager.go: core Manager type, model installation, simple getters.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: lifecycle state and snapshot types.
//   - errors.go: error types and helpers (IsTooBusy, IsDependencyUnavailable).
//   - admission.go: queueing and single in-flight generation admission.
//   - infer.go: the Infer entry point that drives one streaming generation.
//   - hooks.go: Before/After generation hooks (metrics are attached here).
//   - status.go: Status/Snapshot reporting.
//   - close.go: graceful drain and model teardown.
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//
// External packages should treat this package as the orchestration layer and use
// public methods only (New, SetModel, Ready, ListModels, Status, Infer, Close).
package manager
