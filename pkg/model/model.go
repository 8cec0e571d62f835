package model

import "github.com/google/uuid"

// LoadState is the lifecycle state of a model's backing worker. Transitions
// happen only through the supervisor.
type LoadState string

const (
	LoadStateUnloaded LoadState = "unloaded"
	LoadStateLoading  LoadState = "loading"
	LoadStateLoaded   LoadState = "loaded"
)

// Model is a single entry in the model catalog.
type Model struct {
	ID            uuid.UUID  `json:"id"`
	RepoRef       string     `json:"repo_ref"`
	Filename      string     `json:"filename"`
	SizeBytes     int64      `json:"size_bytes"`
	CategoryID    *uuid.UUID `json:"category_id,omitempty"`
	LoadState     LoadState  `json:"load_state"`
	ContextLength int        `json:"context_length"`
}

// Loaded reports whether the model currently has a running worker.
func (m Model) Loaded() bool {
	return m.LoadState == LoadStateLoaded
}

// Category groups models under an admin-managed preference.
type Category struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	PreferredModelID *uuid.UUID `json:"preferred_model_id,omitempty"`
}
