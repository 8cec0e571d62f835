// Package supervisor manages the lifecycle of per-model inference worker
// containers: allocation, isolated-network start, health probing, and
// graceful stop, backed by containerd.
package supervisor

import (
	"time"

	"github.com/google/uuid"
)

// Worker is one running (or recently running) inference container and the
// secret the coordinator uses to reach it.
type Worker struct {
	ModelID     uuid.UUID `json:"model_id"`
	ContainerID string    `json:"container_id"`
	UID         int       `json:"uid"`
	APIKey      string    `json:"-"`
	MaxSlots    int       `json:"max_slots"`
	Hostname    string    `json:"hostname"`
	CreatedAt   time.Time `json:"created_at"`
}

// Health is the outcome of a worker health probe.
type Health struct {
	Healthy bool   `json:"healthy"`
	Reason  string `json:"reason,omitempty"`
}

// managedByLabel marks every container this supervisor created, so
// Runtime.List can enumerate them without tracking state elsewhere.
const managedByLabel = "sovereign.managed-by=sovereign-gateway"

// workerPort is the well-known port every worker image listens on inside
// the isolated network.
const workerPort = 8000
