// Package settings implements the fairness-tuning key-value store: a
// closed set of named numeric parameters, readable on every dispatch and
// writable through an admin endpoint, with propagation to readers
// happening within seconds rather than being transactionally consistent.
package settings

import "time"

// Keys is the closed set of settings names. Reader.Update rejects any key
// outside this set; the store layer itself does not check.
const (
	KeyFairnessBasePriority  = "fairness_base_priority"
	KeyFairnessWaitWeight    = "fairness_wait_weight"
	KeyFairnessUsageWeight   = "fairness_usage_weight"
	KeyFairnessUsageScale    = "fairness_usage_scale"
	KeyFairnessWindowMinutes = "fairness_window_minutes"
	KeyQueueTimeoutSecs      = "queue_timeout_secs"
)

// Defaults holds the factory values used when a key has no row yet.
var Defaults = map[string]float64{
	KeyFairnessBasePriority:  100,
	KeyFairnessWaitWeight:    1.0,
	KeyFairnessUsageWeight:   10.0,
	KeyFairnessUsageScale:    1000,
	KeyFairnessWindowMinutes: 60,
	KeyQueueTimeoutSecs:      30,
}

// allKeys enumerates the closed set in a stable order. Validation goes
// through IsValidKey (Defaults) instead.
var allKeys = []string{
	KeyFairnessBasePriority,
	KeyFairnessWaitWeight,
	KeyFairnessUsageWeight,
	KeyFairnessUsageScale,
	KeyFairnessWindowMinutes,
	KeyQueueTimeoutSecs,
}

// IsValidKey reports whether key belongs to the closed set.
func IsValidKey(key string) bool {
	_, ok := Defaults[key]
	return ok
}

// Fairness is the typed view of settings consumed by the priority formula
// and the admission policy.
type Fairness struct {
	BasePriority  float64
	WaitWeight    float64
	UsageWeight   float64
	UsageScale    float64
	WindowMinutes int
	QueueTimeoutS int
}

// QueueTimeout returns the configured queue admission timeout as a
// time.Duration.
func (f Fairness) QueueTimeout() time.Duration {
	return time.Duration(f.QueueTimeoutS) * time.Second
}
