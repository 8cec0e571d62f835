package supervisor

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/sovereignengine/gateway/internal/sovereignerr"
)

const uidAllocAttempts = 20

// allocateUID samples uniformly from [min, max] and rejects collisions
// against taken. Uniqueness only needs to hold among co-existing workers,
// so no global sequence is maintained across restarts.
func allocateUID(min, max int, taken map[int]bool) (int, error) {
	if max < min {
		return 0, sovereignerr.New(sovereignerr.Internal, "invalid worker UID range")
	}
	span := big.NewInt(int64(max-min) + 1)

	for attempt := 0; attempt < uidAllocAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, span)
		if err != nil {
			return 0, fmt.Errorf("sampling worker UID: %w", err)
		}
		candidate := min + int(n.Int64())
		if !taken[candidate] {
			return candidate, nil
		}
	}

	return 0, sovereignerr.New(sovereignerr.Unavailable, "could not allocate a free worker UID")
}
