// Package bucket provides deterministic traffic allocation. An identifier is
// hashed with the bucket's seed into a fixed slot space, so the same
// identifier always lands in the same slot for a given bucket, with no
// dependence on randomness or the clock.
package bucket

import (
	"github.com/TimurManjosov/flagship-go-sdk/internal/workspace"
	"github.com/cespare/xxhash/v2"
)

// Bucketer maps identifiers to traffic slots.
type Bucketer struct{}

// New returns a Bucketer.
func New() Bucketer {
	return Bucketer{}
}

// Bucketing assigns the identifier to a slot in the bucket. It returns false
// when the computed slot number is outside every allocated range.
func (b Bucketer) Bucketing(bk workspace.Bucket, identifier string) (workspace.Slot, bool) {
	if bk.SlotSize <= 0 {
		return workspace.Slot{}, false
	}
	return bk.SlotByNumber(b.slotNumber(bk.Seed, bk.SlotSize, identifier))
}

// slotNumber hashes the identifier under the bucket seed into [0, slotSize).
// The same (seed, identifier) pair always yields the same slot.
func (b Bucketer) slotNumber(seed int64, slotSize int, identifier string) int {
	digest := xxhash.NewWithSeed(uint64(seed))
	_, _ = digest.WriteString(identifier)
	return int(digest.Sum64() % uint64(slotSize))
}
