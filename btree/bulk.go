package btree

import (
	"fmt"
	"math/rand"

	"bptlab/record"
)

// Bounds on the random bulk loader.
const (
	MinBulkCount     = 1
	MaxBulkCount     = 500
	DefaultBulkCount = 20
)

// BulkResult reports what a bulk load inserted and the combined trace of the
// individual inserts.
type BulkResult struct {
	Keys   []record.CompositeKey `json:"keys"`
	Values []record.Record       `json:"values"`
	Steps  []Step                `json:"steps"`
}

// BulkLoad inserts count randomly generated key/value pairs into tree,
// running each insert to completion before starting the next. Duplicate
// random keys are retried with fresh ones rather than surfaced as errors.
// The seed makes a load reproducible.
func BulkLoad(tree *Tree, inst Instruments, count int, seed int64) (*BulkResult, error) {
	if count < MinBulkCount || count > MaxBulkCount {
		return nil, fmt.Errorf("bulk count must be between %d and %d, got %d", MinBulkCount, MaxBulkCount, count)
	}

	rng := rand.New(rand.NewSource(seed))
	keySpace := int64(count) * 4

	result := &BulkResult{
		Keys:   make([]record.CompositeKey, 0, count),
		Values: make([]record.Record, 0, count),
		Steps:  []Step{},
	}

	attempts := 0
	maxAttempts := count * 10
	for len(result.Keys) < count {
		if attempts >= maxAttempts {
			return nil, fmt.Errorf("bulk load gave up after %d attempts, inserted %d of %d", attempts, len(result.Keys), count)
		}
		attempts++

		key := record.RandomKey(rng, keySpace)
		value := record.RandomRecord(rng)

		eng := NewEngine(tree, inst)
		if err := eng.Insert(key, value); err != nil {
			if IsDuplicateKey(err) {
				continue
			}
			return nil, err
		}

		result.Keys = append(result.Keys, key)
		result.Values = append(result.Values, value)
		result.Steps = append(result.Steps, eng.Steps()...)
	}
	return result, nil
}
