package record

import (
	"fmt"
	"math/rand"
)

// RandomKey generates a single-column integer key in [0, keySpace).
// Bulk loading uses a key space larger than the requested count so that
// duplicate draws stay possible but rare.
func RandomKey(rng *rand.Rand, keySpace int64) CompositeKey {
	return NewKey(NewInt(rng.Int63n(keySpace)))
}

// RandomRecord generates a row exercising all four column types.
func RandomRecord(rng *rand.Rand) Record {
	return NewRecord(
		NewString(fmt.Sprintf("row_%04d", rng.Intn(10000))),
		NewFloat(float64(rng.Intn(100000))/100.0),
		NewBool(rng.Intn(2) == 1),
	)
}
