package btree

import "bptlab/record"

// Operation names the engine operation a result belongs to.
type Operation string

const (
	OpSearch     Operation = "SEARCH"
	OpInsert     Operation = "INSERT"
	OpUpdate     Operation = "UPDATE"
	OpDelete     Operation = "DELETE"
	OpRangeQuery Operation = "RANGE_QUERY"
	OpBulkLoad   Operation = "BULK_LOAD"
)

// Result is the uniform envelope every operation produces. Failed operations
// keep the steps emitted up to the failure so a miss can still be replayed.
type Result struct {
	Success   bool                  `json:"success"`
	Operation Operation             `json:"operation"`
	Key       *record.CompositeKey  `json:"key,omitempty"`
	Value     *record.Record        `json:"value,omitempty"`
	Keys      []record.CompositeKey `json:"keys,omitempty"`
	Values    []record.Record       `json:"values,omitempty"`
	Steps     []Step                `json:"steps"`
	Error     string                `json:"error,omitempty"`
}

// OK builds a successful result around the given trace.
func OK(op Operation, steps []Step) *Result {
	if steps == nil {
		steps = []Step{}
	}
	return &Result{Success: true, Operation: op, Steps: steps}
}

// Fail builds a failed result carrying the error text and the partial trace.
func Fail(op Operation, steps []Step, err error) *Result {
	if steps == nil {
		steps = []Step{}
	}
	return &Result{Success: false, Operation: op, Steps: steps, Error: err.Error()}
}

// WithKey attaches the operation's key.
func (r *Result) WithKey(key record.CompositeKey) *Result {
	r.Key = keyPtr(key)
	return r
}

// WithValue attaches a single record.
func (r *Result) WithValue(value record.Record) *Result {
	r.Value = recordPtr(value)
	return r
}

// WithPairs attaches the parallel key/value lists of a range or bulk result.
func (r *Result) WithPairs(keys []record.CompositeKey, values []record.Record) *Result {
	r.Keys = keys
	r.Values = values
	return r
}
