package cache

import "fmt"

// StoreError wraps a failure of the underlying Store. Callers treat a
// failed lookup as a miss and a failed write as a skipped write.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cache store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
