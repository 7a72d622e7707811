package graph

import (
	"fmt"
	"strings"
)

// CyclicGraphError is returned when the producer/consumer edges form a
// cycle. Cycle lists the steps on the cycle in edge order.
type CyclicGraphError struct {
	Cycle []string
}

func (e *CyclicGraphError) Error() string {
	if len(e.Cycle) == 0 {
		return "cycle detected"
	}
	path := append(append([]string{}, e.Cycle...), e.Cycle[0])
	return fmt.Sprintf("cycle detected: %s", strings.Join(path, " -> "))
}

// DuplicateProducerError is returned when more than one step declares the
// same output asset.
type DuplicateProducerError struct {
	Asset     string
	Producers []string
}

func (e *DuplicateProducerError) Error() string {
	return fmt.Sprintf("asset '%s' is produced by more than one step: %s", e.Asset, strings.Join(e.Producers, ", "))
}

// DuplicateStepError is returned when two steps share a name.
type DuplicateStepError struct {
	Name string
}

func (e *DuplicateStepError) Error() string {
	return fmt.Sprintf("duplicate step name '%s'", e.Name)
}
