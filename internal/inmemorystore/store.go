package inmemorystore

import (
	"context"
	"sync"

	"github.com/specialistvlad/stepgrid/internal/node"
	"github.com/specialistvlad/stepgrid/internal/nodestore"
)

// Store is an in-memory implementation of nodestore.Store.
//
// It keeps three independent sync.Maps keyed by step name. Each step's
// state is written by one worker and read by the scheduler, so keys are
// stable and values change often, the access pattern sync.Map suits.
type Store struct {
	states  sync.Map // step name -> node.Status
	outputs sync.Map // step name -> map[string]any
	errors  sync.Map // step name -> error
}

// New creates a new, empty in-memory step state store.
func New() nodestore.Store {
	return &Store{}
}

// SetStatus updates the execution status of a step.
func (s *Store) SetStatus(ctx context.Context, stepName string, status node.Status) error {
	s.states.Store(stepName, status)
	return nil
}

// GetStatus retrieves the execution status of a step.
// If a status has not been set, it returns StatusPending.
func (s *Store) GetStatus(ctx context.Context, stepName string) (node.Status, error) {
	status, ok := s.states.Load(stepName)
	if !ok {
		return node.StatusPending, nil
	}
	return status.(node.Status), nil
}

// SetOutput records the output assets of a step.
func (s *Store) SetOutput(ctx context.Context, stepName string, outputs map[string]any) error {
	s.outputs.Store(stepName, outputs)
	return nil
}

// GetOutput retrieves the recorded outputs of a step.
func (s *Store) GetOutput(ctx context.Context, stepName string) (map[string]any, error) {
	out, ok := s.outputs.Load(stepName)
	if !ok {
		return nil, nil // If not found, the output is nil.
	}
	return out.(map[string]any), nil
}

// SetError records the failure error of a step.
func (s *Store) SetError(ctx context.Context, stepName string, stepErr error) error {
	s.errors.Store(stepName, stepErr)
	return nil
}

// GetError retrieves the recorded error of a step.
func (s *Store) GetError(ctx context.Context, stepName string) (error, error) {
	err, ok := s.errors.Load(stepName)
	if !ok {
		return nil, nil // If not found, there is no error.
	}
	return err.(error), nil
}

// Statuses returns a snapshot of every recorded status.
func (s *Store) Statuses(ctx context.Context) (map[string]node.Status, error) {
	out := make(map[string]node.Status)
	s.states.Range(func(k, v any) bool {
		out[k.(string)] = v.(node.Status)
		return true
	})
	return out, nil
}
