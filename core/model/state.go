// Package model provides fitted-state bookkeeping and gob persistence shared
// by the surrogate and the artifact store.
package model

import (
	"sync"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// StateManager tracks whether a surrogate has been fitted and the data
// shape it was fitted on. It is safe for concurrent use.
type StateManager struct {
	Fitted bool // Public for gob encoding
	mu     sync.RWMutex

	// Public for gob encoding
	NSamples   int
	NFeatures  int
	GridPoints int
}

// NewStateManager returns an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted records a successful fit on N samples of D parameters and M
// grid points.
func (s *StateManager) SetFitted(nSamples, nFeatures, gridPoints int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NSamples = nSamples
	s.NFeatures = nFeatures
	s.GridPoints = gridPoints
}

// Reset clears the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NSamples = 0
	s.NFeatures = 0
	s.GridPoints = 0
}

// Shape returns the dimensions recorded by SetFitted.
func (s *StateManager) Shape() (nSamples, nFeatures, gridPoints int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NSamples, s.NFeatures, s.GridPoints
}

// RequireFitted returns errors.ErrNotFitted until SetFitted has been called.
func (s *StateManager) RequireFitted(op string) error {
	if !s.IsFitted() {
		return errors.Wrap(errors.ErrNotFitted, op)
	}
	return nil
}

// RequireFeatures checks a query's parameter dimension against the fit.
func (s *StateManager) RequireFeatures(op string, got int) error {
	if err := s.RequireFitted(op); err != nil {
		return err
	}
	_, d, _ := s.Shape()
	if got != d {
		return errors.NewDimensionError(op, d, got, 1)
	}
	return nil
}
