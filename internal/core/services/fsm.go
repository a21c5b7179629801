package services

import (
	"fmt"

	"github.com/custodia-labs/mosaic/internal/core/domain"
)

// runTransitions lists the legal moves of a discovery run.
// A run only ever moves forward; terminal states have no exits.
var runTransitions = map[domain.RunStatus][]domain.RunStatus{
	domain.RunStatusPending:       {domain.RunStatusQuerying},
	domain.RunStatusQuerying:      {domain.RunStatusNormalizing, domain.RunStatusFailed},
	domain.RunStatusNormalizing:   {domain.RunStatusExtracting, domain.RunStatusDeduplicating},
	domain.RunStatusExtracting:    {domain.RunStatusDeduplicating},
	domain.RunStatusDeduplicating: {domain.RunStatusPersisting, domain.RunStatusPartial},
	domain.RunStatusPersisting:    {domain.RunStatusDone, domain.RunStatusPartial},
}

// runMachine tracks the state of one run. It is owned by the run's
// goroutine; progress readers see copies published by the orchestrator.
type runMachine struct {
	state   domain.RunStatus
	history []domain.RunStatus
}

func newRunMachine() *runMachine {
	return &runMachine{
		state:   domain.RunStatusPending,
		history: []domain.RunStatus{domain.RunStatusPending},
	}
}

// State returns the current state.
func (m *runMachine) State() domain.RunStatus {
	return m.state
}

// History returns every state the run has been in, in order.
func (m *runMachine) History() []domain.RunStatus {
	return append([]domain.RunStatus(nil), m.history...)
}

// Transition moves the run to next.
// Returns ErrInvalidTransition if the move is not in the table.
func (m *runMachine) Transition(next domain.RunStatus) error {
	if !canTransition(m.state, next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, m.state, next)
	}
	m.state = next
	m.history = append(m.history, next)
	return nil
}

func canTransition(from, to domain.RunStatus) bool {
	for _, allowed := range runTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
