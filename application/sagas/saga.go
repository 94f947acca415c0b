package sagas

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Step is a single forward action in a saga. Compensate undoes the
// action and may be nil for steps with nothing to undo.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// State represents the current state of a saga execution
type State string

const (
	StatePending     State = "PENDING"
	StateRunning     State = "RUNNING"
	StateCompleted   State = "COMPLETED"
	StateCompensated State = "COMPENSATED"
)

// Saga runs a sequence of steps with best-effort compensating rollback.
// On a step failure the compensations of all completed steps run in
// reverse creation order; each compensating action is independently
// fault-tolerant (log-and-continue) so one failed cleanup never masks
// the original failure, which is always what the caller receives.
type Saga struct {
	id            string
	name          string
	steps         []Step
	compensations []Step
	state         State
	logger        *zap.Logger
}

// NewSaga creates a new saga instance
func NewSaga(name string, logger *zap.Logger) *Saga {
	return &Saga{
		id:     uuid.New().String(),
		name:   name,
		state:  StatePending,
		logger: logger,
	}
}

// AddStep adds a step to the saga
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// State returns the saga's current state
func (s *Saga) State() State { return s.state }

// Execute runs the saga
func (s *Saga) Execute(ctx context.Context) error {
	s.state = StateRunning
	s.logger.Debug("starting saga",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
		zap.Int("total_steps", len(s.steps)),
	)

	for _, step := range s.steps {
		if err := step.Execute(ctx); err != nil {
			s.logger.Error("saga step failed",
				zap.String("saga_id", s.id),
				zap.String("saga_name", s.name),
				zap.String("step_name", step.Name),
				zap.Error(err),
			)
			s.compensate(ctx)
			s.state = StateCompensated
			return fmt.Errorf("saga %s failed at step %s: %w", s.name, step.Name, err)
		}
		if step.Compensate != nil {
			s.compensations = append(s.compensations, step)
		}
	}

	s.state = StateCompleted
	s.logger.Debug("saga completed",
		zap.String("saga_id", s.id),
		zap.String("saga_name", s.name),
	)
	return nil
}

// compensate runs registered compensations in reverse creation order,
// swallowing their errors. Rollback must still reach the stores when the
// triggering failure was the context itself being canceled, so it runs
// detached from the caller's cancellation.
func (s *Saga) compensate(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(s.compensations) - 1; i >= 0; i-- {
		step := s.compensations[i]
		if err := step.Compensate(ctx); err != nil {
			s.logger.Warn("saga compensation failed, continuing",
				zap.String("saga_id", s.id),
				zap.String("saga_name", s.name),
				zap.String("step_name", step.Name),
				zap.Error(err),
			)
		}
	}
}
