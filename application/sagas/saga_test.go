package sagas

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSagaExecutesStepsInOrder(t *testing.T) {
	var order []string
	saga := NewSaga("test", zap.NewNop())
	for _, name := range []string{"one", "two", "three"} {
		name := name
		saga.AddStep(Step{
			Name: name,
			Execute: func(context.Context) error {
				order = append(order, name)
				return nil
			},
		})
	}

	require.NoError(t, saga.Execute(context.Background()))
	assert.Equal(t, []string{"one", "two", "three"}, order)
	assert.Equal(t, StateCompleted, saga.State())
}

func TestSagaCompensatesInReverseOrder(t *testing.T) {
	var undone []string
	boom := errors.New("boom")

	saga := NewSaga("test", zap.NewNop())
	saga.AddStep(Step{
		Name:    "first",
		Execute: func(context.Context) error { return nil },
		Compensate: func(context.Context) error {
			undone = append(undone, "first")
			return nil
		},
	})
	saga.AddStep(Step{
		Name:    "second",
		Execute: func(context.Context) error { return nil },
		Compensate: func(context.Context) error {
			undone = append(undone, "second")
			return nil
		},
	})
	saga.AddStep(Step{
		Name:    "failing",
		Execute: func(context.Context) error { return boom },
	})

	err := saga.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"second", "first"}, undone)
	assert.Equal(t, StateCompensated, saga.State())
}

func TestSagaFailedCompensationNeverMasksOriginalError(t *testing.T) {
	boom := errors.New("step failed")
	compensated := false

	saga := NewSaga("test", zap.NewNop())
	saga.AddStep(Step{
		Name:    "broken cleanup",
		Execute: func(context.Context) error { return nil },
		Compensate: func(context.Context) error {
			return errors.New("cleanup also failed")
		},
	})
	saga.AddStep(Step{
		Name:    "still runs",
		Execute: func(context.Context) error { return nil },
		Compensate: func(context.Context) error {
			compensated = true
			return nil
		},
	})
	saga.AddStep(Step{
		Name:    "failing",
		Execute: func(context.Context) error { return boom },
	})

	err := saga.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, compensated)
}

func TestSagaStepsWithoutCompensationAreSkippedOnRollback(t *testing.T) {
	saga := NewSaga("test", zap.NewNop())
	saga.AddStep(Step{
		Name:    "no cleanup",
		Execute: func(context.Context) error { return nil },
	})
	saga.AddStep(Step{
		Name:    "failing",
		Execute: func(context.Context) error { return errors.New("boom") },
	})

	assert.Error(t, saga.Execute(context.Background()))
	assert.Equal(t, StateCompensated, saga.State())
}

func TestSagaCompensationRunsDetachedFromCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	compensationCtxErr := errors.New("never ran")
	saga := NewSaga("test", zap.NewNop())
	saga.AddStep(Step{
		Name:    "first",
		Execute: func(context.Context) error { return nil },
		Compensate: func(ctx context.Context) error {
			compensationCtxErr = ctx.Err()
			return nil
		},
	})
	saga.AddStep(Step{
		Name: "canceled",
		Execute: func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		},
	})

	err := saga.Execute(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, compensationCtxErr)
}
