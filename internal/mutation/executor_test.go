package mutation

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(name string, trace *[]string, applyErr, compErr error) Step {
	return Step{
		Name: name,
		Apply: func(ctx context.Context) error {
			if applyErr != nil {
				return applyErr
			}
			*trace = append(*trace, "apply:"+name)
			return nil
		},
		Compensate: func(ctx context.Context) error {
			if compErr != nil {
				return compErr
			}
			*trace = append(*trace, "undo:"+name)
			return nil
		},
	}
}

func TestRunAppliesStepsInOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var trace []string

	err := NewExecutor(logger).Run(context.Background(), "op", []Step{
		step("a", &trace, nil, nil),
		step("b", &trace, nil, nil),
		step("c", &trace, nil, nil),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"apply:a", "apply:b", "apply:c"}, trace)
}

func TestRunCompensatesInReverseOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var trace []string
	boom := errors.New("boom")

	err := NewExecutor(logger).Run(context.Background(), "op", []Step{
		step("a", &trace, nil, nil),
		step("b", &trace, nil, nil),
		step("c", &trace, boom, nil),
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"apply:a", "apply:b", "undo:b", "undo:a"}, trace)
}

func TestRunFirstStepFailureNeedsNoCompensation(t *testing.T) {
	logger, hook := test.NewNullLogger()
	var trace []string
	boom := errors.New("insufficient funds")

	err := NewExecutor(logger).Run(context.Background(), "op", []Step{
		step("a", &trace, boom, nil),
		step("b", &trace, nil, nil),
	})

	require.ErrorIs(t, err, boom)
	assert.Empty(t, trace)
	assert.Empty(t, hook.Entries)
}

func TestRunLogsFatalWhenCompensationFails(t *testing.T) {
	logger, hook := test.NewNullLogger()
	var trace []string
	boom := errors.New("boom")

	err := NewExecutor(logger).Run(context.Background(), "op", []Step{
		step("a", &trace, nil, errors.New("undo broken")),
		step("b", &trace, boom, nil),
	})

	require.ErrorIs(t, err, boom)
	require.Len(t, hook.Entries, 1)
	entry := hook.Entries[0]
	assert.Contains(t, entry.Message, "manual reconciliation")
	assert.Equal(t, "op", entry.Data["operation"])
	assert.Equal(t, "a", entry.Data["step"])
}

func TestRunSkipsNilCompensation(t *testing.T) {
	logger, hook := test.NewNullLogger()
	var trace []string
	boom := errors.New("boom")

	steps := []Step{
		{Name: "a", Apply: func(ctx context.Context) error { trace = append(trace, "apply:a"); return nil }},
		step("b", &trace, boom, nil),
	}

	err := NewExecutor(logger).Run(context.Background(), "op", steps)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"apply:a"}, trace)
	assert.Empty(t, hook.Entries)
}

func TestRunAtomicStopsWithoutCompensation(t *testing.T) {
	var trace []string
	boom := errors.New("boom")

	err := RunAtomic(context.Background(), []Step{
		step("a", &trace, nil, nil),
		step("b", &trace, boom, nil),
		step("c", &trace, nil, nil),
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"apply:a"}, trace)
}
