package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoopStage_Validation(t *testing.T) {
	child := NewStage("child", nil)

	_, err := NewLoopStage("empty", Cond(Always()), nil, 0)
	assert.Error(t, err, "a loop needs at least one child")

	var unset Deferred[Condition]
	_, err = NewLoopStage("no-cond", unset, []*Stage{child}, 0)
	assert.Error(t, err, "a loop needs a condition")

	_, err = NewLoopStage("negative", Cond(Always()), []*Stage{child}, -1)
	assert.Error(t, err, "negative iteration caps are rejected")
}

func TestLoop_RunsUntilConditionFalse(t *testing.T) {
	counter := 0
	child := NewStage("increment", func(context.Context, *Stage) error {
		counter++
		return nil
	})
	cond := Custom("counter below 3", func(*Context, string) (bool, error) {
		return counter < 3, nil
	})

	loop, err := NewLoopStage("count-up", Cond(cond), []*Stage{child}, 0)
	require.NoError(t, err)
	loop.bindContext(newTestContext(nil))

	ran, err := loop.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 3, counter)
	assert.Equal(t, StatusCompleted, loop.Status())
	assert.Equal(t, 3, loop.Meta()[MetaTotalIterations])
}

func TestLoop_ZeroIterations(t *testing.T) {
	recipeRan := false
	child := NewStage("never-runs", func(context.Context, *Stage) error {
		recipeRan = true
		return nil
	})

	loop, err := NewLoopStage("idle", Cond(Never()), []*Stage{child}, 0)
	require.NoError(t, err)
	loop.bindContext(newTestContext(nil))

	ran, err := loop.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, ran, "a zero-iteration loop still completes")
	assert.False(t, recipeRan)
	assert.Equal(t, StatusCompleted, loop.Status())
	assert.Equal(t, 0, loop.Meta()[MetaTotalIterations])
	assert.Equal(t, time.Duration(0), loop.Meta()[MetaMeanIterationTime])
}

func TestLoop_MaxIterationsCapsRun(t *testing.T) {
	iterations := 0
	child := NewStage("tick", func(context.Context, *Stage) error {
		iterations++
		return nil
	})

	loop, err := NewLoopStage("capped", Cond(Always()), []*Stage{child}, 2)
	require.NoError(t, err)
	loop.bindContext(newTestContext(nil))

	_, err = loop.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, iterations)
	assert.Equal(t, 2, loop.Meta()[MetaTotalIterations])
}

func TestLoop_ChildFailureAbortsLoop(t *testing.T) {
	iterations := 0
	failing := NewStage("flaky", func(context.Context, *Stage) error {
		iterations++
		if iterations == 2 {
			return errors.New("second iteration failed")
		}
		return nil
	})
	after := NewStage("after", nil)

	loop, err := NewLoopStage("fragile", Cond(Always()), []*Stage{failing, after}, 5)
	require.NoError(t, err)
	loop.bindContext(newTestContext(nil))

	_, err = loop.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, iterations)
	assert.Equal(t, StatusFailed, loop.Status())
	assert.Equal(t, StatusFailed, failing.Status())
}

func TestLoop_ChildrenResetBetweenIterations(t *testing.T) {
	runs := 0
	child := NewStage("repeat", func(context.Context, *Stage) error {
		runs++
		return nil
	})
	cond := Custom("two runs", func(*Context, string) (bool, error) {
		return runs < 2, nil
	})

	loop, err := NewLoopStage("repeater", Cond(cond), []*Stage{child}, 0)
	require.NoError(t, err)
	loop.bindContext(newTestContext(nil))

	_, err = loop.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, runs, "the child must run once per iteration, not once per run")
}

func TestLoop_MeanTimesRecorded(t *testing.T) {
	child := NewStage("sleepy", func(context.Context, *Stage) error {
		time.Sleep(time.Millisecond)
		return nil
	})

	loop, err := NewLoopStage("timed", Cond(Always()), []*Stage{child}, 3)
	require.NoError(t, err)
	loop.bindContext(newTestContext(nil))

	_, err = loop.Execute(context.Background())
	require.NoError(t, err)

	mean, ok := loop.Meta()[MetaMeanIterationTime].(time.Duration)
	require.True(t, ok)
	assert.Greater(t, mean, time.Duration(0))

	perChild, ok := loop.Meta()[MetaMeanStageTime].(map[string]time.Duration)
	require.True(t, ok)
	assert.Greater(t, perChild["sleepy"], time.Duration(0))
}

func TestLoop_CancellationStopsIteration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	iterations := 0
	child := NewStage("tick", func(context.Context, *Stage) error {
		iterations++
		cancel()
		return nil
	})

	loop, err := NewLoopStage("cancellable", Cond(Always()), []*Stage{child}, 0)
	require.NoError(t, err)
	loop.bindContext(newTestContext(nil))

	_, err = loop.Execute(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, iterations)
}
