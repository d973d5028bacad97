package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory Source for exercising binding load/save paths.
type fakeSource struct {
	value   any
	loadErr error
	saved   []any
}

func (f *fakeSource) Load(context.Context) (any, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.value, nil
}

func (f *fakeSource) Save(_ context.Context, v any) error {
	f.saved = append(f.saved, v)
	return nil
}

func (f *fakeSource) String() string { return "fake" }

func TestStage_ExecuteSuccess(t *testing.T) {
	st := NewStage("double", func(_ context.Context, s *Stage) error {
		v, err := s.Input("in")
		if err != nil {
			return err
		}
		return s.SetOutput("out", v.(int)*2)
	}, Consumes("in"), Produces("out"))

	pctx := newTestContext(nil)
	pctx.Set("in", 21)
	st.bindContext(pctx)

	ran, err := st.Execute(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, StatusCompleted, st.Status())
	assert.False(t, st.Duration() < 0)

	out, err := pctx.Get("out")
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestStage_SkipLeavesNoSideEffects(t *testing.T) {
	recipeRan := false
	st := NewStage("guarded", func(_ context.Context, s *Stage) error {
		recipeRan = true
		return s.SetOutput("out", 1)
	}, Produces("out"), WithCondition(Never()))

	pctx := newTestContext(nil)
	st.bindContext(pctx)

	ran, err := st.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.False(t, recipeRan)
	assert.Equal(t, StatusSkipped, st.Status())
	assert.Equal(t, "condition not met: never execute", st.SkipReason())
	assert.False(t, pctx.Has("out"), "a skipped stage must not assign outputs")
	assert.Zero(t, st.Duration())
}

func TestStage_ConditionErrorFailsStage(t *testing.T) {
	st := NewStage("fragile", nil, WithConditionFunc(func(*Context, string) (bool, error) {
		return false, errors.New("flaky lookup")
	}))
	st.bindContext(newTestContext(nil))

	_, err := st.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, st.Status())
	assert.ErrorContains(t, err, "flaky lookup")
}

func TestStage_RecipeErrorFailsStage(t *testing.T) {
	st := NewStage("broken", func(context.Context, *Stage) error {
		return errors.New("boom")
	})
	st.bindContext(newTestContext(nil))

	ran, err := st.Execute(context.Background())
	assert.True(t, ran)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, st.Status())
	assert.ErrorContains(t, st.Err(), "boom")
}

func TestStage_SecondExecuteRejected(t *testing.T) {
	st := NewStage("once", nil)
	st.bindContext(newTestContext(nil))

	_, err := st.Execute(context.Background())
	require.NoError(t, err)

	_, err = st.Execute(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyExecuted)
}

func TestStage_UnassignedOutputFails(t *testing.T) {
	st := NewStage("forgetful", func(context.Context, *Stage) error {
		return nil
	}, Produces("out"))
	st.bindContext(newTestContext(nil))

	_, err := st.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusFailed, st.Status())
	assert.ErrorContains(t, err, `did not assign declared output "out"`)
}

func TestStage_UndeclaredOutputRejected(t *testing.T) {
	st := NewStage("sneaky", func(_ context.Context, s *Stage) error {
		return s.SetOutput("undeclared", 1)
	})
	st.bindContext(newTestContext(nil))

	_, err := st.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "undeclared")
}

func TestStage_LoadsSourceBackedInput(t *testing.T) {
	src := &fakeSource{value: "from disk"}
	var seen any
	st := NewStage("reader", func(_ context.Context, s *Stage) error {
		v, err := s.Input("data")
		seen = v
		return err
	}, ConsumesFrom(src, "data"))
	st.bindContext(newTestContext(nil))

	_, err := st.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from disk", seen)
}

func TestStage_SourceInputNotLoadedWhenAlreadyProduced(t *testing.T) {
	src := &fakeSource{loadErr: errors.New("must not be read")}
	var seen any
	st := NewStage("reader", func(_ context.Context, s *Stage) error {
		v, err := s.Input("data")
		seen = v
		return err
	}, ConsumesFrom(src, "data"))

	pctx := newTestContext(nil)
	pctx.Set("data", "from upstream")
	st.bindContext(pctx)

	_, err := st.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from upstream", seen)
}

func TestStage_SavesSourceBackedOutput(t *testing.T) {
	src := &fakeSource{}
	st := NewStage("writer", func(_ context.Context, s *Stage) error {
		return s.SetOutput("report", "payload")
	}, ProducesTo(src, "report"))
	st.bindContext(newTestContext(nil))

	_, err := st.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"payload"}, src.saved)
}

func TestStage_ReadingClearedVariableFails(t *testing.T) {
	pctx := newTestContext(nil)
	pctx.Set("gone", "value")
	v, ok := pctx.Variable("gone")
	require.True(t, ok)
	v.clear()

	_, err := pctx.Get("gone")
	var clearedErr *ClearedVariableError
	require.ErrorAs(t, err, &clearedErr)
	assert.Equal(t, "gone", clearedErr.Name)
}

func TestStage_Accessors(t *testing.T) {
	st := NewStage("s", nil,
		WithDescription("a stage"),
		Consumes("a", "b"),
		Produces("c"),
		WithParams(map[string]any{"n": 3}),
	)

	assert.Equal(t, "s", st.Name())
	assert.Equal(t, "a stage", st.Description())
	assert.Equal(t, []string{"a", "b"}, st.Inputs())
	assert.Equal(t, []string{"c"}, st.Outputs())
	assert.Equal(t, StatusPending, st.Status())
	assert.False(t, st.IsLoop())

	n, ok := st.Param("n")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	st.SetMeta("rows", 10)
	assert.Equal(t, 10, st.Meta()["rows"])
}

func TestCollectAllStages(t *testing.T) {
	inner := NewStage("inner", nil)
	loop, err := NewLoopStage("outer", Cond(Never()), []*Stage{inner}, 0)
	require.NoError(t, err)

	all := loop.CollectAllStages()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{"outer", "inner"}, names)
}

func ExampleStage_Execute() {
	st := NewStage("greet", func(_ context.Context, s *Stage) error {
		return s.SetOutput("greeting", "hello")
	}, Produces("greeting"))
	pctx := NewContext(nil, DefaultMemoryConfig())
	st.bindContext(pctx)

	if _, err := st.Execute(context.Background()); err != nil {
		fmt.Println("error:", err)
		return
	}
	v, _ := pctx.Get("greeting")
	fmt.Println(v)
	// Output: hello
}
