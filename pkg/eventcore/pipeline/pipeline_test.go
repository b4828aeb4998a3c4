package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventcore/pkg/eventcore/event"
	"github.com/randalmurphal/eventcore/pkg/eventcore/pipeline"
)

func passthrough(order *[]string, name string) pipeline.Middleware {
	return func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		*order = append(*order, name)
		return next(ctx)
	}
}

func TestRunEmptyChainCompletes(t *testing.T) {
	p := pipeline.New()
	out := p.Run(context.Background(), event.New("c", nil))
	assert.Equal(t, pipeline.Completed, out.State)
	assert.NoError(t, out.Err)
}

func TestRunExecutesInRegistrationOrder(t *testing.T) {
	p := pipeline.New()
	var order []string
	p.Use(passthrough(&order, "first"))
	p.Use(passthrough(&order, "second"))
	p.Use(passthrough(&order, "third"))

	out := p.Run(context.Background(), event.New("c", "payload"))

	require.Equal(t, pipeline.Completed, out.State)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestStepMutationsVisibleDownstream(t *testing.T) {
	p := pipeline.New()
	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		evt.Data = "rewritten"
		evt.Type = "audit"
		return next(ctx)
	})

	var sawData any
	var sawType string
	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		sawData = evt.Data
		sawType = evt.Type
		return next(ctx)
	})

	evt := event.New("c", "original")
	out := p.Run(context.Background(), evt)

	require.Equal(t, pipeline.Completed, out.State)
	assert.Equal(t, "rewritten", sawData)
	assert.Equal(t, "audit", sawType)
	assert.Equal(t, "rewritten", evt.Data)
}

func TestStepErrorStopsChain(t *testing.T) {
	p := pipeline.New()
	var order []string
	p.Use(passthrough(&order, "first"))
	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		return errors.New("validation rejected")
	})
	p.Use(passthrough(&order, "never"))

	out := p.Run(context.Background(), event.New("c", nil))

	assert.Equal(t, pipeline.Failed, out.State)
	require.Error(t, out.Err)

	var ferr *event.FailureError
	require.ErrorAs(t, out.Err, &ferr)
	assert.Equal(t, event.StageMiddleware, ferr.Stage)
	assert.Equal(t, []string{"first"}, order, "steps after the failure must not run")
}

func TestStepPanicIsContained(t *testing.T) {
	p := pipeline.New()
	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		panic("boom")
	})

	out := p.Run(context.Background(), event.New("c", nil))

	assert.Equal(t, pipeline.Failed, out.State)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "panic")
}

func TestUncalledNextTruncatesWithoutError(t *testing.T) {
	p := pipeline.New()
	var reachedLast bool
	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		// Veto: never invoke next.
		return nil
	})
	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		reachedLast = true
		return next(ctx)
	})

	out := p.Run(context.Background(), event.New("c", nil))

	assert.Equal(t, pipeline.Truncated, out.State)
	assert.NoError(t, out.Err)
	assert.False(t, reachedLast)
}

func TestDoubleNextIsNoOp(t *testing.T) {
	p := pipeline.New()
	var calls int
	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		if err := next(ctx); err != nil {
			return err
		}
		return next(ctx)
	})
	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		calls++
		return next(ctx)
	})

	out := p.Run(context.Background(), event.New("c", nil))

	assert.Equal(t, pipeline.Completed, out.State)
	assert.Equal(t, 1, calls)
}

func TestUseIgnoresNil(t *testing.T) {
	p := pipeline.New()
	p.Use(nil)
	assert.Equal(t, 0, p.Len())

	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		return next(ctx)
	})
	assert.Equal(t, 1, p.Len())
}

func TestBlockingStepDelaysCompletion(t *testing.T) {
	p := pipeline.New()
	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		time.Sleep(20 * time.Millisecond)
		return next(ctx)
	})

	out := p.Run(context.Background(), event.New("c", nil))

	assert.Equal(t, pipeline.Completed, out.State)
	assert.GreaterOrEqual(t, out.Elapsed, 20*time.Millisecond)
}

func TestReset(t *testing.T) {
	p := pipeline.New()
	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		return errors.New("should never run")
	})
	p.Reset()

	assert.Equal(t, 0, p.Len())
	out := p.Run(context.Background(), event.New("c", nil))
	assert.Equal(t, pipeline.Completed, out.State)
}

func TestStatsAccumulate(t *testing.T) {
	p := pipeline.New()
	p.Use(func(ctx context.Context, evt *event.Event, next func(context.Context) error) error {
		if evt.Type == "bad" {
			return errors.New("rejected")
		}
		return next(ctx)
	})

	p.Run(context.Background(), event.New("c", nil))
	p.Run(context.Background(), event.New("c", nil, event.WithType("bad")))
	p.Run(context.Background(), event.New("c", nil))

	runs, failures, total := p.Stats()
	assert.Equal(t, uint64(3), runs)
	assert.Equal(t, uint64(1), failures)
	assert.GreaterOrEqual(t, total, time.Duration(0))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "completed", pipeline.Completed.String())
	assert.Equal(t, "truncated", pipeline.Truncated.String())
	assert.Equal(t, "failed", pipeline.Failed.String())
}
