package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gumaertl2/PPT-sub001/internal/backend"
	"github.com/gumaertl2/PPT-sub001/internal/config"
	"github.com/gumaertl2/PPT-sub001/internal/failure"
	"github.com/gumaertl2/PPT-sub001/internal/state"
	"github.com/gumaertl2/PPT-sub001/internal/store"
	"github.com/gumaertl2/PPT-sub001/internal/tasks"
	"github.com/gumaertl2/PPT-sub001/pkg/models"
)

func newOrchestrator(t *testing.T, cfg *config.Config, inv backend.Invoker, opts ...Option) (*Orchestrator, *store.Store) {
	t.Helper()
	st := store.New()
	opts = append([]Option{WithInvoker(inv), WithClock(testClock())}, opts...)
	return New(newRegistry(t, cfg), st, sampleRequest(), opts...), st
}

func chunkConfig(taskID string, size int) *config.Config {
	cfg := config.Default()
	cfg.Tasks = map[string]config.TaskConfig{strings.ToLower(taskID): {AutoChunkSize: &size}}
	return cfg
}

func TestRun_CommitsAllChunks(t *testing.T) {
	s := &stub{}
	o, st := newOrchestrator(t, nil, s)

	rep, err := o.Run(context.Background(), tasks.SightsScout, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, models.StepCommitted, rep.State)
	assert.Equal(t, 2, rep.ChunksTotal, "six interests at four per chunk")
	assert.Equal(t, 2, rep.ChunksDone)
	assert.Equal(t, 6, rep.Count(store.ActionCreate))
	assert.Equal(t, int64(20), rep.InputTokens)
	assert.Len(t, st.ListByCategory(models.CategorySight), 6)
	assert.Equal(t, 2, s.callsFor(tasks.SightsScout))

	for _, c := range s.calls {
		assert.Equal(t, models.TierFast, c.Tier)
		assert.NotNil(t, c.Schema)
		assert.NotContains(t, c.User, "| restaurant |", "service interests never reach the sights scout")
	}
	// The second chunk is told what the first produced.
	assert.Contains(t, s.calls[1].User, "Best of history")
}

func TestRun_ChunkEquivalence(t *testing.T) {
	run := func(cfg *config.Config) []entityView {
		o, st := newOrchestrator(t, cfg, &stub{})
		_, err := o.Run(context.Background(), tasks.SightsScout, RunOptions{})
		require.NoError(t, err)
		return snapshot(st)
	}

	whole := run(chunkConfig(tasks.SightsScout, 0))
	require.Len(t, whole, 6)
	for _, size := range []int{1, 2, 4} {
		if diff := cmp.Diff(whole, run(chunkConfig(tasks.SightsScout, size))); diff != "" {
			t.Errorf("chunk size %d changed the result (-whole +chunked):\n%s", size, diff)
		}
	}
}

func TestRun_ForeignCategoryRejected(t *testing.T) {
	s := &stub{before: func(req backend.Request) (string, error) {
		return `{"records":[{"name":"Grand Palace Hotel","category":"hotel"},{"name":"Casa Pasta","category":"restaurant"}]}`, nil
	}}
	o, st := newOrchestrator(t, nil, s)

	rep, err := o.Run(context.Background(), tasks.SightsScout, RunOptions{})
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.ValidationFailed), "got %v", err)
	assert.Equal(t, models.StepFailed, rep.State)
	assert.Equal(t, 0, st.Len())
}

func TestRun_DependencyEnforced(t *testing.T) {
	s := &stub{}
	o, st := newOrchestrator(t, nil, s)

	rep, err := o.Run(context.Background(), tasks.RouteArchitect, RunOptions{})
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.MissingDependency))
	assert.Equal(t, models.StepPending, rep.State)
	assert.Empty(t, s.calls, "no network call before dependencies are committed")
	assert.Equal(t, 0, st.Len())

	statuses, err := o.Status()
	require.NoError(t, err)
	for _, ts := range statuses {
		if ts.Task.ID == tasks.RouteArchitect {
			assert.Equal(t, []string{tasks.SightsEnricher}, ts.Unmet)
			assert.Nil(t, ts.Step)
		}
	}
}

func TestRun_FailedDependencyStillBlocks(t *testing.T) {
	s := &stub{before: func(req backend.Request) (string, error) {
		return "", failure.New(failure.BackendOverloaded, "overloaded")
	}}
	o, _ := newOrchestrator(t, nil, s)

	_, err := o.Run(context.Background(), tasks.SightsScout, RunOptions{})
	require.Error(t, err)

	s.before = nil
	_, err = o.Run(context.Background(), tasks.SightsEnricher, RunOptions{})
	assert.True(t, failure.Is(err, failure.MissingDependency))
}

func TestRun_PartialFailureKeepsEarlierChunks(t *testing.T) {
	s := &stub{before: func(req backend.Request) (string, error) {
		if req.Chunk == 1 {
			return "I could not find anything, sorry.", nil
		}
		return "", nil
	}}
	o, st := newOrchestrator(t, nil, s)

	rep, err := o.Run(context.Background(), tasks.SightsScout, RunOptions{})
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.ValidationFailed))

	var fe *failure.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, tasks.SightsScout, fe.Task)
	assert.Equal(t, 1, fe.Chunk)

	assert.Equal(t, models.StepFailed, rep.State)
	assert.True(t, rep.Partial())
	assert.Equal(t, 1, rep.ChunksDone)
	assert.Len(t, st.ListByCategory(models.CategorySight), 4, "chunk 1 stands")

	statuses, err := o.Status()
	require.NoError(t, err)
	for _, ts := range statuses {
		if ts.Task.ID == tasks.SightsScout {
			require.NotNil(t, ts.Step)
			assert.Equal(t, models.StepFailed, ts.State)
			assert.Equal(t, "validation_failed", ts.Step.ErrorKind)
			assert.False(t, ts.Step.Recoverable)
		}
	}
}

func TestRun_RecoverableFailureMarked(t *testing.T) {
	s := &stub{before: func(req backend.Request) (string, error) {
		return "", failure.New(failure.RateLimited, "slow down")
	}}
	o, _ := newOrchestrator(t, nil, s)

	rep, err := o.Run(context.Background(), tasks.InfoAuthor, RunOptions{Tier: models.TierDeep})
	require.Error(t, err)
	assert.True(t, failure.IsRecoverable(err))
	assert.Equal(t, models.StepFailed, rep.State)
	assert.Equal(t, models.TierDeep, s.calls[0].Tier)

	statuses, err := o.Status()
	require.NoError(t, err)
	for _, ts := range statuses {
		if ts.Task.ID == tasks.InfoAuthor {
			assert.True(t, ts.Step.Recoverable)
		}
	}
}

func TestRun_CancelBetweenChunks(t *testing.T) {
	var o *Orchestrator
	s := &stub{before: func(req backend.Request) (string, error) {
		o.Cancel(tasks.SightsScout)
		return "", nil
	}}
	o, st := newOrchestrator(t, nil, s)

	rep, err := o.Run(context.Background(), tasks.SightsScout, RunOptions{})
	require.Error(t, err)
	assert.True(t, rep.Canceled)
	assert.Equal(t, 1, rep.ChunksDone)
	assert.Equal(t, models.StepFailed, rep.State)
	assert.Len(t, s.calls, 1)
	assert.Len(t, st.ListByCategory(models.CategorySight), 4)

	// The request was consumed; the next run goes through.
	s.before = nil
	rep, err = o.Run(context.Background(), tasks.SightsScout, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.StepCommitted, rep.State)
	assert.Len(t, st.ListByCategory(models.CategorySight), 6)
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &stub{before: func(req backend.Request) (string, error) {
		cancel()
		return "", nil
	}}
	o, _ := newOrchestrator(t, nil, s)

	rep, err := o.Run(ctx, tasks.SightsScout, RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, rep.Canceled)
	assert.Equal(t, 1, rep.ChunksDone)
}

func TestRun_ExternalCancelCheck(t *testing.T) {
	s := &stub{}
	o, _ := newOrchestrator(t, nil, s, WithCancelCheck(func(taskID string) bool {
		return taskID == tasks.SightsScout
	}))

	rep, err := o.Run(context.Background(), tasks.SightsScout, RunOptions{})
	require.Error(t, err)
	assert.True(t, rep.Canceled)
	assert.Empty(t, s.calls)
}

func TestRun_NoBackend(t *testing.T) {
	o := New(newRegistry(t, nil), store.New(), sampleRequest())
	_, err := o.Run(context.Background(), tasks.SightsScout, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manual path")
}

func TestRunAll_FullPipeline(t *testing.T) {
	s := &stub{}
	o, st := newOrchestrator(t, nil, s)

	reports, err := o.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, len(tasks.Catalog()))
	for _, rep := range reports {
		assert.Equal(t, models.StepCommitted, rep.State, rep.Task)
	}

	assert.Len(t, st.ListByCategory(models.CategoryHotel), 2)
	assert.Len(t, st.ListByCategory(models.CategoryRestaurant), 2)
	assert.Len(t, st.ListByCategory(models.CategoryRoute), 3)
	assert.Len(t, st.ListByCategory(models.CategoryDay), 4)
	for _, e := range st.ListByCategory(models.CategorySight) {
		assert.Equal(t, "About "+e.Name, e.Fields["description"])
		assert.Equal(t, []string{tasks.SightsScout, tasks.SightsEnricher}, e.Sources)
	}

	// Everything is committed; a second pass does nothing.
	calls := len(s.calls)
	reports, err = o.RunAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
	assert.Equal(t, calls, len(s.calls))
}

func TestRunAll_StopsOnFatal(t *testing.T) {
	s := &stub{before: func(req backend.Request) (string, error) {
		return "", failure.New(failure.AuthError, "invalid key")
	}}
	o, _ := newOrchestrator(t, nil, s)

	reports, err := o.RunAll(context.Background())
	require.Error(t, err)
	assert.True(t, failure.IsFatalForRun(err))
	assert.Len(t, reports, 1)
	assert.Len(t, s.calls, 1)
}

func TestCorrect_KeepsAndAddsExactly(t *testing.T) {
	s := &stub{}
	o, st := newOrchestrator(t, nil, s)
	ctx := context.Background()
	for _, id := range []string{tasks.SightsScout, tasks.SightsEnricher, tasks.RouteArchitect} {
		_, err := o.Run(ctx, id, RunOptions{})
		require.NoError(t, err, id)
	}

	prior := st.ListProducedBy(tasks.RouteArchitect)
	require.Len(t, prior, 3)
	kept := []*models.Entity{prior[0], prior[1]}

	rep, err := o.Correct(ctx, tasks.RouteArchitect, Correction{
		Feedback:           "less driving",
		Keep:               []string{prior[0].ID, prior[1].ID},
		AdditionalVariants: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StepCommitted, rep.State)
	assert.Equal(t, []string{prior[2].ID}, rep.Discarded)
	assert.Equal(t, 2, rep.Count(store.ActionCreate))
	require.Len(t, rep.Warnings, 1, "the third new variant is surplus")

	last := s.calls[len(s.calls)-1]
	assert.Contains(t, last.User, "less driving")
	assert.Contains(t, last.User, "Return exactly 2 new variants.")

	now := st.ListProducedBy(tasks.RouteArchitect)
	require.Len(t, now, 4)
	for _, k := range kept {
		got, ok := st.Get(k.ID)
		require.True(t, ok)
		if diff := cmp.Diff(k, got); diff != "" {
			t.Errorf("kept route changed (-before +after):\n%s", diff)
		}
	}
	assert.True(t, st.IsRetired(prior[2].ID))
}

func TestCorrect_FailureKeepsPriorOutput(t *testing.T) {
	tests := []struct {
		name   string
		answer func() (string, error)
		kind   failure.Kind
	}{
		{
			name:   "auth error",
			answer: func() (string, error) { return "", failure.New(failure.AuthError, "invalid key") },
			kind:   failure.AuthError,
		},
		{
			name:   "malformed answer",
			answer: func() (string, error) { return "I could not find any routes.", nil },
			kind:   failure.ValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := false
			s := &stub{before: func(req backend.Request) (string, error) {
				if broken && req.Task == tasks.RouteArchitect {
					return tt.answer()
				}
				return "", nil
			}}
			o, st := newOrchestrator(t, nil, s)
			ctx := context.Background()
			for _, id := range []string{tasks.SightsScout, tasks.SightsEnricher, tasks.HotelScout, tasks.RouteArchitect} {
				_, err := o.Run(ctx, id, RunOptions{})
				require.NoError(t, err, id)
			}
			before := snapshot(st)
			prior := st.ListProducedBy(tasks.RouteArchitect)
			require.Len(t, prior, 3)
			corr := Correction{Keep: []string{prior[0].ID}, AdditionalVariants: 2}

			broken = true
			rep, err := o.Correct(ctx, tasks.RouteArchitect, corr)
			require.Error(t, err)
			assert.True(t, failure.Is(err, tt.kind), "got %v", err)
			assert.Equal(t, models.StepFailed, rep.State)
			assert.Empty(t, rep.Discarded)
			if diff := cmp.Diff(before, snapshot(st)); diff != "" {
				t.Errorf("failed correction changed the store (-before +after):\n%s", diff)
			}
			for _, e := range prior {
				assert.False(t, st.IsRetired(e.ID), e.Name)
			}

			// The committed output still stands for dependents and corrections.
			broken = false
			_, err = o.Run(ctx, tasks.DayPlanner, RunOptions{})
			require.NoError(t, err)
			rep, err = o.Correct(ctx, tasks.RouteArchitect, corr)
			require.NoError(t, err)
			assert.Equal(t, models.StepCommitted, rep.State)
			assert.Len(t, rep.Discarded, 2)
			assert.Equal(t, 2, rep.Count(store.ActionCreate))
			assert.Len(t, st.ListProducedBy(tasks.RouteArchitect), 3)
		})
	}
}

func TestCorrect_Rejected(t *testing.T) {
	s := &stub{}
	o, st := newOrchestrator(t, nil, s)
	ctx := context.Background()

	_, err := o.Correct(ctx, tasks.SightsScout, Correction{AdditionalVariants: 1})
	assert.Error(t, err, "sourcing tasks are not correctable")

	_, err = o.Correct(ctx, tasks.RouteArchitect, Correction{AdditionalVariants: 1})
	assert.True(t, failure.Is(err, failure.MissingDependency), "nothing committed yet")

	for _, id := range []string{tasks.SightsScout, tasks.SightsEnricher, tasks.RouteArchitect} {
		_, err := o.Run(ctx, id, RunOptions{})
		require.NoError(t, err)
	}
	sight := st.ListByCategory(models.CategorySight)[0]
	_, err = o.Correct(ctx, tasks.RouteArchitect, Correction{Keep: []string{sight.ID}, AdditionalVariants: 1})
	assert.Error(t, err, "kept ids must be the task's own output")

	_, err = o.Correct(ctx, tasks.RouteArchitect, Correction{AdditionalVariants: -1})
	assert.Error(t, err)
}

func TestRun_EmitsEvents(t *testing.T) {
	events := NewEventEmitter(256, nil)
	o, _ := newOrchestrator(t, nil, &stub{}, WithEvents(events))

	_, err := o.Run(context.Background(), tasks.SightsScout, RunOptions{})
	require.NoError(t, err)

	var states []models.StepState
	chunks := 0
	for len(events.Events()) > 0 {
		e := <-events.Events()
		switch e.Type {
		case EventStateChanged:
			states = append(states, e.State)
		case EventChunkCommitted:
			chunks++
		}
	}
	assert.Equal(t, []models.StepState{
		models.StepRunning,
		models.StepAwaitingValidation,
		models.StepRunning,
		models.StepAwaitingValidation,
		models.StepCommitted,
	}, states)
	assert.Equal(t, 2, chunks)
}

func TestRun_PersistsSteps(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "entities.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	st, err := store.Open(db)
	require.NoError(t, err)
	o := New(newRegistry(t, nil), st, sampleRequest(), WithInvoker(&stub{}), WithSteps(db))
	_, err = o.Run(context.Background(), tasks.SightsScout, RunOptions{})
	require.NoError(t, err)

	// A new process sees the committed step and the entities.
	st2, err := store.Open(db)
	require.NoError(t, err)
	o2 := New(newRegistry(t, nil), st2, sampleRequest(), WithInvoker(&stub{}), WithSteps(db))
	statuses, err := o2.Status()
	require.NoError(t, err)
	for _, ts := range statuses {
		if ts.Task.ID == tasks.SightsScout {
			assert.Equal(t, models.StepCommitted, ts.State)
			assert.Equal(t, 2, ts.Step.ChunksDone)
		}
		if ts.Task.ID == tasks.SightsEnricher {
			assert.Empty(t, ts.Unmet)
		}
	}
	assert.Len(t, st2.ListByCategory(models.CategorySight), 6)
}
