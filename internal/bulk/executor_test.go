package bulk

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/backend"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/workflow"
)

func liveRelease(id string) models.WorkflowEntity {
	return models.WorkflowEntity{
		ID:       id,
		Type:     models.EntityRelease,
		Name:     "Release " + id,
		Status:   models.StatusLive,
		Category: models.CategoryBasic,
	}
}

func selectionOf(t *testing.T, items ...models.WorkflowEntity) *Selection {
	t.Helper()
	sel := NewSelection(models.EntityRelease)
	for _, it := range items {
		require.NoError(t, sel.Add(it))
	}
	return sel
}

type recordingDispatcher struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, e models.WorkflowEntity, op workflow.Operation, in models.ActionInput) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, e.ID)
	return d.failOn[e.ID]
}

func TestBulkTakedownWithOneFailure(t *testing.T) {
	ctx := context.Background()
	sel := selectionOf(t, liveRelease("a"), liveRelease("b"), liveRelease("c"))

	plan, err := Prepare(ctx, workflow.DefaultRegistry(), sel, models.ActionRequestTakedown, models.ActionInput{Reason: "rights dispute"})
	require.NoError(t, err)
	assert.Equal(t, "/releases/basic/b/takedown", plan.Operation.Path("b"))

	d := &recordingDispatcher{failOn: map[string]error{
		"b": &backend.RemoteError{Kind: backend.KindRejected, StatusCode: 409, Message: "already in takedown"},
	}}

	var seen []Progress
	result := NewExecutor(d, zap.NewNop()).Run(ctx, plan, func(p Progress) { seen = append(seen, p) })

	assert.Equal(t, []string{"a", "b", "c"}, d.calls)
	require.Len(t, result.Succeeded, 2)
	assert.Equal(t, "a", result.Succeeded[0].ID)
	assert.Equal(t, "c", result.Succeeded[1].ID)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "b", result.Failed[0].Entity.ID)
	assert.Equal(t, "already in takedown", result.Failed[0].Message)
	assert.Equal(t, backend.KindRejected, result.Failed[0].Kind)

	require.Len(t, seen, 3)
	for i, p := range seen {
		assert.Equal(t, i+1, p.Processed)
		assert.Equal(t, 3, p.Total)
	}
	assert.Equal(t, 1, seen[2].Failed)
}

func TestEveryFailurePositionKeepsOthers(t *testing.T) {
	ctx := context.Background()
	const n = 5
	for k := 0; k < n; k++ {
		var items []models.WorkflowEntity
		for i := 0; i < n; i++ {
			items = append(items, liveRelease(fmt.Sprintf("r%d", i)))
		}
		plan, err := Prepare(ctx, workflow.DefaultRegistry(), selectionOf(t, items...), models.ActionRequestTakedown, models.ActionInput{Reason: "x"})
		require.NoError(t, err)

		failing := fmt.Sprintf("r%d", k)
		d := &recordingDispatcher{failOn: map[string]error{failing: &backend.RemoteError{Kind: backend.KindNetwork, Message: "timeout"}}}
		result := NewExecutor(d, zap.NewNop()).Run(ctx, plan, nil)

		assert.Len(t, d.calls, n)
		assert.Len(t, result.Succeeded, n-1)
		require.Len(t, result.Failed, 1)
		assert.Equal(t, failing, result.Failed[0].Entity.ID)
		assert.Equal(t, backend.KindNetwork, result.Failed[0].Kind)
	}
}

func TestRunIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	plan, err := Prepare(ctx, workflow.DefaultRegistry(), selectionOf(t, liveRelease("a"), liveRelease("b")), models.ActionRequestTakedown, models.ActionInput{Reason: "x"})
	require.NoError(t, err)

	d := DispatcherFunc(func(ctx context.Context, e models.WorkflowEntity, op workflow.Operation, in models.ActionInput) error {
		cancel()
		return ctx.Err()
	})
	result := NewExecutor(d, zap.NewNop()).Run(ctx, plan, nil)
	assert.Len(t, result.Succeeded, 2)
	assert.Empty(t, result.Failed)
}

func TestPrepareBlocksInvalidRuns(t *testing.T) {
	ctx := context.Background()
	reg := workflow.DefaultRegistry()

	_, err := Prepare(ctx, reg, NewSelection(models.EntityRelease), models.ActionApprove, models.ActionInput{})
	assert.ErrorIs(t, err, workflow.ErrEmptySelection)

	sel := selectionOf(t, liveRelease("a"), liveRelease("b"))
	_, err = Prepare(ctx, reg, sel, models.ActionRequestTakedown, models.ActionInput{Reason: "  "})
	assert.ErrorIs(t, err, workflow.ErrReasonRequired)

	_, err = Prepare(ctx, reg, sel, models.ActionApprove, models.ActionInput{})
	assert.ErrorIs(t, err, workflow.ErrIllegalAction)
}

func TestSelectionLocksToFirstStatus(t *testing.T) {
	sel := NewSelection(models.EntityRelease)
	require.NoError(t, sel.Add(liveRelease("a")))

	other := liveRelease("b")
	other.Status = models.StatusSubmitted
	err := sel.Add(other)
	assert.ErrorIs(t, err, workflow.ErrMixedSelection)
	assert.Equal(t, 1, sel.Len())

	advanced := liveRelease("c")
	advanced.Category = models.CategoryAdvanced
	assert.ErrorIs(t, sel.Add(advanced), workflow.ErrMixedSelection)

	locked := liveRelease("d")
	locked.HasOpenRequest = true
	assert.ErrorIs(t, sel.Add(locked), workflow.ErrMixedSelection)

	require.NoError(t, sel.Add(liveRelease("a")))
	assert.Equal(t, 1, sel.Len())

	sel.Remove("a")
	_, _, ok := sel.Locked()
	assert.False(t, ok)
	require.NoError(t, sel.Add(other))
	status, _, _ := sel.Locked()
	assert.Equal(t, models.StatusSubmitted, status)
}

func TestSelectionRemoveKeepsOrder(t *testing.T) {
	sel := selectionOf(t, liveRelease("a"), liveRelease("b"), liveRelease("c"))
	sel.Remove("b")
	sel.Remove("missing")

	ids := []string{}
	for _, it := range sel.Items() {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)

	sel.Remove("c")
	require.NoError(t, sel.Add(liveRelease("c")))
	assert.Equal(t, 2, sel.Len())
}
