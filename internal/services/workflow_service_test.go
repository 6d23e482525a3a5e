package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/backend"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/query"
	"github.com/tunebridge/console/internal/workflow"
)

func newTestWorkflowService(be *fakeBackend, logs *fakeActionLogs, cache ListCache) WorkflowService {
	return NewWorkflowService(workflow.DefaultRegistry(), be, cache, time.Minute, logs, zap.NewNop())
}

func release(id string, status models.Status) models.WorkflowEntity {
	return models.WorkflowEntity{ID: id, Type: models.EntityRelease, Status: status, Category: models.CategoryAdvanced}
}

func TestExecuteReturnsBackendState(t *testing.T) {
	be := newFakeBackend()
	be.records["r1"] = record("r1", models.StatusTakeDown, models.CategoryAdvanced)
	logs := &fakeActionLogs{}
	cache := newFakeListCache()
	svc := newTestWorkflowService(be, logs, cache)

	result, err := svc.Execute(context.Background(), testActor(), release("r1", models.StatusLive),
		models.ActionRequestTakedown, models.ActionInput{Reason: "rights dispute"})
	require.NoError(t, err)
	require.NotNil(t, result.Entity)
	assert.Equal(t, models.StatusTakeDown, result.Entity.Status)

	require.Len(t, be.dispatches, 1)
	assert.Equal(t, "/releases/advanced/r1/takedown-request", be.dispatches[0].Op.Path("r1"))
	assert.Equal(t, "rights dispute", be.dispatches[0].Body.Reason)

	entries := logs.logged()
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusLive, entries[0].FromStatus)
	assert.Equal(t, models.StatusTakeDown, entries[0].ToStatus)
	assert.NoError(t, entries[0].Err)
	assert.Equal(t, []string{"op-1"}, cache.invalidated)
}

func TestExecuteAcknowledgementRefetches(t *testing.T) {
	be := newFakeBackend()
	be.acks = true
	be.records["r1"] = record("r1", models.StatusUnderReview, models.CategoryAdvanced)
	svc := newTestWorkflowService(be, &fakeActionLogs{}, nil)

	result, err := svc.Execute(context.Background(), testActor(), release("r1", models.StatusSubmitted), models.ActionApprove, models.ActionInput{})
	require.NoError(t, err)
	require.NotNil(t, result.Entity)
	assert.Equal(t, models.StatusUnderReview, result.Entity.Status)
}

func TestExecuteRejectedReturnsRefreshedEntity(t *testing.T) {
	be := newFakeBackend()
	be.records["r1"] = record("r1", models.StatusTakeDown, models.CategoryAdvanced)
	be.failures["r1"] = &backend.RemoteError{Kind: backend.KindRejected, StatusCode: 409, Message: "already in takedown"}
	logs := &fakeActionLogs{}
	svc := newTestWorkflowService(be, logs, nil)

	result, err := svc.Execute(context.Background(), testActor(), release("r1", models.StatusLive),
		models.ActionRequestTakedown, models.ActionInput{Reason: "dup"})
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrRemoteRejected)
	assert.Equal(t, "already in takedown", err.Error())

	require.NotNil(t, result)
	require.NotNil(t, result.Entity)
	assert.Equal(t, models.StatusTakeDown, result.Entity.Status)

	entries := logs.logged()
	require.Len(t, entries, 1)
	assert.Error(t, entries[0].Err)
	assert.Empty(t, entries[0].ToStatus)
}

func TestExecuteNetworkErrorSkipsRefetch(t *testing.T) {
	be := newFakeBackend()
	be.failures["r1"] = &backend.RemoteError{Kind: backend.KindNetwork, Op: "approve", Err: context.DeadlineExceeded}
	svc := newTestWorkflowService(be, &fakeActionLogs{}, nil)

	result, err := svc.Execute(context.Background(), testActor(), release("r1", models.StatusSubmitted), models.ActionApprove, models.ActionInput{})
	assert.ErrorIs(t, err, backend.ErrNetwork)
	require.NotNil(t, result)
	assert.Nil(t, result.Entity)
}

func TestExecuteBlocksIllegalAndInvalidInput(t *testing.T) {
	be := newFakeBackend()
	logs := &fakeActionLogs{}
	svc := newTestWorkflowService(be, logs, nil)
	ctx := context.Background()

	_, err := svc.Execute(ctx, testActor(), release("r1", models.StatusDraft), models.ActionApprove, models.ActionInput{})
	assert.ErrorIs(t, err, workflow.ErrIllegalAction)

	_, err = svc.Execute(ctx, testActor(), release("r1", models.StatusUnderReview), models.ActionReject, models.ActionInput{Reason: "   "})
	var verr *workflow.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "reason", verr.Field)

	locked := release("r2", models.StatusLive)
	locked.HasOpenRequest = true
	_, err = svc.Execute(ctx, testActor(), locked, models.ActionRequestTakedown, models.ActionInput{Reason: "x"})
	assert.ErrorIs(t, err, workflow.ErrIllegalAction)

	assert.Zero(t, be.dispatchCount())
	assert.Empty(t, logs.logged())
}

func TestExecuteFillsOperatorPayload(t *testing.T) {
	be := newFakeBackend()
	be.records["p1"] = `{"id":"p1","status":"paid"}`
	svc := newTestWorkflowService(be, &fakeActionLogs{}, nil)

	payout := models.WorkflowEntity{ID: "p1", Type: models.EntityPayoutRequest, Status: models.StatusProcessing, Category: models.CategoryDefault}
	_, err := svc.Execute(context.Background(), testActor(), payout, models.ActionMarkPaid, models.ActionInput{
		Payload: map[string]string{"transaction_reference": "TX-9", "processed_by": "someone-else"},
	})
	require.NoError(t, err)

	require.Len(t, be.dispatches, 1)
	assert.Equal(t, "TX-9", be.dispatches[0].Body.Payload["transaction_reference"])
	assert.Equal(t, "op-1", be.dispatches[0].Body.Payload["processed_by"])
}

func TestExecuteCollapsesDuplicateSubmissions(t *testing.T) {
	be := newFakeBackend()
	be.records["r1"] = record("r1", models.StatusUnderReview, models.CategoryAdvanced)
	be.block = make(chan struct{})
	be.started = make(chan struct{}, 4)
	svc := newTestWorkflowService(be, &fakeActionLogs{}, nil)

	var wg sync.WaitGroup
	results := make([]*ActionResult, 2)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Execute(context.Background(), testActor(), release("r1", models.StatusSubmitted), models.ActionApprove, models.ActionInput{})
			assert.NoError(t, err)
			results[i] = res
		}()
		if i == 0 {
			<-be.started
		}
	}
	time.Sleep(50 * time.Millisecond)
	close(be.block)
	wg.Wait()

	assert.Equal(t, 1, be.dispatchCount())
	assert.Same(t, results[0], results[1])
}

func TestListResolvesFamilyAndCaches(t *testing.T) {
	be := newFakeBackend()
	be.records["r1"] = record("r1", models.StatusLive, "")
	cache := newFakeListCache()
	svc := newTestWorkflowService(be, &fakeActionLogs{}, cache)
	ctx := context.Background()

	state := query.NewState(models.EntityRelease, "", 10)
	page, err := svc.List(ctx, testActor(), state)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.CategoryBasic, page.Items[0].Category)
	assert.Equal(t, models.Pagination{CurrentPage: 1, TotalPages: 4, TotalItems: 37}, page.Pagination)

	_, err = svc.List(ctx, testActor(), state)
	require.NoError(t, err)
	assert.Equal(t, []string{"releases/basic"}, be.listCalls)

	_, err = svc.List(ctx, testActor(), state.WithCategory(models.CategoryAdvanced))
	require.NoError(t, err)
	assert.Equal(t, []string{"releases/basic", "releases/advanced"}, be.listCalls)
}

func TestAvailableActionsCarryRequirements(t *testing.T) {
	svc := newTestWorkflowService(newFakeBackend(), &fakeActionLogs{}, nil)

	actions, err := svc.AvailableActions(context.Background(), models.WorkflowEntity{
		ID: "r1", Type: models.EntityRelease, Status: models.StatusUnderReview, Category: models.CategoryBasic,
	})
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, models.ActionStartProcessing, actions[0].Action)
	assert.False(t, actions[0].Requirement.RequiresReason)
	assert.Equal(t, models.ActionReject, actions[1].Action)
	assert.True(t, actions[1].Requirement.RequiresReason)
	assert.Equal(t, models.StatusRejected, actions[1].Target)
	assert.Equal(t, "/releases/basic/r1/reject", actions[1].Path)

	actions, err = svc.AvailableActions(context.Background(), models.WorkflowEntity{
		ID: "r9", Type: models.EntityRelease, Status: models.StatusTakenDown, Category: models.CategoryBasic,
	})
	require.NoError(t, err)
	assert.NotNil(t, actions)
	assert.Empty(t, actions)
}

func TestExecuteKeepsDistinctSubmissionsApart(t *testing.T) {
	be := newFakeBackend()
	be.records["r1"] = record("r1", models.StatusTakeDown, models.CategoryAdvanced)
	be.block = make(chan struct{})
	be.started = make(chan struct{}, 4)
	logs := &fakeActionLogs{}
	svc := newTestWorkflowService(be, logs, nil)

	other := testActor()
	other.Operator = &models.Operator{ID: "op-2", Email: "second@example.com", Role: models.RoleAdmin, Token: "tok-2"}

	calls := []struct {
		actor  Actor
		reason string
	}{
		{testActor(), "duplicate ISRC"},
		{other, "explicit cover art"},
		{testActor(), "explicit cover art"},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(calls))
	for i, call := range calls {
		i, call := i, call
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Execute(context.Background(), call.actor, release("r1", models.StatusLive),
				models.ActionRequestTakedown, models.ActionInput{Reason: call.reason})
		}()
	}
	for range calls {
		<-be.started
	}
	close(be.block)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	require.Equal(t, len(calls), be.dispatchCount())

	sent := map[string]bool{}
	for _, d := range be.dispatches {
		sent[d.Body.Reason] = true
	}
	assert.True(t, sent["duplicate ISRC"])
	assert.True(t, sent["explicit cover art"])

	operators := map[string]int{}
	for _, e := range logs.logged() {
		operators[e.Actor.OperatorID()]++
	}
	assert.Equal(t, map[string]int{"op-1": 2, "op-2": 1}, operators)
}
