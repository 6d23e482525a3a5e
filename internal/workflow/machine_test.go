package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunebridge/console/internal/models"
)

func release(status models.Status, category models.Category, openRequest bool) models.WorkflowEntity {
	return models.WorkflowEntity{
		ID:             "rel-1",
		Type:           models.EntityRelease,
		Name:           "Night Drive",
		Status:         status,
		Category:       category,
		HasOpenRequest: openRequest,
	}
}

func TestReleaseLegalActions(t *testing.T) {
	ctx := context.Background()
	reg := DefaultRegistry()

	cases := []struct {
		status models.Status
		want   []models.ActionID
	}{
		{models.StatusSubmitted, []models.ActionID{models.ActionApprove}},
		{models.StatusUnderReview, []models.ActionID{models.ActionStartProcessing, models.ActionReject}},
		{models.StatusProcessing, []models.ActionID{models.ActionPublish, models.ActionReject}},
		{models.StatusPublished, []models.ActionID{models.ActionGoLive}},
		{models.StatusLive, []models.ActionID{models.ActionRequestTakedown}},
		{models.StatusTakeDown, []models.ActionID{models.ActionProcessTakedown}},
		{models.StatusUpdateRequest, []models.ActionID{models.ActionApproveEditRequest, models.ActionRejectEditRequest}},
	}

	for _, category := range []models.Category{models.CategoryBasic, models.CategoryAdvanced} {
		for _, tc := range cases {
			got, err := reg.LegalActions(ctx, release(tc.status, category, false))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got, "%s/%s", category, tc.status)
		}
	}
}

func TestTerminalStatusesHaveNoActions(t *testing.T) {
	ctx := context.Background()
	reg := DefaultRegistry()

	for _, status := range []models.Status{models.StatusRejected, models.StatusTakenDown, models.StatusDraft} {
		got, err := reg.LegalActions(ctx, release(status, models.CategoryBasic, false))
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got, status)
	}

	ticket := models.WorkflowEntity{Type: models.EntitySupportTicket, Status: models.StatusClosed, Category: models.CategoryDefault}
	got, err := reg.LegalActions(ctx, ticket)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLiveReleaseWithOpenRequestIsLocked(t *testing.T) {
	ctx := context.Background()
	reg := DefaultRegistry()

	entity := release(models.StatusLive, models.CategoryAdvanced, true)
	assert.Equal(t, models.StatusLiveRequestOpen, entity.Position())

	got, err := reg.LegalActions(ctx, entity)
	require.NoError(t, err)
	assert.Empty(t, got)

	m, err := reg.Machine(models.EntityRelease)
	require.NoError(t, err)
	err = m.CanPerform(ctx, entity, models.ActionRequestTakedown)
	require.ErrorIs(t, err, ErrIllegalAction)

	var illegal *IllegalActionError
	require.True(t, errors.As(err, &illegal))
	assert.Equal(t, models.StatusLiveRequestOpen, illegal.Status)
}

func TestCanPerformRejectsActionsOutsideTable(t *testing.T) {
	ctx := context.Background()
	m, err := DefaultRegistry().Machine(models.EntityRelease)
	require.NoError(t, err)

	err = m.CanPerform(ctx, release(models.StatusSubmitted, models.CategoryBasic, false), models.ActionPublish)
	assert.ErrorIs(t, err, ErrIllegalAction)

	err = m.CanPerform(ctx, release(models.StatusSubmitted, models.CategoryBasic, false), models.ActionShip)
	assert.ErrorIs(t, err, ErrUnknownAction)

	err = m.CanPerform(ctx, release(models.StatusSubmitted, models.CategoryChannel, false), models.ActionApprove)
	assert.ErrorIs(t, err, ErrCategoryMismatch)

	assert.NoError(t, m.CanPerform(ctx, release(models.StatusSubmitted, models.CategoryBasic, false), models.ActionApprove))
}

func TestMCNCategoriesHaveSeparateLifecycles(t *testing.T) {
	ctx := context.Background()
	m, err := DefaultRegistry().Machine(models.EntityMCN)
	require.NoError(t, err)

	requests, err := m.LegalActions(ctx, models.StatusApproved, models.CategoryRequest)
	require.NoError(t, err)
	assert.Empty(t, requests)

	channels, err := m.LegalActions(ctx, models.StatusApproved, models.CategoryChannel)
	require.NoError(t, err)
	assert.Equal(t, []models.ActionID{models.ActionSuspend, models.ActionRequestRemoval}, channels)

	pending, err := m.LegalActions(ctx, models.StatusPending, models.CategoryChannel)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestValidateReasonRequirement(t *testing.T) {
	m, err := DefaultRegistry().Machine(models.EntityRelease)
	require.NoError(t, err)

	req, err := m.ActionRequirement(models.ActionReject)
	require.NoError(t, err)
	assert.True(t, req.RequiresReason)

	req, err = m.ActionRequirement(models.ActionApprove)
	require.NoError(t, err)
	assert.False(t, req.RequiresReason)

	for _, reason := range []string{"", "   ", "\n\t"} {
		err := m.Validate(models.ActionRequestTakedown, models.ActionInput{Reason: reason})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "reason %q", reason)
		assert.Equal(t, "reason", verr.Field)
		assert.ErrorIs(t, err, ErrReasonRequired)
	}

	assert.NoError(t, m.Validate(models.ActionRequestTakedown, models.ActionInput{Reason: "rights dispute"}))
	assert.NoError(t, m.Validate(models.ActionApprove, models.ActionInput{}))
}

func TestValidatePayloadRequirement(t *testing.T) {
	m, err := DefaultRegistry().Machine(models.EntityPayoutRequest)
	require.NoError(t, err)

	err = m.Validate(models.ActionMarkPaid, models.ActionInput{Payload: map[string]string{"processed_by": "op-1"}})
	assert.ErrorIs(t, err, ErrPayloadMissing)

	err = m.Validate(models.ActionMarkPaid, models.ActionInput{Payload: map[string]string{
		"processed_by":          "op-1",
		"transaction_reference": "TX-991",
	}})
	assert.NoError(t, err)
}

func TestResolveOperationByCategory(t *testing.T) {
	m, err := DefaultRegistry().Machine(models.EntityRelease)
	require.NoError(t, err)

	basic, err := m.ResolveOperation(models.ActionApprove, models.CategoryBasic)
	require.NoError(t, err)
	advanced, err := m.ResolveOperation(models.ActionApprove, models.CategoryAdvanced)
	require.NoError(t, err)

	assert.Equal(t, "/releases/basic/rel-1/approve", basic.Path("rel-1"))
	assert.Equal(t, "/releases/advanced/rel-1/approve", advanced.Path("rel-1"))
	assert.NotEqual(t, basic.Family, advanced.Family)

	op, err := m.ResolveOperation(models.ActionRejectEditRequest, models.CategoryAdvanced)
	require.NoError(t, err)
	assert.Equal(t, "/releases/advanced/rel-1/edit-request/reject", op.Path("rel-1"))

	mcn, err := DefaultRegistry().Machine(models.EntityMCN)
	require.NoError(t, err)
	op, err = mcn.ResolveOperation(models.ActionSuspend, models.CategoryChannel)
	require.NoError(t, err)
	assert.Equal(t, "/mcn/channels/ch%209/suspend", op.Path("ch 9"))
}

func TestRejectEditRequestIsReentry(t *testing.T) {
	m, err := DefaultRegistry().Machine(models.EntityRelease)
	require.NoError(t, err)

	to, ok := m.Target(models.StatusUpdateRequest, models.CategoryBasic, models.ActionRejectEditRequest)
	require.True(t, ok)
	assert.Equal(t, models.StatusUpdateRequest, to)

	to, ok = m.Target(models.StatusUpdateRequest, models.CategoryBasic, models.ActionApproveEditRequest)
	require.True(t, ok)
	assert.Equal(t, models.StatusDraft, to)
}

func TestNewMachineRejectsBadTables(t *testing.T) {
	def := ReleaseDefinition()
	def.Transitions = append(def.Transitions, Transition{
		From: models.StatusSubmitted, Action: models.ActionApprove, To: models.StatusLive,
	})
	_, err := NewMachine(def)
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	def = ReleaseDefinition()
	def.Transitions = append(def.Transitions, Transition{
		From: "archived", Action: models.ActionApprove, To: models.StatusLive,
	})
	_, err = NewMachine(def)
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = NewRegistry(PayoutDefinition(), PayoutDefinition())
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestGraphMentionsEveryAction(t *testing.T) {
	m, err := DefaultRegistry().Machine(models.EntityRelease)
	require.NoError(t, err)

	graph := m.Graph()
	assert.Contains(t, graph, "digraph")
	for _, tr := range m.Definition().Transitions {
		assert.Contains(t, graph, string(tr.Action))
	}
}
