package statemachine

import (
	"encoding/json"
	"testing"

	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedActions(t *testing.T) {
	tests := []struct {
		name     string
		order    OrderState
		progress Progress
		want     []Action
	}{
		{
			name:     "fresh pending order",
			order:    OrderState{Status: enums.OrderStatusPending},
			progress: progressOf(pending, pending, pending),
			want:     []Action{ActionEditInfo, ActionStartStage, ActionCancelOrder, ActionDelete},
		},
		{
			name:     "stage running with more pending",
			order:    OrderState{Status: enums.OrderStatusInProgress},
			progress: progressOf(completed, inProgress, pending),
			want: []Action{
				ActionEditInfo, ActionStartStage, ActionCompleteStage, ActionCancelOrder,
				ActionUploadMedia, ActionDeleteMedia, ActionDelete,
			},
		},
		{
			name:     "last stage running",
			order:    OrderState{Status: enums.OrderStatusInProgress},
			progress: progressOf(completed, completed, inProgress),
			want: []Action{
				ActionEditInfo, ActionCompleteStage, ActionCancelOrder,
				ActionUploadMedia, ActionDeleteMedia, ActionDelete,
			},
		},
		{
			name:     "between stages",
			order:    OrderState{Status: enums.OrderStatusInProgress},
			progress: progressOf(completed, pending),
			want: []Action{
				ActionEditInfo, ActionStartStage, ActionCancelOrder,
				ActionUploadMedia, ActionDeleteMedia, ActionDelete,
			},
		},
		{
			name:     "completed order",
			order:    OrderState{Status: enums.OrderStatusCompleted},
			progress: progressOf(completed, completed, completed),
			want: []Action{
				ActionUploadMedia, ActionDeleteMedia, ActionViewDetails,
				ActionSendNotification, ActionPrintOrder, ActionDelete,
			},
		},
		{
			name:     "cancelled before start",
			order:    OrderState{Status: enums.OrderStatusCancelled},
			progress: progressOf(pending, pending),
			want:     []Action{ActionEditInfo, ActionDelete},
		},
		{
			name:     "soft deleted",
			order:    OrderState{Status: enums.OrderStatusPending, IsDeleted: true},
			progress: progressOf(pending),
			want:     []Action{ActionEditInfo, ActionStartStage, ActionCancelOrder},
		},
		{
			name:     "unknown status grants only status-independent actions",
			order:    OrderState{Status: enums.OrderStatus("已完成")},
			progress: progressOf(completed),
			want:     []Action{ActionEditInfo, ActionUploadMedia, ActionDeleteMedia, ActionDelete},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AllowedActions(tt.order, tt.progress)
			assert.Equal(t, tt.want, got.List())
		})
	}
}

func TestAllowedActionsHoldForEveryOrder(t *testing.T) {
	statuses := enums.OrderStatuses()
	lists := []Progress{
		progressOf(),
		progressOf(pending, pending),
		progressOf(completed, pending),
		progressOf(completed, inProgress),
		progressOf(completed, completed),
	}

	for _, status := range statuses {
		for _, p := range lists {
			for _, deleted := range []bool{false, true} {
				actions := AllowedActions(OrderState{Status: status, IsDeleted: deleted}, p)

				if _, active := p.Active(); !active {
					assert.False(t, actions.Has(ActionCompleteStage), "complete_stage without an active stage (status=%s)", status)
				}
				if status == enums.OrderStatusCompleted {
					assert.False(t, actions.Has(ActionStartStage), "start_stage on a completed order")
				}
				assert.Equal(t, !deleted, actions.Has(ActionDelete), "delete iff not deleted (status=%s)", status)
			}
		}
	}
}

func TestActionSetJSON(t *testing.T) {
	set := NewActionSet(ActionDelete, ActionEditInfo, ActionStartStage)

	raw, err := json.Marshal(map[string]any{"allowed_actions": set})
	require.NoError(t, err)
	assert.JSONEq(t, `{"allowed_actions":["edit_info","start_stage","delete"]}`, string(raw))
}

func TestActionSetFilter(t *testing.T) {
	set := NewActionSet(ActionEditInfo, ActionUploadMedia, ActionDelete)
	filtered := set.Filter(func(a Action) bool { return a != ActionDelete })

	assert.True(t, filtered.Has(ActionEditInfo))
	assert.False(t, filtered.Has(ActionDelete))
	assert.True(t, set.Has(ActionDelete), "filter must not mutate the source set")
}
