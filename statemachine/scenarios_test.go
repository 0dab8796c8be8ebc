package statemachine

import (
	"testing"

	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/stretchr/testify/assert"
)

func TestScenarioFreshOrder(t *testing.T) {
	p := progressOf(pending, pending, pending)

	assert.Equal(t, 0, CalculateProgress(p))
	assert.Equal(t, enums.OrderStatusPending, AutoOrderStatus(p))

	ok, reason := CanStartStage(p, "S1")
	assert.True(t, ok)
	assert.Equal(t, "可以开始", reason)

	ok, reason = CanStartStage(p, "S2")
	assert.False(t, ok)
	assert.Equal(t, "请先完成前一阶段：阶段1", reason)
}

func TestScenarioMidProduction(t *testing.T) {
	p := progressOf(completed, inProgress, pending)

	assert.Equal(t, 33, CalculateProgress(p))
	assert.Equal(t, "阶段2", CurrentStageName(p))
	assert.Equal(t, enums.OrderStatusInProgress, AutoOrderStatus(p))

	ok, _ := CanCompleteStage(p, "S2")
	assert.True(t, ok)

	ok, reason := CanStartStage(p, "S3")
	assert.False(t, ok)
	assert.Equal(t, "请先完成进行中的阶段：阶段2", reason)
}

func TestScenarioFinishedOrder(t *testing.T) {
	p := progressOf(completed, completed, completed)

	assert.Equal(t, 100, CalculateProgress(p))
	assert.Equal(t, "已完成", CurrentStageName(p))
	assert.Equal(t, enums.OrderStatusCompleted, AutoOrderStatus(p))

	actions := AllowedActions(OrderState{Status: AutoOrderStatus(p)}, p)
	assert.True(t, actions.Has(ActionViewDetails))
	assert.False(t, actions.Has(ActionEditInfo))
	assert.False(t, actions.Has(ActionStartStage))
	assert.False(t, actions.Has(ActionCompleteStage))
}

func TestScenarioUnknownStage(t *testing.T) {
	lists := []Progress{
		progressOf(pending),
		progressOf(completed, inProgress, pending),
		progressOf(completed, completed, completed),
	}
	for _, p := range lists {
		ok, reason := CanStartStage(p, "STAGE999")
		assert.False(t, ok)
		assert.Equal(t, "未找到指定阶段", reason)
	}
}

func TestSingleActiveStageBlocksEveryStart(t *testing.T) {
	lists := []Progress{
		progressOf(inProgress, pending, pending),
		progressOf(completed, inProgress, pending),
		progressOf(completed, completed, inProgress),
	}
	for _, p := range lists {
		for _, stage := range p.Stages() {
			ok, _ := CanStartStage(p, stage.ID)
			assert.False(t, ok, "stage %s must not start while another is active", stage.ID)
		}
	}
}

func TestNextInLineAlwaysStarts(t *testing.T) {
	for n := 1; n <= 8; n++ {
		statuses := make([]enums.StageStatus, 8)
		for i := range statuses {
			if i < n-1 {
				statuses[i] = completed
			} else {
				statuses[i] = pending
			}
		}
		p := progressOf(statuses...)
		target := p.Stages()[n-1].ID

		ok, reason := CanStartStage(p, target)
		assert.True(t, ok, "stage %d should start: %s", n, reason)
	}
}
