// Package statemachine holds the production rules for memorial diamond orders:
// which stage may start or complete, and the values derived from an order's
// stage list. Everything here is pure and safe for concurrent use.
package statemachine

import (
	"fmt"
	"sort"

	"github.com/kendall-kelly/memorial-diamonds-api/enums"
)

// Reasons returned by the legality checks. They are shown to staff verbatim.
const (
	ReasonStageNotFound     = "未找到指定阶段"
	ReasonAlreadyInProgress = "该阶段已经在进行中"
	ReasonAlreadyCompleted  = "该阶段已完成，无法重新开始"
	ReasonCanStart          = "可以开始"
	ReasonOnlyInProgress    = "只能完成进行中的阶段"
	ReasonCanComplete       = "可以完成"
	reasonFinishActiveFmt   = "请先完成进行中的阶段：%s"
	reasonFinishPreviousFmt = "请先完成前一阶段：%s"
	CurrentStageCompleted   = "已完成"
	CurrentStageNotStarted  = "未开始"
)

// Stage is the state machine's view of one stage-progress record.
type Stage struct {
	ID     string
	Name   string
	Order  int
	Status enums.StageStatus
}

// Progress is an order's stage list sorted by Order.
// Values built by NewProgress always hold a contiguous 1..N ordering.
type Progress struct {
	stages []Stage
}

// NewProgress validates stages and returns them as a Progress.
// Orders must be contiguous from 1, ids unique and non-empty, statuses known.
func NewProgress(stages []Stage) (Progress, error) {
	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	seen := make(map[string]struct{}, len(sorted))
	for i, stage := range sorted {
		if stage.ID == "" {
			return Progress{}, fmt.Errorf("stage at position %d has no id", i+1)
		}
		if _, dup := seen[stage.ID]; dup {
			return Progress{}, fmt.Errorf("duplicate stage id %q", stage.ID)
		}
		seen[stage.ID] = struct{}{}
		if stage.Order != i+1 {
			return Progress{}, fmt.Errorf("stage %q has order %d, expected %d", stage.ID, stage.Order, i+1)
		}
		if !stage.Status.IsValid() {
			return Progress{}, fmt.Errorf("stage %q has invalid status %q", stage.ID, stage.Status)
		}
	}
	return Progress{stages: sorted}, nil
}

// MustProgress is NewProgress for fixed, known-good stage lists.
func MustProgress(stages []Stage) Progress {
	p, err := NewProgress(stages)
	if err != nil {
		panic(err)
	}
	return p
}

// Stages returns a copy of the stages in order.
func (p Progress) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Len returns the number of stages.
func (p Progress) Len() int {
	return len(p.stages)
}

// Find returns the stage with the given id and its index.
func (p Progress) Find(stageID string) (Stage, int, bool) {
	for i, stage := range p.stages {
		if stage.ID == stageID {
			return stage, i, true
		}
	}
	return Stage{}, -1, false
}

// Active returns the stage currently in progress, if any.
func (p Progress) Active() (Stage, bool) {
	for _, stage := range p.stages {
		if stage.Status == enums.StageStatusInProgress {
			return stage, true
		}
	}
	return Stage{}, false
}

// Next returns the first pending stage by order.
func (p Progress) Next() (Stage, bool) {
	for _, stage := range p.stages {
		if stage.Status == enums.StageStatusPending {
			return stage, true
		}
	}
	return Stage{}, false
}

// Completed returns every completed stage in order.
func (p Progress) Completed() []Stage {
	var out []Stage
	for _, stage := range p.stages {
		if stage.Status == enums.StageStatusCompleted {
			out = append(out, stage)
		}
	}
	return out
}

func (p Progress) any(statuses ...enums.StageStatus) bool {
	for _, stage := range p.stages {
		for _, status := range statuses {
			if stage.Status == status {
				return true
			}
		}
	}
	return false
}

// CanStartStage reports whether stageID may move to in progress.
// Stages run strictly one at a time, in order.
func CanStartStage(p Progress, stageID string) (bool, string) {
	target, index, ok := p.Find(stageID)
	if !ok {
		return false, ReasonStageNotFound
	}

	switch target.Status {
	case enums.StageStatusInProgress:
		return false, ReasonAlreadyInProgress
	case enums.StageStatusCompleted:
		return false, ReasonAlreadyCompleted
	}

	if active, ok := p.Active(); ok {
		return false, fmt.Sprintf(reasonFinishActiveFmt, active.Name)
	}

	if index > 0 {
		previous := p.stages[index-1]
		if previous.Status != enums.StageStatusCompleted {
			return false, fmt.Sprintf(reasonFinishPreviousFmt, previous.Name)
		}
	}

	return true, ReasonCanStart
}

// CanCompleteStage reports whether stageID may move to completed.
// Completion only depends on the target stage itself.
func CanCompleteStage(p Progress, stageID string) (bool, string) {
	target, _, ok := p.Find(stageID)
	if !ok {
		return false, ReasonStageNotFound
	}
	if target.Status != enums.StageStatusInProgress {
		return false, ReasonOnlyInProgress
	}
	return true, ReasonCanComplete
}

// CalculateProgress returns the completed share of stages as 0..100, truncated.
func CalculateProgress(p Progress) int {
	total := len(p.stages)
	if total == 0 {
		return 0
	}
	return len(p.Completed()) * 100 / total
}

// CurrentStageName names the stage an order is at.
// An order that has not started reports its first stage; use HasStarted to tell
// that apart from the first stage being active.
func CurrentStageName(p Progress) string {
	if len(p.stages) == 0 {
		return CurrentStageNotStarted
	}

	if active, ok := p.Active(); ok {
		return active.Name
	}

	lastCompleted := -1
	for i, stage := range p.stages {
		if stage.Status == enums.StageStatusCompleted {
			lastCompleted = i
		}
	}
	if lastCompleted >= 0 {
		if lastCompleted == len(p.stages)-1 {
			return CurrentStageCompleted
		}
		return p.stages[lastCompleted+1].Name
	}

	return p.stages[0].Name
}

// HasStarted reports whether any stage has left pending.
func HasStarted(p Progress) bool {
	return p.any(enums.StageStatusInProgress, enums.StageStatusCompleted)
}

// AutoOrderStatus derives the order status from its stages.
// Cancellation is never derived; it is an explicit action.
func AutoOrderStatus(p Progress) enums.OrderStatus {
	if len(p.stages) == 0 {
		return enums.OrderStatusPending
	}
	if len(p.Completed()) == len(p.stages) {
		return enums.OrderStatusCompleted
	}
	if HasStarted(p) {
		return enums.OrderStatusInProgress
	}
	return enums.OrderStatusPending
}
