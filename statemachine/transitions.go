package statemachine

import "github.com/kendall-kelly/memorial-diamonds-api/enums"

// CanTransitionOrder reports whether an order may move from one status to another.
// Completed and Cancelled are terminal. Unknown values never transition.
func CanTransitionOrder(from, to enums.OrderStatus) bool {
	if !to.IsValid() {
		return false
	}
	switch from {
	case enums.OrderStatusPending:
		return to == enums.OrderStatusInProgress || to == enums.OrderStatusCancelled
	case enums.OrderStatusInProgress:
		return to == enums.OrderStatusCompleted || to == enums.OrderStatusCancelled
	case enums.OrderStatusCompleted, enums.OrderStatusCancelled:
		return false
	}
	return false
}

// CanTransitionStage reports whether a stage may move from one status to another.
// Stages only move forward; Completed is terminal.
func CanTransitionStage(from, to enums.StageStatus) bool {
	if !to.IsValid() {
		return false
	}
	switch from {
	case enums.StageStatusPending:
		return to == enums.StageStatusInProgress
	case enums.StageStatusInProgress:
		return to == enums.StageStatusCompleted
	case enums.StageStatusCompleted:
		return false
	}
	return false
}
