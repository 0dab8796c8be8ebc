package statemachine

import (
	"encoding/json"

	"github.com/kendall-kelly/memorial-diamonds-api/enums"
)

// Action is an operation a caller may perform on an order.
type Action string

const (
	ActionEditInfo         Action = "edit_info"
	ActionStartStage       Action = "start_stage"
	ActionCompleteStage    Action = "complete_stage"
	ActionCancelOrder      Action = "cancel_order"
	ActionUploadMedia      Action = "upload_media"
	ActionDeleteMedia      Action = "delete_media"
	ActionViewDetails      Action = "view_details"
	ActionSendNotification Action = "send_notification"
	ActionPrintOrder       Action = "print_order"
	ActionDelete           Action = "delete"
)

// actionOrder is the canonical listing order.
var actionOrder = []Action{
	ActionEditInfo,
	ActionStartStage,
	ActionCompleteStage,
	ActionCancelOrder,
	ActionUploadMedia,
	ActionDeleteMedia,
	ActionViewDetails,
	ActionSendNotification,
	ActionPrintOrder,
	ActionDelete,
}

// ActionSet is an unordered set of actions. It marshals as a list in canonical order.
type ActionSet map[Action]struct{}

// NewActionSet builds a set from the given actions.
func NewActionSet(actions ...Action) ActionSet {
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// Has reports whether a is in the set.
func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// List returns the actions in canonical order.
func (s ActionSet) List() []Action {
	out := make([]Action, 0, len(s))
	for _, a := range actionOrder {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// Filter returns the actions for which keep returns true.
func (s ActionSet) Filter(keep func(Action) bool) ActionSet {
	out := make(ActionSet, len(s))
	for a := range s {
		if keep(a) {
			out[a] = struct{}{}
		}
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (s ActionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

// OrderState is the slice of an order the action rules depend on.
type OrderState struct {
	Status    enums.OrderStatus
	IsDeleted bool
}

// AllowedActions is the single authority on what may be done with an order.
// Presentation and API layers gate their controls on it.
func AllowedActions(order OrderState, p Progress) ActionSet {
	set := NewActionSet()
	status := order.Status

	if status != enums.OrderStatusCompleted {
		set[ActionEditInfo] = struct{}{}
	}

	switch status {
	case enums.OrderStatusPending:
		set[ActionStartStage] = struct{}{}
		set[ActionCancelOrder] = struct{}{}
	case enums.OrderStatusInProgress:
		if _, ok := p.Active(); ok {
			set[ActionCompleteStage] = struct{}{}
		}
		if p.any(enums.StageStatusPending) {
			set[ActionStartStage] = struct{}{}
		}
		set[ActionCancelOrder] = struct{}{}
	case enums.OrderStatusCompleted:
		set[ActionViewDetails] = struct{}{}
		set[ActionSendNotification] = struct{}{}
		set[ActionPrintOrder] = struct{}{}
	case enums.OrderStatusCancelled:
	}

	if HasStarted(p) {
		set[ActionUploadMedia] = struct{}{}
		set[ActionDeleteMedia] = struct{}{}
	}

	if !order.IsDeleted {
		set[ActionDelete] = struct{}{}
	}

	return set
}
