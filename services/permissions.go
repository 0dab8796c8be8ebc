package services

import (
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/statemachine"
)

// actionPermissions maps each action to the staff permission it needs.
var actionPermissions = map[statemachine.Action]enums.Permission{
	statemachine.ActionEditInfo:         enums.PermissionOrdersUpdate,
	statemachine.ActionCancelOrder:      enums.PermissionOrdersUpdate,
	statemachine.ActionSendNotification: enums.PermissionOrdersUpdate,
	statemachine.ActionStartStage:       enums.PermissionProgressUpdate,
	statemachine.ActionCompleteStage:    enums.PermissionProgressUpdate,
	statemachine.ActionUploadMedia:      enums.PermissionPhotosUpload,
	statemachine.ActionDeleteMedia:      enums.PermissionPhotosManage,
	statemachine.ActionViewDetails:      enums.PermissionOrdersRead,
	statemachine.ActionPrintOrder:       enums.PermissionOrdersRead,
	statemachine.ActionDelete:           enums.PermissionOrdersDelete,
}

// PermissionFor returns the permission an action requires.
func PermissionFor(action statemachine.Action) (enums.Permission, bool) {
	perm, ok := actionPermissions[action]
	return perm, ok
}

// FilterActionsByPermissions narrows actions to those the caller holds a permission for.
// A nil permission list means the caller is not restricted.
func FilterActionsByPermissions(actions statemachine.ActionSet, permissions []enums.Permission) statemachine.ActionSet {
	if permissions == nil {
		return actions
	}
	held := make(map[enums.Permission]bool, len(permissions))
	for _, p := range permissions {
		held[p] = true
	}
	return actions.Filter(func(action statemachine.Action) bool {
		perm, ok := actionPermissions[action]
		return ok && held[perm]
	})
}

// ParsePermissions converts scope strings, skipping unknown ones.
func ParsePermissions(scopes []string) []enums.Permission {
	known := map[enums.Permission]bool{
		enums.PermissionOrdersRead:     true,
		enums.PermissionOrdersCreate:   true,
		enums.PermissionOrdersUpdate:   true,
		enums.PermissionOrdersDelete:   true,
		enums.PermissionProgressUpdate: true,
		enums.PermissionPhotosUpload:   true,
		enums.PermissionPhotosManage:   true,
	}
	out := []enums.Permission{}
	for _, scope := range scopes {
		if p := enums.Permission(scope); known[p] {
			out = append(out, p)
		}
	}
	return out
}
