package enums

// Permission is a staff capability carried as a JWT scope.
type Permission string

const (
	PermissionOrdersRead     Permission = "orders.read"
	PermissionOrdersCreate   Permission = "orders.create"
	PermissionOrdersUpdate   Permission = "orders.update"
	PermissionOrdersDelete   Permission = "orders.delete"
	PermissionProgressUpdate Permission = "progress.update"
	PermissionPhotosUpload   Permission = "photos.upload"
	PermissionPhotosManage   Permission = "photos.manage"
)

// String implements fmt.Stringer.
func (p Permission) String() string {
	return string(p)
}
