package docstore

// Document layout shared with the web client:
//
//	artifacts/{appId}/users/{uid}                     user document
//	artifacts/{appId}/users/{uid}/user_role/role      role and profile
//	artifacts/{appId}/public/data/bookings/{id}       booking
const (
	RoleCollection    = "user_role"
	BookingCollection = "bookings"
)

// UserDocPath is the parent document of a user's role document
func UserDocPath(appID, uid string) Path {
	return NewPath("artifacts", appID, "users", uid)
}

// RoleDocPath is the role/profile document of a user
func RoleDocPath(appID, uid string) Path {
	return UserDocPath(appID, uid).Child(RoleCollection, "role")
}

// BookingsPath is the shared public bookings collection
func BookingsPath(appID string) Path {
	return NewPath("artifacts", appID, "public", "data", BookingCollection)
}
