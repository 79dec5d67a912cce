package services

import "github.com/cppla/blogsvc/models"

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	UserID uint
	Role   models.Role
}

// IsAdmin reports whether the caller holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// CanModify reports whether the caller owns the resource or is an admin.
func (a Actor) CanModify(ownerID uint) bool {
	return a.IsAdmin() || (a.UserID != 0 && a.UserID == ownerID)
}
