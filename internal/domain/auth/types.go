// Package auth contains domain-level types for request actors.
package auth

// Role represents an actor's authorization role.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Actor is the authenticated principal behind a request.
type Actor struct {
	UserID string
	Email  string
	Role   Role
}

// IsAdmin returns true if the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// Label returns the identifier recorded in created_by and updated_by.
func (a Actor) Label() string {
	if a.Email != "" {
		return a.Email
	}
	return a.UserID
}

// System is the actor recorded for writes made by the service itself, such
// as dispatch failures and worker callbacks.
var System = Actor{UserID: "system", Role: RoleAdmin}
