package domain

// Role constants for authenticated actors.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"
)

// Actor is the authenticated caller as decoded from the bearer token.
// The zero value is an anonymous caller.
type Actor struct {
	ID   string
	Role string
}

// IsAnonymous reports whether no identity was presented.
func (a Actor) IsAnonymous() bool { return a.ID == "" }

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.ID != "" && a.Role == RoleAdmin }

// IsSeller reports whether the actor holds the seller role.
func (a Actor) IsSeller() bool { return a.ID != "" && a.Role == RoleSeller }

// IsValidRole checks whether role is one of the known roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}
