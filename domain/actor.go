package domain

// Actor is the explicit caller identity passed into every use case. A nil Actor
// means the request carried no valid credentials.
type Actor struct {
	UserID     string
	Role       Role
	IsVerified bool
	SessionID  string
}

// Authorize checks that the actor is authenticated and holds one of the allowed roles.
func Authorize(actor *Actor, allowed ...Role) error {
	if actor == nil || actor.UserID == "" {
		return ErrUnauthenticated
	}
	for _, role := range allowed {
		if actor.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// AuthorizeVerified is Authorize plus the requirement that an admin has verified the account.
// Admins are verified by construction.
func AuthorizeVerified(actor *Actor, allowed ...Role) error {
	if err := Authorize(actor, allowed...); err != nil {
		return err
	}
	if !actor.IsVerified && actor.Role != RoleAdmin {
		return ErrNotVerified
	}
	return nil
}
