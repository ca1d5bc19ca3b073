package models

// Actor is the authenticated identity performing an operation. It is passed
// explicitly to every service call; the zero value is unauthenticated.
type Actor struct {
	ID   string
	Role Role
}

// Authenticated reports whether the actor carries an id and a known role.
func (a Actor) Authenticated() bool {
	return a.ID != "" && a.Role.Valid()
}

// Owned is implemented by resources that belong to a patient.
type Owned interface {
	OwnerID() string
}
