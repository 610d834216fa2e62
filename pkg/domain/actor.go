package domain

import "time"

// Role defines what an actor may do. Managers run listings; everyone else
// applies to them.
type Role string

const (
	RoleStandard Role = "standard"
	RoleManager  Role = "manager"
)

// Actor is a registered associate. Identity is the stable chat-platform id;
// it never changes and actors are never deleted. Role and CreditHours are
// the only fields the engine mutates after registration.
type Actor struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	DateOfBirth time.Time `json:"date_of_birth"`
	NRIC        string    `json:"nric"`
	IRSExpiry   time.Time `json:"irs_expiry"`
	Mobile      string    `json:"mobile"`
	Postal      string    `json:"postal"`
	Photo       []byte    `json:"photo,omitempty"`

	Role         Role      `json:"role"`
	CreditHours  float64   `json:"credit_hours"`
	RegisteredAt time.Time `json:"registered_at"`
}

// FullName joins first and last name for display.
func (a *Actor) FullName() string {
	return a.FirstName + " " + a.LastName
}
