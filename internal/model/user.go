package model

import "time"

type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	switch r {
	case RoleParent, RoleChild, RoleAdmin:
		return true
	}
	return false
}

// User is the authenticated identity passed into every workflow call.
// ParentID and Age are only meaningful for children.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	ParentID    string    `json:"parent_id,omitempty"`
	Age         int       `json:"age,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u User) IsParent() bool { return u.Role == RoleParent }
func (u User) IsChild() bool  { return u.Role == RoleChild }
func (u User) IsAdmin() bool  { return u.Role == RoleAdmin }

type Parent struct {
	User
	Children []string `json:"children"`
}

// Child carries a TokenBalance derived from the transaction log at read time.
type Child struct {
	User
	TokenBalance int `json:"token_balance"`
}
