package model

import "time"

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// ValidRole reports whether role is a membership role the schema accepts.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleMember
}

type Group struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Users     []Membership `json:"users,omitempty"`
}

// Membership is a user's row in a group's member list (UserGroup).
type Membership struct {
	UserID    string    `json:"userId"`
	GroupID   string    `json:"groupId"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	User      *User     `json:"user,omitempty"`
}

func (m *Membership) IsAdmin() bool {
	return m != nil && m.Role == RoleAdmin
}
