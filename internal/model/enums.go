package model

type UserRole string

const (
	RoleStandard UserRole = "standard"
	RoleAgent    UserRole = "agent"
)

func (r UserRole) Valid() bool {
	return r == RoleStandard || r == RoleAgent
}
