package domain

// Role names carried in JWT claims. Token issuing lives in the surrounding
// application; this service only checks roles on its admin surfaces.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)
