package domain

// Roles carried in the JWT role claim.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Requester identifies the authenticated caller of a service operation.
type Requester struct {
	UserID string
	Role   string
	Tier   string
}

func (r Requester) IsAdmin() bool { return r.Role == RoleAdmin }
