package domain

// Role is the closed set of actor roles recognized by the system.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleSupplier || r == RoleAdmin
}

// Principal is an already-authenticated actor. SupplierID is set only for
// supplier principals and names the shop they operate.
type Principal struct {
	UserID     string
	Email      string
	Role       Role
	SupplierID int64
}
