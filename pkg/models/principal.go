package models

// Principal identifies the authenticated actor behind a mutation. It is
// stamped into audit columns such as created_by and updated_by.
type Principal struct {
	ID     string
	Email  string
	Role   string
	Tenant string
}
