package permission

import "context"

// Set lists what a role may do with orders.
type Set struct {
	CanEditOrder      bool `json:"canEditOrder" yaml:"canEditOrder"`
	CanDeleteOrder    bool `json:"canDeleteOrder" yaml:"canDeleteOrder"`
	CanEditFinancials bool `json:"canEditFinancials" yaml:"canEditFinancials"`
}

// Full is the implicit set of the owner role.
func Full() Set {
	return Set{CanEditOrder: true, CanDeleteOrder: true, CanEditFinancials: true}
}

// Table maps a role name to its permissions.
type Table map[string]Set

// Store keeps the whole table under a single record.
type Store interface {
	Load(ctx context.Context) (Table, error)
	Save(ctx context.Context, t Table) error
}
