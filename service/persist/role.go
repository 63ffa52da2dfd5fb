package persist

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/lib/pq"
)

const (
	// RoleOwner is the root of the role hierarchy; it administers itself and SubAdmin
	RoleOwner Role = "owner"
	// RoleSubAdmin administers Creator and may mutate drop fields
	RoleSubAdmin Role = "subadmin"
	// RoleCreator may create drops and be assigned as a drop's right holder
	RoleCreator Role = "creator"
)

// Role represents a named permission level in the role hierarchy
type Role string

func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is one of the known roles
func (r Role) IsValid() bool {
	return r == RoleOwner || r == RoleSubAdmin || r == RoleCreator
}

// AdministeredBy returns the role whose holders may grant and revoke r.
// The hierarchy is a strict tree of depth 2: Owner administers itself and
// SubAdmin, SubAdmin administers Creator.
func (r Role) AdministeredBy() Role {
	switch r {
	case RoleOwner, RoleSubAdmin:
		return RoleOwner
	case RoleCreator:
		return RoleSubAdmin
	}
	return ""
}

// RoleList is a slice of roles, used to implement scanner/valuer interfaces
type RoleList []Role

// Value implements the database/sql/driver Valuer interface for the RoleList type
func (l RoleList) Value() (driver.Value, error) {
	return pq.Array(l).Value()
}

// Scan implements the database/sql Scanner interface for the RoleList type
func (l *RoleList) Scan(value interface{}) error {
	return pq.Array(l).Scan(value)
}

// RoleRepository represents a repository for interacting with persisted role membership
type RoleRepository interface {
	Grant(context.Context, Role, EthereumAddress) error
	Revoke(context.Context, Role, EthereumAddress) error
	Has(context.Context, Role, EthereumAddress) (bool, error)
	GetByAddress(context.Context, EthereumAddress) (RoleList, error)
}

// ErrUnauthorized is returned when a caller lacks the role an entry point requires
type ErrUnauthorized struct {
	Actor    EthereumAddress
	Required Role
}

func (e ErrUnauthorized) Error() string {
	return fmt.Sprintf("address %s does not hold required role %s", e.Actor, e.Required)
}

// ErrInvalidRole is returned when an unknown role name is supplied
type ErrInvalidRole struct {
	Role Role
}

func (e ErrInvalidRole) Error() string {
	return fmt.Sprintf("invalid role: %s", e.Role)
}
