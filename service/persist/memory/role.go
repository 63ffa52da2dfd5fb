package memory

import (
	"context"
	"sync"

	"github.com/SplitFi/go-drops/service/persist"
)

// RoleRepository is an in-process implementation of persist.RoleRepository
type RoleRepository struct {
	mu      sync.Mutex
	members map[string]map[persist.Role]bool
}

// NewRoleRepository creates an empty in-memory role repository
func NewRoleRepository() *RoleRepository {
	return &RoleRepository{members: map[string]map[persist.Role]bool{}}
}

// Grant adds role membership for an address. Granting an already-held role is a no-op.
func (r *RoleRepository) Grant(ctx context.Context, role persist.Role, addr persist.EthereumAddress) error {
	if !role.IsValid() {
		return persist.ErrInvalidRole{Role: role}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[addr.String()] == nil {
		r.members[addr.String()] = map[persist.Role]bool{}
	}
	r.members[addr.String()][role] = true
	return nil
}

// Revoke removes role membership for an address. Revoking a role the
// address does not hold is a no-op.
func (r *RoleRepository) Revoke(ctx context.Context, role persist.Role, addr persist.EthereumAddress) error {
	if !role.IsValid() {
		return persist.ErrInvalidRole{Role: role}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[addr.String()], role)
	return nil
}

// Has answers a role membership query
func (r *RoleRepository) Has(ctx context.Context, role persist.Role, addr persist.EthereumAddress) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[addr.String()][role], nil
}

// GetByAddress returns all roles held by an address
func (r *RoleRepository) GetByAddress(ctx context.Context, addr persist.EthereumAddress) (persist.RoleList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roles := persist.RoleList{}
	for role, held := range r.members[addr.String()] {
		if held {
			roles = append(roles, role)
		}
	}
	return roles, nil
}
