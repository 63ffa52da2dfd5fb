package auth

import (
	"context"

	"github.com/SplitFi/go-drops/event"
	"github.com/SplitFi/go-drops/service/persist"
)

// RoleRegistry enforces the role hierarchy over a RoleRepository: Owner
// administers itself and SubAdmin, SubAdmin administers Creator. Every
// privileged entry point declares its required role and is checked through
// RequireRole rather than carrying its own authorization logic.
type RoleRegistry struct {
	repo       persist.RoleRepository
	dispatcher *event.Dispatcher
}

// NewRoleRegistry creates a RoleRegistry
func NewRoleRegistry(repo persist.RoleRepository, dispatcher *event.Dispatcher) *RoleRegistry {
	return &RoleRegistry{repo: repo, dispatcher: dispatcher}
}

// Grant gives subject the given role. The actor must hold the role's
// administering role or the call fails with ErrUnauthorized.
func (r *RoleRegistry) Grant(ctx context.Context, actor persist.EthereumAddress, role persist.Role, subject persist.EthereumAddress) error {
	if err := r.authorize(ctx, actor, role); err != nil {
		return err
	}
	if subject.IsZero() {
		return persist.ErrInvalidAddress{Address: subject}
	}
	if err := r.repo.Grant(ctx, role, subject); err != nil {
		return err
	}
	r.dispatcher.Dispatch(ctx, event.Event{
		Action:      event.ActionRoleChanged,
		RoleChanged: &event.RoleChanged{Role: role, Subject: subject, Actor: actor, Granted: true},
	})
	return nil
}

// Revoke removes the given role from subject, under the same hierarchy rule as Grant
func (r *RoleRegistry) Revoke(ctx context.Context, actor persist.EthereumAddress, role persist.Role, subject persist.EthereumAddress) error {
	if err := r.authorize(ctx, actor, role); err != nil {
		return err
	}
	if err := r.repo.Revoke(ctx, role, subject); err != nil {
		return err
	}
	r.dispatcher.Dispatch(ctx, event.Event{
		Action:      event.ActionRoleChanged,
		RoleChanged: &event.RoleChanged{Role: role, Subject: subject, Actor: actor, Granted: false},
	})
	return nil
}

// Has answers a role membership query
func (r *RoleRegistry) Has(ctx context.Context, role persist.Role, addr persist.EthereumAddress) (bool, error) {
	return r.repo.Has(ctx, role, addr)
}

// RequireRole fails with ErrUnauthorized unless addr holds the given role
func (r *RoleRegistry) RequireRole(ctx context.Context, role persist.Role, addr persist.EthereumAddress) error {
	has, err := r.repo.Has(ctx, role, addr)
	if err != nil {
		return err
	}
	if !has {
		return persist.ErrUnauthorized{Actor: addr, Required: role}
	}
	return nil
}

// RolesByAddress returns all roles held by an address
func (r *RoleRegistry) RolesByAddress(ctx context.Context, addr persist.EthereumAddress) (persist.RoleList, error) {
	return r.repo.GetByAddress(ctx, addr)
}

// Bootstrap grants the Owner role directly, bypassing the hierarchy check.
// Called once at startup with the configured owner address.
func (r *RoleRegistry) Bootstrap(ctx context.Context, owner persist.EthereumAddress) error {
	if owner.IsZero() {
		return persist.ErrInvalidAddress{Address: owner}
	}
	return r.repo.Grant(ctx, persist.RoleOwner, owner)
}

func (r *RoleRegistry) authorize(ctx context.Context, actor persist.EthereumAddress, role persist.Role) error {
	if !role.IsValid() {
		return persist.ErrInvalidRole{Role: role}
	}
	admin := role.AdministeredBy()
	has, err := r.repo.Has(ctx, admin, actor)
	if err != nil {
		return err
	}
	if !has {
		return persist.ErrUnauthorized{Actor: actor, Required: admin}
	}
	return nil
}
