package drop

import (
	"context"

	"github.com/SplitFi/go-drops/event"
	"github.com/SplitFi/go-drops/service/auth"
	"github.com/SplitFi/go-drops/service/ledger"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/ethereum/go-ethereum/common"
)

// Registry owns the canonical list of drops. Role gating of its mutating
// entry points lives in the API layer; the registry itself enforces the
// data invariants: positive supply, unique external IDs, the capability
// probe on the bound collection, and the Creator-role rule on right-holder
// assignment.
type Registry struct {
	repo        persist.DropRepository
	roles       *auth.RoleRegistry
	collections *ledger.CollectionSet
	dispatcher  *event.Dispatcher
}

// NewRegistry creates a drop Registry
func NewRegistry(repo persist.DropRepository, roles *auth.RoleRegistry, collections *ledger.CollectionSet, dispatcher *event.Dispatcher) *Registry {
	return &Registry{repo: repo, roles: roles, collections: collections, dispatcher: dispatcher}
}

// CreateInput carries the parameters of a new drop
type CreateInput struct {
	Owner              persist.EthereumAddress
	Collection         ledger.Collection
	Token              persist.TokenInfo
	ExternalID         string
	SaleOpen           int64
	SaleClose          int64
	PrivateSaleOpen    int64
	PrivateSaleMaxMint uint64
	AllowListRoot      common.Hash
}

// Create registers a new drop. The drop ID is dense and assigned in
// creation order; the sold counter starts at zero.
func (r *Registry) Create(ctx context.Context, input CreateInput) (persist.Drop, error) {
	if input.Token.Supply == 0 {
		return persist.Drop{}, persist.ErrInvalidSupply{Supply: 0}
	}
	if !ledger.SupportsDropCounter(input.Collection) {
		var addr persist.EthereumAddress
		if input.Collection != nil {
			addr = input.Collection.Address()
		}
		return persist.Drop{}, persist.ErrInvalidCollection{Address: addr}
	}
	if input.Owner.IsZero() {
		return persist.Drop{}, persist.ErrInvalidAddress{Address: input.Owner}
	}
	isCreator, err := r.roles.Has(ctx, persist.RoleCreator, input.Owner)
	if err != nil {
		return persist.Drop{}, err
	}
	if !isCreator {
		return persist.Drop{}, persist.ErrNotACreator{Address: input.Owner}
	}

	id, err := r.repo.Create(ctx, persist.Drop{
		ExternalID:         input.ExternalID,
		Token:              input.Token,
		SaleOpen:           input.SaleOpen,
		SaleClose:          input.SaleClose,
		PrivateSaleOpen:    input.PrivateSaleOpen,
		PrivateSaleMaxMint: input.PrivateSaleMaxMint,
		AllowListRoot:      input.AllowListRoot,
		Owner:              input.Owner,
		AssetCollection:    input.Collection.Address(),
	})
	if err != nil {
		return persist.Drop{}, err
	}

	r.collections.Register(input.Collection)
	r.dispatcher.Dispatch(ctx, event.Event{
		Action: event.ActionDropCreated,
		DropCreated: &event.DropCreated{
			DropID:     id,
			ExternalID: input.ExternalID,
			Owner:      input.Owner,
			Supply:     input.Token.Supply,
		},
	})
	return r.repo.GetByID(ctx, id)
}

// GetByID returns the drop with the given ID
func (r *Registry) GetByID(ctx context.Context, id persist.DropID) (persist.Drop, error) {
	return r.repo.GetByID(ctx, id)
}

// GetByExternalID resolves a drop by its globally unique external ID
func (r *Registry) GetByExternalID(ctx context.Context, externalID string) (persist.Drop, error) {
	return r.repo.GetByExternalID(ctx, externalID)
}

// Count returns the number of registered drops
func (r *Registry) Count(ctx context.Context) (uint64, error) {
	return r.repo.Count(ctx)
}

// SetSupply overwrites a drop's supply; zero and values below the current
// sold counter are rejected
func (r *Registry) SetSupply(ctx context.Context, actor persist.EthereumAddress, id persist.DropID, supply uint64) error {
	if err := r.repo.UpdateSupply(ctx, id, supply); err != nil {
		return err
	}
	r.dispatchUpdated(ctx, id, "supply", actor)
	return nil
}

// SetSaleWindow overwrites all four sale-window fields with no ordering
// validation between open and close
func (r *Registry) SetSaleWindow(ctx context.Context, actor persist.EthereumAddress, id persist.DropID, update persist.DropSaleWindowUpdateInput) error {
	if err := r.repo.UpdateSaleWindow(ctx, id, update); err != nil {
		return err
	}
	r.dispatchUpdated(ctx, id, "sale_window", actor)
	return nil
}

// SetAllowListRoot overwrites the committed allow-list root
func (r *Registry) SetAllowListRoot(ctx context.Context, actor persist.EthereumAddress, id persist.DropID, root common.Hash) error {
	if err := r.repo.UpdateAllowListRoot(ctx, id, root); err != nil {
		return err
	}
	r.dispatchUpdated(ctx, id, "allow_list_root", actor)
	return nil
}

// SetRightHolder reassigns the drop's economic beneficiary. The target must
// hold the Creator role at call time; this is not re-checked afterward.
func (r *Registry) SetRightHolder(ctx context.Context, actor persist.EthereumAddress, id persist.DropID, newOwner persist.EthereumAddress) error {
	isCreator, err := r.roles.Has(ctx, persist.RoleCreator, newOwner)
	if err != nil {
		return err
	}
	if !isCreator {
		return persist.ErrNotACreator{Address: newOwner}
	}
	if err := r.repo.UpdateRightHolder(ctx, id, newOwner); err != nil {
		return err
	}
	r.dispatchUpdated(ctx, id, "right_holder", actor)
	return nil
}

// Reserve increments a drop's sold counter on behalf of its bound asset
// collection. This is the authoritative serialization point for supply
// exhaustion: the bounds check and the increment are atomic.
func (r *Registry) Reserve(ctx context.Context, id persist.DropID, quantity uint64, caller persist.EthereumAddress) (uint64, error) {
	return r.repo.Reserve(ctx, id, quantity, caller)
}

// Release undoes a prior Reserve during mint rollback
func (r *Registry) Release(ctx context.Context, id persist.DropID, quantity uint64, caller persist.EthereumAddress) error {
	return r.repo.Release(ctx, id, quantity, caller)
}

// PrivateMinted returns the caller's cumulative private-phase mints for a drop
func (r *Registry) PrivateMinted(ctx context.Context, id persist.DropID, addr persist.EthereumAddress) (uint64, error) {
	return r.repo.GetPrivateMinted(ctx, id, addr)
}

// AddPrivateMinted increments the caller's private-phase mint count
func (r *Registry) AddPrivateMinted(ctx context.Context, id persist.DropID, addr persist.EthereumAddress, quantity uint64) error {
	return r.repo.AddPrivateMinted(ctx, id, addr, quantity)
}

// ReleasePrivateMinted undoes a prior AddPrivateMinted during mint rollback
func (r *Registry) ReleasePrivateMinted(ctx context.Context, id persist.DropID, addr persist.EthereumAddress, quantity uint64) error {
	return r.repo.ReleasePrivateMinted(ctx, id, addr, quantity)
}

// Collection resolves a drop's bound asset collection
func (r *Registry) Collection(ctx context.Context, addr persist.EthereumAddress) (ledger.Collection, error) {
	return r.collections.Get(addr)
}

func (r *Registry) dispatchUpdated(ctx context.Context, id persist.DropID, field string, actor persist.EthereumAddress) {
	r.dispatcher.Dispatch(ctx, event.Event{
		Action:      event.ActionDropUpdated,
		DropUpdated: &event.DropUpdated{DropID: id, Field: field, Actor: actor},
	})
}
