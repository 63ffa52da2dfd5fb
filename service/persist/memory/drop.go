package memory

import (
	"context"
	"sync"
	"time"

	"github.com/SplitFi/go-drops/service/persist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// DropRepository is an in-process implementation of persist.DropRepository.
// One mutex guards the whole registry, so the bounds check and increment in
// Reserve are atomic with respect to any interleaving of callers. Drops are
// kept in an append-only slice: the index is the dense drop ID.
type DropRepository struct {
	mu            sync.Mutex
	drops         []persist.Drop
	externalIDs   map[string]persist.DropID
	privateMinted map[persist.DropID]map[string]uint64
}

// NewDropRepository creates an empty in-memory drop repository
func NewDropRepository() *DropRepository {
	return &DropRepository{
		externalIDs:   map[string]persist.DropID{},
		privateMinted: map[persist.DropID]map[string]uint64{},
	}
}

// Create appends a new drop and records its external ID mapping. The ID and
// Sold fields of the input are ignored; IDs are assigned densely in
// creation order starting at 0.
func (r *DropRepository) Create(ctx context.Context, drop persist.Drop) (persist.DropID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.externalIDs[drop.ExternalID]; ok {
		return 0, persist.ErrDropConflict{ExternalID: drop.ExternalID}
	}

	drop.ID = persist.DropID(len(r.drops))
	drop.Sold = 0
	drop.CreationTime = persist.CreationTime(time.Now())
	drop.LastUpdated = persist.LastUpdatedTime(time.Now())
	r.drops = append(r.drops, drop)
	r.externalIDs[drop.ExternalID] = drop.ID
	return drop.ID, nil
}

// GetByID returns the drop with the given ID
func (r *DropRepository) GetByID(ctx context.Context, id persist.DropID) (persist.Drop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

// GetByExternalID resolves a drop through the external ID mapping. Unknown
// external IDs fail rather than defaulting to drop 0.
func (r *DropRepository) GetByExternalID(ctx context.Context, externalID string) (persist.Drop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.externalIDs[externalID]
	if !ok {
		return persist.Drop{}, persist.ErrDropNotFoundByExternalID{ExternalID: externalID}
	}
	return r.drops[id], nil
}

// Count returns the number of drops ever created
func (r *DropRepository) Count(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.drops)), nil
}

// UpdateSupply overwrites a drop's supply. Zero supply and supply below the
// current sold counter are rejected.
func (r *DropRepository) UpdateSupply(ctx context.Context, id persist.DropID, supply uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop, err := r.getLocked(id)
	if err != nil {
		return err
	}
	if supply == 0 || supply < drop.Sold {
		return persist.ErrInvalidSupply{Supply: supply, Sold: drop.Sold}
	}
	r.drops[id].Token.Supply = supply
	r.drops[id].LastUpdated = persist.LastUpdatedTime(time.Now())
	return nil
}

// UpdateSaleWindow unconditionally overwrites all four window fields
func (r *DropRepository) UpdateSaleWindow(ctx context.Context, id persist.DropID, update persist.DropSaleWindowUpdateInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.getLocked(id); err != nil {
		return err
	}
	r.drops[id].SaleOpen = update.SaleOpen
	r.drops[id].SaleClose = update.SaleClose
	r.drops[id].PrivateSaleOpen = update.PrivateSaleOpen
	r.drops[id].PrivateSaleMaxMint = update.PrivateSaleMaxMint
	r.drops[id].LastUpdated = persist.LastUpdatedTime(time.Now())
	return nil
}

// UpdateAllowListRoot unconditionally overwrites the committed root
func (r *DropRepository) UpdateAllowListRoot(ctx context.Context, id persist.DropID, root common.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.getLocked(id); err != nil {
		return err
	}
	r.drops[id].AllowListRoot = root
	r.drops[id].LastUpdated = persist.LastUpdatedTime(time.Now())
	return nil
}

// UpdateRightHolder overwrites the drop's right holder
func (r *DropRepository) UpdateRightHolder(ctx context.Context, id persist.DropID, owner persist.EthereumAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.getLocked(id); err != nil {
		return err
	}
	r.drops[id].Owner = owner
	r.drops[id].LastUpdated = persist.LastUpdatedTime(time.Now())
	return nil
}

// Reserve increments the sold counter under the registry lock. Only the
// drop's bound asset collection may call it, and a quantity that would
// overflow or exceed the supply is rejected without effect.
func (r *DropRepository) Reserve(ctx context.Context, id persist.DropID, quantity uint64, caller persist.EthereumAddress) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop, err := r.getLocked(id)
	if err != nil {
		return 0, err
	}
	if drop.AssetCollection.String() != caller.String() {
		return 0, persist.ErrUnauthorizedUpdate{ID: id, Caller: caller}
	}
	sum, overflow := math.SafeAdd(drop.Sold, quantity)
	if overflow || sum > drop.Token.Supply {
		return 0, persist.ErrNotEnoughTokensAvailable{ID: id, Requested: quantity, Remaining: drop.Remaining()}
	}
	r.drops[id].Sold = sum
	r.drops[id].LastUpdated = persist.LastUpdatedTime(time.Now())
	return drop.Sold, nil
}

// Release undoes a prior Reserve as part of mint rollback
func (r *DropRepository) Release(ctx context.Context, id persist.DropID, quantity uint64, caller persist.EthereumAddress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop, err := r.getLocked(id)
	if err != nil {
		return err
	}
	if drop.AssetCollection.String() != caller.String() {
		return persist.ErrUnauthorizedUpdate{ID: id, Caller: caller}
	}
	if quantity > drop.Sold {
		quantity = drop.Sold
	}
	r.drops[id].Sold = drop.Sold - quantity
	r.drops[id].LastUpdated = persist.LastUpdatedTime(time.Now())
	return nil
}

// GetPrivateMinted returns the caller's cumulative private-phase mints for a drop
func (r *DropRepository) GetPrivateMinted(ctx context.Context, id persist.DropID, addr persist.EthereumAddress) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.getLocked(id); err != nil {
		return 0, err
	}
	return r.privateMinted[id][addr.String()], nil
}

// AddPrivateMinted increments the caller's private-phase mint count
func (r *DropRepository) AddPrivateMinted(ctx context.Context, id persist.DropID, addr persist.EthereumAddress, quantity uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.getLocked(id); err != nil {
		return err
	}
	if r.privateMinted[id] == nil {
		r.privateMinted[id] = map[string]uint64{}
	}
	r.privateMinted[id][addr.String()] += quantity
	return nil
}

// ReleasePrivateMinted undoes a prior AddPrivateMinted as part of mint rollback
func (r *DropRepository) ReleasePrivateMinted(ctx context.Context, id persist.DropID, addr persist.EthereumAddress, quantity uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.getLocked(id); err != nil {
		return err
	}
	current := r.privateMinted[id][addr.String()]
	if quantity > current {
		quantity = current
	}
	if r.privateMinted[id] != nil {
		r.privateMinted[id][addr.String()] = current - quantity
	}
	return nil
}

func (r *DropRepository) getLocked(id persist.DropID) (persist.Drop, error) {
	if uint64(id) >= uint64(len(r.drops)) {
		return persist.Drop{}, persist.ErrDropNotFoundByID{ID: id}
	}
	return r.drops[id], nil
}
