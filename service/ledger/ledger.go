package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/SplitFi/go-drops/service/persist"
)

// CapDropCounter is the capability probed at drop-creation time: a
// collection that reports it implements the drop-counter callback contract
// and may be bound to a drop.
const CapDropCounter = "drop-counter"

// Collection is the consumed ownership-ledger contract for one asset
// collection. It owns unit issuance and ownership bookkeeping; the mint
// engine drives it but never reaches into its state.
type Collection interface {
	Address() persist.EthereumAddress
	Supports(capability string) bool

	Mint(ctx context.Context, to persist.EthereumAddress) (persist.UnitID, error)
	// Burn exists for mint rollback only
	Burn(ctx context.Context, unit persist.UnitID) error
	OwnerOf(ctx context.Context, unit persist.UnitID) (persist.EthereumAddress, error)
	BalanceOf(ctx context.Context, addr persist.EthereumAddress) (uint64, error)
	TokensOf(ctx context.Context, addr persist.EthereumAddress) ([]persist.UnitID, error)
	Transfer(ctx context.Context, from, to persist.EthereumAddress, unit persist.UnitID) error

	Paused(ctx context.Context) bool
	Pause(ctx context.Context)
	Unpause(ctx context.Context)

	BaseURI(ctx context.Context) string
	SetBaseURI(ctx context.Context, uri string)
	TokenURI(ctx context.Context, unit persist.UnitID) (string, error)
}

// Payment is the consumed fungible-balance ledger contract. TransferFrom
// debits owner on behalf of spender, consuming spender's allowance.
type Payment interface {
	BalanceOf(ctx context.Context, addr persist.EthereumAddress) uint64
	Allowance(ctx context.Context, owner, spender persist.EthereumAddress) uint64
	Approve(ctx context.Context, owner, spender persist.EthereumAddress, amount uint64) error
	TransferFrom(ctx context.Context, spender, owner, to persist.EthereumAddress, amount uint64) error
	// Credit mints balance out of thin air; deployment wiring and tests only
	Credit(ctx context.Context, addr persist.EthereumAddress, amount uint64) error
}

// SupportsDropCounter is the capability probe run before a collection is
// bound to a drop.
func SupportsDropCounter(c Collection) bool {
	return c != nil && c.Supports(CapDropCounter)
}

// CollectionSet resolves bound asset collections by address.
type CollectionSet struct {
	mu          sync.RWMutex
	collections map[persist.EthereumAddress]Collection
}

// NewCollectionSet creates an empty CollectionSet
func NewCollectionSet() *CollectionSet {
	return &CollectionSet{collections: map[persist.EthereumAddress]Collection{}}
}

// Register adds a collection to the set, keyed by its address
func (s *CollectionSet) Register(c Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[persist.EthereumAddress(c.Address().String())] = c
}

// Get resolves a collection by address
func (s *CollectionSet) Get(addr persist.EthereumAddress) (Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[persist.EthereumAddress(addr.String())]
	if !ok {
		return nil, ErrCollectionNotFound{Address: addr}
	}
	return c, nil
}

// ErrCollectionNotFound is returned when no collection is registered at an address
type ErrCollectionNotFound struct {
	Address persist.EthereumAddress
}

func (e ErrCollectionNotFound) Error() string {
	return fmt.Sprintf("no collection registered at address: %s", e.Address)
}

// ErrUnitNotFound is returned when a unit does not exist on a collection
type ErrUnitNotFound struct {
	Unit persist.UnitID
}

func (e ErrUnitNotFound) Error() string {
	return fmt.Sprintf("unit not found: %s", e.Unit)
}

// ErrNotUnitOwner is returned when a transfer is attempted by a non-owner
type ErrNotUnitOwner struct {
	Unit persist.UnitID
	From persist.EthereumAddress
}

func (e ErrNotUnitOwner) Error() string {
	return fmt.Sprintf("address %s does not own unit %s", e.From, e.Unit)
}
