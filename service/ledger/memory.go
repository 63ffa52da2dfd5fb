package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/SplitFi/go-drops/service/persist"
)

// MemoryCollection is an in-process ownership ledger. It stands in for the
// on-chain asset collection in tests and DB-less deployments.
type MemoryCollection struct {
	mu       sync.Mutex
	address  persist.EthereumAddress
	caps     map[string]bool
	owners   map[persist.UnitID]persist.EthereumAddress
	nextUnit uint64
	paused   bool
	baseURI  string
}

// CollectionOption configures a MemoryCollection at construction
type CollectionOption func(*MemoryCollection)

// WithoutDropCounter builds a collection that fails the drop-counter
// capability probe. Used to exercise the InvalidCollection path.
func WithoutDropCounter() CollectionOption {
	return func(c *MemoryCollection) {
		c.caps[CapDropCounter] = false
	}
}

// NewMemoryCollection creates a collection ledger at the given address
func NewMemoryCollection(address persist.EthereumAddress, opts ...CollectionOption) *MemoryCollection {
	c := &MemoryCollection{
		address: address,
		caps:    map[string]bool{CapDropCounter: true},
		owners:  map[persist.UnitID]persist.EthereumAddress{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCollection) Address() persist.EthereumAddress {
	return c.address
}

func (c *MemoryCollection) Supports(capability string) bool {
	return c.caps[capability]
}

// Mint issues the next unit to the given address
func (c *MemoryCollection) Mint(ctx context.Context, to persist.EthereumAddress) (persist.UnitID, error) {
	if to.IsZero() {
		return 0, persist.ErrInvalidAddress{Address: to}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextUnit++
	unit := persist.UnitID(c.nextUnit)
	c.owners[unit] = persist.EthereumAddress(to.String())
	return unit, nil
}

// Burn removes a unit entirely; the unit ID is not reused
func (c *MemoryCollection) Burn(ctx context.Context, unit persist.UnitID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.owners[unit]; !ok {
		return ErrUnitNotFound{Unit: unit}
	}
	delete(c.owners, unit)
	return nil
}

func (c *MemoryCollection) OwnerOf(ctx context.Context, unit persist.UnitID) (persist.EthereumAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.owners[unit]
	if !ok {
		return "", ErrUnitNotFound{Unit: unit}
	}
	return owner, nil
}

func (c *MemoryCollection) BalanceOf(ctx context.Context, addr persist.EthereumAddress) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var count uint64
	for _, owner := range c.owners {
		if owner.String() == addr.String() {
			count++
		}
	}
	return count, nil
}

func (c *MemoryCollection) TokensOf(ctx context.Context, addr persist.EthereumAddress) ([]persist.UnitID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	units := []persist.UnitID{}
	for unit, owner := range c.owners {
		if owner.String() == addr.String() {
			units = append(units, unit)
		}
	}
	return units, nil
}

func (c *MemoryCollection) Transfer(ctx context.Context, from, to persist.EthereumAddress, unit persist.UnitID) error {
	if to.IsZero() {
		return persist.ErrInvalidAddress{Address: to}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.owners[unit]
	if !ok {
		return ErrUnitNotFound{Unit: unit}
	}
	if owner.String() != from.String() {
		return ErrNotUnitOwner{Unit: unit, From: from}
	}
	c.owners[unit] = persist.EthereumAddress(to.String())
	return nil
}

func (c *MemoryCollection) Paused(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

func (c *MemoryCollection) Pause(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *MemoryCollection) Unpause(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

func (c *MemoryCollection) BaseURI(ctx context.Context) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseURI
}

func (c *MemoryCollection) SetBaseURI(ctx context.Context, uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURI = uri
}

// TokenURI resolves a unit's metadata URI from the collection base URI
func (c *MemoryCollection) TokenURI(ctx context.Context, unit persist.UnitID) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.owners[unit]; !ok {
		return "", ErrUnitNotFound{Unit: unit}
	}
	return fmt.Sprintf("%s%s", c.baseURI, unit), nil
}

// MemoryPayment is an in-process fungible-balance ledger
type MemoryPayment struct {
	mu         sync.Mutex
	balances   map[string]uint64
	allowances map[string]map[string]uint64
}

// NewMemoryPayment creates an empty payment ledger
func NewMemoryPayment() *MemoryPayment {
	return &MemoryPayment{
		balances:   map[string]uint64{},
		allowances: map[string]map[string]uint64{},
	}
}

func (p *MemoryPayment) BalanceOf(ctx context.Context, addr persist.EthereumAddress) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[addr.String()]
}

func (p *MemoryPayment) Allowance(ctx context.Context, owner, spender persist.EthereumAddress) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allowances[owner.String()][spender.String()]
}

func (p *MemoryPayment) Approve(ctx context.Context, owner, spender persist.EthereumAddress, amount uint64) error {
	if spender.IsZero() {
		return persist.ErrInvalidAddress{Address: spender}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allowances[owner.String()] == nil {
		p.allowances[owner.String()] = map[string]uint64{}
	}
	p.allowances[owner.String()][spender.String()] = amount
	return nil
}

// TransferFrom moves amount from owner to to, consuming spender's allowance
func (p *MemoryPayment) TransferFrom(ctx context.Context, spender, owner, to persist.EthereumAddress, amount uint64) error {
	if to.IsZero() {
		return persist.ErrInvalidAddress{Address: to}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	allowance := p.allowances[owner.String()][spender.String()]
	if spender.String() != owner.String() && allowance < amount {
		return persist.ErrInsufficientAllowance{Allowance: allowance, Needed: amount}
	}
	balance := p.balances[owner.String()]
	if balance < amount {
		return persist.ErrInsufficientBalance{Balance: balance, Needed: amount}
	}

	p.balances[owner.String()] = balance - amount
	p.balances[to.String()] += amount
	if spender.String() != owner.String() {
		p.allowances[owner.String()][spender.String()] = allowance - amount
	}
	return nil
}

func (p *MemoryPayment) Credit(ctx context.Context, addr persist.EthereumAddress, amount uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[addr.String()] += amount
	return nil
}
