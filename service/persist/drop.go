package persist

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// DropID is the dense sequential identifier of a drop, assigned in creation
// order starting at 0
type DropID uint64

func (d DropID) String() string {
	return fmt.Sprintf("%d", uint64(d))
}

// Value implements the database/sql/driver Valuer interface for the DropID type
func (d DropID) Value() (driver.Value, error) {
	return int64(d), nil
}

// Scan implements the database/sql Scanner interface for the DropID type
func (d *DropID) Scan(src interface{}) error {
	if src == nil {
		*d = DropID(0)
		return nil
	}
	*d = DropID(src.(int64))
	return nil
}

// PaymentAsset identifies the fungible ledger a drop is priced in. A nil
// PaymentAsset on a TokenInfo means native-currency pricing.
type PaymentAsset struct {
	Address  EthereumAddress `json:"address"`
	Decimals uint8           `json:"decimals"`
}

// TokenInfo holds the pricing and supply parameters of a drop. All fields
// except Supply are immutable once embedded in a drop.
type TokenInfo struct {
	Price                uint64        `json:"price"` // smallest currency unit
	PaymentAsset         *PaymentAsset `json:"payment_asset,omitempty"`
	Supply               uint64        `json:"supply"`
	RoyaltySharePerToken uint64        `json:"royalty_share_per_token"`
}

// Value implements the database/sql/driver Valuer interface for TokenInfo
func (t TokenInfo) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements the database/sql Scanner interface for TokenInfo
func (t *TokenInfo) Scan(src interface{}) error {
	if src == nil {
		*t = TokenInfo{}
		return nil
	}
	return json.Unmarshal(src.([]uint8), t)
}

// Drop represents one sale campaign for a fixed-supply batch of units
type Drop struct {
	ID           DropID          `json:"id"`
	Version      NullInt32       `json:"version"` // schema version for this model
	CreationTime CreationTime    `json:"created_at"`
	LastUpdated  LastUpdatedTime `json:"last_updated"`

	ExternalID string    `json:"external_id"`
	Token      TokenInfo `json:"token_info"`
	Sold       uint64    `json:"sold"`

	// Unix timestamps. SaleOpen <= SaleClose is not enforced here; the
	// caller owns window sanity. PrivateSaleOpen of 0 means no private
	// window start is configured; PrivateSaleMaxMint of 0 means no
	// per-address private-phase cap.
	SaleOpen           int64  `json:"sale_open"`
	SaleClose          int64  `json:"sale_close"`
	PrivateSaleOpen    int64  `json:"private_sale_open"`
	PrivateSaleMaxMint uint64 `json:"private_sale_max_mint"`

	// AllowListRoot of all zeroes means no allow-list is configured
	AllowListRoot   common.Hash     `json:"allow_list_root"`
	Owner           EthereumAddress `json:"owner"`
	AssetCollection EthereumAddress `json:"asset_collection"`
}

// Remaining returns the number of unsold units
func (d Drop) Remaining() uint64 {
	if d.Sold >= d.Token.Supply {
		return 0
	}
	return d.Token.Supply - d.Sold
}

// HasAllowList returns true when an allow-list root is committed
func (d Drop) HasAllowList() bool {
	return d.AllowListRoot != (common.Hash{})
}

// DropSaleWindowUpdateInput is used to overwrite a drop's sale window fields
type DropSaleWindowUpdateInput struct {
	LastUpdated LastUpdatedTime `json:"last_updated"`

	SaleOpen           int64  `json:"sale_open"`
	SaleClose          int64  `json:"sale_close"`
	PrivateSaleOpen    int64  `json:"private_sale_open"`
	PrivateSaleMaxMint uint64 `json:"private_sale_max_mint"`
}

// DropRepository represents a repository for interacting with persisted drops.
// Reserve is the sole mutation of the sold counter and the single
// linearization point for supply exhaustion: implementations must apply the
// bounds check and the increment atomically with respect to concurrent calls.
type DropRepository interface {
	Create(context.Context, Drop) (DropID, error)
	GetByID(context.Context, DropID) (Drop, error)
	GetByExternalID(context.Context, string) (Drop, error)
	Count(context.Context) (uint64, error)
	UpdateSupply(context.Context, DropID, uint64) error
	UpdateSaleWindow(context.Context, DropID, DropSaleWindowUpdateInput) error
	UpdateAllowListRoot(context.Context, DropID, common.Hash) error
	UpdateRightHolder(context.Context, DropID, EthereumAddress) error

	// Reserve increments the sold counter by quantity on behalf of the
	// drop's bound asset collection and returns the counter value before
	// the increment. Release is its compensation for rolled-back mints.
	Reserve(ctx context.Context, id DropID, quantity uint64, caller EthereumAddress) (soldBefore uint64, err error)
	Release(ctx context.Context, id DropID, quantity uint64, caller EthereumAddress) error

	// Private-phase per-address mint accounting, used by the
	// MaxMintPerAddress eligibility rule.
	GetPrivateMinted(ctx context.Context, id DropID, addr EthereumAddress) (uint64, error)
	AddPrivateMinted(ctx context.Context, id DropID, addr EthereumAddress, quantity uint64) error
	ReleasePrivateMinted(ctx context.Context, id DropID, addr EthereumAddress, quantity uint64) error
}

// ErrDropNotFoundByID is returned when a drop is not found by its ID
type ErrDropNotFoundByID struct {
	ID DropID
}

func (e ErrDropNotFoundByID) Error() string {
	return fmt.Sprintf("drop not found by ID: %s", e.ID)
}

// ErrDropNotFoundByExternalID is returned when a drop is not found by its external ID
type ErrDropNotFoundByExternalID struct {
	ExternalID string
}

func (e ErrDropNotFoundByExternalID) Error() string {
	return fmt.Sprintf("drop not found by external ID: %s", e.ExternalID)
}

// ErrDropConflict is returned when a drop is created with an external ID
// that already maps to another drop
type ErrDropConflict struct {
	ExternalID string
}

func (e ErrDropConflict) Error() string {
	return fmt.Sprintf("drop already exists with external ID: %s", e.ExternalID)
}

// ErrInvalidSupply is returned when a supply of zero is supplied, or when a
// supply update would fall below the current sold counter
type ErrInvalidSupply struct {
	Supply uint64
	Sold   uint64
}

func (e ErrInvalidSupply) Error() string {
	if e.Supply != 0 && e.Supply < e.Sold {
		return fmt.Sprintf("invalid supply %d: %d units already sold", e.Supply, e.Sold)
	}
	return fmt.Sprintf("invalid supply: %d", e.Supply)
}

// ErrInvalidCollection is returned when an asset collection fails the
// capability probe at drop creation
type ErrInvalidCollection struct {
	Address EthereumAddress
}

func (e ErrInvalidCollection) Error() string {
	return fmt.Sprintf("asset collection %s does not support the drop counter callback", e.Address)
}

// ErrNotACreator is returned when a right-holder assignment target lacks
// the Creator role at call time
type ErrNotACreator struct {
	Address EthereumAddress
}

func (e ErrNotACreator) Error() string {
	return fmt.Sprintf("address %s does not hold the creator role", e.Address)
}

// ErrUnauthorizedUpdate is returned when the sold counter is touched by
// anything other than the drop's bound asset collection
type ErrUnauthorizedUpdate struct {
	ID     DropID
	Caller EthereumAddress
}

func (e ErrUnauthorizedUpdate) Error() string {
	return fmt.Sprintf("caller %s may not update the sold counter of drop %s", e.Caller, e.ID)
}

// ErrDropSoldOut is returned when a drop's supply is exhausted
type ErrDropSoldOut struct {
	ID DropID
}

func (e ErrDropSoldOut) Error() string {
	return fmt.Sprintf("drop %s is sold out", e.ID)
}

// ErrNotEnoughTokensAvailable is returned when a requested quantity exceeds
// the remaining supply
type ErrNotEnoughTokensAvailable struct {
	ID        DropID
	Requested uint64
	Remaining uint64
}

func (e ErrNotEnoughTokensAvailable) Error() string {
	return fmt.Sprintf("drop %s has %d units remaining, %d requested", e.ID, e.Remaining, e.Requested)
}

// ErrSaleNotStarted is returned when minting is attempted before the public
// sale window opens and no allow-list is configured
type ErrSaleNotStarted struct {
	ID DropID
}

func (e ErrSaleNotStarted) Error() string {
	return fmt.Sprintf("sale for drop %s has not started", e.ID)
}

// ErrPrivateSaleNotStarted is returned when minting is attempted before the
// configured private sale window opens
type ErrPrivateSaleNotStarted struct {
	ID DropID
}

func (e ErrPrivateSaleNotStarted) Error() string {
	return fmt.Sprintf("private sale for drop %s has not started", e.ID)
}

// ErrSaleEnded is returned when minting is attempted after the sale window closes
type ErrSaleEnded struct {
	ID DropID
}

func (e ErrSaleEnded) Error() string {
	return fmt.Sprintf("sale for drop %s has ended", e.ID)
}

// ErrNotWhiteListed is returned when a private-phase mint carries a proof
// that does not place the caller in the committed allow-list
type ErrNotWhiteListed struct {
	Address EthereumAddress
}

func (e ErrNotWhiteListed) Error() string {
	return fmt.Sprintf("address %s is not on the allow-list", e.Address)
}

// ErrMaxMintPerAddress is returned when a private-phase mint would exceed
// the per-address cap
type ErrMaxMintPerAddress struct {
	Address EthereumAddress
	Max     uint64
}

func (e ErrMaxMintPerAddress) Error() string {
	return fmt.Sprintf("address %s may mint at most %d units during the private sale", e.Address, e.Max)
}
