package persist

import (
	"context"
	"database/sql/driver"
	"fmt"
)

// UnitID identifies one issued asset unit on the ownership ledger
type UnitID uint64

func (u UnitID) String() string {
	return fmt.Sprintf("%d", uint64(u))
}

// Value implements the database/sql/driver Valuer interface for the UnitID type
func (u UnitID) Value() (driver.Value, error) {
	return int64(u), nil
}

// Scan implements the database/sql Scanner interface for the UnitID type
func (u *UnitID) Scan(src interface{}) error {
	if src == nil {
		*u = UnitID(0)
		return nil
	}
	*u = UnitID(src.(int64))
	return nil
}

// MintRecord maps an issued unit back to its originating drop, along with
// the optional minter-supplied external identifier and the unit's serial
// number within the drop (1-based, in issuance order).
type MintRecord struct {
	UnitID       UnitID          `json:"unit_id"`
	DropID       DropID          `json:"drop_id"`
	ExternalID   NullString      `json:"external_id"`
	Serial       uint64          `json:"serial"`
	Recipient    EthereumAddress `json:"recipient"`
	CreationTime CreationTime    `json:"created_at"`
}

// MintRecordRepository represents a repository for interacting with persisted mint records
type MintRecordRepository interface {
	Create(context.Context, MintRecord) error
	GetByUnitID(context.Context, UnitID) (MintRecord, error)
	GetByExternalID(context.Context, string) (MintRecord, error)
	ExistsByExternalID(context.Context, string) (bool, error)
	// DeleteByUnitID exists for mint rollback only; records are otherwise append-only
	DeleteByUnitID(context.Context, UnitID) error
}

// ErrMintRecordNotFound is returned when a mint record is not found by its unit ID
type ErrMintRecordNotFound struct {
	UnitID UnitID
}

func (e ErrMintRecordNotFound) Error() string {
	return fmt.Sprintf("mint record not found for unit: %s", e.UnitID)
}

// ErrMintingPaused is returned when the global pause switch is on
type ErrMintingPaused struct{}

func (e ErrMintingPaused) Error() string {
	return "minting is paused"
}

// ErrIncorrectExternalIDs is returned when the number of per-unit external
// identifiers does not match the requested quantity
type ErrIncorrectExternalIDs struct {
	Want uint64
	Got  int
}

func (e ErrIncorrectExternalIDs) Error() string {
	return fmt.Sprintf("expected %d external IDs, got %d", e.Want, e.Got)
}

// ErrPrintConflict is returned when a per-unit external identifier is
// already bound to a previously minted unit
type ErrPrintConflict struct {
	ExternalID string
}

func (e ErrPrintConflict) Error() string {
	return fmt.Sprintf("external ID already bound to a minted unit: %s", e.ExternalID)
}

// ErrInsufficientBalance is returned when the caller's payment-ledger
// balance cannot cover the mint
type ErrInsufficientBalance struct {
	Balance uint64
	Needed  uint64
}

func (e ErrInsufficientBalance) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need %d", e.Balance, e.Needed)
}

// ErrInsufficientAllowance is returned when the caller has not approved the
// engine to spend enough of the payment asset
type ErrInsufficientAllowance struct {
	Allowance uint64
	Needed    uint64
}

func (e ErrInsufficientAllowance) Error() string {
	return fmt.Sprintf("insufficient allowance: approved %d, need %d", e.Allowance, e.Needed)
}
