package eligibility

import (
	"github.com/SplitFi/go-drops/service/allowlist"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
)

// Verdict is the single reason code a mint request evaluates to
type Verdict string

const (
	Eligible                 Verdict = "eligible"
	MintingPaused            Verdict = "minting_paused"
	DropSoldOut              Verdict = "drop_sold_out"
	NotEnoughTokensAvailable Verdict = "not_enough_tokens_available"
	IncorrectExternalIDs     Verdict = "incorrect_external_ids"
	SaleNotStarted           Verdict = "sale_not_started"
	PrivateSaleNotStarted    Verdict = "private_sale_not_started"
	NotWhiteListed           Verdict = "not_white_listed"
	MaxMintPerAddress        Verdict = "max_mint_per_address"
	SaleEnded                Verdict = "sale_ended"
	PrintConflict            Verdict = "print_conflict"
)

// Request is one prospective mint
type Request struct {
	Caller      persist.EthereumAddress
	Quantity    uint64
	ExternalIDs []string
	Proof       []common.Hash
	Now         int64 // unix seconds
}

// State is the read-only environment a request is evaluated against
type State struct {
	Paused bool
	// PrivateMinted is the caller's cumulative private-phase mint count for the drop
	PrivateMinted uint64
	// ExternalIDTaken answers whether a per-unit external ID is already
	// bound to a minted unit; nil means none are
	ExternalIDTaken func(string) bool
}

// Evaluate decides whether a prospective mint is allowed. It is pure: the
// same logic backs both the read-only "why can't I mint" query and the
// mutating mint call, so the two always agree. The check order is a
// behavioral contract, first match wins.
func Evaluate(d persist.Drop, req Request, state State) Verdict {
	if state.Paused {
		return MintingPaused
	}
	if d.Sold == d.Token.Supply {
		return DropSoldOut
	}
	sum, overflow := math.SafeAdd(d.Sold, req.Quantity)
	if overflow || sum > d.Token.Supply {
		return NotEnoughTokensAvailable
	}
	if len(req.ExternalIDs) > 0 && uint64(len(req.ExternalIDs)) != req.Quantity {
		return IncorrectExternalIDs
	}

	if req.Now < d.SaleOpen {
		// Gated phase: only allow-listed addresses may mint, within the
		// private window and per-address cap when configured.
		if !d.HasAllowList() {
			return SaleNotStarted
		}
		if d.PrivateSaleOpen != 0 && req.Now < d.PrivateSaleOpen {
			return PrivateSaleNotStarted
		}
		if !allowlist.Verify(req.Proof, d.AllowListRoot, req.Caller) {
			return NotWhiteListed
		}
		if d.PrivateSaleMaxMint > 0 {
			total, overflow := math.SafeAdd(state.PrivateMinted, req.Quantity)
			if overflow || total > d.PrivateSaleMaxMint {
				return MaxMintPerAddress
			}
		}
	}

	if req.Now > d.SaleClose {
		return SaleEnded
	}

	if taken := state.ExternalIDTaken; taken != nil {
		for _, externalID := range req.ExternalIDs {
			if taken(externalID) {
				return PrintConflict
			}
		}
	}

	return Eligible
}

// RemainingPrivateAllowance returns how many more units the caller may mint
// during the private phase, given their cumulative count so far
func RemainingPrivateAllowance(d persist.Drop, privateMinted uint64) uint64 {
	if d.PrivateSaleMaxMint == 0 || privateMinted >= d.PrivateSaleMaxMint {
		return 0
	}
	return d.PrivateSaleMaxMint - privateMinted
}

// ErrorFor maps a verdict to its caller-visible error so a failed mint and
// the dry-run query surface the identical condition
func ErrorFor(v Verdict, d persist.Drop, req Request, state State) error {
	switch v {
	case Eligible:
		return nil
	case MintingPaused:
		return persist.ErrMintingPaused{}
	case DropSoldOut:
		return persist.ErrDropSoldOut{ID: d.ID}
	case NotEnoughTokensAvailable:
		return persist.ErrNotEnoughTokensAvailable{ID: d.ID, Requested: req.Quantity, Remaining: d.Remaining()}
	case IncorrectExternalIDs:
		return persist.ErrIncorrectExternalIDs{Want: req.Quantity, Got: len(req.ExternalIDs)}
	case SaleNotStarted:
		return persist.ErrSaleNotStarted{ID: d.ID}
	case PrivateSaleNotStarted:
		return persist.ErrPrivateSaleNotStarted{ID: d.ID}
	case NotWhiteListed:
		return persist.ErrNotWhiteListed{Address: req.Caller}
	case MaxMintPerAddress:
		return persist.ErrMaxMintPerAddress{Address: req.Caller, Max: d.PrivateSaleMaxMint}
	case SaleEnded:
		return persist.ErrSaleEnded{ID: d.ID}
	case PrintConflict:
		if taken := state.ExternalIDTaken; taken != nil {
			for _, externalID := range req.ExternalIDs {
				if taken(externalID) {
					return persist.ErrPrintConflict{ExternalID: externalID}
				}
			}
		}
		return persist.ErrPrintConflict{}
	}
	return nil
}
