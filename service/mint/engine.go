package mint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SplitFi/go-drops/event"
	"github.com/SplitFi/go-drops/service/drop"
	"github.com/SplitFi/go-drops/service/eligibility"
	"github.com/SplitFi/go-drops/service/ledger"
	"github.com/SplitFi/go-drops/service/logger"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/sirupsen/logrus"
)

// Engine orchestrates a mint transaction: eligibility, supply reservation,
// unit issuance, and payment settlement. Every mint is all-or-nothing: a
// failure at any step rolls back everything applied before it, so a failed
// call leaves the sold counter, balances, and unit ownership untouched.
//
// A per-drop mutex serializes the window between the eligibility check and
// the reservation, so two simultaneous requests for the same drop cannot
// both pass the bounds check.
type Engine struct {
	address  persist.EthereumAddress // spender identity on payment ledgers
	registry *drop.Registry
	records  persist.MintRecordRepository

	native     ledger.Payment
	paymentsMu sync.RWMutex
	payments   map[string]ledger.Payment

	dispatcher *event.Dispatcher

	treasuryMu sync.RWMutex
	treasury   persist.EthereumAddress

	locks sync.Map // drop ID -> *sync.Mutex

	// now is swapped out in tests
	now func() int64
}

// NewEngine creates an Engine. The address is the engine's own identity:
// callers approve payment allowances to it, and it is the spender on every
// settlement transfer.
func NewEngine(address persist.EthereumAddress, registry *drop.Registry, records persist.MintRecordRepository, native ledger.Payment, dispatcher *event.Dispatcher) *Engine {
	return &Engine{
		address:    address,
		registry:   registry,
		records:    records,
		native:     native,
		payments:   map[string]ledger.Payment{},
		dispatcher: dispatcher,
		now:        func() int64 { return time.Now().Unix() },
	}
}

// RegisterPayment makes a fungible ledger resolvable as a drop payment asset
func (e *Engine) RegisterPayment(asset persist.EthereumAddress, payment ledger.Payment) {
	e.paymentsMu.Lock()
	defer e.paymentsMu.Unlock()
	e.payments[asset.String()] = payment
}

// SetTreasury overrides the settlement destination for paid mints. A zero
// treasury means proceeds go to each drop's right holder.
func (e *Engine) SetTreasury(addr persist.EthereumAddress) {
	e.treasuryMu.Lock()
	defer e.treasuryMu.Unlock()
	e.treasury = addr
}

// Input is one mint request
type Input struct {
	To       persist.EthereumAddress
	DropID   persist.DropID
	Quantity uint64
	// ExternalIDs optionally binds one unique external identifier per unit
	ExternalIDs []string
	Proof       []common.Hash
	// CapQuantity opts in to clamping the request down to the caller's
	// remaining private-sale allowance instead of failing MaxMintPerAddress
	CapQuantity bool
}

// ErrUnknownPaymentAsset is returned when a drop is priced in an asset no
// payment ledger is registered for
type ErrUnknownPaymentAsset struct {
	Address persist.EthereumAddress
}

func (e ErrUnknownPaymentAsset) Error() string {
	return fmt.Sprintf("no payment ledger registered for asset: %s", e.Address)
}

// Mint executes a mint for caller. On success it returns the issued unit
// IDs in issuance order; on failure no observable state changes.
func (e *Engine) Mint(ctx context.Context, caller persist.EthereumAddress, input Input) ([]persist.UnitID, error) {
	if input.To.IsZero() {
		return nil, persist.ErrInvalidAddress{Address: input.To}
	}

	lock := e.lockFor(input.DropID)
	lock.Lock()
	defer lock.Unlock()

	d, err := e.registry.GetByID(ctx, input.DropID)
	if err != nil {
		return nil, err
	}
	collection, err := e.registry.Collection(ctx, d.AssetCollection)
	if err != nil {
		return nil, err
	}
	privateMinted, err := e.registry.PrivateMinted(ctx, d.ID, caller)
	if err != nil {
		return nil, err
	}

	req := eligibility.Request{
		Caller:      caller,
		Quantity:    input.Quantity,
		ExternalIDs: input.ExternalIDs,
		Proof:       input.Proof,
		Now:         e.now(),
	}
	state := eligibility.State{
		Paused:        collection.Paused(ctx),
		PrivateMinted: privateMinted,
		ExternalIDTaken: func(externalID string) bool {
			taken, err := e.records.ExistsByExternalID(ctx, externalID)
			return err == nil && taken
		},
	}

	verdict := eligibility.Evaluate(d, req, state)
	if verdict == eligibility.MaxMintPerAddress && input.CapQuantity {
		// Caller-opt-in partial fill: clamp to the remaining allowance and
		// re-run the full evaluation with the reduced quantity.
		remaining := eligibility.RemainingPrivateAllowance(d, privateMinted)
		if remaining > 0 {
			req.Quantity = remaining
			if len(req.ExternalIDs) > 0 {
				req.ExternalIDs = req.ExternalIDs[:remaining]
			}
			verdict = eligibility.Evaluate(d, req, state)
		}
	}
	if verdict != eligibility.Eligible {
		return nil, eligibility.ErrorFor(verdict, d, req, state)
	}
	quantity := req.Quantity

	// Payment gates: balance before allowance.
	var payment ledger.Payment
	var total uint64
	if d.Token.Price > 0 {
		payment, err = e.paymentFor(d.Token.PaymentAsset)
		if err != nil {
			return nil, err
		}
		var overflow bool
		total, overflow = math.SafeMul(d.Token.Price, quantity)
		if overflow {
			return nil, persist.ErrInsufficientBalance{Balance: payment.BalanceOf(ctx, caller), Needed: math.MaxUint64}
		}
		if balance := payment.BalanceOf(ctx, caller); balance < total {
			return nil, persist.ErrInsufficientBalance{Balance: balance, Needed: total}
		}
		if allowance := payment.Allowance(ctx, caller, e.address); allowance < total {
			return nil, persist.ErrInsufficientAllowance{Allowance: allowance, Needed: total}
		}
	}

	// The reservation is the authoritative serialization point: its bounds
	// check re-runs atomically even though eligibility already passed.
	soldBefore, err := e.registry.Reserve(ctx, d.ID, quantity, d.AssetCollection)
	if err != nil {
		return nil, err
	}

	tx := &mintTx{engine: e, drop: d, caller: caller, quantity: quantity}
	defer tx.finish(ctx)

	units := make([]persist.UnitID, 0, quantity)
	events := make([]event.Event, 0, quantity)
	for i := uint64(0); i < quantity; i++ {
		unit, err := collection.Mint(ctx, input.To)
		if err != nil {
			return nil, tx.fail(ctx, err)
		}
		tx.minted = append(tx.minted, unit)

		var externalID persist.NullString
		if len(req.ExternalIDs) > 0 {
			externalID = persist.NullString(req.ExternalIDs[i])
		}
		record := persist.MintRecord{
			UnitID:     unit,
			DropID:     d.ID,
			ExternalID: externalID,
			Serial:     soldBefore + i + 1,
			Recipient:  input.To,
		}
		if err := e.records.Create(ctx, record); err != nil {
			return nil, tx.fail(ctx, err)
		}
		tx.recorded = append(tx.recorded, unit)

		units = append(units, unit)
		events = append(events, event.Event{
			Action: event.ActionUnitMinted,
			UnitMinted: &event.UnitMinted{
				DropID:     d.ID,
				UnitID:     unit,
				ExternalID: externalID,
				Serial:     record.Serial,
				Recipient:  input.To,
			},
		})
	}

	if req.Now < d.SaleOpen {
		if err := e.registry.AddPrivateMinted(ctx, d.ID, caller, quantity); err != nil {
			return nil, tx.fail(ctx, err)
		}
		tx.privateAdded = true
	}

	if total > 0 {
		// Settlement failure must also undo the reservation and issuance.
		if err := payment.TransferFrom(ctx, e.address, caller, e.treasuryFor(d), total); err != nil {
			return nil, tx.fail(ctx, err)
		}
	}

	tx.committed = true
	for _, evt := range events {
		e.dispatcher.Dispatch(ctx, evt)
	}
	return units, nil
}

// Reason runs the read-only eligibility query for a prospective mint. It
// applies the identical logic a mutating mint would, with no side effects.
func (e *Engine) Reason(ctx context.Context, caller persist.EthereumAddress, input Input) (eligibility.Verdict, error) {
	d, err := e.registry.GetByID(ctx, input.DropID)
	if err != nil {
		return "", err
	}
	collection, err := e.registry.Collection(ctx, d.AssetCollection)
	if err != nil {
		return "", err
	}
	privateMinted, err := e.registry.PrivateMinted(ctx, d.ID, caller)
	if err != nil {
		return "", err
	}

	req := eligibility.Request{
		Caller:      caller,
		Quantity:    input.Quantity,
		ExternalIDs: input.ExternalIDs,
		Proof:       input.Proof,
		Now:         e.now(),
	}
	state := eligibility.State{
		Paused:        collection.Paused(ctx),
		PrivateMinted: privateMinted,
		ExternalIDTaken: func(externalID string) bool {
			taken, err := e.records.ExistsByExternalID(ctx, externalID)
			return err == nil && taken
		},
	}
	return eligibility.Evaluate(d, req, state), nil
}

func (e *Engine) lockFor(id persist.DropID) *sync.Mutex {
	lock, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (e *Engine) paymentFor(asset *persist.PaymentAsset) (ledger.Payment, error) {
	if asset == nil {
		return e.native, nil
	}
	e.paymentsMu.RLock()
	defer e.paymentsMu.RUnlock()
	payment, ok := e.payments[asset.Address.String()]
	if !ok {
		return nil, ErrUnknownPaymentAsset{Address: asset.Address}
	}
	return payment, nil
}

func (e *Engine) treasuryFor(d persist.Drop) persist.EthereumAddress {
	e.treasuryMu.RLock()
	defer e.treasuryMu.RUnlock()
	if !e.treasury.IsZero() {
		return e.treasury
	}
	return d.Owner
}

// mintTx journals the sub-steps applied so far so a later failure can undo
// them in reverse order
type mintTx struct {
	engine       *Engine
	drop         persist.Drop
	caller       persist.EthereumAddress
	quantity     uint64
	minted       []persist.UnitID
	recorded     []persist.UnitID
	privateAdded bool
	committed    bool
	rolledBack   bool
}

// fail rolls the transaction back and returns the causing error unchanged
func (t *mintTx) fail(ctx context.Context, cause error) error {
	t.rollback(ctx)
	return cause
}

func (t *mintTx) finish(ctx context.Context) {
	if !t.committed && !t.rolledBack {
		t.rollback(ctx)
	}
}

func (t *mintTx) rollback(ctx context.Context) {
	t.rolledBack = true

	if t.privateAdded {
		if err := t.engine.registry.ReleasePrivateMinted(ctx, t.drop.ID, t.caller, t.quantity); err != nil {
			t.logRollbackErr(ctx, "private mint count", err)
		}
	}
	collection, err := t.engine.registry.Collection(ctx, t.drop.AssetCollection)
	for i := len(t.recorded) - 1; i >= 0; i-- {
		if err := t.engine.records.DeleteByUnitID(ctx, t.recorded[i]); err != nil {
			t.logRollbackErr(ctx, "mint record", err)
		}
	}
	if err == nil {
		for i := len(t.minted) - 1; i >= 0; i-- {
			if err := collection.Burn(ctx, t.minted[i]); err != nil {
				t.logRollbackErr(ctx, "unit", err)
			}
		}
	}
	if err := t.engine.registry.Release(ctx, t.drop.ID, t.quantity, t.drop.AssetCollection); err != nil {
		t.logRollbackErr(ctx, "reservation", err)
	}
}

func (t *mintTx) logRollbackErr(ctx context.Context, what string, err error) {
	logger.For(ctx).WithFields(logrus.Fields{
		"drop_id": t.drop.ID,
		"caller":  t.caller,
	}).Errorf("error rolling back %s: %s", what, err)
}
