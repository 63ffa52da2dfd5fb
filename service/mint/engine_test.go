package mint

import (
	"context"
	"sync"
	"testing"

	"github.com/SplitFi/go-drops/event"
	"github.com/SplitFi/go-drops/service/allowlist"
	"github.com/SplitFi/go-drops/service/auth"
	"github.com/SplitFi/go-drops/service/drop"
	"github.com/SplitFi/go-drops/service/eligibility"
	"github.com/SplitFi/go-drops/service/ledger"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/SplitFi/go-drops/service/persist/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	ownerAddr      = persist.EthereumAddress("0x9a3f9764b21adaf3c6fdf6f947e6d3340a3f8ac5")
	creatorAddr    = persist.EthereumAddress("0x57f1887a8bf19b14fc0df6fd9b2acc9af147ea85")
	collectionAddr = persist.EthereumAddress("0xda3845b44736b57e05ee80fc011a52a9c777423a")
	engineAddr     = persist.EthereumAddress("0x8914496dc01efcc49a2fa340331fb90969b6f1d2")
	buyerAddr      = persist.EthereumAddress("0x47e64ae528b2d1320bae6282044d240ff67e703e")
	otherBuyerAddr = persist.EthereumAddress("0x1f1087a8bf19b14fc0df6fd9b2acc9af147ea851")
)

const (
	saleOpen  = int64(1000)
	saleClose = int64(2000)
)

type fixture struct {
	ctx        context.Context
	registry   *drop.Registry
	engine     *Engine
	records    *memory.MintRecordRepository
	collection *ledger.MemoryCollection
	payment    *ledger.MemoryPayment
	drop       persist.Drop
}

// setupFixture builds the full mint stack around an in-memory ledger, with
// the engine clock parked inside the public sale window
func setupFixture(t *testing.T, input drop.CreateInput) *fixture {
	ctx := context.Background()
	dispatcher := event.NewDispatcher()

	roles := auth.NewRoleRegistry(memory.NewRoleRepository(), dispatcher)
	require.NoError(t, roles.Bootstrap(ctx, ownerAddr))
	require.NoError(t, roles.Grant(ctx, ownerAddr, persist.RoleSubAdmin, ownerAddr))
	require.NoError(t, roles.Grant(ctx, ownerAddr, persist.RoleCreator, creatorAddr))

	registry := drop.NewRegistry(memory.NewDropRepository(), roles, ledger.NewCollectionSet(), dispatcher)
	records := memory.NewMintRecordRepository()
	payment := ledger.NewMemoryPayment()

	engine := NewEngine(engineAddr, registry, records, payment, dispatcher)
	engine.now = func() int64 { return saleOpen + 1 }

	collection := input.Collection.(*ledger.MemoryCollection)
	d, err := registry.Create(ctx, input)
	require.NoError(t, err)

	return &fixture{
		ctx:        ctx,
		registry:   registry,
		engine:     engine,
		records:    records,
		collection: collection,
		payment:    payment,
		drop:       d,
	}
}

func publicDropInput(supply, price uint64) drop.CreateInput {
	return drop.CreateInput{
		Owner:      creatorAddr,
		Collection: ledger.NewMemoryCollection(collectionAddr),
		Token:      persist.TokenInfo{Supply: supply, Price: price},
		ExternalID: "test-drop",
		SaleOpen:   saleOpen,
		SaleClose:  saleClose,
	}
}

func TestMintPublicPaid_Success(t *testing.T) {
	a := assert.New(t)
	f := setupFixture(t, publicDropInput(10, 25))

	require.NoError(t, f.payment.Credit(f.ctx, buyerAddr, 100))
	require.NoError(t, f.payment.Approve(f.ctx, buyerAddr, engineAddr, 100))

	units, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, units, 2)

	t.Run("units owned by recipient", func(t *testing.T) {
		for _, unit := range units {
			owner, err := f.collection.OwnerOf(f.ctx, unit)
			a.NoError(err)
			a.Equal(buyerAddr.String(), owner.String())
		}
	})

	t.Run("serials count up from one", func(t *testing.T) {
		for i, unit := range units {
			record, err := f.records.GetByUnitID(f.ctx, unit)
			a.NoError(err)
			a.Equal(uint64(i+1), record.Serial)
			a.Equal(f.drop.ID, record.DropID)
		}
	})

	t.Run("sold counter advanced", func(t *testing.T) {
		got, err := f.registry.GetByID(f.ctx, f.drop.ID)
		a.NoError(err)
		a.Equal(uint64(2), got.Sold)
	})

	t.Run("payment settled to right holder", func(t *testing.T) {
		a.Equal(uint64(50), f.payment.BalanceOf(f.ctx, buyerAddr))
		a.Equal(uint64(50), f.payment.BalanceOf(f.ctx, creatorAddr))
		a.Equal(uint64(50), f.payment.Allowance(f.ctx, buyerAddr, engineAddr))
	})

	t.Run("serials continue on the next mint", func(t *testing.T) {
		more, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 1})
		require.NoError(t, err)
		record, err := f.records.GetByUnitID(f.ctx, more[0])
		a.NoError(err)
		a.Equal(uint64(3), record.Serial)
	})
}

func TestMintInsufficientFunds_Failure(t *testing.T) {
	a := assert.New(t)
	f := setupFixture(t, publicDropInput(10, 25))

	t.Run("balance checked before allowance", func(t *testing.T) {
		_, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 1})
		a.ErrorAs(err, &persist.ErrInsufficientBalance{})
	})

	t.Run("allowance checked after balance", func(t *testing.T) {
		require.NoError(t, f.payment.Credit(f.ctx, buyerAddr, 100))
		_, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 1})
		a.ErrorAs(err, &persist.ErrInsufficientAllowance{})
	})

	t.Run("no state changed", func(t *testing.T) {
		got, err := f.registry.GetByID(f.ctx, f.drop.ID)
		a.NoError(err)
		a.Equal(uint64(0), got.Sold)
		balance, err := f.collection.BalanceOf(f.ctx, buyerAddr)
		a.NoError(err)
		a.Equal(uint64(0), balance)
	})
}

func TestMintPrivatePhase(t *testing.T) {
	a := assert.New(t)

	tree := allowlist.NewTree([]persist.EthereumAddress{buyerAddr})
	proof, ok := tree.Proof(buyerAddr)
	require.True(t, ok)

	input := publicDropInput(10, 0)
	input.PrivateSaleOpen = 100
	input.PrivateSaleMaxMint = 3
	input.AllowListRoot = tree.Root()

	f := setupFixture(t, input)
	f.engine.now = func() int64 { return saleOpen - 1 }

	t.Run("allow-listed caller mints", func(t *testing.T) {
		units, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 2, Proof: proof})
		require.NoError(t, err)
		a.Len(units, 2)

		minted, err := f.registry.PrivateMinted(f.ctx, f.drop.ID, buyerAddr)
		a.NoError(err)
		a.Equal(uint64(2), minted)
	})

	t.Run("cap rejects the remainder", func(t *testing.T) {
		_, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 2, Proof: proof})
		a.ErrorAs(err, &persist.ErrMaxMintPerAddress{})
	})

	t.Run("cap quantity clamps instead", func(t *testing.T) {
		units, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 2, Proof: proof, CapQuantity: true})
		require.NoError(t, err)
		a.Len(units, 1)

		minted, err := f.registry.PrivateMinted(f.ctx, f.drop.ID, buyerAddr)
		a.NoError(err)
		a.Equal(uint64(3), minted)
	})

	t.Run("exhausted cap fails even with clamping", func(t *testing.T) {
		_, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 1, Proof: proof, CapQuantity: true})
		a.ErrorAs(err, &persist.ErrMaxMintPerAddress{})
	})

	t.Run("unlisted caller is rejected", func(t *testing.T) {
		_, err := f.engine.Mint(f.ctx, otherBuyerAddr, Input{To: otherBuyerAddr, DropID: f.drop.ID, Quantity: 1})
		a.ErrorAs(err, &persist.ErrNotWhiteListed{})
	})
}

func TestMintPaused_Failure(t *testing.T) {
	a := assert.New(t)
	f := setupFixture(t, publicDropInput(10, 0))

	f.collection.Pause(f.ctx)
	_, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 1})
	a.ErrorAs(err, &persist.ErrMintingPaused{})

	f.collection.Unpause(f.ctx)
	_, err = f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 1})
	a.NoError(err)
}

func TestMintRollbackOnPrintConflict(t *testing.T) {
	a := assert.New(t)
	f := setupFixture(t, publicDropInput(10, 0))

	// The same external ID twice in one request passes the upfront check and
	// trips the uniqueness constraint on the second unit.
	_, err := f.engine.Mint(f.ctx, buyerAddr, Input{
		To:          buyerAddr,
		DropID:      f.drop.ID,
		Quantity:    2,
		ExternalIDs: []string{"card-7", "card-7"},
	})
	a.ErrorAs(err, &persist.ErrPrintConflict{})

	t.Run("sold counter restored", func(t *testing.T) {
		got, err := f.registry.GetByID(f.ctx, f.drop.ID)
		a.NoError(err)
		a.Equal(uint64(0), got.Sold)
	})

	t.Run("no units survive", func(t *testing.T) {
		balance, err := f.collection.BalanceOf(f.ctx, buyerAddr)
		a.NoError(err)
		a.Equal(uint64(0), balance)
	})

	t.Run("external id is free again", func(t *testing.T) {
		taken, err := f.records.ExistsByExternalID(f.ctx, "card-7")
		a.NoError(err)
		a.False(taken)

		units, err := f.engine.Mint(f.ctx, buyerAddr, Input{
			To:          buyerAddr,
			DropID:      f.drop.ID,
			Quantity:    1,
			ExternalIDs: []string{"card-7"},
		})
		require.NoError(t, err)
		record, err := f.records.GetByUnitID(f.ctx, units[0])
		a.NoError(err)
		a.Equal("card-7", record.ExternalID.String())
	})
}

func TestMintTakenExternalID_Failure(t *testing.T) {
	a := assert.New(t)
	f := setupFixture(t, publicDropInput(10, 0))

	_, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 1, ExternalIDs: []string{"card-1"}})
	require.NoError(t, err)

	_, err = f.engine.Mint(f.ctx, otherBuyerAddr, Input{To: otherBuyerAddr, DropID: f.drop.ID, Quantity: 1, ExternalIDs: []string{"card-1"}})
	a.ErrorAs(err, &persist.ErrPrintConflict{})
}

func TestMintConcurrent_NoOversell(t *testing.T) {
	a := assert.New(t)
	f := setupFixture(t, publicDropInput(5, 0))

	var eg errgroup.Group
	var mu sync.Mutex
	minted := 0

	for i := 0; i < 20; i++ {
		eg.Go(func() error {
			if _, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 1}); err == nil {
				mu.Lock()
				minted++
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	a.Equal(5, minted)

	got, err := f.registry.GetByID(f.ctx, f.drop.ID)
	require.NoError(t, err)
	a.Equal(uint64(5), got.Sold)

	balance, err := f.collection.BalanceOf(f.ctx, buyerAddr)
	a.NoError(err)
	a.Equal(uint64(5), balance)
}

func TestMintTreasuryOverride_Success(t *testing.T) {
	a := assert.New(t)
	f := setupFixture(t, publicDropInput(10, 25))

	treasury := persist.EthereumAddress("0x0a0f9764b21adaf3c6fdf6f947e6d3340a3f8ac0")
	f.engine.SetTreasury(treasury)

	require.NoError(t, f.payment.Credit(f.ctx, buyerAddr, 100))
	require.NoError(t, f.payment.Approve(f.ctx, buyerAddr, engineAddr, 100))

	_, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 1})
	require.NoError(t, err)

	a.Equal(uint64(25), f.payment.BalanceOf(f.ctx, treasury))
	a.Equal(uint64(0), f.payment.BalanceOf(f.ctx, creatorAddr))
}

func TestReasonAgreesWithMint(t *testing.T) {
	a := assert.New(t)
	f := setupFixture(t, publicDropInput(2, 0))

	t.Run("eligible verdict precedes a successful mint", func(t *testing.T) {
		verdict, err := f.engine.Reason(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 2})
		a.NoError(err)
		a.Equal(eligibility.Eligible, verdict)

		_, err = f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 2})
		a.NoError(err)
	})

	t.Run("verdict names the same condition the mint fails with", func(t *testing.T) {
		verdict, err := f.engine.Reason(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 1})
		a.NoError(err)
		a.Equal(eligibility.DropSoldOut, verdict)

		_, err = f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: f.drop.ID, Quantity: 1})
		a.ErrorAs(err, &persist.ErrDropSoldOut{})
	})
}

func TestMintUnknownDrop_Failure(t *testing.T) {
	a := assert.New(t)
	f := setupFixture(t, publicDropInput(10, 0))

	_, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: buyerAddr, DropID: 42, Quantity: 1})
	a.ErrorAs(err, &persist.ErrDropNotFoundByID{})
}

func TestMintZeroRecipient_Failure(t *testing.T) {
	a := assert.New(t)
	f := setupFixture(t, publicDropInput(10, 0))

	_, err := f.engine.Mint(f.ctx, buyerAddr, Input{To: persist.ZeroAddress, DropID: f.drop.ID, Quantity: 1})
	a.ErrorAs(err, &persist.ErrInvalidAddress{})
}
