package drop

import (
	"context"
	"sync"
	"testing"

	"github.com/SplitFi/go-drops/event"
	"github.com/SplitFi/go-drops/service/auth"
	"github.com/SplitFi/go-drops/service/ledger"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/SplitFi/go-drops/service/persist/memory"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	ownerAddr      = persist.EthereumAddress("0x9a3f9764b21adaf3c6fdf6f947e6d3340a3f8ac5")
	creatorAddr    = persist.EthereumAddress("0x57f1887a8bf19b14fc0df6fd9b2acc9af147ea85")
	collectionAddr = persist.EthereumAddress("0xda3845b44736b57e05ee80fc011a52a9c777423a")
	randoAddr      = persist.EthereumAddress("0x47e64ae528b2d1320bae6282044d240ff67e703e")
)

func setupRegistry(t *testing.T) (context.Context, *Registry) {
	ctx := context.Background()
	dispatcher := event.NewDispatcher()

	roles := auth.NewRoleRegistry(memory.NewRoleRepository(), dispatcher)
	require.NoError(t, roles.Bootstrap(ctx, ownerAddr))
	require.NoError(t, roles.Grant(ctx, ownerAddr, persist.RoleSubAdmin, ownerAddr))
	require.NoError(t, roles.Grant(ctx, ownerAddr, persist.RoleCreator, creatorAddr))

	return ctx, NewRegistry(memory.NewDropRepository(), roles, ledger.NewCollectionSet(), dispatcher)
}

func testInput() CreateInput {
	return CreateInput{
		Owner:      creatorAddr,
		Collection: ledger.NewMemoryCollection(collectionAddr),
		Token:      persist.TokenInfo{Supply: 100, Price: 0},
		ExternalID: "summer-drop",
		SaleOpen:   1000,
		SaleClose:  2000,
	}
}

func TestCreate_Success(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	d, err := registry.Create(ctx, testInput())
	require.NoError(t, err)

	a.Equal(persist.DropID(0), d.ID)
	a.Equal(uint64(0), d.Sold)
	a.Equal(uint64(100), d.Token.Supply)
	a.Equal(creatorAddr.String(), d.Owner.String())
	a.Equal(collectionAddr.String(), d.AssetCollection.String())

	count, err := registry.Count(ctx)
	a.NoError(err)
	a.Equal(uint64(1), count)

	t.Run("ids are dense and ordered", func(t *testing.T) {
		input := testInput()
		input.ExternalID = "fall-drop"
		d2, err := registry.Create(ctx, input)
		require.NoError(t, err)
		a.Equal(persist.DropID(1), d2.ID)
	})

	t.Run("resolvable by external id", func(t *testing.T) {
		byExt, err := registry.GetByExternalID(ctx, "summer-drop")
		a.NoError(err)
		a.Equal(d.ID, byExt.ID)
	})
}

func TestCreate_Failure(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	t.Run("zero supply", func(t *testing.T) {
		input := testInput()
		input.Token.Supply = 0
		_, err := registry.Create(ctx, input)
		a.ErrorAs(err, &persist.ErrInvalidSupply{})
	})

	t.Run("collection without drop counter", func(t *testing.T) {
		input := testInput()
		input.Collection = ledger.NewMemoryCollection(collectionAddr, ledger.WithoutDropCounter())
		_, err := registry.Create(ctx, input)
		a.ErrorAs(err, &persist.ErrInvalidCollection{})
	})

	t.Run("owner without creator role", func(t *testing.T) {
		input := testInput()
		input.Owner = randoAddr
		_, err := registry.Create(ctx, input)
		a.ErrorAs(err, &persist.ErrNotACreator{})
	})

	t.Run("duplicate external id", func(t *testing.T) {
		_, err := registry.Create(ctx, testInput())
		require.NoError(t, err)
		_, err = registry.Create(ctx, testInput())
		a.ErrorAs(err, &persist.ErrDropConflict{})
	})
}

func TestGetByID_Failure(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	_, err := registry.GetByID(ctx, 42)
	a.ErrorAs(err, &persist.ErrDropNotFoundByID{})

	_, err = registry.GetByExternalID(ctx, "nope")
	a.ErrorAs(err, &persist.ErrDropNotFoundByExternalID{})
}

func TestSetSupply(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	d, err := registry.Create(ctx, testInput())
	require.NoError(t, err)

	_, err = registry.Reserve(ctx, d.ID, 10, d.AssetCollection)
	require.NoError(t, err)

	t.Run("can lower supply above sold", func(t *testing.T) {
		a.NoError(registry.SetSupply(ctx, ownerAddr, d.ID, 10))

		got, err := registry.GetByID(ctx, d.ID)
		a.NoError(err)
		a.Equal(uint64(10), got.Token.Supply)
		a.Equal(uint64(0), got.Remaining())
	})

	t.Run("cannot set below sold", func(t *testing.T) {
		err := registry.SetSupply(ctx, ownerAddr, d.ID, 9)
		a.ErrorAs(err, &persist.ErrInvalidSupply{})
	})

	t.Run("cannot zero supply", func(t *testing.T) {
		err := registry.SetSupply(ctx, ownerAddr, d.ID, 0)
		a.ErrorAs(err, &persist.ErrInvalidSupply{})
	})
}

func TestSetSaleWindowAndRoot_Success(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	d, err := registry.Create(ctx, testInput())
	require.NoError(t, err)

	a.NoError(registry.SetSaleWindow(ctx, ownerAddr, d.ID, persist.DropSaleWindowUpdateInput{
		SaleOpen:           500,
		SaleClose:          5000,
		PrivateSaleOpen:    100,
		PrivateSaleMaxMint: 2,
	}))

	root := common.HexToHash("0xabcdef")
	a.NoError(registry.SetAllowListRoot(ctx, ownerAddr, d.ID, root))

	got, err := registry.GetByID(ctx, d.ID)
	require.NoError(t, err)
	a.Equal(int64(500), got.SaleOpen)
	a.Equal(int64(5000), got.SaleClose)
	a.Equal(uint64(2), got.PrivateSaleMaxMint)
	a.Equal(root, got.AllowListRoot)
	a.True(got.HasAllowList())
}

func TestSetRightHolder(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	d, err := registry.Create(ctx, testInput())
	require.NoError(t, err)

	t.Run("target must hold creator role", func(t *testing.T) {
		err := registry.SetRightHolder(ctx, ownerAddr, d.ID, randoAddr)
		a.ErrorAs(err, &persist.ErrNotACreator{})
	})

	t.Run("reassigns to another creator", func(t *testing.T) {
		a.NoError(registry.SetRightHolder(ctx, ownerAddr, d.ID, creatorAddr))

		got, err := registry.GetByID(ctx, d.ID)
		a.NoError(err)
		a.Equal(creatorAddr.String(), got.Owner.String())
	})
}

func TestReserve(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	input := testInput()
	input.Token.Supply = 5
	d, err := registry.Create(ctx, input)
	require.NoError(t, err)

	t.Run("returns sold before", func(t *testing.T) {
		soldBefore, err := registry.Reserve(ctx, d.ID, 2, d.AssetCollection)
		a.NoError(err)
		a.Equal(uint64(0), soldBefore)

		soldBefore, err = registry.Reserve(ctx, d.ID, 2, d.AssetCollection)
		a.NoError(err)
		a.Equal(uint64(2), soldBefore)
	})

	t.Run("rejects past supply", func(t *testing.T) {
		_, err := registry.Reserve(ctx, d.ID, 2, d.AssetCollection)
		a.ErrorAs(err, &persist.ErrNotEnoughTokensAvailable{})
	})

	t.Run("release restores", func(t *testing.T) {
		a.NoError(registry.Release(ctx, d.ID, 2, d.AssetCollection))

		_, err := registry.Reserve(ctx, d.ID, 2, d.AssetCollection)
		a.NoError(err)
	})
}

func TestReserveConcurrent_NoOversell(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	input := testInput()
	input.Token.Supply = 50
	d, err := registry.Create(ctx, input)
	require.NoError(t, err)

	var eg errgroup.Group
	var mu sync.Mutex
	granted := uint64(0)

	for i := 0; i < 100; i++ {
		eg.Go(func() error {
			if _, err := registry.Reserve(ctx, d.ID, 1, d.AssetCollection); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	a.Equal(uint64(50), granted)

	got, err := registry.GetByID(ctx, d.ID)
	require.NoError(t, err)
	a.Equal(uint64(50), got.Sold)
	a.Equal(uint64(0), got.Remaining())
}

func TestPrivateMintedAccounting_Success(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	d, err := registry.Create(ctx, testInput())
	require.NoError(t, err)

	count, err := registry.PrivateMinted(ctx, d.ID, creatorAddr)
	a.NoError(err)
	a.Equal(uint64(0), count)

	a.NoError(registry.AddPrivateMinted(ctx, d.ID, creatorAddr, 3))
	count, err = registry.PrivateMinted(ctx, d.ID, creatorAddr)
	a.NoError(err)
	a.Equal(uint64(3), count)

	a.NoError(registry.ReleasePrivateMinted(ctx, d.ID, creatorAddr, 2))
	count, err = registry.PrivateMinted(ctx, d.ID, creatorAddr)
	a.NoError(err)
	a.Equal(uint64(1), count)
}
