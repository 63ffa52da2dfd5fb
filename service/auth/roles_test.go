package auth

import (
	"context"
	"testing"

	"github.com/SplitFi/go-drops/event"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/SplitFi/go-drops/service/persist/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ownerAddr    = persist.EthereumAddress("0x9a3f9764b21adaf3c6fdf6f947e6d3340a3f8ac5")
	subAdminAddr = persist.EthereumAddress("0x57f1887a8bf19b14fc0df6fd9b2acc9af147ea85")
	creatorAddr  = persist.EthereumAddress("0xda3845b44736b57e05ee80fc011a52a9c777423a")
	randoAddr    = persist.EthereumAddress("0x47e64ae528b2d1320bae6282044d240ff67e703e")
)

func setupRegistry(t *testing.T) (context.Context, *RoleRegistry) {
	ctx := context.Background()
	registry := NewRoleRegistry(memory.NewRoleRepository(), event.NewDispatcher())
	require.NoError(t, registry.Bootstrap(ctx, ownerAddr))
	return ctx, registry
}

func TestGrantHierarchy_Success(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	t.Run("owner grants subadmin", func(t *testing.T) {
		a.NoError(registry.Grant(ctx, ownerAddr, persist.RoleSubAdmin, subAdminAddr))

		has, err := registry.Has(ctx, persist.RoleSubAdmin, subAdminAddr)
		a.NoError(err)
		a.True(has)
	})

	t.Run("subadmin grants creator", func(t *testing.T) {
		a.NoError(registry.Grant(ctx, subAdminAddr, persist.RoleCreator, creatorAddr))

		has, err := registry.Has(ctx, persist.RoleCreator, creatorAddr)
		a.NoError(err)
		a.True(has)
	})

	t.Run("owner grants owner", func(t *testing.T) {
		a.NoError(registry.Grant(ctx, ownerAddr, persist.RoleOwner, subAdminAddr))

		has, err := registry.Has(ctx, persist.RoleOwner, subAdminAddr)
		a.NoError(err)
		a.True(has)
	})
}

func TestGrantWithoutAdminRole_Failure(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	require.NoError(t, registry.Grant(ctx, ownerAddr, persist.RoleSubAdmin, subAdminAddr))
	require.NoError(t, registry.Grant(ctx, subAdminAddr, persist.RoleCreator, creatorAddr))

	t.Run("creator cannot grant creator", func(t *testing.T) {
		err := registry.Grant(ctx, creatorAddr, persist.RoleCreator, randoAddr)
		a.ErrorAs(err, &persist.ErrUnauthorized{})

		has, err := registry.Has(ctx, persist.RoleCreator, randoAddr)
		a.NoError(err)
		a.False(has)
	})

	t.Run("subadmin cannot grant subadmin", func(t *testing.T) {
		err := registry.Grant(ctx, subAdminAddr, persist.RoleSubAdmin, randoAddr)
		a.ErrorAs(err, &persist.ErrUnauthorized{})
	})

	t.Run("subadmin cannot grant owner", func(t *testing.T) {
		err := registry.Grant(ctx, subAdminAddr, persist.RoleOwner, randoAddr)
		a.ErrorAs(err, &persist.ErrUnauthorized{})
	})

	t.Run("stranger cannot grant anything", func(t *testing.T) {
		err := registry.Grant(ctx, randoAddr, persist.RoleCreator, randoAddr)
		a.ErrorAs(err, &persist.ErrUnauthorized{})
	})
}

func TestRevoke_Success(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	require.NoError(t, registry.Grant(ctx, ownerAddr, persist.RoleSubAdmin, subAdminAddr))
	require.NoError(t, registry.Grant(ctx, subAdminAddr, persist.RoleCreator, creatorAddr))

	t.Run("subadmin revokes creator", func(t *testing.T) {
		a.NoError(registry.Revoke(ctx, subAdminAddr, persist.RoleCreator, creatorAddr))

		has, err := registry.Has(ctx, persist.RoleCreator, creatorAddr)
		a.NoError(err)
		a.False(has)
	})

	t.Run("creator cannot revoke subadmin", func(t *testing.T) {
		err := registry.Revoke(ctx, creatorAddr, persist.RoleSubAdmin, subAdminAddr)
		a.ErrorAs(err, &persist.ErrUnauthorized{})
	})

	t.Run("revoked creator fails RequireRole", func(t *testing.T) {
		err := registry.RequireRole(ctx, persist.RoleCreator, creatorAddr)
		a.ErrorAs(err, &persist.ErrUnauthorized{})
	})
}

func TestInvalidRole_Failure(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	err := registry.Grant(ctx, ownerAddr, persist.Role("superuser"), randoAddr)
	a.ErrorAs(err, &persist.ErrInvalidRole{})
}

func TestRolesByAddress_Success(t *testing.T) {
	a := assert.New(t)
	ctx, registry := setupRegistry(t)

	require.NoError(t, registry.Grant(ctx, ownerAddr, persist.RoleSubAdmin, subAdminAddr))
	require.NoError(t, registry.Grant(ctx, subAdminAddr, persist.RoleCreator, subAdminAddr))

	roles, err := registry.RolesByAddress(ctx, subAdminAddr)
	a.NoError(err)
	a.Len(roles, 2)
	a.Contains(roles, persist.RoleSubAdmin)
	a.Contains(roles, persist.RoleCreator)
}
