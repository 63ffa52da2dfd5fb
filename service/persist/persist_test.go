package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEthereumAddressNormalization(t *testing.T) {
	a := assert.New(t)

	checksummed := EthereumAddress("0x9A3f9764B21adAF3C6fDf6f947e6D3340a3F8AC5")
	lower := EthereumAddress("0x9a3f9764b21adaf3c6fdf6f947e6d3340a3f8ac5")

	a.Equal(lower.String(), checksummed.String())
	a.Equal(checksummed.Address(), lower.Address())
	a.False(lower.IsZero())

	a.True(EthereumAddress("").IsZero())
	a.True(ZeroAddress.IsZero())
	a.True(EthereumAddress("0xdead").IsZero())
}

func TestDropRemaining(t *testing.T) {
	a := assert.New(t)

	d := Drop{Token: TokenInfo{Supply: 10}, Sold: 4}
	a.Equal(uint64(6), d.Remaining())

	d.Sold = 10
	a.Equal(uint64(0), d.Remaining())

	// sold past supply after an admin lowered it
	d.Sold = 12
	a.Equal(uint64(0), d.Remaining())
}

func TestRoleHierarchy(t *testing.T) {
	a := assert.New(t)

	a.Equal(RoleOwner, RoleOwner.AdministeredBy())
	a.Equal(RoleOwner, RoleSubAdmin.AdministeredBy())
	a.Equal(RoleSubAdmin, RoleCreator.AdministeredBy())

	a.True(RoleOwner.IsValid())
	a.True(RoleSubAdmin.IsValid())
	a.True(RoleCreator.IsValid())
	a.False(Role("superuser").IsValid())
}
