package publicapi

import (
	"context"

	"github.com/SplitFi/go-drops/service/auth"
	"github.com/SplitFi/go-drops/service/drop"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/SplitFi/go-drops/validate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

type DropAPI struct {
	registry  *drop.Registry
	roles     *auth.RoleRegistry
	validator *validator.Validate
}

// CreateDropInput is the request body for creating a drop. The caller
// becomes the drop's right holder.
type CreateDropInput struct {
	Collection         persist.EthereumAddress `json:"collection" binding:"required"`
	ExternalID         string                  `json:"external_id" binding:"required"`
	Token              persist.TokenInfo       `json:"token" binding:"required"`
	SaleOpen           int64                   `json:"sale_open"`
	SaleClose          int64                   `json:"sale_close"`
	PrivateSaleOpen    int64                   `json:"private_sale_open"`
	PrivateSaleMaxMint uint64                  `json:"private_sale_max_mint"`
	AllowListRoot      common.Hash             `json:"allow_list_root"`
}

func (api DropAPI) CreateDrop(ctx context.Context, input CreateDropInput) (persist.Drop, error) {
	if err := validate.ValidateFields(api.validator, validate.ValidationMap{
		"collection": {Value: input.Collection, Tag: "required,eth_addr_full"},
		"externalID": {Value: input.ExternalID, Tag: "required,max=200"},
	}); err != nil {
		return persist.Drop{}, err
	}

	collection, err := api.registry.Collection(ctx, input.Collection)
	if err != nil {
		return persist.Drop{}, err
	}

	return api.registry.Create(ctx, drop.CreateInput{
		Owner:              callerAddress(ctx),
		Collection:         collection,
		Token:              input.Token,
		ExternalID:         input.ExternalID,
		SaleOpen:           input.SaleOpen,
		SaleClose:          input.SaleClose,
		PrivateSaleOpen:    input.PrivateSaleOpen,
		PrivateSaleMaxMint: input.PrivateSaleMaxMint,
		AllowListRoot:      input.AllowListRoot,
	})
}

func (api DropAPI) GetDropByID(ctx context.Context, id persist.DropID) (persist.Drop, error) {
	return api.registry.GetByID(ctx, id)
}

func (api DropAPI) GetDropByExternalID(ctx context.Context, externalID string) (persist.Drop, error) {
	if err := validate.ValidateFields(api.validator, validate.ValidationMap{
		"externalID": {Value: externalID, Tag: "required"},
	}); err != nil {
		return persist.Drop{}, err
	}
	return api.registry.GetByExternalID(ctx, externalID)
}

func (api DropAPI) CountDrops(ctx context.Context) (uint64, error) {
	return api.registry.Count(ctx)
}

func (api DropAPI) SetSupply(ctx context.Context, id persist.DropID, supply uint64) error {
	caller := callerAddress(ctx)
	if err := api.roles.RequireRole(ctx, persist.RoleSubAdmin, caller); err != nil {
		return err
	}
	return api.registry.SetSupply(ctx, caller, id, supply)
}

func (api DropAPI) SetSaleWindow(ctx context.Context, id persist.DropID, update persist.DropSaleWindowUpdateInput) error {
	caller := callerAddress(ctx)
	if err := api.roles.RequireRole(ctx, persist.RoleSubAdmin, caller); err != nil {
		return err
	}
	return api.registry.SetSaleWindow(ctx, caller, id, update)
}

func (api DropAPI) SetAllowListRoot(ctx context.Context, id persist.DropID, root common.Hash) error {
	caller := callerAddress(ctx)
	if err := api.roles.RequireRole(ctx, persist.RoleSubAdmin, caller); err != nil {
		return err
	}
	return api.registry.SetAllowListRoot(ctx, caller, id, root)
}

func (api DropAPI) SetRightHolder(ctx context.Context, id persist.DropID, newOwner persist.EthereumAddress) error {
	if err := validate.ValidateFields(api.validator, validate.ValidationMap{
		"newOwner": {Value: newOwner, Tag: "required,eth_addr_full"},
	}); err != nil {
		return err
	}
	caller := callerAddress(ctx)
	if err := api.roles.RequireRole(ctx, persist.RoleSubAdmin, caller); err != nil {
		return err
	}
	return api.registry.SetRightHolder(ctx, caller, id, newOwner)
}
