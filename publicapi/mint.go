package publicapi

import (
	"context"

	"github.com/SplitFi/go-drops/service/auth"
	"github.com/SplitFi/go-drops/service/drop"
	"github.com/SplitFi/go-drops/service/eligibility"
	"github.com/SplitFi/go-drops/service/mint"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/SplitFi/go-drops/validate"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

type MintAPI struct {
	engine    *mint.Engine
	registry  *drop.Registry
	roles     *auth.RoleRegistry
	validator *validator.Validate
}

// MintInput is the request body for minting units from a drop
type MintInput struct {
	To          persist.EthereumAddress `json:"to" binding:"required"`
	DropID      persist.DropID          `json:"drop_id"`
	Quantity    uint64                  `json:"quantity" binding:"required"`
	ExternalIDs []string                `json:"external_ids"`
	Proof       []common.Hash           `json:"proof"`
	CapQuantity bool                    `json:"cap_quantity"`
}

func (api MintAPI) MintTokens(ctx context.Context, input MintInput) ([]persist.UnitID, error) {
	if err := validate.ValidateFields(api.validator, validate.ValidationMap{
		"to":       {Value: input.To, Tag: "required,eth_addr_full"},
		"quantity": {Value: input.Quantity, Tag: "required,gt=0"},
	}); err != nil {
		return nil, err
	}

	return api.engine.Mint(ctx, callerAddress(ctx), mint.Input{
		To:          input.To,
		DropID:      input.DropID,
		Quantity:    input.Quantity,
		ExternalIDs: input.ExternalIDs,
		Proof:       input.Proof,
		CapQuantity: input.CapQuantity,
	})
}

// GetIneligibilityReason answers why a prospective mint would fail without
// attempting it. An eligible request returns the Eligible verdict.
func (api MintAPI) GetIneligibilityReason(ctx context.Context, input MintInput) (eligibility.Verdict, error) {
	if err := validate.ValidateFields(api.validator, validate.ValidationMap{
		"to":       {Value: input.To, Tag: "required,eth_addr_full"},
		"quantity": {Value: input.Quantity, Tag: "required,gt=0"},
	}); err != nil {
		return "", err
	}

	return api.engine.Reason(ctx, callerAddress(ctx), mint.Input{
		To:          input.To,
		DropID:      input.DropID,
		Quantity:    input.Quantity,
		ExternalIDs: input.ExternalIDs,
		Proof:       input.Proof,
	})
}

func (api MintAPI) PauseCollection(ctx context.Context, addr persist.EthereumAddress) error {
	caller := callerAddress(ctx)
	if err := api.roles.RequireRole(ctx, persist.RoleOwner, caller); err != nil {
		return err
	}
	collection, err := api.registry.Collection(ctx, addr)
	if err != nil {
		return err
	}
	collection.Pause(ctx)
	return nil
}

func (api MintAPI) UnpauseCollection(ctx context.Context, addr persist.EthereumAddress) error {
	caller := callerAddress(ctx)
	if err := api.roles.RequireRole(ctx, persist.RoleOwner, caller); err != nil {
		return err
	}
	collection, err := api.registry.Collection(ctx, addr)
	if err != nil {
		return err
	}
	collection.Unpause(ctx)
	return nil
}

func (api MintAPI) SetBaseURI(ctx context.Context, addr persist.EthereumAddress, uri string) error {
	if err := validate.ValidateFields(api.validator, validate.ValidationMap{
		"uri": {Value: uri, Tag: "required,url"},
	}); err != nil {
		return err
	}
	caller := callerAddress(ctx)
	if err := api.roles.RequireRole(ctx, persist.RoleOwner, caller); err != nil {
		return err
	}
	collection, err := api.registry.Collection(ctx, addr)
	if err != nil {
		return err
	}
	collection.SetBaseURI(ctx, uri)
	return nil
}

func (api MintAPI) SetTreasury(ctx context.Context, addr persist.EthereumAddress) error {
	caller := callerAddress(ctx)
	if err := api.roles.RequireRole(ctx, persist.RoleOwner, caller); err != nil {
		return err
	}
	api.engine.SetTreasury(addr)
	return nil
}
