package publicapi

import (
	"context"

	"github.com/SplitFi/go-drops/service/auth"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/SplitFi/go-drops/validate"
	"github.com/go-playground/validator/v10"
)

type RoleAPI struct {
	roles     *auth.RoleRegistry
	validator *validator.Validate
}

func (api RoleAPI) GrantRole(ctx context.Context, role persist.Role, subject persist.EthereumAddress) error {
	if err := validate.ValidateFields(api.validator, validate.ValidationMap{
		"role":    {Value: role, Tag: "required,role"},
		"subject": {Value: subject, Tag: "required,eth_addr_full"},
	}); err != nil {
		return err
	}
	return api.roles.Grant(ctx, callerAddress(ctx), role, subject)
}

func (api RoleAPI) RevokeRole(ctx context.Context, role persist.Role, subject persist.EthereumAddress) error {
	if err := validate.ValidateFields(api.validator, validate.ValidationMap{
		"role":    {Value: role, Tag: "required,role"},
		"subject": {Value: subject, Tag: "required,eth_addr_full"},
	}); err != nil {
		return err
	}
	return api.roles.Revoke(ctx, callerAddress(ctx), role, subject)
}

func (api RoleAPI) HasRole(ctx context.Context, role persist.Role, addr persist.EthereumAddress) (bool, error) {
	if err := validate.ValidateFields(api.validator, validate.ValidationMap{
		"role": {Value: role, Tag: "required,role"},
		"addr": {Value: addr, Tag: "required,eth_addr_full"},
	}); err != nil {
		return false, err
	}
	return api.roles.Has(ctx, role, addr)
}

func (api RoleAPI) GetRolesByAddress(ctx context.Context, addr persist.EthereumAddress) (persist.RoleList, error) {
	if err := validate.ValidateFields(api.validator, validate.ValidationMap{
		"addr": {Value: addr, Tag: "required,eth_addr_full"},
	}); err != nil {
		return nil, err
	}
	return api.roles.RolesByAddress(ctx, addr)
}
