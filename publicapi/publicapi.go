package publicapi

import (
	"context"

	"github.com/SplitFi/go-drops/event"
	"github.com/SplitFi/go-drops/service/auth"
	"github.com/SplitFi/go-drops/service/drop"
	"github.com/SplitFi/go-drops/service/mint"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/SplitFi/go-drops/validate"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const apiContextKey = "publicapi.api"

const callerContextKey = "publicapi.caller"

// PublicAPI is the request-facing surface. Handlers pull it out of the gin
// context with For and call into the typed sub-APIs.
type PublicAPI struct {
	validator *validator.Validate

	Drop *DropAPI
	Mint *MintAPI
	Role *RoleAPI
}

func New(ctx context.Context, roles *auth.RoleRegistry, registry *drop.Registry, engine *mint.Engine, dispatcher *event.Dispatcher) *PublicAPI {
	validator := validate.WithCustomValidators()

	return &PublicAPI{
		validator: validator,

		Drop: &DropAPI{registry: registry, roles: roles, validator: validator},
		Mint: &MintAPI{engine: engine, registry: registry, roles: roles, validator: validator},
		Role: &RoleAPI{roles: roles, validator: validator},
	}
}

// AddTo adds the specified PublicAPI to a gin context
func AddTo(ctx *gin.Context, api *PublicAPI) {
	ctx.Set(apiContextKey, api)
}

// For retrieves the PublicAPI installed by AddTo
func For(ctx context.Context) *PublicAPI {
	gc := ctx.(*gin.Context)
	return gc.Value(apiContextKey).(*PublicAPI)
}

// SetCaller records the authenticated caller address on a gin context
func SetCaller(ctx *gin.Context, addr persist.EthereumAddress) {
	ctx.Set(callerContextKey, addr)
}

func callerAddress(ctx context.Context) persist.EthereumAddress {
	if addr, ok := ctx.Value(callerContextKey).(persist.EthereumAddress); ok {
		return addr
	}
	return persist.ZeroAddress
}
