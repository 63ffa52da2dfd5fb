package middleware

import (
	"net/http"

	"github.com/SplitFi/go-drops/publicapi"
	"github.com/SplitFi/go-drops/service/persist"
	"github.com/SplitFi/go-drops/util"
	"github.com/gin-gonic/gin"
)

// CallerAddressHeader carries the caller's address. Signature-based proof
// of ownership is handled upstream of this service.
const CallerAddressHeader = "X-Caller-Address"

// AddCallerAddress extracts the caller address header, if present, and
// records it for the API layer. Requests without the header proceed as the
// zero address and fail later authorization checks.
func AddCallerAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader(CallerAddressHeader); header != "" {
			publicapi.SetCaller(c, persist.EthereumAddress(header))
		}
		c.Next()
	}
}

// CallerRequired rejects requests that did not supply a caller address
func CallerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := persist.EthereumAddress(c.GetHeader(CallerAddressHeader))
		if addr.IsZero() {
			util.ErrResponse(c, http.StatusUnauthorized, persist.ErrInvalidAddress{Address: addr})
			return
		}
		c.Next()
	}
}
