package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SplitFi/go-drops/env"
	"github.com/SplitFi/go-drops/service/logger"
	"github.com/SplitFi/go-drops/util"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
)

func init() {
	env.RegisterValidation("ALLOWED_ORIGINS", "required")
}

// GinContextKey is the key the raw gin context is stashed under so code
// that only holds a context.Context can find it again
const GinContextKey = "GinContextKey"

func GinContextToContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(GinContextKey, c)
		c.Next()
	}
}

// Sentry attaches a request-scoped sentry hub. reportGinErrors forwards
// errors collected on the gin context to sentry after the handler chain.
func Sentry(reportGinErrors bool) gin.HandlerFunc {
	handler := sentrygin.New(sentrygin.Options{Repanic: true})

	return func(c *gin.Context) {
		handler(c)

		if reportGinErrors {
			if hub := sentrygin.GetHubFromContext(c); hub != nil {
				for _, err := range c.Errors {
					hub.CaptureException(err)
				}
			}
		}
	}
}

func HandleCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestOrigin := c.Request.Header.Get("Origin")

		if IsOriginAllowed(requestOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", requestOrigin)
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Caller-Address, sentry-trace")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func IsOriginAllowed(requestOrigin string) bool {
	allowedOrigins := env.GetString("ALLOWED_ORIGINS")
	return util.ContainsAnyString(allowedOrigins, requestOrigin, "*")
}

// ErrLogger logs any errors handlers attached to the gin context
func ErrLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.For(c).Errorf("%s %s: %s", c.Request.Method, c.Request.URL, c.Errors.JSON())
		}
	}
}

// RetrieveGinContext pulls the raw gin context back out of a context that
// passed through GinContextToContext
func RetrieveGinContext(ctx context.Context) (*gin.Context, error) {
	gc, ok := ctx.Value(GinContextKey).(*gin.Context)
	if !ok {
		return nil, fmt.Errorf("gin context not found in context")
	}
	return gc, nil
}
