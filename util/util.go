package util

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the shape of every error body returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrResponse sends a JSON ErrorResponse with the given status code.
func ErrResponse(c *gin.Context, code int, err error) {
	c.Error(err)
	c.AbortWithStatusJSON(code, ErrorResponse{Error: err.Error()})
}

// HealthCheckHandler returns a handler for the health check endpoint.
func HealthCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Status(http.StatusOK)
	}
}

// ContainsAnyString returns true if s contains any of the given substrings.
func ContainsAnyString(s string, strs ...string) bool {
	for _, str := range strs {
		if strings.Contains(s, str) {
			return true
		}
	}
	return false
}

// Contains returns true if the slice contains the given element.
func Contains[T comparable](s []T, e T) bool {
	for _, v := range s {
		if v == e {
			return true
		}
	}
	return false
}
