// Package middleware provides HTTP middleware for the Gin router.
//
// Go Learning Note — Middleware Pattern (Gin):
// In Gin, middleware is any function with the signature `gin.HandlerFunc`, which
// is `func(*gin.Context)`. Middleware functions form a chain: each one runs,
// optionally calls c.Next() to pass control to the next handler, and can call
// c.Abort() to stop the chain. This is the "chain of responsibility" pattern.
//
// Middleware is applied using .Use() on a router or route group. Common uses:
// authentication, logging, CORS headers, rate limiting, and request tracing.
package middleware

import (
	"github.com/gin-gonic/gin"

	"rabmap/pkg/utils"
)

// Context key for the resolved client identity.
//
// Go Learning Note — Context Values:
// Gin's c.Set/c.Get stores request-scoped values in the *gin.Context. This is
// similar to the standard library's context.WithValue(). Use string keys as
// constants to avoid typos and enable refactoring.
const (
	ClientIDKey    = "client_id"
	ClientIDHeader = "X-Client-ID"
)

// ClientID resolves the caller's identity for preference persistence. The
// browser sends a self-assigned ID in the X-Client-ID header; requests
// without one get a fresh UUID echoed back so the client can adopt it. There
// is no authentication here — preferences are per-browser convenience state,
// not protected data.
//
// Go Learning Note — Returning Functions (Closures):
// ClientID() returns a gin.HandlerFunc — a function that returns a function.
// This pattern is common for middleware that needs configuration. The outer
// function could accept parameters (like a header name), and the inner
// function (the closure) captures those parameters. Here no config is needed,
// but the pattern matches Gin's middleware API.
func ClientID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(ClientIDHeader)
		if id == "" {
			id = utils.GenerateID()
			c.Header(ClientIDHeader, id)
		}
		c.Set(ClientIDKey, id)
		c.Next()
	}
}

// GetClientID retrieves the client ID previously set by the ClientID
// middleware.
//
// Go Learning Note — Type Assertion:
// c.Get() returns (interface{}, bool). The .(string) is a type assertion that
// converts the interface{} to a concrete string. The panic form is acceptable
// here because this function is only called behind the ClientID middleware,
// which guarantees the value exists and is a string.
func GetClientID(c *gin.Context) string {
	id, _ := c.Get(ClientIDKey)
	return id.(string)
}
