package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	appctx "pantry/internal/core/context"
)

// HeaderActor names the cashier, clerk or workflow behind a request.
// Authentication is done by the gateway in front of the service.
const HeaderActor = "X-Actor"

const maxActorLen = 128

// Actor copies X-Actor into the request context so movements record who made them.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(HeaderActor))
		if len(actor) > maxActorLen {
			actor = actor[:maxActorLen]
		}
		if actor != "" {
			c.Request = c.Request.WithContext(appctx.WithActor(c.Request.Context(), actor))
			c.Set("actor", actor)
		}
		c.Next()
	}
}
