package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
)

func testContext() context.Context {
	return context.Background()
}

// authAs stands in for the auth middleware and injects a fixed caller.
func authAs(userID int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("userEmail", "user@example.com")
		c.Set("userRole", "user")
		c.Next()
	}
}
