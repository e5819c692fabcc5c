package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Helpdesk/internal/model"
)

const operatorKey = "operator"

// RequireIdentity trusts the session provider's headers and refuses the
// request when they are absent. No re-validation happens here.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		operator := model.Operator{
			UserID:     c.GetHeader("X-User-Id"),
			UserName:   c.GetHeader("X-User-Name"),
			UserAvatar: c.GetHeader("X-User-Avatar"),
			Role:       c.GetHeader("X-User-Role"),
		}
		if operator.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthenticated",
			})
			return
		}

		c.Set(operatorKey, operator)
		c.Next()
	}
}

// OperatorFrom returns the identity RequireIdentity stored on the context.
func OperatorFrom(c *gin.Context) model.Operator {
	if v, ok := c.Get(operatorKey); ok {
		if op, ok := v.(model.Operator); ok {
			return op
		}
	}
	return model.Operator{}
}
