package api

import (
	"net/http"

	"storefront-be/internal/secureid"
	"storefront-be/internal/utils"

	"github.com/gin-gonic/gin"
)

// requireRole rejects anonymous callers with 401 and other roles with 403.
func requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, ok := utils.GetUserIDFromContext(ctx); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Message: "authentication required"})
			return
		}
		if len(roles) > 0 && !utils.HasRole(ctx, roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{Message: "forbidden"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) int64 {
	id, _ := utils.GetUserIDFromContext(c.Request.Context())
	return id
}

// orderURI binds the public order id path segment.
type orderURI struct {
	ID string `uri:"id" binding:"required,order_public_id"`
}

// assignmentURI binds the public assignment id path segment.
type assignmentURI struct {
	ID string `uri:"id" binding:"required,assignment_public_id"`
}

// bindOrderID reads a public order id from the path. Malformed ids answer
// 404 like unknown ones.
func bindOrderID(c *gin.Context) (string, bool) {
	var uri orderURI
	if err := c.ShouldBindUri(&uri); err != nil {
		Fail(c, secureid.ErrOrderNotFound)
		return "", false
	}
	return uri.ID, true
}

func bindAssignmentID(c *gin.Context) (string, bool) {
	var uri assignmentURI
	if err := c.ShouldBindUri(&uri); err != nil {
		Fail(c, secureid.ErrAssignmentNotFound)
		return "", false
	}
	return uri.ID, true
}
