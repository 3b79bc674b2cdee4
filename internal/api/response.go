package api

import (
	"errors"
	"net/http"

	"storefront-be/internal/apperr"
	"storefront-be/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Message: "ok", Data: data})
}

func BadRequest(c *gin.Context, err error) {
	msg := "invalid request"
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msg = "invalid field " + verrs[0].Field() + ": " + verrs[0].Tag()
	} else if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{Message: msg})
}

// Fail maps err onto its HTTP status. Internal errors are logged and hidden.
func Fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromCtx(c.Request.Context()).Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, Response{Message: msg})
}
