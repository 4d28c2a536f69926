package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/chatstream/errors"
)

// RespondWithError writes err as {"error", "code"} JSON. AppErrors carry
// their own status; anything else is a 500.
func RespondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, appErr.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, apperrors.Internal(err).ToResponse())
}

// RespondOK sends a 200 response with data as the body.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// RespondAccepted sends a 202 response with data as the body.
func RespondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, data)
}
