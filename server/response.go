package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/diarizer/errors"
	"github.com/kbukum/diarizer/logger"
)

// RespondWithError writes the {"detail","request_id"} body for err. Anything
// that is not an *apperrors.AppError becomes a generic 500.
func RespondWithError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	c.JSON(appErr.HTTPStatus, appErr.ToResponse(RequestID(c)))
}

// RespondOK sends a 200 response with data as the body.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// RequestID returns the id assigned to the current request.
func RequestID(c *gin.Context) string {
	return logger.RequestIDFromContext(c.Request.Context())
}
