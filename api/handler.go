package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/diarizer/analysis"
	apperrors "github.com/kbukum/diarizer/errors"
	"github.com/kbukum/diarizer/logger"
	"github.com/kbukum/diarizer/server"
	"github.com/kbukum/diarizer/util"
	"github.com/kbukum/diarizer/validation"
)

// Analyzer runs the full pipeline for one audio URL.
type Analyzer interface {
	Analyze(ctx context.Context, rawURL string) (*analysis.Result, error)
}

// Handler serves the analysis endpoint.
type Handler struct {
	svc Analyzer
	log *logger.Logger
}

// NewHandler creates a Handler backed by svc.
func NewHandler(svc Analyzer, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log.WithComponent("api")}
}

// Register mounts the endpoint on r.
func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/analyze", h.Analyze)
}

// Analyze handles POST /analyze {"url": "..."}.
func (h *Handler) Analyze(c *gin.Context) {
	ctx := c.Request.Context()

	var req analysis.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, bindError(err))
		return
	}
	if err := validation.Validate(&req); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.log.WithContext(ctx).Debug("Analyze request", map[string]interface{}{
		logger.FieldURL: util.RedactURL(req.URL),
	})

	res, err := h.svc.Analyze(ctx, req.URL)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, res)
}

func bindError(err error) *apperrors.AppError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "Request body too large.", http.StatusRequestEntityTooLarge).WithCause(err)
	}
	return apperrors.InvalidInput("body", "body must be a JSON object with a url field").WithCause(err)
}
