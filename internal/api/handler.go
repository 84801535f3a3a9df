package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"caseflow/internal/ledger"
	"caseflow/internal/logger"
	"caseflow/pkg/errors"
)

type BaseHandler struct {
	Logger logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

// Handler exposes read access to the outcome ledger for support tooling.
type Handler struct {
	BaseHandler
	ledger *ledger.Service
}

func NewHandler(ledgerService *ledger.Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{Logger: log},
		ledger:      ledgerService,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		v1.GET("/callback-results", h.GetCallbackResults)
	}
}

type callbackResultsResponse struct {
	Results []ledger.CallbackResult `json:"callback_results"`
}

// GetCallbackResults returns the ledger rows for exactly one of
// exception_record_id or case_id. Asking for both, or neither, is a
// client error.
func (h *Handler) GetCallbackResults(c *gin.Context) {
	exceptionRecordID := c.Query("exception_record_id")
	caseID := c.Query("case_id")

	if (exceptionRecordID == "") == (caseID == "") {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
			errors.ErrValidation.WithDetail("message",
				"exactly one of exception_record_id or case_id must be provided"),
		))
		return
	}

	var results []ledger.CallbackResult
	var err error
	if exceptionRecordID != "" {
		results, err = h.ledger.FindByExceptionRecordID(c.Request.Context(), exceptionRecordID)
	} else {
		results, err = h.ledger.FindByCaseID(c.Request.Context(), caseID)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if results == nil {
		results = []ledger.CallbackResult{}
	}

	c.JSON(http.StatusOK, callbackResultsResponse{Results: results})
}
