package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pageant-backend/internal/domains/payment/model"
	"pageant-backend/internal/domains/payment/service"
	res "pageant-backend/internal/shared/response"
	"pageant-backend/pkg/logger"
)

// =====================================================
// PAYMENT HANDLER
// =====================================================
type PaymentHandler struct {
	paymentService service.PaymentService

	// frontendStatusURL is where the voter's browser lands after the
	// gateway callback, with ?prn= or ?error= appended.
	frontendStatusURL string
}

func NewPaymentHandler(paymentService service.PaymentService, frontendStatusURL string) *PaymentHandler {
	return &PaymentHandler{
		paymentService:    paymentService,
		frontendStatusURL: frontendStatusURL,
	}
}

// =====================================================
// PUBLIC ENDPOINTS
// =====================================================

// CreateSession opens a payment session and returns the gateway redirect URL.
// POST /api/v1/payments
func (h *PaymentHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		res.BadRequest(c, "invalid request body")
		return
	}

	created, err := h.paymentService.CreateSession(c.Request.Context(), req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	res.Success(c, http.StatusCreated, created)
}

// HandleReturn receives the gateway callback and redirects the voter's
// browser to the frontend status page. The gateway sends GET with query
// params or POST with a form body; gin's form binding covers both.
// GET|POST /api/v1/payments/return
func (h *PaymentHandler) HandleReturn(c *gin.Context) {
	var cb model.ReturnCallback
	if err := c.ShouldBind(&cb); err != nil {
		// Unbindable callbacks still get a redirect; the voter must never
		// see a bare JSON error page after paying.
		logger.Error("Failed to bind gateway callback", err)
		c.Redirect(http.StatusFound, h.statusPageURL("", model.RedirectErrMissingFields))
		return
	}

	outcome := h.paymentService.HandleReturn(c.Request.Context(), &cb)
	c.Redirect(http.StatusFound, h.statusPageURL(outcome.PRN, outcome.ErrorCode))
}

// GetByPRN returns session status for the frontend poller.
// GET /api/v1/payments/prn/:prn
func (h *PaymentHandler) GetByPRN(c *gin.Context) {
	// The status page polls this while the voter sits on it; stale answers
	// would show "pending" after the credit landed.
	c.Header("Cache-Control", "no-store")

	status, err := h.paymentService.GetSessionByPRN(c.Request.Context(), c.Param("prn"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	res.Success(c, http.StatusOK, status)
}

// GetByID returns session status by surrogate id.
// GET /api/v1/payments/:id
func (h *PaymentHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		res.BadRequest(c, "invalid session id")
		return
	}

	status, err := h.paymentService.GetSessionByID(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	res.Success(c, http.StatusOK, status)
}

// =====================================================
// ADMIN ENDPOINTS (operator JWT required)
// =====================================================

// ListSessions pages through payment sessions.
// GET /api/v1/admin/payments?status=&page=&limit=
func (h *PaymentHandler) ListSessions(c *gin.Context) {
	var req model.ListSessionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		res.BadRequest(c, "invalid query parameters")
		return
	}

	sessions, total, err := h.paymentService.ListSessions(c.Request.Context(), &req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	res.SuccessWithMeta(c, http.StatusOK, sessions, &res.Meta{
		Page:  req.Page,
		Limit: req.Limit,
		Total: total,
	})
}

// GetStatistics aggregates collection totals.
// GET /api/v1/admin/payments/stats
func (h *PaymentHandler) GetStatistics(c *gin.Context) {
	stats, err := h.paymentService.GetStatistics(c.Request.Context())
	if err != nil {
		res.InternalServerError(c, "failed to aggregate statistics")
		return
	}

	res.Success(c, http.StatusOK, stats)
}

// =====================================================
// HELPERS
// =====================================================

func (h *PaymentHandler) statusPageURL(prn, errorCode string) string {
	values := url.Values{}
	if errorCode != "" {
		values.Set("error", errorCode)
	}
	if prn != "" {
		values.Set("prn", prn)
	}
	return h.frontendStatusURL + "?" + values.Encode()
}

// writeServiceError maps typed payment errors onto HTTP status codes
func (h *PaymentHandler) writeServiceError(c *gin.Context, err error) {
	var paymentErr *model.PaymentError
	if !errors.As(err, &paymentErr) {
		logger.Error("Unhandled payment service error", err)
		res.InternalServerError(c, "internal error")
		return
	}

	switch paymentErr.Code {
	case model.ErrCodeValidation, model.ErrCodeAmount:
		res.ErrorResponse(c, http.StatusBadRequest, paymentErr.Code, paymentErr.Message)
	case model.ErrCodeContestantUnknown, model.ErrCodeSessionNotFound:
		res.ErrorResponse(c, http.StatusNotFound, paymentErr.Code, paymentErr.Message)
	default:
		logger.Error("Payment service error", err)
		res.ErrorResponse(c, http.StatusInternalServerError, paymentErr.Code, paymentErr.Message)
	}
}
