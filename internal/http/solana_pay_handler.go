package http

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/http/httputil"
	"github.com/hxuan190/swap-engine/internal/services/payment"
)

type PaymentRequests interface {
	Metadata() payment.Metadata
	CreateRequest(ctx context.Context, p payment.CreateParams) (*domain.PaymentRequest, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error)
	List(ctx context.Context, merchant string, limit, offset int) ([]*domain.PaymentRequest, error)
	BuildTransaction(ctx context.Context, id uuid.UUID, account string) (*payment.TransactionResponse, error)
	Verify(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error)
}

type SolanaPayHandler struct {
	payments PaymentRequests
}

func NewSolanaPayHandler(payments PaymentRequests) *SolanaPayHandler {
	return &SolanaPayHandler{payments: payments}
}

func (h *SolanaPayHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getMetadata)
	pub.POST("", h.postTransaction)

	private.POST("/requests", h.createRequest)
	private.GET("/requests", h.listRequests)
	private.GET("/requests/:id", h.getRequest)
	private.POST("/requests/:id/verify", h.verifyRequest)
}

func (h *SolanaPayHandler) Root() string {
	return "/solana-pay"
}

// PaymentRequestResponse pairs a stored request with its wallet link.
type PaymentRequestResponse struct {
	*domain.PaymentRequest
	URL string `json:"url"`
}

func parseRequestID(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.HandleBadRequest(c, "invalid payment request id")
		return uuid.Nil, false
	}
	return id, true
}

// @Summary Solana Pay transaction request metadata
// @Tags payments
// @Produce json
// @Success 200 {object} payment.Metadata
// @Router /api/solana-pay [get]
func (h *SolanaPayHandler) getMetadata(c *gin.Context) {
	httputil.HandleSuccess(c, h.payments.Metadata())
}

type transactionRequestBody struct {
	Account string `json:"account" binding:"required"`
}

// @Summary Solana Pay transaction request
// @Description Returns an unsigned transfer paying the request identified by `id` from `account`.
// @Tags payments
// @Accept json
// @Produce json
// @Param id query string true "Payment request id"
// @Success 200 {object} payment.TransactionResponse
// @Failure 400 {object} httputil.ErrorResponse
// @Router /api/solana-pay [post]
func (h *SolanaPayHandler) postTransaction(c *gin.Context) {
	id, ok := parseRequestID(c, c.Query("id"))
	if !ok {
		return
	}
	var body transactionRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httputil.HandleBadRequest(c, "account is required")
		return
	}
	resp, err := h.payments.BuildTransaction(c.Request.Context(), id, body.Account)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, resp)
}

func (h *SolanaPayHandler) createRequest(c *gin.Context) {
	var params payment.CreateParams
	if err := c.ShouldBindJSON(&params); err != nil {
		httputil.HandleBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	req, err := h.payments.CreateRequest(c.Request.Context(), params)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.Created(c, PaymentRequestResponse{PaymentRequest: req, URL: payment.TransferURL(req)})
}

func (h *SolanaPayHandler) listRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	reqs, err := h.payments.List(c.Request.Context(), c.Query("merchant"), limit, offset)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, reqs)
}

func (h *SolanaPayHandler) getRequest(c *gin.Context) {
	id, ok := parseRequestID(c, c.Param("id"))
	if !ok {
		return
	}
	req, err := h.payments.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, PaymentRequestResponse{PaymentRequest: req, URL: payment.TransferURL(req)})
}

func (h *SolanaPayHandler) verifyRequest(c *gin.Context) {
	id, ok := parseRequestID(c, c.Param("id"))
	if !ok {
		return
	}
	req, err := h.payments.Verify(c.Request.Context(), id)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, req)
}
