package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/swap-engine/internal/http/httputil"
	"github.com/hxuan190/swap-engine/internal/services/payment"
	"github.com/hxuan190/swap-engine/internal/services/swap"
)

type SwapPreparer interface {
	Prepare(ctx context.Context, req swap.PrepareRequest) (*swap.PreparedSwap, error)
}

type SwapHandler struct {
	swaps              SwapPreparer
	defaultSlippageBps uint16
}

func NewSwapHandler(swaps SwapPreparer, defaultSlippageBps uint16) *SwapHandler {
	return &SwapHandler{swaps: swaps, defaultSlippageBps: defaultSlippageBps}
}

func (h *SwapHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.POST("", h.buildSwap)
}

func (h *SwapHandler) Root() string {
	return "/swap"
}

// SwapHandlerRequest represents the parameters for building a swap transaction
type SwapHandlerRequest struct {
	// User's wallet address that will sign and execute the transaction
	UserWallet string `json:"userWallet" binding:"required" example:"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"`

	InputMint  string `json:"inputMint" binding:"required" example:"So11111111111111111111111111111111111111112"`
	OutputMint string `json:"outputMint" binding:"required" example:"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"`

	// Amount in smallest token units
	Amount      string  `json:"amount" binding:"required" example:"1000000000"`
	SwapMode    string  `json:"swapMode" enums:"ExactIn,ExactOut" example:"ExactIn"`
	SlippageBps *uint16 `json:"slippageBps" example:"50"`

	// Recipient receives the output instead of the user's own account.
	Recipient string `json:"recipient,omitempty"`
}

// @Summary Build swap transaction
// @Description Quote the swap and assemble an unsigned transaction for the user's wallet to sign.
// @Tags swap
// @Accept json
// @Produce json
// @Param request body SwapHandlerRequest true "Swap parameters"
// @Success 200 {object} swap.PreparedSwap
// @Failure 400 {object} httputil.ErrorResponse
// @Failure 404 {object} httputil.ErrorResponse "No route found"
// @Router /api/swap [post]
func (h *SwapHandler) buildSwap(c *gin.Context) {
	var req SwapHandlerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	intent, err := QuoteRequest{
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		Amount:      req.Amount,
		SwapMode:    req.SwapMode,
		SlippageBps: req.SlippageBps,
	}.intent(h.defaultSlippageBps)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	prepared, err := h.swaps.Prepare(c.Request.Context(), swap.PrepareRequest{
		Intent:      intent,
		SlippageBps: &intent.SlippageBps,
		Payer:       req.UserWallet,
		Recipient:   req.Recipient,
	})
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, prepared)
}

type ExactOutPayer interface {
	ExactOutPayment(ctx context.Context, req payment.ExactOutRequest) (*payment.ExactOutResponse, error)
}

// ExactOutHandler builds swaps that pay a merchant an exact amount.
type ExactOutHandler struct {
	payments ExactOutPayer
}

func NewExactOutHandler(payments ExactOutPayer) *ExactOutHandler {
	return &ExactOutHandler{payments: payments}
}

func (h *ExactOutHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.POST("", h.buildExactOut)
}

func (h *ExactOutHandler) Root() string {
	return "/jupiter-exact-out-swap"
}

// @Summary Build exact-out merchant payment
// @Description Quote an ExactOut swap delivering exactly `amount` of the output token to the merchant.
// @Tags swap
// @Accept json
// @Produce json
// @Param request body payment.ExactOutRequest true "Payment parameters"
// @Success 200 {object} payment.ExactOutResponse
// @Failure 400 {object} httputil.ErrorResponse
// @Router /api/jupiter-exact-out-swap [post]
func (h *ExactOutHandler) buildExactOut(c *gin.Context) {
	var req payment.ExactOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	resp, err := h.payments.ExactOutPayment(c.Request.Context(), req)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, resp)
}
