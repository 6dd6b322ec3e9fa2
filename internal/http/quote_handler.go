package http

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/http/httputil"
)

type Quoter interface {
	GetQuote(ctx context.Context, intent domain.SwapIntent) (*domain.Quote, error)
}

type QuoteHandler struct {
	quoter             Quoter
	defaultSlippageBps uint16
}

func NewQuoteHandler(quoter Quoter, defaultSlippageBps uint16) *QuoteHandler {
	return &QuoteHandler{quoter: quoter, defaultSlippageBps: defaultSlippageBps}
}

func (h *QuoteHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.getQuote)
}

func (h *QuoteHandler) Root() string {
	return "/quote"
}

// QuoteRequest represents the parameters for requesting a swap quote
type QuoteRequest struct {
	// Input token mint address (Solana base58 public key)
	InputMint string `form:"inputMint" binding:"required" example:"So11111111111111111111111111111111111111112"`

	// Output token mint address (Solana base58 public key)
	OutputMint string `form:"outputMint" binding:"required" example:"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"`

	// Amount in smallest token units (lamports for SOL, base units for SPL tokens)
	Amount string `form:"amount" binding:"required" example:"1000000000"`

	// - "ExactIn": Amount is the exact input, output is estimated
	// - "ExactOut": Amount is the exact output desired, input is estimated
	SwapMode string `form:"swapMode" enums:"ExactIn,ExactOut" example:"ExactIn"`

	// Slippage tolerance in basis points (1 bps = 0.01%)
	SlippageBps *uint16 `form:"slippageBps" example:"50"`

	PlatformFeeBps uint16 `form:"platformFeeBps" example:"0"`

	// Account receiving the platform fee, required with platformFeeBps
	FeeAccount string `form:"feeAccount"`
}

func (r QuoteRequest) intent(defaultSlippageBps uint16) (domain.SwapIntent, error) {
	amount, err := strconv.ParseUint(r.Amount, 10, 64)
	if err != nil || amount == 0 {
		return domain.SwapIntent{}, domain.NewError(domain.KindInvalidAmount, "invalid amount: must be a positive integer in base units", err)
	}
	mode, err := domain.ParseSwapMode(r.SwapMode)
	if err != nil {
		return domain.SwapIntent{}, err
	}
	slippage := defaultSlippageBps
	if r.SlippageBps != nil {
		slippage = *r.SlippageBps
	}
	intent := domain.SwapIntent{
		InputMint:      r.InputMint,
		OutputMint:     r.OutputMint,
		Amount:         amount,
		Mode:           mode,
		SlippageBps:    slippage,
		PlatformFeeBps: r.PlatformFeeBps,
		FeeAccount:     r.FeeAccount,
	}
	return intent, intent.Validate()
}

// @Summary Get swap quote
// @Description Fetch the best route for a token pair from the liquidity aggregator.
// @Description Amounts are in base units. The quote is valid for a limited time.
// @Tags quote
// @Produce json
// @Param inputMint query string true "Input token mint address"
// @Param outputMint query string true "Output token mint address"
// @Param amount query string true "Amount in smallest token units"
// @Param swapMode query string false "ExactIn or ExactOut" Enums(ExactIn, ExactOut)
// @Param slippageBps query int false "Slippage tolerance in basis points"
// @Success 200 {object} domain.Quote
// @Failure 400 {object} httputil.ErrorResponse
// @Failure 404 {object} httputil.ErrorResponse "No route found"
// @Failure 502 {object} httputil.ErrorResponse
// @Router /api/quote [get]
func (h *QuoteHandler) getQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return
	}
	intent, err := req.intent(h.defaultSlippageBps)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}

	q, err := h.quoter.GetQuote(c.Request.Context(), intent)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, q)
}
