package http

import (
	"context"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/http/httputil"
	"github.com/hxuan190/swap-engine/internal/services/price"
)

type PriceSource interface {
	GetPrices(ctx context.Context, ids []string, vsToken string) (map[string]decimal.Decimal, error)
}

type ChartSource interface {
	GetChartData(ctx context.Context, req price.ChartRequest) ([]domain.PricePoint, error)
}

type TokenLister interface {
	List(query string, verifiedOnly bool, limit int) []domain.TokenDescriptor
}

type PortfolioSource interface {
	Get(ctx context.Context, owner solana.PublicKey) (*domain.Portfolio, error)
}

// MarketHandler serves read-only market data: prices, charts, tokens and
// wallet balances.
type MarketHandler struct {
	prices    PriceSource
	charts    ChartSource
	tokens    TokenLister
	portfolio PortfolioSource
}

func NewMarketHandler(prices PriceSource, charts ChartSource, tokens TokenLister, portfolio PortfolioSource) *MarketHandler {
	return &MarketHandler{prices: prices, charts: charts, tokens: tokens, portfolio: portfolio}
}

func (h *MarketHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("/price", h.getPrice)
	pub.GET("/chart-data", h.getChartData)
	pub.GET("/tokens", h.getTokens)
	pub.GET("/portfolio/:wallet", h.getPortfolio)
}

func (h *MarketHandler) Root() string {
	return ""
}

// @Summary Get token prices
// @Tags price
// @Produce json
// @Param ids query string true "Comma separated mint addresses"
// @Param vsToken query string false "Quote token, USDC by default"
// @Success 200 {object} map[string]string
// @Failure 400 {object} httputil.ErrorResponse
// @Router /api/price [get]
func (h *MarketHandler) getPrice(c *gin.Context) {
	ids := c.QueryArray("ids")
	prices, err := h.prices.GetPrices(c.Request.Context(), ids, c.Query("vsToken"))
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, prices)
}

type chartQuery struct {
	Address  string `form:"address" binding:"required"`
	Type     string `form:"type"`
	TimeFrom int64  `form:"time_from" binding:"required"`
	TimeTo   int64  `form:"time_to" binding:"required"`
}

// @Summary Get chart data
// @Tags price
// @Produce json
// @Param address query string true "Token mint"
// @Param type query string false "Interval: 1m, 5m, 15m, 1H, 4H, 1D, 1W"
// @Param time_from query int true "Unix seconds"
// @Param time_to query int true "Unix seconds"
// @Success 200 {array} domain.PricePoint
// @Router /api/chart-data [get]
func (h *MarketHandler) getChartData(c *gin.Context) {
	var q chartQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.HandleBadRequest(c, "invalid query parameters: "+err.Error())
		return
	}
	if q.Type == "" {
		q.Type = "15m"
	}
	points, err := h.charts.GetChartData(c.Request.Context(), price.ChartRequest{
		Mint:     q.Address,
		Interval: q.Type,
		From:     time.Unix(q.TimeFrom, 0).UTC(),
		To:       time.Unix(q.TimeTo, 0).UTC(),
	})
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, points)
}

// @Summary Search tokens
// @Tags tokens
// @Produce json
// @Param query query string false "Symbol, name or address"
// @Param verified query bool false "Only verified tokens"
// @Param limit query int false "Max results, 100 by default"
// @Success 200 {array} domain.TokenDescriptor
// @Router /api/tokens [get]
func (h *MarketHandler) getTokens(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		httputil.HandleBadRequest(c, "invalid limit")
		return
	}
	verified, _ := strconv.ParseBool(c.DefaultQuery("verified", "false"))
	httputil.HandleSuccess(c, h.tokens.List(c.Query("query"), verified, limit))
}

// @Summary Get wallet balances
// @Tags portfolio
// @Produce json
// @Param wallet path string true "Wallet address"
// @Success 200 {object} domain.Portfolio
// @Router /api/portfolio/{wallet} [get]
func (h *MarketHandler) getPortfolio(c *gin.Context) {
	owner, err := solana.PublicKeyFromBase58(c.Param("wallet"))
	if err != nil {
		httputil.HandleBadRequest(c, "invalid wallet address")
		return
	}
	p, err := h.portfolio.Get(c.Request.Context(), owner)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, p)
}
