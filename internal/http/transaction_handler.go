package http

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/http/httputil"
)

type TransactionStore interface {
	Record(ctx context.Context, outcome domain.SwapOutcome) (*domain.TransactionRecord, error)
	UpdateStatus(ctx context.Context, sig string, status domain.TxStatus, reason string) error
	QueryHistory(ctx context.Context, wallet string, limit, offset int) ([]*domain.TransactionRecord, error)
}

type TransactionHandler struct {
	store TransactionStore
}

func NewTransactionHandler(store TransactionStore) *TransactionHandler {
	return &TransactionHandler{store: store}
}

func (h *TransactionHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.GET("", h.listTransactions)
	pub.POST("", h.createTransaction)
	admin.PUT("/:signature/status", h.updateStatus)
}

func (h *TransactionHandler) Root() string {
	return "/transactions"
}

// @Summary List wallet transactions
// @Tags transactions
// @Produce json
// @Param walletAddress query string true "Wallet address"
// @Param limit query int false "Page size, 50 by default"
// @Param offset query int false "Offset"
// @Success 200 {array} domain.TransactionRecord
// @Router /api/transactions [get]
func (h *TransactionHandler) listTransactions(c *gin.Context) {
	wallet := c.Query("walletAddress")
	if wallet == "" {
		httputil.HandleBadRequest(c, "walletAddress is required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	recs, err := h.store.QueryHistory(c.Request.Context(), wallet, limit, offset)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, recs)
}

// CreateTransactionRequest records a transaction a wallet submitted itself.
type CreateTransactionRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
	Type          string `json:"type"`
	Status        string `json:"status"`

	InputMint    string `json:"inputMint"`
	OutputMint   string `json:"outputMint"`
	InputAmount  string `json:"inputAmount"`
	OutputAmount string `json:"outputAmount"`

	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Mint      string `json:"mint"`
}

func parseAmount(field, raw string) (uint64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, domain.NewError(domain.KindInvalidAmount, fmt.Sprintf("%s must be an integer in base units", field), err)
	}
	return v, nil
}

func (r CreateTransactionRequest) outcome() (domain.SwapOutcome, error) {
	if _, err := solana.PublicKeyFromBase58(r.WalletAddress); err != nil {
		return domain.SwapOutcome{}, domain.NewError(domain.KindInvalidAddress, "invalid walletAddress", err)
	}
	if _, err := solana.SignatureFromBase58(r.Signature); err != nil {
		return domain.SwapOutcome{}, domain.NewError(domain.KindInvalidAddress, "invalid signature", err)
	}
	kind := domain.TxKindSwap
	if r.Type != "" {
		kind = domain.ParseTxKind(r.Type)
	}
	status := domain.TxStatus(r.Status)
	if status == "" {
		status = domain.TxStatusPending
	}

	out := domain.SwapOutcome{
		Kind:          kind,
		WalletAddress: r.WalletAddress,
		Signature:     r.Signature,
		Status:        status,
		Recipient:     r.Recipient,
		PaymentMint:   r.Mint,
	}
	var err error
	if out.PaymentAmount, err = parseAmount("amount", r.Amount); err != nil {
		return domain.SwapOutcome{}, err
	}
	if r.InputMint != "" || r.OutputMint != "" {
		q := &domain.Quote{InputMint: r.InputMint, OutputMint: r.OutputMint}
		if q.InAmount, err = parseAmount("inputAmount", r.InputAmount); err != nil {
			return domain.SwapOutcome{}, err
		}
		if q.OutAmount, err = parseAmount("outputAmount", r.OutputAmount); err != nil {
			return domain.SwapOutcome{}, err
		}
		out.Quote = q
	}
	return out, nil
}

// @Summary Record a transaction
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body CreateTransactionRequest true "Transaction"
// @Success 201 {object} domain.TransactionRecord
// @Router /api/transactions [post]
func (h *TransactionHandler) createTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	outcome, err := req.outcome()
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	rec, err := h.store.Record(c.Request.Context(), outcome)
	if err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.Created(c, rec)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// @Summary Settle a pending transaction
// @Tags transactions
// @Accept json
// @Produce json
// @Param signature path string true "Transaction signature"
// @Success 200 {object} map[string]string
// @Security AdminToken
// @Router /api/admin/transactions/{signature}/status [put]
func (h *TransactionHandler) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	sig := c.Param("signature")
	if err := h.store.UpdateStatus(c.Request.Context(), sig, domain.TxStatus(req.Status), req.Reason); err != nil {
		httputil.HandleError(c, err)
		return
	}
	httputil.HandleSuccess(c, gin.H{"signature": sig, "status": req.Status})
}
