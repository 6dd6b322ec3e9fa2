// Package payment serves Solana Pay transfer requests and exact-out merchant
// payments.
package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hxuan190/swap-engine/internal/common"
	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/repository"
	"github.com/hxuan190/swap-engine/internal/units"
)

const maxMemoLength = 256

type Store interface {
	InsertPaymentRequest(ctx context.Context, p *domain.PaymentRequest) error
	GetPaymentRequest(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error)
	MarkPaymentRequestPaid(ctx context.Context, reference, sig string, now time.Time) error
	ListPaymentRequests(ctx context.Context, merchant string, limit, offset int) ([]*domain.PaymentRequest, error)
}

type RPCProvider interface {
	Client() *rpc.Client
}

type BlockhashSource interface {
	GetBlockhash(ctx context.Context) (solana.Hash, uint64, error)
}

// Recorder stores settled payments in the transaction history.
type Recorder interface {
	Record(ctx context.Context, outcome domain.SwapOutcome) (*domain.TransactionRecord, error)
}

type Options struct {
	Label       string
	IconURL     string
	PriorityFee bool
}

// Metadata is the Solana Pay GET response.
type Metadata struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// TransactionResponse is the Solana Pay POST response.
type TransactionResponse struct {
	Transaction string `json:"transaction"`
	Message     string `json:"message,omitempty"`
}

type CreateParams struct {
	Merchant string `json:"merchant"`
	// Amount is in display units of Mint, or SOL when Mint is empty.
	Amount  string `json:"amount"`
	Mint    string `json:"mint,omitempty"`
	Label   string `json:"label,omitempty"`
	Message string `json:"message,omitempty"`
	Memo    string `json:"memo,omitempty"`
}

type Service struct {
	store     Store
	rpc       RPCProvider
	blockhash BlockhashSource
	fees      *FeeEstimator
	recorder  Recorder
	opts      Options
	clock     clock.Clock

	quoter   Quoter
	builder  SwapBuilder
	decimals DecimalsLookup
}

// New builds a payment service. recorder may be nil.
func New(store Store, rpcProvider RPCProvider, blockhash BlockhashSource, recorder Recorder, opts Options, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Service{
		store:     store,
		rpc:       rpcProvider,
		blockhash: blockhash,
		fees:      NewFeeEstimator(rpcProvider),
		recorder:  recorder,
		opts:      opts,
		clock:     clk,
	}
}

func (s *Service) Metadata() Metadata {
	return Metadata{Label: s.opts.Label, Icon: s.opts.IconURL}
}

// CreateRequest validates and stores an open payment request with a fresh
// reference key.
func (s *Service) CreateRequest(ctx context.Context, p CreateParams) (*domain.PaymentRequest, error) {
	if _, err := solana.PublicKeyFromBase58(p.Merchant); err != nil {
		return nil, domain.NewError(domain.KindInvalidRecipient, fmt.Sprintf("invalid merchant address %q", p.Merchant), err)
	}
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, domain.NewError(domain.KindInvalidAmount, "amount must be a positive number", err)
	}
	if p.Mint != "" {
		if _, err := solana.PublicKeyFromBase58(p.Mint); err != nil {
			return nil, domain.NewError(domain.KindInvalidAddress, fmt.Sprintf("invalid mint %q", p.Mint), err)
		}
	}
	if len(p.Memo) > maxMemoLength {
		return nil, domain.NewError(domain.KindInvalidAmount, fmt.Sprintf("memo longer than %d bytes", maxMemoLength), nil)
	}

	now := s.clock.Now()
	req := &domain.PaymentRequest{
		ID:        uuid.New(),
		Merchant:  p.Merchant,
		Amount:    amount.String(),
		Mint:      p.Mint,
		Reference: solana.NewWallet().PublicKey().String(),
		Label:     p.Label,
		Message:   p.Message,
		Memo:      p.Memo,
		Status:    domain.PaymentStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertPaymentRequest(ctx, req); err != nil {
		return nil, domain.NewError(domain.KindPersistenceError, "", err)
	}
	log.Info().Str("id", req.ID.String()).Str("merchant", req.Merchant).Str("amount", req.Amount).Msg("[payment] request created")
	return req, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	req, err := s.store.GetPaymentRequest(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NewError(domain.KindNotFound, "payment request not found", err)
	}
	if err != nil {
		return nil, domain.NewError(domain.KindPersistenceError, "", err)
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, merchant string, limit, offset int) ([]*domain.PaymentRequest, error) {
	if _, err := solana.PublicKeyFromBase58(merchant); err != nil {
		return nil, domain.NewError(domain.KindInvalidAddress, fmt.Sprintf("invalid merchant address %q", merchant), err)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	reqs, err := s.store.ListPaymentRequests(ctx, merchant, limit, max(offset, 0))
	if err != nil {
		return nil, domain.NewError(domain.KindPersistenceError, "", err)
	}
	if reqs == nil {
		reqs = []*domain.PaymentRequest{}
	}
	return reqs, nil
}

// TransferURL encodes req as a Solana Pay transfer request URL.
func TransferURL(req *domain.PaymentRequest) string {
	q := url.Values{}
	q.Set("amount", req.Amount)
	if req.Mint != "" {
		q.Set("spl-token", req.Mint)
	}
	q.Set("reference", req.Reference)
	if req.Label != "" {
		q.Set("label", req.Label)
	}
	if req.Message != "" {
		q.Set("message", req.Message)
	}
	if req.Memo != "" {
		q.Set("memo", req.Memo)
	}
	return "solana:" + req.Merchant + "?" + q.Encode()
}

// BuildTransaction assembles the unsigned transfer paying request id from
// account.
func (s *Service) BuildTransaction(ctx context.Context, id uuid.UUID, account string) (*TransactionResponse, error) {
	payer, err := solana.PublicKeyFromBase58(account)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidAddress, fmt.Sprintf("invalid account %q", account), err)
	}
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != domain.PaymentStatusOpen {
		return nil, domain.NewError(domain.KindInvalidRecipient, "payment request already paid", nil)
	}

	t, err := s.transferFor(ctx, req, payer)
	if err != nil {
		return nil, err
	}
	if s.opts.PriorityFee {
		writable := []solana.PublicKey{payer, t.Merchant}
		t.FeePerCU = s.fees.FeePerCU(ctx, writable)
	}

	blockhash, _, err := s.blockhash.GetBlockhash(ctx)
	if err != nil {
		return nil, domain.NewError(domain.KindNetworkError, "", err)
	}
	if t.FeePerCU > 0 {
		t.ComputeUnits = MaxComputeUnits
		draft, err := t.unsignedTransaction(blockhash)
		if err != nil {
			return nil, domain.NewError(domain.KindInternal, "cannot assemble transfer", err)
		}
		t.ComputeUnits = s.fees.EstimateUnits(ctx, draft)
	}
	tx, err := t.unsignedTransaction(blockhash)
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, "cannot assemble transfer", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, "cannot serialize transfer", err)
	}

	msg := req.Message
	if msg == "" {
		msg = req.Label
	}
	return &TransactionResponse{Transaction: base64.StdEncoding.EncodeToString(raw), Message: msg}, nil
}

// transferFor resolves amounts and accounts for req. The payer must differ
// from the merchant.
func (s *Service) transferFor(ctx context.Context, req *domain.PaymentRequest, payer solana.PublicKey) (transfer, error) {
	merchant, err := solana.PublicKeyFromBase58(req.Merchant)
	if err != nil {
		return transfer{}, domain.NewError(domain.KindInvalidRecipient, "stored merchant address is invalid", err)
	}
	if merchant.Equals(payer) {
		return transfer{}, domain.NewError(domain.KindInvalidRecipient, "payer must differ from the merchant", nil)
	}
	reference, err := solana.PublicKeyFromBase58(req.Reference)
	if err != nil {
		return transfer{}, domain.NewError(domain.KindInternal, "stored reference is invalid", err)
	}

	t := transfer{
		Payer:     payer,
		Merchant:  merchant,
		Program:   common.SystemProgramID,
		Decimals:  common.SOLDecimals,
		Reference: reference,
		Memo:      req.Memo,
	}
	if req.Mint != "" {
		mint, err := solana.PublicKeyFromBase58(req.Mint)
		if err != nil {
			return transfer{}, domain.NewError(domain.KindInvalidAddress, "stored mint is invalid", err)
		}
		client := s.rpc.Client()
		info, err := lookupMint(ctx, client, mint)
		if err != nil {
			return transfer{}, err
		}
		dest, err := associatedTokenAddress(merchant, mint, info.Program)
		if err != nil {
			return transfer{}, domain.NewError(domain.KindInvalidRecipient, "cannot derive merchant token account", err)
		}
		if err := checkMerchantAccount(ctx, client, dest, info.Program); err != nil {
			return transfer{}, err
		}
		t.Mint = &mint
		t.Program = info.Program
		t.Decimals = info.Decimals
	}

	t.Amount, err = units.ParseToBaseUnits(req.Amount, t.Decimals)
	if err != nil {
		return transfer{}, err
	}
	return t, nil
}

// Verify looks for a successful transfer carrying the request's reference
// and marks the request paid when one is found.
func (s *Service) Verify(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil || req.Status == domain.PaymentStatusPaid {
		return req, err
	}
	reference, err := solana.PublicKeyFromBase58(req.Reference)
	if err != nil {
		return nil, domain.NewError(domain.KindInternal, "stored reference is invalid", err)
	}

	sigs, err := s.rpc.Client().GetSignaturesForAddress(ctx, reference)
	if err != nil {
		return nil, domain.NewError(domain.KindNetworkError, "", err)
	}
	// Newest first; the earliest successful transfer settles the request.
	var found string
	for i := len(sigs) - 1; i >= 0; i-- {
		sig := sigs[i]
		if sig == nil || sig.Err != nil {
			continue
		}
		if sig.ConfirmationStatus == rpc.ConfirmationStatusConfirmed || sig.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
			found = sig.Signature.String()
			break
		}
	}
	if found == "" {
		return req, nil
	}

	now := s.clock.Now()
	err = s.store.MarkPaymentRequestPaid(ctx, req.Reference, found, now)
	if err != nil && !errors.Is(err, repository.ErrTerminal) {
		return nil, domain.NewError(domain.KindPersistenceError, "", err)
	}
	s.recordSettlement(ctx, req, found)

	return s.Get(ctx, id)
}

func (s *Service) recordSettlement(ctx context.Context, req *domain.PaymentRequest, sig string) {
	if s.recorder == nil {
		return
	}
	decimals := uint8(common.SOLDecimals)
	if req.Mint != "" {
		if mint, err := solana.PublicKeyFromBase58(req.Mint); err == nil {
			if info, err := lookupMint(ctx, s.rpc.Client(), mint); err == nil {
				decimals = info.Decimals
			}
		}
	}
	amount, _ := units.ParseToBaseUnits(req.Amount, decimals)
	mint := req.Mint
	if mint == "" {
		mint = domain.WrappedSOLMint
	}

	_, err := s.recorder.Record(context.WithoutCancel(ctx), domain.SwapOutcome{
		Kind:          domain.TxKindPayment,
		WalletAddress: req.Merchant,
		Signature:     sig,
		Status:        domain.TxStatusConfirmed,
		Recipient:     req.Merchant,
		PaymentMint:   mint,
		PaymentAmount: amount,
	})
	if err != nil {
		log.Warn().Err(err).Str("signature", sig).Msg("[payment] failed to record settled payment")
	}
}
