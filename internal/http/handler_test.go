package http

import (
	"bytes"
	"context"
	"encoding/json"
	gohttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/http/httputil"
	"github.com/hxuan190/swap-engine/internal/services/payment"
	"github.com/hxuan190/swap-engine/internal/services/price"
)

const (
	solMint    = "So11111111111111111111111111111111111111112"
	usdcMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	adminToken = "test-admin-token"
)

func newTestRouter(handlers ...httputil.IHttpHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter("test", nil, adminToken, handlers...)
}

func serve(r *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	return serveWithHeaders(r, method, target, body, nil)
}

func serveAdmin(r *gin.Engine, method, target string, body any) *httptest.ResponseRecorder {
	return serveWithHeaders(r, method, target, body, map[string]string{"Authorization": "Bearer " + adminToken})
}

func serveWithHeaders(r *gin.Engine, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

type fakeQuoter struct {
	got domain.SwapIntent
	err error
}

func (f *fakeQuoter) GetQuote(_ context.Context, intent domain.SwapIntent) (*domain.Quote, error) {
	f.got = intent
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Quote{
		InputMint:   intent.InputMint,
		OutputMint:  intent.OutputMint,
		InAmount:    intent.Amount,
		OutAmount:   150_000_000,
		Mode:        intent.Mode,
		SlippageBps: intent.SlippageBps,
	}, nil
}

func TestHealth(t *testing.T) {
	w := serve(newTestRouter(), gohttp.MethodGet, "/health", nil)
	require.Equal(t, gohttp.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestQuoteHandler(t *testing.T) {
	t.Run("defaults slippage", func(t *testing.T) {
		q := &fakeQuoter{}
		r := newTestRouter(NewQuoteHandler(q, 50))

		w := serve(r, gohttp.MethodGet, "/api/quote?inputMint="+solMint+"&outputMint="+usdcMint+"&amount=1000000000", nil)
		require.Equal(t, gohttp.StatusOK, w.Code)
		require.Equal(t, uint16(50), q.got.SlippageBps)
		require.Equal(t, domain.SwapModeExactIn, q.got.Mode)

		var got domain.Quote
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Equal(t, uint64(150_000_000), got.OutAmount)
	})

	t.Run("explicit zero slippage", func(t *testing.T) {
		q := &fakeQuoter{}
		r := newTestRouter(NewQuoteHandler(q, 50))

		w := serve(r, gohttp.MethodGet, "/api/quote?inputMint="+solMint+"&outputMint="+usdcMint+"&amount=5&slippageBps=0", nil)
		require.Equal(t, gohttp.StatusOK, w.Code)
		require.Equal(t, uint16(0), q.got.SlippageBps)
	})

	t.Run("platform fee account", func(t *testing.T) {
		q := &fakeQuoter{}
		r := newTestRouter(NewQuoteHandler(q, 50))
		feeAccount := solana.NewWallet().PublicKey().String()

		w := serve(r, gohttp.MethodGet, "/api/quote?inputMint="+solMint+"&outputMint="+usdcMint+"&amount=10&platformFeeBps=20&feeAccount="+feeAccount, nil)
		require.Equal(t, gohttp.StatusOK, w.Code)
		require.EqualValues(t, 20, q.got.PlatformFeeBps)
		require.Equal(t, feeAccount, q.got.FeeAccount)
	})

	t.Run("validation", func(t *testing.T) {
		r := newTestRouter(NewQuoteHandler(&fakeQuoter{}, 50))

		cases := map[string]string{
			"missing amount": "/api/quote?inputMint=" + solMint + "&outputMint=" + usdcMint,
			"zero amount":    "/api/quote?inputMint=" + solMint + "&outputMint=" + usdcMint + "&amount=0",
			"same mint":      "/api/quote?inputMint=" + solMint + "&outputMint=" + solMint + "&amount=10",
			"bad mode":       "/api/quote?inputMint=" + solMint + "&outputMint=" + usdcMint + "&amount=10&swapMode=Both",
			"slippage":       "/api/quote?inputMint=" + solMint + "&outputMint=" + usdcMint + "&amount=10&slippageBps=10001",
			"fee no account": "/api/quote?inputMint=" + solMint + "&outputMint=" + usdcMint + "&amount=10&platformFeeBps=20",
		}
		for name, target := range cases {
			t.Run(name, func(t *testing.T) {
				w := serve(r, gohttp.MethodGet, target, nil)
				require.Equal(t, gohttp.StatusBadRequest, w.Code)
				require.NotEmpty(t, errorBody(t, w))
			})
		}
	})

	t.Run("no route", func(t *testing.T) {
		r := newTestRouter(NewQuoteHandler(&fakeQuoter{err: domain.NewError(domain.KindNoRoute, "", nil)}, 50))

		w := serve(r, gohttp.MethodGet, "/api/quote?inputMint="+solMint+"&outputMint="+usdcMint+"&amount=10", nil)
		require.Equal(t, gohttp.StatusNotFound, w.Code)
		require.Equal(t, "no routes found", errorBody(t, w))
	})

	t.Run("upstream rate limit", func(t *testing.T) {
		limited := domain.NewError(domain.KindRateLimited, "", nil)
		limited.RetryAfter = 3 * time.Second
		r := newTestRouter(NewQuoteHandler(&fakeQuoter{err: limited}, 50))

		w := serve(r, gohttp.MethodGet, "/api/quote?inputMint="+solMint+"&outputMint="+usdcMint+"&amount=10", nil)
		require.Equal(t, gohttp.StatusTooManyRequests, w.Code)
		require.Equal(t, "3", w.Header().Get("Retry-After"))
	})
}

type fakeTransactions struct {
	recorded []domain.SwapOutcome
	updated  map[string]domain.TxStatus
	history  []*domain.TransactionRecord
}

func (f *fakeTransactions) Record(_ context.Context, outcome domain.SwapOutcome) (*domain.TransactionRecord, error) {
	f.recorded = append(f.recorded, outcome)
	return &domain.TransactionRecord{
		WalletAddress: outcome.WalletAddress,
		Signature:     outcome.Signature,
		Status:        outcome.Status,
	}, nil
}

func (f *fakeTransactions) UpdateStatus(_ context.Context, sig string, status domain.TxStatus, _ string) error {
	if sig == "missing" {
		return domain.ErrNotFound
	}
	if f.updated == nil {
		f.updated = map[string]domain.TxStatus{}
	}
	f.updated[sig] = status
	return nil
}

func (f *fakeTransactions) QueryHistory(_ context.Context, wallet string, _, _ int) ([]*domain.TransactionRecord, error) {
	var out []*domain.TransactionRecord
	for _, r := range f.history {
		if r.WalletAddress == wallet {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestTransactionHandler(t *testing.T) {
	wallet := solana.NewWallet().PublicKey().String()
	sig := solana.Signature{1, 2, 3}.String()

	store := &fakeTransactions{history: []*domain.TransactionRecord{
		{WalletAddress: wallet, Signature: sig, Status: domain.TxStatusConfirmed},
	}}
	r := newTestRouter(NewTransactionHandler(store))

	t.Run("list requires wallet", func(t *testing.T) {
		w := serve(r, gohttp.MethodGet, "/api/transactions", nil)
		require.Equal(t, gohttp.StatusBadRequest, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		w := serve(r, gohttp.MethodGet, "/api/transactions?walletAddress="+wallet, nil)
		require.Equal(t, gohttp.StatusOK, w.Code)

		var recs []domain.TransactionRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
		require.Len(t, recs, 1)
		require.Equal(t, sig, recs[0].Signature)
	})

	t.Run("create swap", func(t *testing.T) {
		w := serve(r, gohttp.MethodPost, "/api/transactions", CreateTransactionRequest{
			WalletAddress: wallet,
			Signature:     sig,
			InputMint:     solMint,
			OutputMint:    usdcMint,
			InputAmount:   "1000000000",
			OutputAmount:  "150000000",
		})
		require.Equal(t, gohttp.StatusCreated, w.Code)
		require.Len(t, store.recorded, 1)

		got := store.recorded[0]
		require.Equal(t, domain.TxKindSwap, got.Kind)
		require.Equal(t, domain.TxStatusPending, got.Status)
		require.NotNil(t, got.Quote)
		require.Equal(t, uint64(1_000_000_000), got.Quote.InAmount)
		require.Equal(t, uint64(150_000_000), got.Quote.OutAmount)
	})

	t.Run("create rejects bad signature", func(t *testing.T) {
		w := serve(r, gohttp.MethodPost, "/api/transactions", CreateTransactionRequest{
			WalletAddress: wallet,
			Signature:     "not-a-signature",
		})
		require.Equal(t, gohttp.StatusBadRequest, w.Code)
		require.Equal(t, "invalid signature", errorBody(t, w))
	})

	t.Run("create rejects fractional amount", func(t *testing.T) {
		w := serve(r, gohttp.MethodPost, "/api/transactions", CreateTransactionRequest{
			WalletAddress: wallet,
			Signature:     sig,
			Amount:        "1.5",
		})
		require.Equal(t, gohttp.StatusBadRequest, w.Code)
	})

	t.Run("status update is not public", func(t *testing.T) {
		w := serve(r, gohttp.MethodPut, "/api/transactions/"+sig+"/status", gin.H{"status": "confirmed"})
		require.Equal(t, gohttp.StatusNotFound, w.Code)

		w = serve(r, gohttp.MethodPut, "/api/admin/transactions/"+sig+"/status", gin.H{"status": "confirmed"})
		require.Equal(t, gohttp.StatusUnauthorized, w.Code)
		require.NotContains(t, store.updated, sig)
	})

	t.Run("admin update status", func(t *testing.T) {
		w := serveAdmin(r, gohttp.MethodPut, "/api/admin/transactions/"+sig+"/status", gin.H{"status": "confirmed"})
		require.Equal(t, gohttp.StatusOK, w.Code)
		require.Equal(t, domain.TxStatusConfirmed, store.updated[sig])

		w = serveAdmin(r, gohttp.MethodPut, "/api/admin/transactions/missing/status", gin.H{"status": "failed"})
		require.Equal(t, gohttp.StatusNotFound, w.Code)
	})
}

type fakePayments struct {
	requests map[uuid.UUID]*domain.PaymentRequest
}

func (f *fakePayments) Metadata() payment.Metadata {
	return payment.Metadata{Label: "Coffee Shop", Icon: "https://example.com/icon.svg"}
}

func (f *fakePayments) CreateRequest(_ context.Context, p payment.CreateParams) (*domain.PaymentRequest, error) {
	if p.Amount == "" {
		return nil, domain.NewError(domain.KindInvalidAmount, "amount is required", nil)
	}
	req := &domain.PaymentRequest{
		ID:        uuid.New(),
		Merchant:  p.Merchant,
		Amount:    p.Amount,
		Reference: solana.NewWallet().PublicKey().String(),
		Status:    domain.PaymentStatusOpen,
	}
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakePayments) Get(_ context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, "payment request not found", nil)
	}
	return req, nil
}

func (f *fakePayments) List(_ context.Context, merchant string, _, _ int) ([]*domain.PaymentRequest, error) {
	var out []*domain.PaymentRequest
	for _, r := range f.requests {
		if merchant == "" || r.Merchant == merchant {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakePayments) BuildTransaction(ctx context.Context, id uuid.UUID, account string) (*payment.TransactionResponse, error) {
	if _, err := f.Get(ctx, id); err != nil {
		return nil, err
	}
	return &payment.TransactionResponse{Transaction: "AQID", Message: "thanks " + account}, nil
}

func (f *fakePayments) Verify(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	req, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Status = domain.PaymentStatusPaid
	return req, nil
}

func TestSolanaPayHandler(t *testing.T) {
	payments := &fakePayments{requests: map[uuid.UUID]*domain.PaymentRequest{}}
	r := newTestRouter(NewSolanaPayHandler(payments))
	merchant := solana.NewWallet().PublicKey().String()

	t.Run("metadata", func(t *testing.T) {
		w := serve(r, gohttp.MethodGet, "/api/solana-pay", nil)
		require.Equal(t, gohttp.StatusOK, w.Code)
		require.JSONEq(t, `{"label":"Coffee Shop","icon":"https://example.com/icon.svg"}`, w.Body.String())
	})

	var created PaymentRequestResponse
	t.Run("create", func(t *testing.T) {
		w := serve(r, gohttp.MethodPost, "/api/solana-pay/requests", gin.H{"merchant": merchant, "amount": "1.5"})
		require.Equal(t, gohttp.StatusCreated, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		require.Contains(t, created.URL, "solana:"+merchant)
		require.Contains(t, created.URL, "reference="+created.Reference)
	})

	t.Run("create validation", func(t *testing.T) {
		w := serve(r, gohttp.MethodPost, "/api/solana-pay/requests", gin.H{"merchant": merchant})
		require.Equal(t, gohttp.StatusBadRequest, w.Code)
	})

	t.Run("transaction request", func(t *testing.T) {
		payer := solana.NewWallet().PublicKey().String()

		w := serve(r, gohttp.MethodPost, "/api/solana-pay", gin.H{"account": payer})
		require.Equal(t, gohttp.StatusBadRequest, w.Code)
		require.Equal(t, "invalid payment request id", errorBody(t, w))

		w = serve(r, gohttp.MethodPost, "/api/solana-pay?id="+created.ID.String(), gin.H{})
		require.Equal(t, gohttp.StatusBadRequest, w.Code)
		require.Equal(t, "account is required", errorBody(t, w))

		w = serve(r, gohttp.MethodPost, "/api/solana-pay?id="+uuid.NewString(), gin.H{"account": payer})
		require.Equal(t, gohttp.StatusNotFound, w.Code)

		w = serve(r, gohttp.MethodPost, "/api/solana-pay?id="+created.ID.String(), gin.H{"account": payer})
		require.Equal(t, gohttp.StatusOK, w.Code)
		var resp payment.TransactionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, "AQID", resp.Transaction)
	})

	t.Run("verify", func(t *testing.T) {
		w := serve(r, gohttp.MethodPost, "/api/solana-pay/requests/"+created.ID.String()+"/verify", nil)
		require.Equal(t, gohttp.StatusOK, w.Code)
		require.Equal(t, domain.PaymentStatusPaid, payments.requests[created.ID].Status)

		w = serve(r, gohttp.MethodGet, "/api/solana-pay/requests/not-a-uuid", nil)
		require.Equal(t, gohttp.StatusBadRequest, w.Code)
	})
}

type fakePrices map[string]decimal.Decimal

func (f fakePrices) GetPrices(_ context.Context, ids []string, _ string) (map[string]decimal.Decimal, error) {
	if len(ids) == 0 {
		return nil, domain.NewError(domain.KindInvalidAddress, "at least one id is required", nil)
	}
	out := map[string]decimal.Decimal{}
	for _, raw := range ids {
		if p, ok := f[raw]; ok {
			out[raw] = p
		}
	}
	return out, nil
}

type fakeCharts struct{ got price.ChartRequest }

func (f *fakeCharts) GetChartData(_ context.Context, req price.ChartRequest) ([]domain.PricePoint, error) {
	f.got = req
	return []domain.PricePoint{}, nil
}

type fakeTokens []domain.TokenDescriptor

func (f fakeTokens) List(_ string, verifiedOnly bool, limit int) []domain.TokenDescriptor {
	var out []domain.TokenDescriptor
	for _, t := range f {
		if verifiedOnly && !t.Verified {
			continue
		}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}

type fakePortfolio struct{}

func (fakePortfolio) Get(_ context.Context, owner solana.PublicKey) (*domain.Portfolio, error) {
	return &domain.Portfolio{Owner: owner.String()}, nil
}

func TestMarketHandler(t *testing.T) {
	charts := &fakeCharts{}
	tokens := fakeTokens{
		{Address: solMint, Symbol: "SOL", Decimals: 9, Verified: true},
		{Address: usdcMint, Symbol: "USDC", Decimals: 6, Verified: true},
		{Address: solana.NewWallet().PublicKey().String(), Symbol: "MEME", Decimals: 6},
	}
	r := newTestRouter(NewMarketHandler(
		fakePrices{solMint: decimal.RequireFromString("150.25")},
		charts, tokens, fakePortfolio{},
	))

	t.Run("price", func(t *testing.T) {
		w := serve(r, gohttp.MethodGet, "/api/price?ids="+solMint, nil)
		require.Equal(t, gohttp.StatusOK, w.Code)
		require.JSONEq(t, `{"`+solMint+`":"150.25"}`, w.Body.String())

		w = serve(r, gohttp.MethodGet, "/api/price", nil)
		require.Equal(t, gohttp.StatusBadRequest, w.Code)
	})

	t.Run("chart", func(t *testing.T) {
		w := serve(r, gohttp.MethodGet, "/api/chart-data?address="+solMint+"&time_from=1700000000&time_to=1700086400", nil)
		require.Equal(t, gohttp.StatusOK, w.Code)
		require.Equal(t, "15m", charts.got.Interval)
		require.Equal(t, int64(1_700_000_000), charts.got.From.Unix())

		w = serve(r, gohttp.MethodGet, "/api/chart-data?address="+solMint, nil)
		require.Equal(t, gohttp.StatusBadRequest, w.Code)
	})

	t.Run("tokens", func(t *testing.T) {
		w := serve(r, gohttp.MethodGet, "/api/tokens?verified=true", nil)
		require.Equal(t, gohttp.StatusOK, w.Code)
		var got []domain.TokenDescriptor
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 2)

		w = serve(r, gohttp.MethodGet, "/api/tokens?limit=-1", nil)
		require.Equal(t, gohttp.StatusBadRequest, w.Code)
	})

	t.Run("portfolio", func(t *testing.T) {
		owner := solana.NewWallet().PublicKey().String()
		w := serve(r, gohttp.MethodGet, "/api/portfolio/"+owner, nil)
		require.Equal(t, gohttp.StatusOK, w.Code)

		w = serve(r, gohttp.MethodGet, "/api/portfolio/nope", nil)
		require.Equal(t, gohttp.StatusBadRequest, w.Code)
	})
}
