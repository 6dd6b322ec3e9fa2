package swap

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/domain"
	"github.com/hxuan190/swap-engine/internal/metrics"
	"github.com/hxuan190/swap-engine/internal/services/builder"
	"github.com/hxuan190/swap-engine/internal/services/quote"
)

type TxBuilder interface {
	CheckFresh(q *domain.Quote) error
	Build(ctx context.Context, req builder.BuildRequest) (*domain.PendingTransaction, error)
	Preflight(ctx context.Context, pending *domain.PendingTransaction) error
	SignWith(ctx context.Context, signer builder.Signer, pending *domain.PendingTransaction) (*domain.SignedTransaction, error)
}

type Submitter interface {
	Submit(ctx context.Context, signed *domain.SignedTransaction) (solana.Signature, error)
	Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error
}

type Recorder interface {
	Record(ctx context.Context, outcome domain.SwapOutcome) (*domain.TransactionRecord, error)
	UpdateStatus(ctx context.Context, signature string, status domain.TxStatus, reason string) error
}

// Confirmer shows the final terms and reports whether the user accepted.
// Nothing is signed without an explicit yes.
type Confirmer interface {
	ConfirmTerms(ctx context.Context, terms domain.Terms) (bool, error)
}

type BalanceRefresher interface {
	Poke(wallet string)
}

// Settings are the user's trade preferences, applied to every intent.
type Settings struct {
	SlippageBps    uint16
	PlatformFeeBps uint16
	FeeAccount     string
	WrapUnwrapSOL  bool
	Debounce       time.Duration
}

type Deps struct {
	Quoter    quote.Quoter
	Builder   TxBuilder
	Submitter Submitter
	Recorder  Recorder
	Balances  BalanceRefresher
	Clock     clock.Clock
}

// Request carries what an attempt needs beyond the current quote.
type Request struct {
	Signer    builder.Signer
	Confirmer Confirmer
	// Recipient routes the output to a third party (merchant payments).
	Recipient *solana.PublicKey
}

type Result struct {
	Success   bool
	Signature string
	Record    *domain.TransactionRecord
	Err       error
}

// Orchestrator drives one session from input through confirmation. Sessions
// share nothing; create one per user.
type Orchestrator struct {
	deps     Deps
	settings Settings
	tracker  *quote.Tracker

	mu        sync.Mutex
	state     State
	epoch     uint64
	intent    domain.SwapIntent
	quote     *domain.Quote
	err       error
	signature string

	// notifyMu keeps observer delivery in transition order.
	notifyMu  sync.Mutex
	observers []Observer
}

func New(deps Deps, settings Settings) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clock.NewDefaultClock()
	}
	o := &Orchestrator{
		deps:     deps,
		settings: settings,
		state:    Idle,
	}
	o.tracker = quote.NewTracker(deps.Quoter, settings.Debounce, deps.Clock, o.onQuote)
	return o
}

// Subscribe registers an observer. Observers must not call back into the
// orchestrator from Notify.
func (o *Orchestrator) Subscribe(obs Observer) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()
	if obs != nil {
		o.observers = append(o.observers, obs)
	}
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		State:     o.state,
		Intent:    o.intent,
		Quote:     o.quote,
		Err:       o.err,
		Signature: o.signature,
	}
}

func (o *Orchestrator) Settings() Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.settings
}

func (o *Orchestrator) Close() {
	o.tracker.Close()
}

func (o *Orchestrator) applySettings(in domain.SwapIntent) domain.SwapIntent {
	if in.Mode == "" {
		in.Mode = domain.SwapModeExactIn
	}
	in.SlippageBps = o.settings.SlippageBps
	in.PlatformFeeBps = o.settings.PlatformFeeBps
	in.FeeAccount = o.settings.FeeAccount
	return in
}

// SetIntent records new user input and starts a debounced quote for it. Any
// earlier quote or attempt stops affecting the session state.
func (o *Orchestrator) SetIntent(ctx context.Context, in domain.SwapIntent) {
	o.mu.Lock()
	o.beginQuotingLocked(o.applySettings(in))
	o.tracker.Update(ctx, o.intent)
	o.commitLocked(QuotingInFlight)
}

// UpdateSettings swaps the trade preferences and re-quotes the current input.
func (o *Orchestrator) UpdateSettings(ctx context.Context, s Settings) {
	o.mu.Lock()
	o.settings = s
	if o.intent.Amount == 0 {
		o.mu.Unlock()
		return
	}
	o.beginQuotingLocked(o.applySettings(o.intent))
	o.tracker.Update(ctx, o.intent)
	o.commitLocked(QuotingInFlight)
}

// Quote fetches a quote for in without debouncing and waits for it.
func (o *Orchestrator) Quote(ctx context.Context, in domain.SwapIntent) (*domain.Quote, error) {
	o.mu.Lock()
	o.beginQuotingLocked(o.applySettings(in))
	o.tracker.Invalidate()
	epoch, intent := o.epoch, o.intent
	o.commitLocked(QuotingInFlight)

	q, err := o.deps.Quoter.GetQuote(ctx, intent)

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return q, err
	}
	o.applyQuoteLocked(q, err)
	return q, err
}

// Requote repeats the last intent, for example after the user declined in
// the wallet or the quote expired.
func (o *Orchestrator) Requote(ctx context.Context) (*domain.Quote, error) {
	intent := o.Snapshot().Intent
	if intent.Amount == 0 {
		return nil, domain.NewError(domain.KindInvalidAmount, "nothing to quote", nil)
	}
	return o.Quote(ctx, intent)
}

func (o *Orchestrator) beginQuotingLocked(in domain.SwapIntent) {
	o.epoch++
	o.intent = in
	o.quote = nil
	o.err = nil
	o.signature = ""
}

func (o *Orchestrator) onQuote(r quote.Result) {
	o.mu.Lock()
	if o.state != QuotingInFlight || r.Intent != o.intent {
		o.mu.Unlock()
		return
	}
	o.applyQuoteLocked(r.Quote, r.Err)
}

// applyQuoteLocked moves out of QuotingInFlight and releases o.mu.
func (o *Orchestrator) applyQuoteLocked(q *domain.Quote, err error) {
	if err != nil {
		o.err = err
		o.quote = nil
		o.commitLocked(Idle)
		return
	}
	o.quote = q
	o.commitLocked(QuoteReady)
}

// commitLocked moves to next, releases o.mu and notifies observers in order.
func (o *Orchestrator) commitLocked(next State) {
	prev := o.state
	if !canTransition(prev, next) {
		log.Error().Err(rejected(prev, next)).Msg("[swap] invalid transition")
		o.mu.Unlock()
		return
	}
	o.state = next
	n := Notification{Previous: prev, Snapshot: o.snapshotLocked()}

	o.notifyMu.Lock()
	o.mu.Unlock()
	defer o.notifyMu.Unlock()
	for _, obs := range o.observers {
		obs.Notify(n)
	}
}

// advance transitions on behalf of the attempt started at epoch. It reports
// false once newer input has taken over the session.
func (o *Orchestrator) advance(epoch uint64, next State, mutate func()) bool {
	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return false
	}
	if mutate != nil {
		mutate()
	}
	o.commitLocked(next)
	return true
}

// Execute runs the current quote through the confirmation gate, signing,
// submission and confirmation. Only one attempt runs per session.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	if req.Signer == nil || req.Confirmer == nil {
		return nil, errors.New("signer and confirmer are required")
	}

	o.mu.Lock()
	if o.state != QuoteReady || o.quote == nil {
		err := rejected(o.state, AwaitingConfirmationFromUser)
		o.mu.Unlock()
		return nil, err
	}
	epoch, q, intent := o.epoch, o.quote, o.intent
	settings := o.settings
	o.commitLocked(AwaitingConfirmationFromUser)

	payer := req.Signer.PublicKey()
	kind, recipient := domain.TxKindSwap, ""
	if req.Recipient != nil {
		kind, recipient = domain.TxKindPayment, req.Recipient.String()
	}

	accepted, err := req.Confirmer.ConfirmTerms(ctx, q.Terms(recipient))
	if err != nil || !accepted {
		return o.decline(epoch, kind, domain.NewError(domain.KindUserRejected, "swap cancelled", err))
	}
	if !o.advance(epoch, Signing, nil) {
		return o.superseded()
	}

	pending, err := o.deps.Builder.Build(ctx, builder.BuildRequest{
		Quote:               q,
		Payer:               payer,
		WrapUnwrapSOL:       settings.WrapUnwrapSOL,
		DestinationOverride: req.Recipient,
		FeeAccount:          intent.FeeAccount,
	})
	if err != nil {
		return o.fail(epoch, kind, intent, err)
	}
	if err := o.deps.Builder.Preflight(ctx, pending); err != nil {
		return o.fail(epoch, kind, intent, err)
	}

	signed, err := o.deps.Builder.SignWith(ctx, req.Signer, pending)
	if err != nil {
		if errors.Is(err, domain.ErrUserRejected) {
			return o.decline(epoch, kind, err)
		}
		return o.fail(epoch, kind, intent, err)
	}
	if err := o.deps.Builder.CheckFresh(q); err != nil {
		return o.fail(epoch, kind, intent, err)
	}
	if !o.advance(epoch, Submitting, nil) {
		return o.superseded()
	}

	sig, err := o.deps.Submitter.Submit(ctx, signed)
	if err != nil {
		return o.fail(epoch, kind, intent, err)
	}

	// Broadcast. Everything below runs to completion even if the session
	// moves on.
	outcome := domain.SwapOutcome{
		Kind:          kind,
		WalletAddress: payer.String(),
		Signature:     sig.String(),
		Status:        domain.TxStatusPending,
		Quote:         q,
	}
	if req.Recipient != nil {
		outcome.Recipient = recipient
		outcome.PaymentMint = q.OutputMint
		outcome.PaymentAmount = q.OutAmount
	}
	record := o.record(ctx, outcome)

	o.advance(epoch, Confirming, func() { o.signature = sig.String() })

	err = o.deps.Submitter.Confirm(ctx, sig, pending.LastValidBlockHeight)
	switch {
	case err == nil:
		o.updateStatus(ctx, sig.String(), domain.TxStatusConfirmed, "")
		if record != nil {
			record.Status = domain.TxStatusConfirmed
		}
		metrics.SwapOutcomes.WithLabelValues(string(outcome.Kind), "succeeded").Inc()
		log.Info().
			Str("signature", sig.String()).
			Str("wallet", outcome.WalletAddress).
			Str("kind", string(outcome.Kind)).
			Msg("[swap] confirmed")

		if o.deps.Balances != nil {
			o.deps.Balances.Poke(outcome.WalletAddress)
		}
		if o.advance(epoch, Succeeded, nil) {
			o.advance(epoch, Idle, func() { o.quote = nil })
		}
		return &Result{Success: true, Signature: sig.String(), Record: record}, nil

	case errors.Is(err, domain.ErrTransactionRejectedOnChain):
		reason := domain.UserMessage(err)
		o.updateStatus(ctx, sig.String(), domain.TxStatusFailed, reason)
		if record != nil {
			record.Status = domain.TxStatusFailed
			record.FailureReason = reason
		}
	}
	// Expired or unknown outcomes stay pending for reconciliation.

	res, _ := o.fail(epoch, kind, intent, err)
	res.Signature = sig.String()
	res.Record = record
	return res, err
}

// decline returns to Idle with the input preserved.
func (o *Orchestrator) decline(epoch uint64, kind domain.TxKind, err error) (*Result, error) {
	metrics.SwapOutcomes.WithLabelValues(string(kind), "declined").Inc()
	o.advance(epoch, Idle, func() {
		o.err = err
		o.quote = nil
	})
	return &Result{Err: err}, err
}

// fail surfaces err through Failed and then returns to Idle. The attempt is
// never retried automatically.
func (o *Orchestrator) fail(epoch uint64, txKind domain.TxKind, intent domain.SwapIntent, err error) (*Result, error) {
	kind := domain.KindOf(err)
	metrics.SwapOutcomes.WithLabelValues(string(txKind), string(kind)).Inc()
	log.Warn().
		Err(err).
		Str("kind", string(kind)).
		Str("txKind", string(txKind)).
		Str("pair", intent.InputMint+"/"+intent.OutputMint).
		Str("amount", strconv.FormatUint(intent.Amount, 10)).
		Msg("[swap] attempt failed")

	if o.advance(epoch, Failed, func() { o.err = err }) {
		o.advance(epoch, Idle, func() { o.quote = nil })
	}
	return &Result{Err: err}, err
}

func (o *Orchestrator) superseded() (*Result, error) {
	err := domain.NewError(domain.KindQuoteExpired, "inputs changed before submission", nil)
	return &Result{Err: err}, err
}

func (o *Orchestrator) record(ctx context.Context, outcome domain.SwapOutcome) *domain.TransactionRecord {
	if o.deps.Recorder == nil {
		return nil
	}
	rec, err := o.deps.Recorder.Record(context.WithoutCancel(ctx), outcome)
	if err != nil {
		metrics.RecordFailures.Inc()
		log.Warn().Err(err).Str("signature", outcome.Signature).Msg("[swap] could not record transaction")
		return nil
	}
	return rec
}

func (o *Orchestrator) updateStatus(ctx context.Context, sig string, status domain.TxStatus, reason string) {
	if o.deps.Recorder == nil {
		return
	}
	if err := o.deps.Recorder.UpdateStatus(context.WithoutCancel(ctx), sig, status, reason); err != nil {
		metrics.RecordFailures.Inc()
		log.Warn().Err(err).Str("signature", sig).Str("status", string(status)).Msg("[swap] could not update transaction status")
	}
}
