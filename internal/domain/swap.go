package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// PendingTransaction is an unsigned, aggregator-assembled transaction.
type PendingTransaction struct {
	Tx                   *solana.Transaction
	Payload              []byte
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	Payer                solana.PublicKey
	Recipient            solana.PublicKey
	Quote                *Quote
	BuiltAt              time.Time
}

// SignedTransaction lives only between signing and submission.
type SignedTransaction struct {
	Pending   *PendingTransaction
	Tx        *solana.Transaction
	Signature solana.Signature
}

type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

func (s TxStatus) Valid() bool {
	switch s {
	case TxStatusPending, TxStatusConfirmed, TxStatusFailed:
		return true
	}
	return false
}

func (s TxStatus) IsTerminal() bool {
	return s == TxStatusConfirmed || s == TxStatusFailed
}

type TxKind string

const (
	TxKindSwap     TxKind = "swap"
	TxKindPayment  TxKind = "payment"
	TxKindTransfer TxKind = "transfer"
	TxKindMint     TxKind = "mint"
	TxKindBurn     TxKind = "burn"
	TxKindUnknown  TxKind = "unknown"
)

func ParseTxKind(s string) TxKind {
	switch k := TxKind(s); k {
	case TxKindSwap, TxKindPayment, TxKindTransfer, TxKindMint, TxKindBurn:
		return k
	}
	return TxKindUnknown
}

// TransactionRecord is the append-only system of record for history views.
// Amounts are base-unit decimal strings; empty means NULL.
type TransactionRecord struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	Signature     string    `json:"signature,omitempty"`
	Status        TxStatus  `json:"status"`
	Kind          TxKind    `json:"type"`

	InputMint    string `json:"inputMint,omitempty"`
	OutputMint   string `json:"outputMint,omitempty"`
	InputAmount  string `json:"inputAmount,omitempty"`
	OutputAmount string `json:"outputAmount,omitempty"`

	Recipient     string `json:"recipient,omitempty"`
	PaymentAmount string `json:"amount,omitempty"`
	PaymentMint   string `json:"mint,omitempty"`

	FailureReason string `json:"failureReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SwapOutcome is what the orchestrator hands to the recorder.
type SwapOutcome struct {
	Kind          TxKind
	WalletAddress string
	Signature     string
	Status        TxStatus
	Quote         *Quote
	Recipient     string
	PaymentMint   string
	PaymentAmount uint64
	FailureReason string
}

type PaymentStatus string

const (
	PaymentStatusOpen PaymentStatus = "open"
	PaymentStatusPaid PaymentStatus = "paid"
)

// PaymentRequest is a merchant's request for an exact amount of a token.
type PaymentRequest struct {
	ID        uuid.UUID     `json:"id"`
	Merchant  string        `json:"merchant"`
	Amount    string        `json:"amount"`
	Mint      string        `json:"mint,omitempty"`
	Reference string        `json:"reference"`
	Label     string        `json:"label,omitempty"`
	Message   string        `json:"message,omitempty"`
	Memo      string        `json:"memo,omitempty"`
	Status    PaymentStatus `json:"status"`
	Signature string        `json:"signature,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type User struct {
	WalletAddress string    `json:"walletAddress"`
	CreatedAt     time.Time `json:"createdAt"`
	LastSeenAt    time.Time `json:"lastSeenAt"`
}
