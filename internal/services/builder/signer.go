package builder

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/swap-engine/internal/domain"
)

// Signer is the wallet boundary. Returning (nil, nil) means the user declined.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}

// SignWith hands the pending transaction to signer and verifies what comes
// back. The quote must still be fresh on both sides of the wallet prompt.
func (b *Builder) SignWith(ctx context.Context, signer Signer, pending *domain.PendingTransaction) (*domain.SignedTransaction, error) {
	if pending == nil || pending.Tx == nil {
		return nil, domain.NewError(domain.KindInternal, "nothing to sign", nil)
	}
	if err := b.CheckFresh(pending.Quote); err != nil {
		return nil, err
	}
	if !signer.PublicKey().Equals(pending.Payer) {
		return nil, domain.NewError(domain.KindInvalidAddress, "connected wallet is not the payer of this transaction", nil)
	}

	signed, err := signer.Sign(ctx, pending.Tx)
	if err != nil {
		if errors.Is(err, domain.ErrUserRejected) || errors.Is(err, context.Canceled) {
			return nil, domain.NewError(domain.KindUserRejected, "", err)
		}
		return nil, domain.NewError(domain.KindInternal, "wallet failed to sign", err)
	}
	if signed == nil {
		return nil, domain.NewError(domain.KindUserRejected, "", nil)
	}
	if len(signed.Signatures) == 0 || signed.Signatures[0].IsZero() {
		return nil, domain.NewError(domain.KindInternal, "wallet returned an unsigned transaction", nil)
	}
	if err := signed.VerifySignatures(); err != nil {
		return nil, domain.NewError(domain.KindInternal, "wallet returned an invalid signature", err)
	}
	if err := b.CheckFresh(pending.Quote); err != nil {
		return nil, err
	}

	log.Debug().Str("signature", signed.Signatures[0].String()).Msg("[builder] transaction signed")
	return &domain.SignedTransaction{
		Pending:   pending,
		Tx:        signed,
		Signature: signed.Signatures[0],
	}, nil
}

// KeypairSigner signs with a local private key.
type KeypairSigner struct {
	key solana.PrivateKey
}

func NewKeypairSigner(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

func (s *KeypairSigner) Sign(_ context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	// Aggregator payloads carry zeroed placeholder signatures.
	placeholders := true
	for _, sig := range tx.Signatures {
		if !sig.IsZero() {
			placeholders = false
			break
		}
	}
	if placeholders {
		tx.Signatures = nil
	}

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// DecliningSigner always declines. Useful for read-only sessions.
type DecliningSigner struct {
	Key solana.PublicKey
}

func (s DecliningSigner) PublicKey() solana.PublicKey { return s.Key }

func (s DecliningSigner) Sign(context.Context, *solana.Transaction) (*solana.Transaction, error) {
	return nil, nil
}
