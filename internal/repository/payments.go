package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hxuan190/swap-engine/internal/domain"
)

const paymentColumns = `id, merchant, amount, mint, reference, label, message, memo,
	status, signature, created_at, updated_at`

func scanPayment(row rowScanner) (*domain.PaymentRequest, error) {
	var (
		p                               domain.PaymentRequest
		id, status                      string
		mint, label, message, memo, sig sql.NullString
		createdAt, updatedAt            int64
	)
	err := row.Scan(&id, &p.Merchant, &p.Amount, &mint, &p.Reference, &label, &message, &memo,
		&status, &sig, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse payment request id %q: %w", id, err)
	}
	p.Mint = mint.String
	p.Label = label.String
	p.Message = message.String
	p.Memo = memo.String
	p.Status = domain.PaymentStatus(status)
	p.Signature = sig.String
	p.CreatedAt = fromMicros(createdAt)
	p.UpdatedAt = fromMicros(updatedAt)
	return &p, nil
}

func (db *DB) InsertPaymentRequest(ctx context.Context, p *domain.PaymentRequest) error {
	_, err := db.ExecContext(ctx, `INSERT INTO payment_requests (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID.String(), p.Merchant, p.Amount, nullString(p.Mint), p.Reference,
		nullString(p.Label), nullString(p.Message), nullString(p.Memo),
		string(p.Status), nullString(p.Signature), toMicros(p.CreatedAt), toMicros(p.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (db *DB) GetPaymentRequest(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	row := db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_requests WHERE id = $1`, id.String())
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (db *DB) GetPaymentRequestByReference(ctx context.Context, reference string) (*domain.PaymentRequest, error) {
	row := db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payment_requests WHERE reference = $1`, reference)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// MarkPaymentRequestPaid settles an open request. Settling it again with the
// same signature is a no-op.
func (db *DB) MarkPaymentRequestPaid(ctx context.Context, reference, sig string, now time.Time) error {
	res, err := db.ExecContext(ctx, `UPDATE payment_requests
		SET status = $1, signature = $2, updated_at = $3
		WHERE reference = $4 AND (status = $5 OR signature = $2)`,
		string(domain.PaymentStatusPaid), sig, toMicros(now), reference, string(domain.PaymentStatusOpen))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := db.GetPaymentRequestByReference(ctx, reference); err != nil {
			return err
		}
		return fmt.Errorf("%w: payment %s settled by another transaction", ErrTerminal, reference)
	}
	return nil
}

// ListPaymentRequests returns a merchant's requests, newest first.
func (db *DB) ListPaymentRequests(ctx context.Context, merchant string, limit, offset int) ([]*domain.PaymentRequest, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payment_requests
		WHERE merchant = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, merchant, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PaymentRequest
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
