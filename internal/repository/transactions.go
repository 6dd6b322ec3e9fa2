package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hxuan190/swap-engine/internal/domain"
)

var (
	ErrDuplicate = errors.New("record already exists")
	ErrNotFound  = errors.New("record not found")
	// ErrTerminal is returned when a terminal status would be overwritten
	// with a different one.
	ErrTerminal = errors.New("record already has a terminal status")
)

// querier is satisfied by *sql.DB, *sql.Tx and *DB.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

const transactionColumns = `id, wallet_address, signature, status, type,
	input_mint, output_mint, input_amount, output_amount,
	recipient, payment_amount, payment_mint, failure_reason,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.TransactionRecord, error) {
	var (
		rec                                 domain.TransactionRecord
		id, status, kind                    string
		sig, inMint, outMint, inAmt, outAmt sql.NullString
		recipient, payAmt, payMint, reason  sql.NullString
		createdAt, updatedAt                int64
	)
	err := row.Scan(&id, &rec.WalletAddress, &sig, &status, &kind,
		&inMint, &outMint, &inAmt, &outAmt,
		&recipient, &payAmt, &payMint, &reason,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse transaction id %q: %w", id, err)
	}
	rec.Signature = sig.String
	rec.Status = domain.TxStatus(status)
	rec.Kind = domain.ParseTxKind(kind)
	rec.InputMint = inMint.String
	rec.OutputMint = outMint.String
	rec.InputAmount = inAmt.String
	rec.OutputAmount = outAmt.String
	rec.Recipient = recipient.String
	rec.PaymentAmount = payAmt.String
	rec.PaymentMint = payMint.String
	rec.FailureReason = reason.String
	rec.CreatedAt = fromMicros(createdAt)
	rec.UpdatedAt = fromMicros(updatedAt)
	return &rec, nil
}

func insertTransaction(ctx context.Context, q querier, rec *domain.TransactionRecord) error {
	_, err := q.ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.ID.String(), rec.WalletAddress, nullString(rec.Signature), string(rec.Status), string(rec.Kind),
		nullString(rec.InputMint), nullString(rec.OutputMint), nullString(rec.InputAmount), nullString(rec.OutputAmount),
		nullString(rec.Recipient), nullString(rec.PaymentAmount), nullString(rec.PaymentMint), nullString(rec.FailureReason),
		toMicros(rec.CreatedAt), toMicros(rec.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// InsertTransaction stores a new record. A record with the same signature
// yields ErrDuplicate.
func (db *DB) InsertTransaction(ctx context.Context, rec *domain.TransactionRecord) error {
	return insertTransaction(ctx, db, rec)
}

// RecordTransaction upserts the wallet's user row and inserts rec atomically.
func (db *DB) RecordTransaction(ctx context.Context, rec *domain.TransactionRecord) error {
	return db.ExecTx(ctx, func(tx *sql.Tx) error {
		if err := upsertUser(ctx, tx, rec.WalletAddress, rec.CreatedAt); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, rec)
	})
}

func (db *DB) GetTransactionBySignature(ctx context.Context, sig string) (*domain.TransactionRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE signature = $1`, sig)
	rec, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// UpdateTransactionStatus moves a pending record to status. The update only
// applies while the row is still pending, so concurrent writers cannot
// overwrite each other's terminal status. Setting the status a record
// already has is a no-op; changing a terminal status returns ErrTerminal.
func (db *DB) UpdateTransactionStatus(ctx context.Context, sig string, status domain.TxStatus, reason string, now time.Time) (bool, error) {
	var updated bool
	err := db.ExecTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE transactions
			SET status = $1, failure_reason = $2, updated_at = $3
			WHERE signature = $4 AND status = $5 AND status <> $1`,
			string(status), nullString(reason), toMicros(now), sig, string(domain.TxStatusPending))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			updated = true
			return nil
		}

		var current string
		err = tx.QueryRowContext(ctx, `SELECT status FROM transactions WHERE signature = $1`, sig).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if cur := domain.TxStatus(current); cur != status {
			return fmt.Errorf("%w: %s is %s", ErrTerminal, sig, cur)
		}
		return nil
	})
	return updated, err
}

// ListTransactions returns a wallet's records, newest first.
func (db *DB) ListTransactions(ctx context.Context, wallet string, limit, offset int) ([]*domain.TransactionRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE wallet_address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, wallet, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// ListPendingTransactions returns pending records created before cutoff,
// oldest first.
func (db *DB) ListPendingTransactions(ctx context.Context, cutoff time.Time, limit int) ([]*domain.TransactionRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE status = $1 AND created_at < $2 AND signature IS NOT NULL
		ORDER BY created_at ASC
		LIMIT $3`, string(domain.TxStatusPending), toMicros(cutoff), limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]*domain.TransactionRecord, error) {
	defer rows.Close()
	var out []*domain.TransactionRecord
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
