// Package ledger is the authoritative balance store and append-only
// transaction log. Every debit/credit carries a reference key; replays
// of the same reference are no-ops, which lets settlement retry safely
// under at-least-once delivery.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

// Transaction types recorded in the log.
const (
	TxWager    = "wager"
	TxPayout   = "payout"
	TxRefund   = "refund"
	TxDeposit  = "deposit"
	TxWithdraw = "withdraw"
)

// Transaction is one row of the append-only log. Amount is negative
// for money leaving the player's balance.
type Transaction struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"player_id"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Ref       string    `json:"ref"`
	CreatedAt time.Time `json:"created_at"`
}

// Service is the boundary the game engines settle against. Both calls
// report the committed balance; engines must not mark a wager or seat
// settled before the call returns.
type Service interface {
	Debit(ctx context.Context, playerID string, amount int64, txType, ref string) (int64, error)
	Credit(ctx context.Context, playerID string, amount int64, txType, ref string) (int64, error)
	Balance(ctx context.Context, playerID string) (int64, error)
	History(ctx context.Context, playerID string, limit int) ([]Transaction, error)
}

// Ledger implements Service on postgres.
type Ledger struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Debit atomically removes amount from the player's balance and logs
// the transaction, failing with ErrInsufficientBalance when the balance
// cannot cover it. A replayed ref leaves the balance untouched.
func (l *Ledger) Debit(ctx context.Context, playerID string, amount int64, txType, ref string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin debit: %w", err)
	}
	defer tx.Rollback(ctx)

	applied, err := l.appendTx(ctx, tx, playerID, -amount, txType, ref)
	if err != nil {
		return 0, err
	}
	if !applied {
		balance, err := balanceIn(ctx, tx, playerID)
		if err != nil {
			return 0, err
		}
		return balance, tx.Commit(ctx)
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`UPDATE balances SET balance = balance - $2, updated_at = now()
		 WHERE player_id = $1 AND balance >= $2
		 RETURNING balance`,
		playerID, amount,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrInsufficientBalance
	}
	if err != nil {
		return 0, fmt.Errorf("debit balance: %w", err)
	}

	return balance, tx.Commit(ctx)
}

// Credit atomically adds amount to the player's balance, creating the
// balance row if needed. A replayed ref is a no-op returning the
// current balance, so a retried settlement never double-pays.
func (l *Ledger) Credit(ctx context.Context, playerID string, amount int64, txType, ref string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin credit: %w", err)
	}
	defer tx.Rollback(ctx)

	applied, err := l.appendTx(ctx, tx, playerID, amount, txType, ref)
	if err != nil {
		return 0, err
	}
	if !applied {
		balance, err := balanceIn(ctx, tx, playerID)
		if err != nil {
			return 0, err
		}
		return balance, tx.Commit(ctx)
	}

	var balance int64
	err = tx.QueryRow(ctx,
		`INSERT INTO balances (player_id, balance) VALUES ($1, $2)
		 ON CONFLICT (player_id)
		 DO UPDATE SET balance = balances.balance + EXCLUDED.balance, updated_at = now()
		 RETURNING balance`,
		playerID, amount,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("credit balance: %w", err)
	}

	return balance, tx.Commit(ctx)
}

// appendTx writes the log row. It returns false when the ref was
// already recorded, meaning the money movement must be skipped.
func (l *Ledger) appendTx(ctx context.Context, tx pgx.Tx, playerID string, amount int64, txType, ref string) (bool, error) {
	tag, err := tx.Exec(ctx,
		`INSERT INTO transactions (id, player_id, type, amount, ref)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (ref) DO NOTHING`,
		uuid.NewString(), playerID, txType, amount, ref,
	)
	if err != nil {
		return false, fmt.Errorf("append transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func balanceIn(ctx context.Context, tx pgx.Tx, playerID string) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx,
		`SELECT balance FROM balances WHERE player_id = $1`, playerID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// Balance returns the player's current balance, 0 for unknown players.
func (l *Ledger) Balance(ctx context.Context, playerID string) (int64, error) {
	var balance int64
	err := l.pool.QueryRow(ctx,
		`SELECT balance FROM balances WHERE player_id = $1`, playerID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// History lists the player's most recent transactions, newest first.
func (l *Ledger) History(ctx context.Context, playerID string, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, player_id, type, amount, ref, created_at
		 FROM transactions WHERE player_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		playerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.PlayerID, &t.Type, &t.Amount, &t.Ref, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
