/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL touching the users, cards and accounts
 * tables. Every query is parameterized; the two mutating hot paths (the PIN
 * attempts counter and the account balance) rely on single-statement UPDATE
 * atomicity and a row lock respectively, which is the only transactional
 * help the rest of the system asks of the store.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the entity models used for data transfer.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herbank/hb-server/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserByID retrieves an account holder by their id.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	var user domain.User
	query := `SELECT user_id, first_name, last_name FROM users WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(&user.ID, &user.FirstName, &user.LastName)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindCardByUID retrieves a card row by the UID read from the physical card.
func (r *PostgresRepository) FindCardByUID(ctx context.Context, uid string) (*domain.Card, error) {
	var card domain.Card
	query := `SELECT card_id, user_id, uid, pin, attempts FROM cards WHERE uid = lower(btrim($1))`
	err := r.db.QueryRow(ctx, query, uid).Scan(&card.ID, &card.UserID, &card.UID, &card.PINHash, &card.Attempts)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

// RecordFailedPINAttempt bumps the consecutive-failure counter. A single
// UPDATE keeps the counter consistent under concurrent login attempts for
// the same card from different connections.
func (r *PostgresRepository) RecordFailedPINAttempt(ctx context.Context, cardID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE cards SET attempts = attempts + 1 WHERE card_id = $1`, cardID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

// ResetPINAttempts clears the failure counter after a successful login or an
// out-of-band unblock.
func (r *PostgresRepository) ResetPINAttempts(ctx context.Context, cardID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE cards SET attempts = 0 WHERE card_id = $1`, cardID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

// UpdateCardPIN stores a freshly encoded PIN hash.
func (r *PostgresRepository) UpdateCardPIN(ctx context.Context, cardID int64, pinHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE cards SET pin = $1 WHERE card_id = $2`, pinHash, cardID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCardNotFound
	}
	return nil
}

// FindAccountByIBAN retrieves a single account row.
func (r *PostgresRepository) FindAccountByIBAN(ctx context.Context, ibanStr string) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT iban, user_id, type, balance FROM accounts WHERE iban = $1`
	err := r.db.QueryRow(ctx, query, ibanStr).Scan(&account.IBAN, &account.UserID, &account.Type, &account.Balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindAccountsByUserID lists every account owned by a user, checking
// accounts before savings.
func (r *PostgresRepository) FindAccountsByUserID(ctx context.Context, userID int64) ([]domain.Account, error) {
	query := `SELECT iban, user_id, type, balance FROM accounts WHERE user_id = $1 ORDER BY type`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.IBAN, &a.UserID, &a.Type, &a.Balance); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// GetBalance reads the current balance in cents.
func (r *PostgresRepository) GetBalance(ctx context.Context, ibanStr string) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE iban = $1`, ibanStr).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return balance, nil
}

// ApplyDelta performs an atomic balance adjustment on one account. The row
// lock prevents a concurrent delta on the same IBAN from interleaving with
// the non-negativity check.
func (r *PostgresRepository) ApplyDelta(ctx context.Context, ibanStr string, delta int64) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	// Use FOR UPDATE to lock the row, preventing race conditions.
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE iban = $1 FOR UPDATE`, ibanStr).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}

	newBalance := balance + delta
	if newBalance < 0 {
		return 0, ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE iban = $2`, delta, ibanStr)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newBalance, nil
}
