/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access operations hb-server performs. Defining an interface decouples the
 * protocol handlers and the credential verifier from the PostgreSQL
 * implementation and lets tests substitute an in-memory fake.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the persisted entity models.
 */

package store

import (
	"context"
	"errors"

	"github.com/herbank/hb-server/internal/domain"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrCardNotFound      = errors.New("card not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User and card methods
	FindUserByID(ctx context.Context, userID int64) (*domain.User, error)
	FindCardByUID(ctx context.Context, uid string) (*domain.Card, error)
	// RecordFailedPINAttempt increments the card's consecutive-failure
	// counter by exactly one, as a single UPDATE so concurrent logins for
	// the same card cannot lose increments.
	RecordFailedPINAttempt(ctx context.Context, cardID int64) error
	// ResetPINAttempts clears the counter after a successful verification
	// or an out-of-band unblock.
	ResetPINAttempts(ctx context.Context, cardID int64) error
	UpdateCardPIN(ctx context.Context, cardID int64, pinHash string) error

	// Account ledger methods
	FindAccountByIBAN(ctx context.Context, iban string) (*domain.Account, error)
	FindAccountsByUserID(ctx context.Context, userID int64) ([]domain.Account, error)
	GetBalance(ctx context.Context, iban string) (int64, error)
	// ApplyDelta atomically adjusts an account balance. It fails with
	// ErrInsufficientFunds, leaving the row unchanged, when the result
	// would be negative.
	ApplyDelta(ctx context.Context, iban string, delta int64) (int64, error)
}
