/**
 * @description
 * This file defines the core domain models for hb-server. These structs
 * represent the persisted entities (users, cards, accounts) that the wire
 * protocol handlers and the data access layer operate on.
 *
 * @notes
 * - Balances are stored as `int64` in the smallest currency unit (cents),
 *   which avoids floating-point inaccuracies with financial data.
 * - Card UIDs are the 6-byte identifiers read from the physical card,
 *   carried here as a lowercase hex string.
 */

package domain

// Account types, persisted in the accounts.type column.
const (
	AccountChecking uint8 = iota
	AccountSavings
)

// User is an account holder. Users own one or more cards and accounts.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Card is a login credential bound to a user. The PIN hash is an opaque
// argon2id encoded string; Attempts counts consecutive failed logins and is
// only ever reset out-of-band once it reaches the configured maximum.
type Card struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"user_id"`
	UID      string `json:"uid"`
	PINHash  string `json:"-"`
	Attempts uint8  `json:"attempts"`
}

// Account is a single balance identified by IBAN. Balance is never negative.
type Account struct {
	IBAN    string `json:"iban"`
	UserID  int64  `json:"user_id"`
	Type    uint8  `json:"type"`
	Balance int64  `json:"balance"` // in cents
}
