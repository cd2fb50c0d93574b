/**
 * @description
 * The credential verifier: PIN verification gated by the per-card lockout
 * policy. One login attempt costs exactly one card read and at most one
 * write to the attempts counter, so the lockout stays consistent when the
 * same card is tried from several connections at once — the store's
 * single-statement UPDATE atomicity is the only synchronization relied on.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/store: Card row access and the attempts counter.
 */
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/herbank/hb-server/internal/store"
)

// Outcome classifies a login attempt. NotFound is reported to clients
// identically to Denied so probing cannot reveal which card UIDs exist.
type Outcome int

const (
	Granted Outcome = iota
	Denied
	Blocked
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	case Blocked:
		return "blocked"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// Result carries the outcome of a login attempt. UserID and CardID are only
// meaningful when Outcome is Granted.
type Result struct {
	Outcome Outcome
	UserID  int64
	CardID  int64
}

// dummyHash is verified against when the card UID is unknown, so a lookup
// miss costs the same as a wrong PIN.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHRzb21lc2FsdA$ZmFrZWhhc2hmYWtlaGFzaGZha2VoYXNoZmFrZWhhc2g"

// Verifier checks card PINs against the store under the lockout policy.
type Verifier struct {
	repo      store.Repository
	hasher    *PINHasher
	pinTryMax uint8
}

// NewVerifier creates a verifier. pinTryMax is the number of consecutive
// failures after which a card is blocked until an out-of-band reset.
func NewVerifier(repo store.Repository, hasher *PINHasher, pinTryMax uint8) *Verifier {
	return &Verifier{repo: repo, hasher: hasher, pinTryMax: pinTryMax}
}

// AttemptLogin runs one login attempt for the given card UID and PIN.
//
// A card at or past the attempt limit is rejected before any hash work: the
// expensive comparison is skipped for already-locked cards and the counter
// is left untouched, so a blocked card cannot be unblocked or further
// penalized by hammering it.
func (v *Verifier) AttemptLogin(ctx context.Context, cardUID, pin string) (Result, error) {
	card, err := v.repo.FindCardByUID(ctx, cardUID)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			// Burn the same hashing cost as a real verification.
			_, _ = v.hasher.Verify(pin, dummyHash)
			return Result{Outcome: NotFound}, nil
		}
		return Result{}, fmt.Errorf("card lookup failed: %w", err)
	}

	if card.Attempts >= v.pinTryMax {
		return Result{Outcome: Blocked}, nil
	}

	ok, err := v.hasher.Verify(pin, card.PINHash)
	if err != nil {
		return Result{}, fmt.Errorf("pin verification failed: %w", err)
	}

	if !ok {
		if err := v.repo.RecordFailedPINAttempt(ctx, card.ID); err != nil {
			return Result{}, fmt.Errorf("failed to record pin attempt: %w", err)
		}
		return Result{Outcome: Denied}, nil
	}

	if err := v.repo.ResetPINAttempts(ctx, card.ID); err != nil {
		return Result{}, fmt.Errorf("failed to reset pin attempts: %w", err)
	}
	return Result{Outcome: Granted, UserID: card.UserID, CardID: card.ID}, nil
}
