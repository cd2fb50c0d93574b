package auth

import (
	"context"
	"testing"

	"github.com/herbank/hb-server/internal/domain"
	"github.com/herbank/hb-server/internal/store"
)

// fakeRepo implements just enough of store.Repository for verifier tests.
type fakeRepo struct {
	store.Repository
	cards map[string]*domain.Card
}

func (f *fakeRepo) FindCardByUID(_ context.Context, uid string) (*domain.Card, error) {
	card, ok := f.cards[uid]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	copied := *card
	return &copied, nil
}

func (f *fakeRepo) RecordFailedPINAttempt(_ context.Context, cardID int64) error {
	for _, c := range f.cards {
		if c.ID == cardID {
			c.Attempts++
			return nil
		}
	}
	return store.ErrCardNotFound
}

func (f *fakeRepo) ResetPINAttempts(_ context.Context, cardID int64) error {
	for _, c := range f.cards {
		if c.ID == cardID {
			c.Attempts = 0
			return nil
		}
	}
	return store.ErrCardNotFound
}

func newTestVerifier(t *testing.T, attempts uint8) (*Verifier, *fakeRepo) {
	t.Helper()
	hasher := NewPINHasher()
	hash, err := hasher.Hash("1234")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	repo := &fakeRepo{cards: map[string]*domain.Card{
		"04a1b2c3d4e5": {ID: 7, UserID: 42, UID: "04a1b2c3d4e5", PINHash: hash, Attempts: attempts},
	}}
	return NewVerifier(repo, hasher, 3), repo
}

func TestAttemptLoginGrantedResetsAttempts(t *testing.T) {
	v, repo := newTestVerifier(t, 2)

	res, err := v.AttemptLogin(context.Background(), "04a1b2c3d4e5", "1234")
	if err != nil {
		t.Fatalf("AttemptLogin returned error: %v", err)
	}
	if res.Outcome != Granted {
		t.Fatalf("expected granted, got %v", res.Outcome)
	}
	if res.UserID != 42 || res.CardID != 7 {
		t.Fatalf("unexpected identity: %+v", res)
	}
	if got := repo.cards["04a1b2c3d4e5"].Attempts; got != 0 {
		t.Fatalf("expected attempts reset to 0, got %d", got)
	}
}

func TestAttemptLoginLockoutMonotonicity(t *testing.T) {
	v, repo := newTestVerifier(t, 0)
	ctx := context.Background()

	// Three consecutive wrong PINs: each denial increments by exactly one.
	for want := uint8(1); want <= 3; want++ {
		res, err := v.AttemptLogin(ctx, "04a1b2c3d4e5", "9999")
		if err != nil {
			t.Fatalf("AttemptLogin returned error: %v", err)
		}
		if res.Outcome != Denied {
			t.Fatalf("attempt %d: expected denied, got %v", want, res.Outcome)
		}
		if got := repo.cards["04a1b2c3d4e5"].Attempts; got != want {
			t.Fatalf("attempt %d: expected attempts=%d, got %d", want, want, got)
		}
	}

	// Fourth attempt is blocked even with the correct PIN, and the counter
	// stays where it is.
	res, err := v.AttemptLogin(ctx, "04a1b2c3d4e5", "1234")
	if err != nil {
		t.Fatalf("AttemptLogin returned error: %v", err)
	}
	if res.Outcome != Blocked {
		t.Fatalf("expected blocked, got %v", res.Outcome)
	}
	if got := repo.cards["04a1b2c3d4e5"].Attempts; got != 3 {
		t.Fatalf("expected attempts unchanged at 3, got %d", got)
	}
}

func TestAttemptLoginUnknownCard(t *testing.T) {
	v, _ := newTestVerifier(t, 0)

	res, err := v.AttemptLogin(context.Background(), "ffffffffffff", "1234")
	if err != nil {
		t.Fatalf("AttemptLogin returned error: %v", err)
	}
	if res.Outcome != NotFound {
		t.Fatalf("expected not_found, got %v", res.Outcome)
	}
}

func TestHasherRoundTrip(t *testing.T) {
	hasher := NewPINHasher()
	hash, err := hasher.Hash("482916")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	ok, err := hasher.Verify("482916", hash)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected correct PIN to verify")
	}

	ok, err = hasher.Verify("482917", hash)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatal("expected wrong PIN to fail verification")
	}
}

func TestHasherRejectsMangledHash(t *testing.T) {
	hasher := NewPINHasher()
	if _, err := hasher.Verify("1234", "not-an-encoded-hash"); err == nil {
		t.Fatal("expected error for malformed stored hash")
	}
}
