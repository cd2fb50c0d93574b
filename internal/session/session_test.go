package session

import (
	"testing"
	"time"
)

func TestLifecycle(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time { return now })

	if s.State() != StateNew || s.Authenticated() {
		t.Fatalf("fresh session should be new and unauthenticated, got %v", s.State())
	}

	if !s.Authenticate(42, 7, "NL91ABNA0417164300", 5*time.Minute) {
		t.Fatal("expected authentication to succeed from New")
	}
	if !s.Authenticated() {
		t.Fatal("expected session to be authenticated")
	}
	if s.UserID() != 42 || s.CardID() != 7 || s.IBAN() != "NL91ABNA0417164300" {
		t.Fatalf("identity not bound: user=%d card=%d iban=%q", s.UserID(), s.CardID(), s.IBAN())
	}
	if want := now.Add(5 * time.Minute); !s.Expiry().Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, s.Expiry())
	}

	// A second login on the same connection is refused.
	if s.Authenticate(1, 1, "NL69INGB0123456789", time.Minute) {
		t.Fatal("expected re-login to be refused while authenticated")
	}

	s.Terminate()
	if s.State() != StateTerminated {
		t.Fatalf("expected terminated, got %v", s.State())
	}
	if s.UserID() != 0 || s.IBAN() != "" {
		t.Fatal("identity fields must be cleared on termination")
	}
	if s.Authenticate(1, 1, "NL69INGB0123456789", time.Minute) {
		t.Fatal("expected re-login to be refused after termination")
	}
}

func TestExpiryIsLazy(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time { return now })
	s.Authenticate(42, 7, "NL91ABNA0417164300", 300*time.Second)

	if s.Expired() {
		t.Fatal("session should not be expired immediately after login")
	}

	now = now.Add(300 * time.Second)
	if s.Expired() {
		t.Fatal("session at exactly its expiry instant is still live")
	}

	now = now.Add(time.Second)
	if !s.Expired() {
		t.Fatal("session one second past its expiry must report expired")
	}
	// Expired never flips state by itself.
	if s.State() != StateAuthenticated {
		t.Fatalf("expected state unchanged, got %v", s.State())
	}
}

func TestUnauthenticatedSessionNeverExpires(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewWithClock(func() time.Time { return now })

	now = now.Add(24 * time.Hour)
	if s.Expired() {
		t.Fatal("a session that never authenticated has no expiry")
	}
}
