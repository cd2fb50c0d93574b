/**
 * @description
 * The per-connection session state machine. A Session is owned exclusively
 * by its connection's goroutine — its fields need no locking. It starts
 * empty (New), is populated by exactly one successful login
 * (Authenticated), and ends (Terminated) on logout, expiry, the error
 * threshold, or transport failure. Re-login after logout on the same
 * connection is not supported: logout terminates.
 *
 * Expiry is lazy: there is no background timer, the check runs at the start
 * of handling each incoming request. An idle connection past its expiry is
 * only terminated when it next sends something.
 */
package session

import "time"

// State of a session. New and Authenticated are live; only Terminated ends
// the connection loop.
type State int

const (
	StateNew State = iota
	StateAuthenticated
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateAuthenticated:
		return "authenticated"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Session is the authenticated-identity state attached to one live
// connection. UserID, CardID and IBAN are only meaningful while
// Authenticated() is true.
type Session struct {
	state  State
	userID int64
	cardID int64
	iban   string
	expiry time.Time

	now func() time.Time
}

// New creates an empty session in the New state.
func New() *Session {
	return NewWithClock(time.Now)
}

// NewWithClock creates a session with an injected clock, for tests.
func NewWithClock(now func() time.Time) *Session {
	return &Session{state: StateNew, now: now}
}

func (s *Session) State() State { return s.state }

// Authenticated reports whether the session is live and logged in.
func (s *Session) Authenticated() bool { return s.state == StateAuthenticated }

func (s *Session) UserID() int64 { return s.userID }
func (s *Session) CardID() int64 { return s.cardID }
func (s *Session) IBAN() string  { return s.iban }

// Expiry returns the time after which the session stops accepting requests.
func (s *Session) Expiry() time.Time { return s.expiry }

// Authenticate moves New -> Authenticated, binding the identity and the
// account the login selected. It is a no-op returning false unless the
// session is in the New state: a second login on the same connection is a
// protocol violation.
func (s *Session) Authenticate(userID, cardID int64, iban string, timeout time.Duration) bool {
	if s.state != StateNew {
		return false
	}
	s.state = StateAuthenticated
	s.userID = userID
	s.cardID = cardID
	s.iban = iban
	s.expiry = s.now().Add(timeout)
	return true
}

// Expired reports whether an authenticated session is past its expiry. It
// never flips state itself; callers terminate explicitly so the TERMINATED
// reply can be written first.
func (s *Session) Expired() bool {
	return s.state == StateAuthenticated && s.now().After(s.expiry)
}

// Terminate clears the identity and ends the session. Safe to call in any
// state.
func (s *Session) Terminate() {
	s.state = StateTerminated
	s.userID = 0
	s.cardID = 0
	s.iban = ""
	s.expiry = time.Time{}
}
