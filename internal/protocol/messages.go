/**
 * @description
 * Payload codecs for every HBP message. Each message type has an Encode
 * method producing its binary payload and a Decode method that validates
 * every field offset against the payload it was handed, so a malformed
 * payload surfaces as ErrInvalidPayload instead of an out-of-bounds read.
 *
 * Encoding rules: strings are u16-length-prefixed UTF-8, integers are
 * fixed-width big-endian, single-byte enums are raw.
 */
package protocol

import (
	"encoding/binary"
	"errors"
)

// ErrInvalidPayload is returned when a payload does not decode as the
// message type it was declared to be. It counts against the connection's
// error budget but does not terminate the connection.
var ErrInvalidPayload = errors.New("invalid payload")

// Login reply statuses.
const (
	LoginGranted uint8 = iota
	LoginDenied
	LoginBlocked
)

// Termination reasons.
const (
	TerminatedLogout uint8 = iota
	TerminatedExpired
	TerminatedServerClosing
)

// Transfer results.
const (
	TransferSuccess uint8 = iota
	TransferInsufficientFunds
)

// PIN update results.
const (
	PINUpdateSuccess uint8 = iota
	PINUpdateRejected
)

type payloadReader struct {
	buf []byte
	off int
}

func (r *payloadReader) uint8() (uint8, error) {
	if r.off+1 > len(r.buf) {
		return 0, ErrInvalidPayload
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *payloadReader) int64() (int64, error) {
	if r.off+8 > len(r.buf) {
		return 0, ErrInvalidPayload
	}
	v := int64(binary.BigEndian.Uint64(r.buf[r.off : r.off+8]))
	r.off += 8
	return v, nil
}

func (r *payloadReader) string() (string, error) {
	if r.off+2 > len(r.buf) {
		return "", ErrInvalidPayload
	}
	n := int(binary.BigEndian.Uint16(r.buf[r.off : r.off+2]))
	r.off += 2
	if r.off+n > len(r.buf) {
		return "", ErrInvalidPayload
	}
	v := string(r.buf[r.off : r.off+n])
	r.off += n
	return v, nil
}

// done fails the decode when trailing bytes remain: a well-formed payload is
// consumed exactly.
func (r *payloadReader) done() error {
	if r.off != len(r.buf) {
		return ErrInvalidPayload
	}
	return nil
}

type payloadWriter struct {
	buf []byte
}

func (w *payloadWriter) uint8(v uint8) { w.buf = append(w.buf, v) }

func (w *payloadWriter) int64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *payloadWriter) string(s string) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(len(s)))
	w.buf = append(w.buf, b[:]...)
	w.buf = append(w.buf, s...)
}

// LoginRequest starts a session: card UID (hex), the IBAN the session should
// bind to, and the PIN as entered.
type LoginRequest struct {
	CardUID string
	IBAN    string
	PIN     string
}

func (m *LoginRequest) Encode() []byte {
	var w payloadWriter
	w.string(m.CardUID)
	w.string(m.IBAN)
	w.string(m.PIN)
	return w.buf
}

func (m *LoginRequest) Decode(payload []byte) error {
	r := payloadReader{buf: payload}
	var err error
	if m.CardUID, err = r.string(); err != nil {
		return err
	}
	if m.IBAN, err = r.string(); err != nil {
		return err
	}
	if m.PIN, err = r.string(); err != nil {
		return err
	}
	return r.done()
}

// LoginReply carries the login outcome.
type LoginReply struct {
	Status uint8
}

func (m *LoginReply) Encode() []byte {
	var w payloadWriter
	w.uint8(m.Status)
	return w.buf
}

func (m *LoginReply) Decode(payload []byte) error {
	r := payloadReader{buf: payload}
	var err error
	if m.Status, err = r.uint8(); err != nil {
		return err
	}
	return r.done()
}

// TerminatedReply tells the client why the server is ending the session.
type TerminatedReply struct {
	Reason uint8
}

func (m *TerminatedReply) Encode() []byte {
	var w payloadWriter
	w.uint8(m.Reason)
	return w.buf
}

func (m *TerminatedReply) Decode(payload []byte) error {
	r := payloadReader{buf: payload}
	var err error
	if m.Reason, err = r.uint8(); err != nil {
		return err
	}
	return r.done()
}

// InfoReply carries the account holder's name.
type InfoReply struct {
	FirstName string
	LastName  string
}

func (m *InfoReply) Encode() []byte {
	var w payloadWriter
	w.string(m.FirstName)
	w.string(m.LastName)
	return w.buf
}

func (m *InfoReply) Decode(payload []byte) error {
	r := payloadReader{buf: payload}
	var err error
	if m.FirstName, err = r.string(); err != nil {
		return err
	}
	if m.LastName, err = r.string(); err != nil {
		return err
	}
	return r.done()
}

// BalanceReply carries the balance as a decimal string with exactly two
// fractional digits, ready for kiosk display.
type BalanceReply struct {
	Balance string
}

func (m *BalanceReply) Encode() []byte {
	var w payloadWriter
	w.string(m.Balance)
	return w.buf
}

func (m *BalanceReply) Decode(payload []byte) error {
	r := payloadReader{buf: payload}
	var err error
	if m.Balance, err = r.string(); err != nil {
		return err
	}
	return r.done()
}

// TransferRequest moves money from the session's account. An empty DestIBAN
// is a withdrawal; the session's own IBAN is a deposit.
type TransferRequest struct {
	DestIBAN string
	Amount   int64 // in cents
}

func (m *TransferRequest) Encode() []byte {
	var w payloadWriter
	w.string(m.DestIBAN)
	w.int64(m.Amount)
	return w.buf
}

func (m *TransferRequest) Decode(payload []byte) error {
	r := payloadReader{buf: payload}
	var err error
	if m.DestIBAN, err = r.string(); err != nil {
		return err
	}
	if m.Amount, err = r.int64(); err != nil {
		return err
	}
	return r.done()
}

// TransferReply carries the transfer outcome.
type TransferReply struct {
	Result uint8
}

func (m *TransferReply) Encode() []byte {
	var w payloadWriter
	w.uint8(m.Result)
	return w.buf
}

func (m *TransferReply) Decode(payload []byte) error {
	r := payloadReader{buf: payload}
	var err error
	if m.Result, err = r.uint8(); err != nil {
		return err
	}
	return r.done()
}

// PINUpdateRequest replaces the PIN on the session's card.
type PINUpdateRequest struct {
	NewPIN string
}

func (m *PINUpdateRequest) Encode() []byte {
	var w payloadWriter
	w.string(m.NewPIN)
	return w.buf
}

func (m *PINUpdateRequest) Decode(payload []byte) error {
	r := payloadReader{buf: payload}
	var err error
	if m.NewPIN, err = r.string(); err != nil {
		return err
	}
	return r.done()
}

// PINUpdateReply carries the PIN update outcome.
type PINUpdateReply struct {
	Result uint8
}

func (m *PINUpdateReply) Encode() []byte {
	var w payloadWriter
	w.uint8(m.Result)
	return w.buf
}

func (m *PINUpdateReply) Decode(payload []byte) error {
	r := payloadReader{buf: payload}
	var err error
	if m.Result, err = r.uint8(); err != nil {
		return err
	}
	return r.done()
}

// AccountInfo is one row of an AccountsReply.
type AccountInfo struct {
	IBAN    string
	Type    uint8
	Balance int64 // in cents
}

// AccountsReply lists every account owned by the session's user.
type AccountsReply struct {
	Accounts []AccountInfo
}

func (m *AccountsReply) Encode() []byte {
	var w payloadWriter
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(m.Accounts)))
	w.buf = append(w.buf, n[:]...)
	for _, a := range m.Accounts {
		w.string(a.IBAN)
		w.uint8(a.Type)
		w.int64(a.Balance)
	}
	return w.buf
}

func (m *AccountsReply) Decode(payload []byte) error {
	r := payloadReader{buf: payload}
	if r.off+2 > len(r.buf) {
		return ErrInvalidPayload
	}
	count := int(binary.BigEndian.Uint16(r.buf[r.off : r.off+2]))
	r.off += 2
	m.Accounts = make([]AccountInfo, 0, count)
	for i := 0; i < count; i++ {
		var a AccountInfo
		var err error
		if a.IBAN, err = r.string(); err != nil {
			return err
		}
		if a.Type, err = r.uint8(); err != nil {
			return err
		}
		if a.Balance, err = r.int64(); err != nil {
			return err
		}
		m.Accounts = append(m.Accounts, a)
	}
	return r.done()
}
