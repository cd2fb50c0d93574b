package server

import (
	"errors"
	"testing"

	"github.com/herbank/hb-server/internal/auth"
	"github.com/herbank/hb-server/internal/protocol"
)

func loginOrFail(t *testing.T, tc *testClient) {
	t.Helper()
	if got := tc.login(testCardUID, testIBAN, testPIN); got != protocol.LoginGranted {
		t.Fatalf("login status = %d, want granted", got)
	}
}

func sendTransfer(t *testing.T, tc *testClient, dest string, amount int64) {
	t.Helper()
	req := protocol.TransferRequest{DestIBAN: dest, Amount: amount}
	tc.send(protocol.ReqTransfer, req.Encode())
}

func expectTransferResult(t *testing.T, tc *testClient, want uint8) {
	t.Helper()
	var rep protocol.TransferReply
	if err := rep.Decode(tc.expect(protocol.RepTransfer)); err != nil {
		t.Fatalf("decoding transfer reply: %v", err)
	}
	if rep.Result != want {
		t.Fatalf("transfer result = %d, want %d", rep.Result, want)
	}
}

func TestTransferWithdrawal(t *testing.T) {
	env := newTestEnv(t, nil)
	tc := env.connect(t)
	loginOrFail(t, tc)

	sendTransfer(t, tc, "", 150000)
	expectTransferResult(t, tc, protocol.TransferSuccess)
	if got := env.repo.accounts[testIBAN].Balance; got != 350000 {
		t.Fatalf("balance after withdrawal = %d, want 350000", got)
	}
}

func TestTransferWithdrawalInsufficientFunds(t *testing.T) {
	env := newTestEnv(t, nil)
	tc := env.connect(t)
	loginOrFail(t, tc)

	sendTransfer(t, tc, "", 500001)
	expectTransferResult(t, tc, protocol.TransferInsufficientFunds)
	if got := env.repo.accounts[testIBAN].Balance; got != 500000 {
		t.Fatalf("balance after refused withdrawal = %d, want 500000", got)
	}
}

func TestTransferExactBalanceDrainsToZero(t *testing.T) {
	env := newTestEnv(t, nil)
	tc := env.connect(t)
	loginOrFail(t, tc)

	sendTransfer(t, tc, "", 500000)
	expectTransferResult(t, tc, protocol.TransferSuccess)
	if got := env.repo.accounts[testIBAN].Balance; got != 0 {
		t.Fatalf("balance after full withdrawal = %d, want 0", got)
	}
}

func TestTransferDeposit(t *testing.T) {
	env := newTestEnv(t, nil)
	tc := env.connect(t)
	loginOrFail(t, tc)

	sendTransfer(t, tc, testIBAN, 2500)
	expectTransferResult(t, tc, protocol.TransferSuccess)
	if got := env.repo.accounts[testIBAN].Balance; got != 502500 {
		t.Fatalf("balance after deposit = %d, want 502500", got)
	}
}

func TestTransferLocal(t *testing.T) {
	env := newTestEnv(t, nil)
	tc := env.connect(t)
	loginOrFail(t, tc)

	sendTransfer(t, tc, testIBANSecond, 120000)
	expectTransferResult(t, tc, protocol.TransferSuccess)
	if got := env.repo.accounts[testIBAN].Balance; got != 380000 {
		t.Fatalf("source balance = %d, want 380000", got)
	}
	if got := env.repo.accounts[testIBANSecond].Balance; got != 220000 {
		t.Fatalf("dest balance = %d, want 220000", got)
	}
	if len(env.events.events) != 1 || env.events.events[0].Outcome != "completed" {
		t.Fatalf("events = %+v, want one completed event", env.events.events)
	}
}

func TestTransferCompensatesFailedCredit(t *testing.T) {
	env := newTestEnv(t, nil)
	env.repo.failDelta[testIBANSecond] = errors.New("node down")
	tc := env.connect(t)
	loginOrFail(t, tc)

	sendTransfer(t, tc, testIBANSecond, 120000)
	tc.expect(protocol.RepError)
	if got := env.repo.accounts[testIBAN].Balance; got != 500000 {
		t.Fatalf("source balance after compensation = %d, want 500000", got)
	}
	if len(env.events.events) != 1 || env.events.events[0].Outcome != "failed" {
		t.Fatalf("events = %+v, want one failed event", env.events.events)
	}
}

func TestTransferForeignRelay(t *testing.T) {
	env := newTestEnv(t, nil)
	tc := env.connect(t)
	loginOrFail(t, tc)

	sendTransfer(t, tc, testIBANRemote, 50000)
	expectTransferResult(t, tc, protocol.TransferSuccess)
	if got := env.repo.accounts[testIBAN].Balance; got != 450000 {
		t.Fatalf("source balance after relay = %d, want 450000", got)
	}
	if len(env.peer.calls) != 1 || env.peer.calls[0] != testIBANRemote {
		t.Fatalf("relay calls = %v, want one to %s", env.peer.calls, testIBANRemote)
	}
}

func TestTransferForeignRelayFailureReversesDebit(t *testing.T) {
	env := newTestEnv(t, nil)
	env.peer.err = errors.New("peer unreachable")
	tc := env.connect(t)
	loginOrFail(t, tc)

	sendTransfer(t, tc, testIBANRemote, 50000)
	tc.expect(protocol.RepError)
	if got := env.repo.accounts[testIBAN].Balance; got != 500000 {
		t.Fatalf("source balance after failed relay = %d, want 500000", got)
	}
}

func TestTransferRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		dest   string
		amount int64
	}{
		{name: "zero amount", dest: testIBANSecond, amount: 0},
		{name: "negative amount", dest: testIBANSecond, amount: -100},
		{name: "bad checksum", dest: "NL00ABNA0417164301", amount: 100},
		{name: "garbage iban", dest: "not-an-iban", amount: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			tc := env.connect(t)
			loginOrFail(t, tc)

			sendTransfer(t, tc, tt.dest, tt.amount)
			tc.expect(protocol.RepError)
			if got := env.repo.accounts[testIBAN].Balance; got != 500000 {
				t.Fatalf("balance moved on a rejected request: %d", got)
			}
		})
	}
}

func TestAccountsListing(t *testing.T) {
	env := newTestEnv(t, nil)
	tc := env.connect(t)
	loginOrFail(t, tc)

	tc.send(protocol.ReqAccounts, nil)
	var rep protocol.AccountsReply
	if err := rep.Decode(tc.expect(protocol.RepAccounts)); err != nil {
		t.Fatalf("decoding accounts reply: %v", err)
	}
	if len(rep.Accounts) != 2 {
		t.Fatalf("got %d accounts, want 2", len(rep.Accounts))
	}
	byIBAN := map[string]protocol.AccountInfo{}
	for _, a := range rep.Accounts {
		byIBAN[a.IBAN] = a
	}
	if a, ok := byIBAN[testIBANSecond]; !ok || a.Balance != 100000 {
		t.Fatalf("savings account missing or wrong: %+v", byIBAN)
	}
}

func TestPINUpdate(t *testing.T) {
	env := newTestEnv(t, nil)
	tc := env.connect(t)
	loginOrFail(t, tc)

	req := protocol.PINUpdateRequest{NewPIN: "867530"}
	tc.send(protocol.ReqPINUpdate, req.Encode())
	var rep protocol.PINUpdateReply
	if err := rep.Decode(tc.expect(protocol.RepPINUpdate)); err != nil {
		t.Fatalf("decoding pin update reply: %v", err)
	}
	if rep.Result != protocol.PINUpdateSuccess {
		t.Fatalf("pin update result = %d, want success", rep.Result)
	}

	ok, err := auth.NewPINHasher().Verify("867530", env.repo.cards[testCardUID].PINHash)
	if err != nil || !ok {
		t.Fatalf("new pin does not verify against stored hash (ok=%v err=%v)", ok, err)
	}
}

func TestPINUpdateRejectsWeakPINs(t *testing.T) {
	tests := []struct {
		name string
		pin  string
	}{
		{name: "too short", pin: "123"},
		{name: "too long", pin: "1234567890123"},
		{name: "non numeric", pin: "12a4"},
		{name: "empty", pin: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			tc := env.connect(t)
			loginOrFail(t, tc)

			before := env.repo.cards[testCardUID].PINHash
			req := protocol.PINUpdateRequest{NewPIN: tt.pin}
			tc.send(protocol.ReqPINUpdate, req.Encode())
			var rep protocol.PINUpdateReply
			if err := rep.Decode(tc.expect(protocol.RepPINUpdate)); err != nil {
				t.Fatalf("decoding pin update reply: %v", err)
			}
			if rep.Result != protocol.PINUpdateRejected {
				t.Fatalf("pin update result = %d, want rejected", rep.Result)
			}
			if env.repo.cards[testCardUID].PINHash != before {
				t.Fatalf("stored hash changed for a rejected pin")
			}
		})
	}
}

func TestFormatCents(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 0, want: "0.00"},
		{cents: 5, want: "0.05"},
		{cents: 99, want: "0.99"},
		{cents: 100, want: "1.00"},
		{cents: 42069, want: "420.69"},
		{cents: 500000, want: "5000.00"},
	}
	for _, tt := range tests {
		if got := formatCents(tt.cents); got != tt.want {
			t.Errorf("formatCents(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestValidPIN(t *testing.T) {
	tests := []struct {
		pin  string
		want bool
	}{
		{pin: "1234", want: true},
		{pin: "123456789012", want: true},
		{pin: "123", want: false},
		{pin: "1234567890123", want: false},
		{pin: "12 4", want: false},
		{pin: "abcd", want: false},
	}
	for _, tt := range tests {
		if got := validPIN(tt.pin); got != tt.want {
			t.Errorf("validPIN(%q) = %v, want %v", tt.pin, got, tt.want)
		}
	}
}
