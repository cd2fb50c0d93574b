/**
 * @description
 * Protocol request handlers. Each handler decodes its request payload, runs
 * the operation against the store, and encodes the reply frame. Domain
 * outcomes (wrong PIN, blocked card, insufficient funds) are valid replies
 * and leave the error budget alone; malformed payloads and store failures
 * are charged to it by the connection loop.
 *
 * @dependencies
 * - internal/auth: Login verification under the lockout policy.
 * - internal/iban: Destination IBAN validation and bank-code routing.
 * - internal/store: Ledger and card access.
 * - internal/protocol: Payload codecs.
 * - github.com/google/uuid: Transfer event identifiers.
 */

package server

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/herbank/hb-server/internal/auth"
	"github.com/herbank/hb-server/internal/domain"
	"github.com/herbank/hb-server/internal/iban"
	"github.com/herbank/hb-server/internal/protocol"
	"github.com/herbank/hb-server/internal/store"
)

const (
	pinMinDigits = 4
	pinMaxDigits = 12
)

func (s *Server) handleLogin(ctx context.Context, c *conn, body []byte) (reply, error) {
	var req protocol.LoginRequest
	if err := req.Decode(body); err != nil {
		return reply{}, errProtocol
	}

	res, err := s.verifier.AttemptLogin(ctx, req.CardUID, req.PIN)
	if err != nil {
		return reply{}, fmt.Errorf("login attempt: %w", err)
	}

	status := protocol.LoginDenied
	switch res.Outcome {
	case auth.Granted:
		acct, err := s.repo.FindAccountByIBAN(ctx, iban.Normalize(req.IBAN))
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
			// Correct PIN but an IBAN the card's holder does not own.
		case err != nil:
			return reply{}, fmt.Errorf("account lookup: %w", err)
		case acct.UserID == res.UserID:
			c.sess.Authenticate(res.UserID, res.CardID, acct.IBAN, s.sessionTimeout)
			status = protocol.LoginGranted
		}
	case auth.Blocked:
		status = protocol.LoginBlocked
	case auth.Denied, auth.NotFound:
		// Indistinguishable to the client.
	}

	if status != protocol.LoginGranted {
		log.Printf("level=info component=server msg=\"login refused\" remote=%s outcome=%s", c.remote, res.Outcome)
	}
	rep := protocol.LoginReply{Status: status}
	return reply{typ: protocol.RepLogin, payload: rep.Encode()}, nil
}

func (s *Server) handleLogout(ctx context.Context, c *conn, body []byte) (reply, error) {
	if len(body) != 0 {
		return reply{}, errProtocol
	}
	rep := protocol.TerminatedReply{Reason: protocol.TerminatedLogout}
	return reply{typ: protocol.RepTerminated, payload: rep.Encode(), close: true}, nil
}

func (s *Server) handleInfo(ctx context.Context, c *conn, body []byte) (reply, error) {
	if len(body) != 0 {
		return reply{}, errProtocol
	}
	user, err := s.repo.FindUserByID(ctx, c.sess.UserID())
	if err != nil {
		return reply{}, fmt.Errorf("user lookup: %w", err)
	}
	rep := protocol.InfoReply{FirstName: user.FirstName, LastName: user.LastName}
	return reply{typ: protocol.RepInfo, payload: rep.Encode()}, nil
}

func (s *Server) handleBalance(ctx context.Context, c *conn, body []byte) (reply, error) {
	if len(body) != 0 {
		return reply{}, errProtocol
	}
	cents, err := s.repo.GetBalance(ctx, c.sess.IBAN())
	if err != nil {
		return reply{}, fmt.Errorf("balance lookup: %w", err)
	}
	rep := protocol.BalanceReply{Balance: formatCents(cents)}
	return reply{typ: protocol.RepBalance, payload: rep.Encode()}, nil
}

func (s *Server) handleAccounts(ctx context.Context, c *conn, body []byte) (reply, error) {
	if len(body) != 0 {
		return reply{}, errProtocol
	}
	accounts, err := s.repo.FindAccountsByUserID(ctx, c.sess.UserID())
	if err != nil {
		return reply{}, fmt.Errorf("accounts lookup: %w", err)
	}
	rep := protocol.AccountsReply{Accounts: make([]protocol.AccountInfo, 0, len(accounts))}
	for _, a := range accounts {
		rep.Accounts = append(rep.Accounts, protocol.AccountInfo{
			IBAN:    a.IBAN,
			Type:    a.Type,
			Balance: a.Balance,
		})
	}
	return reply{typ: protocol.RepAccounts, payload: rep.Encode()}, nil
}

func (s *Server) handlePINUpdate(ctx context.Context, c *conn, body []byte) (reply, error) {
	var req protocol.PINUpdateRequest
	if err := req.Decode(body); err != nil {
		return reply{}, errProtocol
	}

	if !validPIN(req.NewPIN) {
		rep := protocol.PINUpdateReply{Result: protocol.PINUpdateRejected}
		return reply{typ: protocol.RepPINUpdate, payload: rep.Encode()}, nil
	}

	hash, err := s.hasher.Hash(req.NewPIN)
	if err != nil {
		return reply{}, fmt.Errorf("pin hashing: %w", err)
	}
	if err := s.repo.UpdateCardPIN(ctx, c.sess.CardID(), hash); err != nil {
		return reply{}, fmt.Errorf("pin update: %w", err)
	}

	rep := protocol.PINUpdateReply{Result: protocol.PINUpdateSuccess}
	return reply{typ: protocol.RepPINUpdate, payload: rep.Encode()}, nil
}

func (s *Server) handleTransfer(ctx context.Context, c *conn, body []byte) (reply, error) {
	var req protocol.TransferRequest
	if err := req.Decode(body); err != nil {
		return reply{}, errProtocol
	}
	if req.Amount <= 0 {
		return reply{}, errProtocol
	}

	source := c.sess.IBAN()
	dest := iban.Normalize(req.DestIBAN)

	switch {
	case dest == "" || dest == source:
		// Withdrawal or deposit against the session's own account.
		delta := req.Amount
		if dest == "" {
			delta = -req.Amount
		}
		if _, err := s.repo.ApplyDelta(ctx, source, delta); err != nil {
			if errors.Is(err, store.ErrInsufficientFunds) {
				rep := protocol.TransferReply{Result: protocol.TransferInsufficientFunds}
				return reply{typ: protocol.RepTransfer, payload: rep.Encode()}, nil
			}
			return reply{}, fmt.Errorf("apply delta: %w", err)
		}
	case !iban.Valid(dest):
		return reply{}, errProtocol
	case iban.BankCode(dest) != s.bankCode:
		if err := s.foreignTransfer(ctx, source, dest, req.Amount); err != nil {
			if errors.Is(err, store.ErrInsufficientFunds) {
				rep := protocol.TransferReply{Result: protocol.TransferInsufficientFunds}
				return reply{typ: protocol.RepTransfer, payload: rep.Encode()}, nil
			}
			return reply{}, err
		}
	default:
		if err := s.localTransfer(ctx, source, dest, req.Amount); err != nil {
			if errors.Is(err, store.ErrInsufficientFunds) {
				rep := protocol.TransferReply{Result: protocol.TransferInsufficientFunds}
				return reply{typ: protocol.RepTransfer, payload: rep.Encode()}, nil
			}
			return reply{}, err
		}
	}

	s.publishTransferEvent(ctx, source, dest, req.Amount, "completed", "")
	rep := protocol.TransferReply{Result: protocol.TransferSuccess}
	return reply{typ: protocol.RepTransfer, payload: rep.Encode()}, nil
}

// localTransfer debits the source account and credits the destination. A
// failed credit reverses the debit before reporting the error, so the
// ledger never holds a half-applied transfer.
func (s *Server) localTransfer(ctx context.Context, source, dest string, amount int64) error {
	if _, err := s.repo.ApplyDelta(ctx, source, -amount); err != nil {
		return fmt.Errorf("debit %s: %w", source, err)
	}
	if _, err := s.repo.ApplyDelta(ctx, dest, amount); err != nil {
		if _, revErr := s.repo.ApplyDelta(ctx, source, amount); revErr != nil {
			// The reversal itself failed; this needs operator attention.
			log.Printf("level=error component=server msg=\"transfer compensation failed\" source=%s dest=%s amount=%d err=%v", source, dest, amount, revErr)
		}
		s.publishTransferEvent(ctx, source, dest, amount, "failed", err.Error())
		return fmt.Errorf("credit %s: %w", dest, err)
	}
	return nil
}

// foreignTransfer debits locally and relays the credit to the destination's
// bank. A relay failure reverses the local debit.
func (s *Server) foreignTransfer(ctx context.Context, source, dest string, amount int64) error {
	if s.peer == nil {
		return errors.New("foreign transfers are not configured")
	}
	if _, err := s.repo.ApplyDelta(ctx, source, -amount); err != nil {
		return fmt.Errorf("debit %s: %w", source, err)
	}
	if err := s.peer.Transfer(ctx, source, dest, amount); err != nil {
		if _, revErr := s.repo.ApplyDelta(ctx, source, amount); revErr != nil {
			log.Printf("level=error component=server msg=\"relay compensation failed\" source=%s dest=%s amount=%d err=%v", source, dest, amount, revErr)
		}
		s.publishTransferEvent(ctx, source, dest, amount, "failed", err.Error())
		return fmt.Errorf("relay to %s: %w", iban.BankCode(dest), err)
	}
	return nil
}

func (s *Server) publishTransferEvent(ctx context.Context, source, dest string, amount int64, outcome, reason string) {
	if s.events == nil {
		return
	}
	event := domain.TransferEvent{
		EventID:    uuid.New(),
		SourceIBAN: source,
		DestIBAN:   dest,
		Amount:     amount,
		Outcome:    outcome,
		Reason:     reason,
		OccurredAt: s.now(),
	}
	if err := s.events.PublishTransferEvent(ctx, event); err != nil {
		// Events are best effort; the ledger is already settled.
		log.Printf("level=warn component=server msg=\"transfer event publish failed\" event_id=%s err=%v", event.EventID, err)
	}
}

// formatCents renders a cent amount as a decimal string with exactly two
// fractional digits. Balances are never negative.
func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// validPIN accepts 4 to 12 ASCII digits.
func validPIN(pin string) bool {
	if len(pin) < pinMinDigits || len(pin) > pinMaxDigits {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
