/**
 * @description
 * Request dispatch for the transaction protocol. A static table maps each
 * request type to its handler and records whether the request requires an
 * authenticated session. Gate checks happen here, before any handler code
 * runs: requests that arrive in the wrong session state never reach their
 * handler.
 *
 * @dependencies
 * - context: Request-scoped cancellation.
 * - internal/protocol: Message types and payload codecs.
 */

package server

import (
	"context"
	"errors"

	"github.com/herbank/hb-server/internal/protocol"
	"github.com/herbank/hb-server/internal/session"
)

// errProtocol marks request-level faults (unknown type, malformed payload,
// wrong session state). The connection answers with an ERROR frame and
// charges the fault to its error budget.
var errProtocol = errors.New("protocol violation")

// reply is what a handler hands back to the connection loop.
type reply struct {
	typ     protocol.MessageType
	payload []byte
	close   bool // terminate the connection after writing
}

type handlerFunc func(ctx context.Context, c *conn, body []byte) (reply, error)

type handlerEntry struct {
	needsAuth bool
	handle    handlerFunc
}

func (s *Server) dispatchTable() map[protocol.MessageType]handlerEntry {
	return map[protocol.MessageType]handlerEntry{
		protocol.ReqLogin:     {needsAuth: false, handle: s.handleLogin},
		protocol.ReqLogout:    {needsAuth: true, handle: s.handleLogout},
		protocol.ReqInfo:      {needsAuth: true, handle: s.handleInfo},
		protocol.ReqBalance:   {needsAuth: true, handle: s.handleBalance},
		protocol.ReqTransfer:  {needsAuth: true, handle: s.handleTransfer},
		protocol.ReqPINUpdate: {needsAuth: true, handle: s.handlePINUpdate},
		protocol.ReqAccounts:  {needsAuth: true, handle: s.handleAccounts},
	}
}

// dispatch routes one decoded frame. Gate violations and unknown types
// return errProtocol without invoking a handler.
func (s *Server) dispatch(ctx context.Context, c *conn, typ protocol.MessageType, body []byte) (reply, error) {
	entry, ok := s.table[typ]
	if !ok {
		return reply{}, errProtocol
	}
	st := c.sess.State()
	if entry.needsAuth && st != session.StateAuthenticated {
		return reply{}, errProtocol
	}
	if typ == protocol.ReqLogin && st != session.StateNew {
		return reply{}, errProtocol
	}
	return entry.handle(ctx, c, body)
}
