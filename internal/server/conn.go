/**
 * @description
 * The per-connection protocol loop: read a frame, dispatch it, write the
 * reply, repeat. Each connection carries its own session and its own error
 * budget; recoverable faults are answered with an ERROR frame and counted,
 * and the connection closes once the budget is exhausted. Corrupt envelopes
 * close the connection immediately, since the stream alignment can no longer
 * be trusted.
 *
 * @dependencies
 * - net, sync: Standard Go libraries.
 * - internal/protocol: Frame codec and error classification.
 * - internal/session: Per-connection authentication state.
 */

package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/herbank/hb-server/internal/protocol"
	"github.com/herbank/hb-server/internal/session"
)

type conn struct {
	s      *Server
	rwc    net.Conn
	remote string
	sess   *session.Session

	errCount int

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *Server) newConn(nc net.Conn) *conn {
	return &conn{
		s:      s,
		rwc:    nc,
		remote: nc.RemoteAddr().String(),
		sess:   session.NewWithClock(s.now),
	}
}

// serve runs the connection until logout, expiry, a fatal frame error, an
// exhausted error budget, or transport close. The session never outlives it.
func (c *conn) serve(ctx context.Context) {
	defer c.close()
	log.Printf("level=info component=server msg=\"connection opened\" remote=%s", c.remote)

	for {
		if c.errCount > c.s.errorMax {
			log.Printf("level=warn component=server msg=\"error budget exhausted\" remote=%s errors=%d", c.remote, c.errCount)
			return
		}

		h, err := protocol.ReadHeader(c.rwc, c.s.maxPayload)
		if err != nil {
			if c.frameFault(err, "header") {
				return
			}
			continue
		}
		body, err := protocol.ReadBody(c.rwc, h)
		if err != nil {
			if c.frameFault(err, "body") {
				return
			}
			continue
		}

		// Expiry is checked lazily, on the next request to arrive.
		if c.sess.Expired() {
			rep := protocol.TerminatedReply{Reason: protocol.TerminatedExpired}
			_ = c.write(protocol.RepTerminated, rep.Encode())
			log.Printf("level=info component=server msg=\"session expired\" remote=%s", c.remote)
			return
		}

		rep, err := c.s.dispatch(ctx, c, h.Type, body)
		if err != nil {
			c.errCount++
			if !errors.Is(err, errProtocol) {
				log.Printf("level=error component=server msg=\"request failed\" remote=%s type=%s err=%v", c.remote, h.Type, err)
			}
			if werr := c.write(protocol.RepError, nil); werr != nil {
				return
			}
			continue
		}

		if err := c.write(rep.typ, rep.payload); err != nil {
			c.errCount++
			continue
		}
		if rep.close {
			return
		}
	}
}

// frameFault handles a read-side frame error. It reports whether the
// connection must end; recoverable faults are charged to the budget.
func (c *conn) frameFault(err error, stage string) (done bool) {
	var fe *protocol.FrameError
	if !errors.As(err, &fe) {
		return true
	}
	switch {
	case fe.Kind == protocol.FrameIo:
		// Transport gone; EOF here is the client hanging up.
		return true
	case fe.Fatal():
		log.Printf("level=warn component=server msg=\"corrupt frame\" remote=%s stage=%s err=%v", c.remote, stage, err)
		return true
	default:
		c.errCount++
		return false
	}
}

func (c *conn) write(typ protocol.MessageType, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.rwc, typ, payload)
}

// shutdown notifies the client the server is closing and severs the
// transport, unblocking the serve loop's read. The notice is best effort: a
// client that stopped reading must not stall shutdown.
func (c *conn) shutdown() {
	_ = c.rwc.SetWriteDeadline(time.Now().Add(2 * time.Second))
	rep := protocol.TerminatedReply{Reason: protocol.TerminatedServerClosing}
	_ = c.write(protocol.RepTerminated, rep.Encode())
	_ = c.rwc.Close()
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.sess.Terminate()
		_ = c.rwc.Close()
		log.Printf("level=info component=server msg=\"connection closed\" remote=%s", c.remote)
	})
}
