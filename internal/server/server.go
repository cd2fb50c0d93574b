/**
 * @description
 * The HBP transaction server: owns the TCP (optionally TLS) listener,
 * spawns one goroutine per accepted connection, and coordinates graceful
 * shutdown. Connections share nothing mutable except the store and the
 * event producer; each connection's session lives and dies with its
 * goroutine.
 *
 * @dependencies
 * - context, net, sync, time: Standard Go libraries.
 * - internal/auth, internal/session, internal/store: Core collaborators.
 * - pkg/rabbitmq: Transfer event publishing.
 */

package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/herbank/hb-server/internal/auth"
	"github.com/herbank/hb-server/internal/protocol"
	"github.com/herbank/hb-server/internal/store"
	"github.com/herbank/hb-server/pkg/rabbitmq"
)

// PeerBank relays transfers whose destination IBAN belongs to another bank.
type PeerBank interface {
	Transfer(ctx context.Context, sourceIBAN, destIBAN string, amountCents int64) error
}

// Options configures a Server. Zero values select sensible defaults where
// one exists; Repo, Verifier and Hasher are required.
type Options struct {
	Repo           store.Repository
	Verifier       *auth.Verifier
	Hasher         *auth.PINHasher
	Events         rabbitmq.Publisher // nil disables event publishing
	Peer           PeerBank           // nil disables foreign transfers
	BankCode       string
	SessionTimeout time.Duration
	ErrorMax       int
	MaxPayload     uint32
	Now            func() time.Time
}

// Server accepts kiosk and peer-bank connections and runs the per-connection
// protocol loop.
type Server struct {
	repo           store.Repository
	verifier       *auth.Verifier
	hasher         *auth.PINHasher
	events         rabbitmq.Publisher
	peer           PeerBank
	bankCode       string
	sessionTimeout time.Duration
	errorMax       int
	maxPayload     uint32
	now            func() time.Time

	table map[protocol.MessageType]handlerEntry

	mu      sync.Mutex
	ln      net.Listener
	conns   map[*conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

// New creates a Server from its options.
func New(opts Options) *Server {
	if opts.SessionTimeout <= 0 {
		opts.SessionTimeout = 10 * time.Minute
	}
	if opts.ErrorMax <= 0 {
		opts.ErrorMax = 10
	}
	if opts.MaxPayload == 0 {
		opts.MaxPayload = protocol.DefaultMaxPayload
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		repo:           opts.Repo,
		verifier:       opts.Verifier,
		hasher:         opts.Hasher,
		events:         opts.Events,
		peer:           opts.Peer,
		bankCode:       opts.BankCode,
		sessionTimeout: opts.SessionTimeout,
		errorMax:       opts.ErrorMax,
		maxPayload:     opts.MaxPayload,
		now:            opts.Now,
		conns:          make(map[*conn]struct{}),
	}
	s.table = s.dispatchTable()
	return s
}

// Serve accepts connections on ln until Shutdown closes it.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return errors.New("server is shutting down")
	}
	s.ln = ln
	s.mu.Unlock()

	log.Printf("level=info component=server msg=\"listening\" addr=%s", ln.Addr())

	for {
		nc, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closing := s.closing
			s.mu.Unlock()
			if closing {
				return nil
			}
			log.Printf("level=error component=server msg=\"accept failed\" err=%v", err)
			return err
		}
		c := s.newConn(nc)
		if !s.track(c) {
			// Shutdown raced the accept.
			_ = nc.Close()
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(c)
			c.serve(context.Background())
		}()
	}
}

// Shutdown stops accepting, notifies live connections with a server-closing
// termination notice, and waits for their goroutines (bounded by ctx).
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	ln := s.ln
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	for _, c := range conns {
		c.shutdown()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}
