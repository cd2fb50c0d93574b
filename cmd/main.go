/**
 * @description
 * This is the main entry point for hb-server. It is responsible for
 * initializing all components of the service, including configuration,
 * database connection, the interbank relay client, message brokers,
 * repositories, the transaction protocol server, and the admin HTTP server.
 * It wires everything together and starts the service.
 *
 * @dependencies
 * - crypto/tls, log, net, net/http: Standard Go libraries.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/auth, internal/config, internal/server,
 *   internal/store: Internal packages for the service.
 * - pkg/peerbank: Client for the interbank transfer relay.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/herbank/hb-server/internal/api"
	"github.com/herbank/hb-server/internal/auth"
	"github.com/herbank/hb-server/internal/config"
	"github.com/herbank/hb-server/internal/server"
	"github.com/herbank/hb-server/internal/store"
	"github.com/herbank/hb-server/pkg/peerbank"
	"github.com/herbank/hb-server/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting hb-server\" listen_addr=%s admin_addr=%s bank_code=%s", cfg.ListenAddr, cfg.AdminAddr, cfg.BankCode)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	// Every kiosk connection holds short transactions; keep the pool modest.
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer to publish transfer events.
	// This service only needs to publish, so we use a producer.
	var events rabbitmq.Publisher
	rabbitProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		events = &rabbitmq.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
		events = rabbitProducer
	}

	// Initialize the interbank relay client. A missing relay config should
	// not prevent hb-server from booting; foreign transfers will be refused.
	var peer server.PeerBank
	if strings.TrimSpace(cfg.PeerBankBaseURL) == "" || strings.TrimSpace(cfg.PeerBankAPIKey) == "" {
		log.Printf("level=warn component=bootstrap msg=\"relay client not configured; foreign transfers disabled\" peer_bank_url_set=%t peer_bank_key_set=%t",
			strings.TrimSpace(cfg.PeerBankBaseURL) != "",
			strings.TrimSpace(cfg.PeerBankAPIKey) != "",
		)
	} else {
		peer = peerbank.NewClient(cfg.PeerBankBaseURL, cfg.PeerBankAPIKey)
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)
	hasher := auth.NewPINHasher()

	// Initialize the transaction protocol server.
	srv := server.New(server.Options{
		Repo:           repository,
		Verifier:       auth.NewVerifier(repository, hasher, uint8(cfg.PINTryMax)),
		Hasher:         hasher,
		Events:         events,
		Peer:           peer,
		BankCode:       cfg.BankCode,
		SessionTimeout: time.Duration(cfg.SessionTimeoutSeconds) * time.Second,
		ErrorMax:       cfg.ErrorMax,
		MaxPayload:     uint32(cfg.MaxPayloadBytes),
	})

	ln, err := newListener(cfg)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"listener setup failed\" addr=%s err=%v", cfg.ListenAddr, err)
	}

	go func() {
		if err := srv.Serve(ln); err != nil {
			log.Fatalf("level=fatal component=server msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	// Set up the admin HTTP server.
	adminHandlers := api.NewAdminHandlers(repository, uint8(cfg.PINTryMax))
	adminServer := &http.Server{
		Addr:    cfg.AdminAddr,
		Handler: api.AdminRoutes(adminHandlers, cfg.InternalAPIKey),
	}

	go func() {
		log.Printf("level=info component=http msg=\"admin server listening\" addr=%s", cfg.AdminAddr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"admin server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=bootstrap msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("level=error component=server msg=\"shutdown failed\" err=%v", err)
	}
	if err := adminServer.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"admin shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=bootstrap msg=\"shutdown complete\"")
}

// newListener opens the protocol listener, wrapped in TLS when a certificate
// is configured. A client CA file additionally turns on mutual TLS.
func newListener(cfg config.Config) (net.Listener, error) {
	if cfg.TLSCertFile == "" || cfg.TLSKeyFile == "" {
		return net.Listen("tcp", cfg.ListenAddr)
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, err
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.TLSClientCAFile != "" {
		caPEM, err := os.ReadFile(cfg.TLSClientCAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			log.Printf("level=warn component=bootstrap msg=\"no certificates parsed from client ca file\" path=%s", cfg.TLSClientCAFile)
		}
		tlsConfig.ClientCAs = pool
		tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return tls.Listen("tcp", cfg.ListenAddr, tlsConfig)
}
