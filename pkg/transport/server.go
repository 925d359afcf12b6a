package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tablewire/tablewire-go/pkg/log"
	"github.com/tablewire/tablewire-go/pkg/registry"
	"github.com/tablewire/tablewire-go/pkg/session"
)

const (
	// DefaultPort is the default listen port.
	DefaultPort = 8080

	// DefaultMaxConnections caps concurrently open connections.
	DefaultMaxConnections = 1000

	// DefaultAcceptRetryDelay is how long the accept loop waits after a
	// transient accept failure before retrying.
	DefaultAcceptRetryDelay = 1 * time.Second
)

// ServerConfig configures a table server.
type ServerConfig struct {
	// Address to listen on. Defaults to ":8080".
	Address string

	// MaxMessageSize is the maximum frame payload size (default 64 KiB).
	MaxMessageSize uint32

	// MaxConnections caps concurrently open connections. Sockets beyond
	// the cap are closed immediately after accept.
	MaxConnections int

	// AcceptRetryDelay is the fixed pause after a failed accept.
	AcceptRetryDelay time.Duration

	// TLSConfig enables TLS when set.
	TLSConfig *tls.Config

	// Session configures each accepted session.
	Session session.Config

	// Logger receives protocol events (optional).
	Logger log.Logger

	// AppLogger receives server-side diagnostics (optional).
	AppLogger *slog.Logger
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.Address == "" {
		c.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.AcceptRetryDelay <= 0 {
		c.AcceptRetryDelay = DefaultAcceptRetryDelay
	}
	if c.AppLogger == nil {
		c.AppLogger = slog.Default()
	}
	// Sessions share the server's loggers unless given their own.
	if c.Session.Logger == nil {
		c.Session.Logger = c.Logger
	}
	if c.Session.AppLogger == nil {
		c.Session.AppLogger = c.AppLogger
	}
	return c
}

// Server accepts table protocol connections and runs one session per
// connection.
type Server struct {
	cfg      ServerConfig
	reg      *registry.Registry
	listener net.Listener

	running   atomic.Bool
	connCount atomic.Int64
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewServer creates a server. Call Start to begin accepting.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		cfg: cfg.withDefaults(),
		reg: registry.New(),
	}
}

// Registry returns the session registry, shared by all sessions.
func (s *Server) Registry() *registry.Registry {
	return s.reg
}

// Start opens the listener and starts the accept loop.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	if s.cfg.TLSConfig != nil {
		listener = tls.NewListener(listener, s.cfg.TLSConfig)
	}
	s.listener = listener

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)
	s.cfg.AppLogger.Info("server listening", "addr", listener.Addr().String())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener, shuts down all sessions and waits for the
// per-connection goroutines to finish.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	s.cancel()

	err := s.listener.Close()
	s.reg.ShutdownAll()
	s.wg.Wait()

	s.cfg.AppLogger.Info("server stopped")
	return err
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of open connections, including
// those that have not completed a handshake.
func (s *Server) ConnectionCount() int {
	return int(s.connCount.Load())
}

// acceptLoop accepts until the server stops. Accept failures pause for
// a fixed delay instead of spinning or giving up.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		nc, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.cfg.AppLogger.Warn("accept failed, retrying",
				"err", err, "delay", s.cfg.AcceptRetryDelay)
			select {
			case <-time.After(s.cfg.AcceptRetryDelay):
			case <-s.ctx.Done():
				return
			}
			continue
		}

		if s.connCount.Load() >= int64(s.cfg.MaxConnections) {
			s.cfg.AppLogger.Warn("connection limit reached, refusing",
				"remote", nc.RemoteAddr().String(), "limit", s.cfg.MaxConnections)
			nc.Close()
			continue
		}

		s.connCount.Add(1)
		s.wg.Add(1)
		go s.handleConn(nc)
	}
}

// handleConn runs one connection's session to completion.
func (s *Server) handleConn(nc net.Conn) {
	defer s.wg.Done()
	defer s.connCount.Add(-1)

	connID := uuid.New().String()
	remote := nc.RemoteAddr().String()
	s.logConnState(connID, remote, "", "CONNECTED")
	s.cfg.AppLogger.Debug("connection accepted", "conn_id", connID, "remote", remote)

	conn := NewConn(nc, s.cfg.MaxMessageSize, s.cfg.Logger, connID)
	sess := session.New(conn, s.reg, connID, s.cfg.Session)
	sess.Run()

	s.logConnState(connID, remote, "CONNECTED", "DISCONNECTED")
	s.cfg.AppLogger.Debug("connection closed", "conn_id", connID, "remote", remote)
}

func (s *Server) logConnState(connID, remote, from, to string) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   remote,
		StateChange:  &log.StateChangeEvent{OldState: from, NewState: to},
	})
}
