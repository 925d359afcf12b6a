package session

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tablewire/tablewire-go/pkg/log"
	"github.com/tablewire/tablewire-go/pkg/registry"
	"github.com/tablewire/tablewire-go/pkg/wire"
)

// State is the session lifecycle state.
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "UNAUTHENTICATED"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Session drives the protocol state machine for one connection. Create
// it with New and run its read loop with Run; all other methods are
// safe for concurrent use.
type Session struct {
	cfg     Config
	conn    Conn
	reg     *registry.Registry
	connID  string
	limiter *rateLimiter

	state atomic.Int32

	idMu      sync.Mutex
	sessionID string

	// lastSeq holds the highest accepted ACTION sequence number,
	// -1 before any action was accepted.
	lastSeq atomic.Int64

	writeMu        sync.Mutex
	writeQueue     [][]byte
	writing        bool
	closeRequested bool

	deadlineMu sync.Mutex
	deadline   *time.Timer
}

// New creates a session for a framed connection. The registry may be
// nil, in which case the handshake is refused. connID identifies the
// underlying connection in log output and is distinct from the session
// identifier issued at handshake time.
func New(conn Conn, reg *registry.Registry, connID string, cfg Config) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg:     cfg,
		conn:    conn,
		reg:     reg,
		connID:  connID,
		limiter: newRateLimiter(cfg.RateLimitWindow, cfg.MaxMessagesPerWindow, cfg.MaxTrackedTimestamps),
	}
	s.lastSeq.Store(-1)
	return s
}

// ID returns the registered session identifier, empty before the
// handshake completed.
func (s *Session) ID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return s.sessionID
}

func (s *Session) setID(id string) {
	s.idMu.Lock()
	s.sessionID = id
	s.idMu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run reads and processes messages until the session closes. It blocks
// and is intended to be run in its own goroutine per connection.
func (s *Session) Run() {
	s.armDeadline(s.cfg.HandshakeTimeout)

	for {
		data, err := s.conn.ReadFrame()
		if s.State() == StateClosed {
			return
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.appDebug("client disconnected")
			} else {
				s.appDebug("read failed", "err", err)
			}
			s.teardown()
			return
		}
		s.handleMessage(data)
	}
}

// handleMessage applies the rate limit and dispatches on state. The
// limit is enforced before any parsing so unauthenticated floods are
// cut off just like authenticated ones.
func (s *Session) handleMessage(data []byte) {
	if !s.limiter.Allow(time.Now()) {
		s.logPolicy("rate limit exceeded")
		s.sendError(wire.ErrCodeProtocolError, "Rate limit exceeded")
		s.Close()
		return
	}

	switch s.State() {
	case StateUnauthenticated:
		s.handleHandshake(data)
	case StateAuthenticated:
		s.handleAuthenticated(data)
	}
}

// handleHandshake validates the first message. Every failure path
// answers with an ERROR frame and closes; the envelope's version field
// is authoritative for version negotiation.
func (s *Session) handleHandshake(data []byte) {
	env, err := wire.DecodeEnvelope(data)
	if err != nil {
		s.logErrorEvent(wire.ErrCodeMalformedHandshake, err.Error())
		s.sendError(wire.ErrCodeMalformedHandshake, "Malformed handshake message")
		s.Close()
		return
	}
	if env.MessageType != wire.MessageTypeHandshake {
		s.sendError(wire.ErrCodeProtocolError, "Expected HANDSHAKE message")
		s.Close()
		return
	}
	if env.ProtocolVersion != wire.ProtocolVersion {
		s.sendError(wire.ErrCodeIncompatibleVersion,
			fmt.Sprintf("Server requires protocol version %s", wire.ProtocolVersion))
		s.Close()
		return
	}
	hs, err := wire.DecodeHandshake(env)
	if err != nil {
		s.logErrorEvent(wire.ErrCodeMalformedHandshake, err.Error())
		s.sendError(wire.ErrCodeMalformedHandshake, "Malformed handshake message")
		s.Close()
		return
	}

	if !s.state.CompareAndSwap(int32(StateUnauthenticated), int32(StateAuthenticated)) {
		return
	}
	s.logStateChange(StateUnauthenticated, StateAuthenticated)
	s.armDeadline(s.cfg.IdleTimeout)

	if s.reg == nil {
		s.sendError(wire.ErrCodeProtocolError, "Session registry not available")
		s.Close()
		return
	}
	id := s.reg.Register(s)
	if id == "" {
		s.sendError(wire.ErrCodeProtocolError, "Failed to generate unique session ID")
		s.Close()
		return
	}
	s.setID(id)

	if hs.ClientName != nil {
		s.appDebug("handshake accepted", "session_id", id, "client_name", *hs.ClientName)
	} else {
		s.appDebug("handshake accepted", "session_id", id)
	}

	resp, err := wire.EncodeHandshakeResponse(&wire.HandshakeResponse{
		SessionID:     id,
		SeatNumber:    s.cfg.SeatNumber,
		StartingStack: s.cfg.StartingStack,
	})
	if err != nil {
		s.sendError(wire.ErrCodeProtocolError, "Internal error")
		s.Close()
		return
	}
	s.logMessageOut(wire.MessageTypeHandshakeResponse)
	s.enqueue(resp)
}

// handleAuthenticated dispatches a post-handshake message keyed on the
// envelope's message_type. Per-message validation failures answer with
// MALFORMED_MESSAGE or PROTOCOL_ERROR and keep the connection open;
// unrecognized input is logged and otherwise ignored.
func (s *Session) handleAuthenticated(data []byte) {
	env, err := wire.DecodeEnvelope(data)
	if err != nil {
		s.appDebug("ignoring unparseable message", "err", err)
		return
	}

	switch env.MessageType {
	case wire.MessageTypeAction:
		msg, err := wire.DecodeAction(env)
		if err != nil {
			s.logErrorEvent(wire.ErrCodeMalformedMessage, err.Error())
			s.sendError(wire.ErrCodeMalformedMessage, "Malformed ACTION message")
			return
		}
		if !s.checkSessionID(msg.SessionID) {
			return
		}
		if last := s.lastSeq.Load(); msg.SequenceNumber <= last {
			s.logPolicy(fmt.Sprintf("sequence number %d not above %d", msg.SequenceNumber, last))
			s.sendError(wire.ErrCodeProtocolError, "Invalid sequence number - possible replay attack")
			return
		}
		s.lastSeq.Store(msg.SequenceNumber)
		s.logMessageIn(wire.MessageTypeAction)
		if h := s.cfg.Handler; h != nil {
			h.OnAction(s, msg)
		}
		s.armDeadline(s.cfg.IdleTimeout)

	case wire.MessageTypeReloadRequest:
		msg, err := wire.DecodeReloadRequest(env)
		if err != nil {
			s.logErrorEvent(wire.ErrCodeMalformedMessage, err.Error())
			s.sendError(wire.ErrCodeMalformedMessage, "Malformed RELOAD_REQUEST message")
			return
		}
		if !s.checkSessionID(msg.SessionID) {
			return
		}
		s.logMessageIn(wire.MessageTypeReloadRequest)
		if h := s.cfg.Handler; h != nil {
			h.OnReloadRequest(s, msg)
		}
		s.armDeadline(s.cfg.IdleTimeout)

	case wire.MessageTypeDisconnect:
		msg, err := wire.DecodeDisconnect(env)
		if err != nil {
			s.logErrorEvent(wire.ErrCodeMalformedMessage, err.Error())
			s.sendError(wire.ErrCodeMalformedMessage, "Malformed DISCONNECT message")
			return
		}
		if !s.checkSessionID(msg.SessionID) {
			return
		}
		// A DISCONNECT announces intent; the peer closes the transport
		// and the read loop tears the session down then.
		s.logMessageIn(wire.MessageTypeDisconnect)
		if h := s.cfg.Handler; h != nil {
			h.OnDisconnect(s, msg)
		}
		s.armDeadline(s.cfg.IdleTimeout)

	default:
		s.appDebug("ignoring unknown message type", "message_type", string(env.MessageType))
	}
}

// checkSessionID validates the session_id a client message carries.
// On failure an ERROR is sent and false returned; the connection stays
// open.
func (s *Session) checkSessionID(provided string) bool {
	switch {
	case provided == "":
		s.sendError(wire.ErrCodeProtocolError, "Session ID is required")
		return false
	case len(provided) > s.cfg.MaxSessionIDLength:
		s.sendError(wire.ErrCodeProtocolError, "Session ID exceeds maximum length")
		return false
	case provided != s.ID():
		s.sendError(wire.ErrCodeProtocolError, "Session ID mismatch")
		return false
	}
	return true
}

// sendError enqueues an ERROR frame. Encoding failures are swallowed;
// there is nothing further to tell the peer.
func (s *Session) sendError(code wire.ErrorCode, message string) {
	msg := &wire.Error{ErrorCode: code, Message: message}
	if id := s.ID(); id != "" {
		msg.SessionID = &id
	}
	data, err := wire.EncodeError(msg)
	if err != nil {
		return
	}
	s.logErrorOut(code)
	s.enqueue(data)
}

// SendStateUpdate encodes and enqueues a STATE_UPDATE frame.
func (s *Session) SendStateUpdate(msg *wire.StateUpdate) error {
	data, err := wire.EncodeStateUpdate(msg)
	if err != nil {
		return err
	}
	s.logMessageOut(wire.MessageTypeStateUpdate)
	s.enqueue(data)
	return nil
}

// SendReloadResponse encodes and enqueues a RELOAD_RESPONSE frame.
func (s *Session) SendReloadResponse(msg *wire.ReloadResponse) error {
	data, err := wire.EncodeReloadResponse(msg)
	if err != nil {
		return err
	}
	s.logMessageOut(wire.MessageTypeReloadResponse)
	s.enqueue(data)
	return nil
}

// Send enqueues a pre-encoded frame.
func (s *Session) Send(data []byte) {
	s.enqueue(data)
}

// enqueue appends to the bounded write queue and starts the writer if
// idle. When the queue is full the message is dropped and logged; the
// session stays up.
func (s *Session) enqueue(data []byte) {
	if s.State() == StateClosed {
		return
	}

	s.writeMu.Lock()
	if len(s.writeQueue) >= s.cfg.MaxWriteQueue {
		s.writeMu.Unlock()
		s.logPolicy("write queue full, dropping message")
		return
	}
	s.writeQueue = append(s.writeQueue, data)
	start := !s.writing
	if start {
		s.writing = true
	}
	s.writeMu.Unlock()

	if start {
		go s.writeLoop()
	}
}

// writeLoop drains the queue with one write in flight. A message is
// removed only after its write succeeded. When the queue empties with
// a close pending, teardown runs here so queued frames were flushed
// first.
func (s *Session) writeLoop() {
	for {
		s.writeMu.Lock()
		if len(s.writeQueue) == 0 {
			s.writing = false
			requested := s.closeRequested
			s.writeMu.Unlock()
			if requested {
				s.teardown()
			}
			return
		}
		data := s.writeQueue[0]
		s.writeMu.Unlock()

		if err := s.conn.WriteFrame(data); err != nil {
			s.appDebug("write failed", "err", err)
			s.writeMu.Lock()
			s.writeQueue = nil
			s.writing = false
			s.writeMu.Unlock()
			s.teardown()
			return
		}

		s.writeMu.Lock()
		s.writeQueue = s.writeQueue[1:]
		s.writeMu.Unlock()
	}
}

// Close initiates a graceful shutdown. If a write is in flight the
// close is deferred until the queue drains so pending frames reach the
// peer. Safe to call from any goroutine, any number of times.
func (s *Session) Close() {
	if s.State() == StateClosed {
		return
	}

	s.writeMu.Lock()
	if s.writing {
		s.closeRequested = true
		s.writeMu.Unlock()
		return
	}
	s.writeMu.Unlock()

	s.teardown()
}

// teardown moves the session to the terminal state exactly once,
// unregisters it and closes the transport.
func (s *Session) teardown() {
	var old State
	for {
		cur := s.state.Load()
		if cur == int32(StateClosed) {
			return
		}
		if s.state.CompareAndSwap(cur, int32(StateClosed)) {
			old = State(cur)
			break
		}
	}

	s.stopDeadline()
	if id := s.ID(); id != "" && s.reg != nil {
		s.reg.Unregister(id)
	}
	_ = s.conn.Close()
	s.logStateChange(old, StateClosed)
}

// armDeadline (re)schedules the single deadline timer. It covers the
// handshake timeout before authentication and the idle timeout after.
func (s *Session) armDeadline(d time.Duration) {
	s.deadlineMu.Lock()
	defer s.deadlineMu.Unlock()
	if s.deadline != nil {
		s.deadline.Stop()
	}
	s.deadline = time.AfterFunc(d, s.onDeadline)
}

func (s *Session) stopDeadline() {
	s.deadlineMu.Lock()
	defer s.deadlineMu.Unlock()
	if s.deadline != nil {
		s.deadline.Stop()
		s.deadline = nil
	}
}

// onDeadline fires when the armed timeout elapses. Before the handshake
// there is no peer worth notifying, so the transport is closed
// directly; afterwards the close is graceful.
func (s *Session) onDeadline() {
	switch s.State() {
	case StateClosed:
		return
	case StateUnauthenticated:
		s.logPolicy("handshake timeout")
		s.teardown()
	case StateAuthenticated:
		s.logPolicy("idle timeout")
		s.Close()
	}
}

func (s *Session) remoteAddr() string {
	if addr := s.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (s *Session) appDebug(msg string, args ...any) {
	if s.cfg.AppLogger != nil {
		s.cfg.AppLogger.Debug(msg, append([]any{"conn_id", s.connID}, args...)...)
	}
}

func (s *Session) logEvent(ev log.Event) {
	if s.cfg.Logger == nil {
		return
	}
	ev.Timestamp = time.Now()
	ev.ConnectionID = s.connID
	ev.SessionID = s.ID()
	ev.RemoteAddr = s.remoteAddr()
	s.cfg.Logger.Log(ev)
}

func (s *Session) logMessageIn(t wire.MessageType) {
	s.logEvent(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerSession,
		Category:  log.CategoryMessage,
		Message:   &log.MessageEvent{Type: string(t)},
	})
}

func (s *Session) logMessageOut(t wire.MessageType) {
	s.logEvent(log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerSession,
		Category:  log.CategoryMessage,
		Message:   &log.MessageEvent{Type: string(t)},
	})
}

func (s *Session) logErrorOut(code wire.ErrorCode) {
	s.logEvent(log.Event{
		Direction: log.DirectionOut,
		Layer:     log.LayerSession,
		Category:  log.CategoryMessage,
		Message:   &log.MessageEvent{Type: string(wire.MessageTypeError), ErrorCode: string(code)},
	})
}

func (s *Session) logErrorEvent(code wire.ErrorCode, detail string) {
	s.logEvent(log.Event{
		Direction: log.DirectionIn,
		Layer:     log.LayerWire,
		Category:  log.CategoryError,
		Error:     &log.ErrorEventData{Message: string(code) + ": " + detail},
	})
}

func (s *Session) logPolicy(detail string) {
	s.logEvent(log.Event{
		Layer:    log.LayerSession,
		Category: log.CategoryPolicy,
		Error:    &log.ErrorEventData{Message: detail},
	})
}

func (s *Session) logStateChange(from, to State) {
	s.logEvent(log.Event{
		Layer:       log.LayerSession,
		Category:    log.CategoryState,
		StateChange: &log.StateChangeEvent{OldState: from.String(), NewState: to.String()},
	})
}
