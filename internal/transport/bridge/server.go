// Package bridge serves the websocket the in-game hook connects to. Only
// one hook may be attached at a time.
package bridge

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mutool.ai/internal/protocol"
)

var (
	ErrNotConnected = errors.New("bridge: no hook connected")
	ErrQueueFull    = errors.New("bridge: send queue full")
	ErrClosed       = errors.New("bridge: session closed")
)

// Synthetic inbound types raised by the server itself.
const (
	TypeConnected    = "CONNECTED"
	TypeDisconnected = "DISCONNECTED"
)

// Inbound is one frame received from the hook, with its raw JSON.
type Inbound struct {
	Session string
	Type    string
	Raw     []byte
}

type Options struct {
	Log zerolog.Logger
	// SendQueue bounds the per-session outbound queue.
	SendQueue int
	// InboxSize bounds frames waiting for the runtime.
	InboxSize int
	// Modules lists the active modules for WELCOME.
	Modules func() []string
}

type Server struct {
	log      zerolog.Logger
	opts     Options
	upgrader websocket.Upgrader

	inbox     chan Inbound
	dropped   atomic.Uint64
	closed    chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	sess *session
}

type session struct {
	id   string
	out  chan []byte
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	nextReq uint64
	pending map[uint64]chan string
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}

func NewServer(opts Options) *Server {
	if opts.SendQueue <= 0 {
		opts.SendQueue = 256
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 1024
	}
	return &Server{
		log:  opts.Log.With().Str("component", "bridge").Logger(),
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			// The hook runs on the same machine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		inbox:  make(chan Inbound, opts.InboxSize),
		closed: make(chan struct{}),
	}
}

// Close stops waiting for the runtime to accept CONNECTED and
// DISCONNECTED frames. Call it once the inbox is no longer read.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// Inbox yields frames from the hook in arrival order.
func (s *Server) Inbox() <-chan Inbound { return s.inbox }

// Dropped counts data frames discarded because the inbox was full.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

// Connected reports whether a hook is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess != nil
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := s.handshake(conn)
		if sess == nil {
			return
		}
		defer s.detach(sess)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-sess.done:
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.route(sess, msg)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) *session {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = writeJSON(conn, errorMsg(protocol.ErrProtoBadRequest, "expected HELLO"))
		return nil
	}
	var hello protocol.HelloMsg
	if err := sonic.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, errorMsg(protocol.ErrProtoVersion, "bad protocol_version"))
		return nil
	}

	queue := s.opts.SendQueue
	if hello.MaxQueue > 0 && hello.MaxQueue < queue {
		queue = hello.MaxQueue
	}
	sess := &session{
		id:      uuid.NewString(),
		out:     make(chan []byte, queue),
		done:    make(chan struct{}),
		pending: map[uint64]chan string{},
	}

	s.mu.Lock()
	busy := s.sess != nil
	if !busy {
		s.sess = sess
	}
	s.mu.Unlock()
	if busy {
		s.log.Warn().Str("client", hello.ClientName).Msg("Refusing second hook")
		_ = writeJSON(conn, errorMsg(protocol.ErrBridgeBusy, "another hook is attached"))
		return nil
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sess.id,
	}
	if s.opts.Modules != nil {
		welcome.Modules = s.opts.Modules()
	}
	if err := writeJSON(conn, welcome); err != nil {
		s.detach(sess)
		return nil
	}

	s.log.Info().Str("session", sess.id).Str("client", hello.ClientName).Msg("Hook connected")
	s.pushControl(Inbound{Session: sess.id, Type: TypeConnected, Raw: msg})
	return sess
}

func (s *Server) detach(sess *session) {
	s.mu.Lock()
	attached := s.sess == sess
	if attached {
		s.sess = nil
	}
	s.mu.Unlock()
	sess.close()
	if attached {
		s.log.Info().Str("session", sess.id).Msg("Hook disconnected")
		s.pushControl(Inbound{Session: sess.id, Type: TypeDisconnected})
	}
}

func (s *Server) route(sess *session, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.reply(sess, errorMsg(protocol.ErrProtoBadRequest, "invalid json"))
		return
	}
	switch base.Type {
	case protocol.TypeName:
		var m protocol.NameMsg
		if err := sonic.Unmarshal(msg, &m); err != nil {
			s.reply(sess, errorMsg(protocol.ErrProtoBadRequest, "invalid NAME"))
			return
		}
		if !sess.answer(m.ReqID, m.Name) {
			s.reply(sess, errorMsg(protocol.ErrUnknownReq, "no pending request"))
		}
	case protocol.TypePacket, protocol.TypeState, protocol.TypeSignal, protocol.TypeChat:
		s.push(Inbound{Session: sess.id, Type: base.Type, Raw: msg})
	default:
		s.reply(sess, errorMsg(protocol.ErrProtoBadRequest, "unsupported type "+base.Type))
	}
}

func (s *Server) push(in Inbound) {
	select {
	case s.inbox <- in:
	default:
		s.dropped.Add(1)
		s.log.Warn().Str("type", in.Type).Msg("Inbox full, dropping frame")
	}
}

// pushControl waits for room in the inbox so the runtime always sees
// session boundaries, in order with the data frames around them.
func (s *Server) pushControl(in Inbound) {
	select {
	case s.inbox <- in:
	case <-s.closed:
		s.log.Debug().Str("type", in.Type).Msg("Server closed, dropping frame")
	}
}

func (s *Server) current() *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess
}

// Send queues v for the attached hook.
func (s *Server) Send(v any) error {
	sess := s.current()
	if sess == nil {
		return ErrNotConnected
	}
	return s.enqueue(sess, v)
}

func (s *Server) reply(sess *session, v any) {
	if err := s.enqueue(sess, v); err != nil {
		s.log.Debug().Err(err).Msg("Failed to reply")
	}
}

func (s *Server) enqueue(sess *session, v any) error {
	b, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-sess.done:
		return ErrClosed
	default:
	}
	select {
	case sess.out <- b:
		return nil
	default:
		return ErrQueueFull
	}
}

func errorMsg(code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
