package bridge

import (
	"context"
	"fmt"
	"time"

	"mutool.ai/internal/item"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/render"
)

// Command asks the hook to perform an in-game action.
func (s *Server) Command(command string, slot int) error {
	return s.Send(protocol.CommandMsg{Type: protocol.TypeCommand, Command: command, Slot: slot})
}

// ShowNotice displays text in the client's notice area. Failures are
// logged only.
func (s *Server) ShowNotice(text string) {
	if err := s.Send(protocol.NoticeMsg{Type: protocol.TypeNotice, Text: text}); err != nil {
		s.log.Debug().Err(err).Str("text", text).Msg("Failed to show notice")
	}
}

// SendFrame answers a FRAME signal with the recorded draw calls.
func (s *Server) SendFrame(ops []render.Op) error {
	if ops == nil {
		ops = []render.Op{}
	}
	return s.Send(protocol.FrameMsg{Type: protocol.TypeFrame, Ops: ops})
}

// NameResolver resolves item names through the attached hook.
type NameResolver struct {
	srv     *Server
	timeout time.Duration
}

func (s *Server) NameResolver(timeout time.Duration) *NameResolver {
	return &NameResolver{srv: s, timeout: timeout}
}

// ResolveName sends a NAME_REQ and waits for the matching NAME.
func (r *NameResolver) ResolveName(ctx context.Context, code item.Code, level uint8) (string, error) {
	sess := r.srv.current()
	if sess == nil {
		return "", ErrNotConnected
	}
	id, ch := sess.request()
	defer sess.forget(id)

	err := r.srv.enqueue(sess, protocol.NameReqMsg{
		Type:  protocol.TypeNameReq,
		ReqID: id,
		Code:  uint16(code),
		Level: level,
	})
	if err != nil {
		return "", err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	select {
	case name := <-ch:
		return name, nil
	case <-sess.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", fmt.Errorf("resolve %s level %d: %w", code, level, ctx.Err())
	}
}

func (s *session) request() (uint64, chan string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextReq++
	ch := make(chan string, 1)
	s.pending[s.nextReq] = ch
	return s.nextReq, ch
}

func (s *session) forget(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

func (s *session) answer(id uint64, name string) bool {
	s.mu.Lock()
	ch, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	ch <- name
	return true
}
