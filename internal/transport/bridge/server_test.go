package bridge

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mutool.ai/internal/item"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/render"
)

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv := NewServer(Options{
		Log:     zerolog.Nop(),
		Modules: func() []string { return []string{"BuffTimer", "LootFilter"} },
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := sonic.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn, v any) protocol.BaseMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v != nil {
		if err := sonic.Unmarshal(b, v); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
	}
	return base
}

func nextInbound(t *testing.T, srv *Server) Inbound {
	t.Helper()
	select {
	case in := <-srv.Inbox():
		return in
	case <-time.After(2 * time.Second):
		t.Fatalf("no inbound frame")
		return Inbound{}
	}
}

func hello(t *testing.T, srv *Server, url string) (*websocket.Conn, protocol.WelcomeMsg) {
	t.Helper()
	conn := dial(t, url)
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "hook"})
	var w protocol.WelcomeMsg
	if base := read(t, conn, &w); base.Type != protocol.TypeWelcome {
		t.Fatalf("expected WELCOME, got %s", base.Type)
	}
	if in := nextInbound(t, srv); in.Type != TypeConnected || in.Session != w.SessionID {
		t.Fatalf("inbound=%+v", in)
	}
	return conn, w
}

func TestHandshake_Welcome(t *testing.T) {
	srv, url := startServer(t)
	_, w := hello(t, srv, url)
	if w.SessionID == "" || len(w.Modules) != 2 || w.ProtocolVersion != protocol.Version {
		t.Fatalf("welcome=%+v", w)
	}
	if !srv.Connected() {
		t.Fatalf("server should report a hook")
	}
}

func TestHandshake_Rejections(t *testing.T) {
	srv, url := startServer(t)

	conn := dial(t, url)
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1"})
	var e protocol.ErrorMsg
	read(t, conn, &e)
	if e.Code != protocol.ErrProtoVersion {
		t.Fatalf("error=%+v", e)
	}

	conn = dial(t, url)
	send(t, conn, protocol.ChatMsg{Type: protocol.TypeChat, Text: "hi"})
	read(t, conn, &e)
	if e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("error=%+v", e)
	}

	hello(t, srv, url)
	second := dial(t, url)
	send(t, second, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version})
	read(t, second, &e)
	if e.Code != protocol.ErrBridgeBusy {
		t.Fatalf("second hook: %+v", e)
	}
}

func TestRoute_InboundAndErrors(t *testing.T) {
	srv, url := startServer(t)
	conn, _ := hello(t, srv, url)

	send(t, conn, protocol.PacketMsg{Type: protocol.TypePacket, Data: []byte{0xC1, 0x04, 0x11, 0x00}})
	in := nextInbound(t, srv)
	if in.Type != protocol.TypePacket {
		t.Fatalf("inbound=%+v", in)
	}
	var pkt protocol.PacketMsg
	if err := sonic.Unmarshal(in.Raw, &pkt); err != nil || len(pkt.Data) != 4 {
		t.Fatalf("packet=%+v err=%v", pkt, err)
	}

	send(t, conn, map[string]any{"type": "BOGUS"})
	var e protocol.ErrorMsg
	read(t, conn, &e)
	if e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("error=%+v", e)
	}

	send(t, conn, protocol.NameMsg{Type: protocol.TypeName, ReqID: 99, Name: "x"})
	read(t, conn, &e)
	if e.Code != protocol.ErrUnknownReq {
		t.Fatalf("error=%+v", e)
	}
}

func TestOutbound_CommandsNoticesFrames(t *testing.T) {
	srv, url := startServer(t)
	conn, _ := hello(t, srv, url)

	if err := srv.Command(protocol.CommandPickup, 7); err != nil {
		t.Fatalf("command: %v", err)
	}
	var cmd protocol.CommandMsg
	read(t, conn, &cmd)
	if cmd.Command != protocol.CommandPickup || cmd.Slot != 7 {
		t.Fatalf("command=%+v", cmd)
	}

	srv.ShowNotice("Repairing Armor")
	var notice protocol.NoticeMsg
	read(t, conn, &notice)
	if notice.Text != "Repairing Armor" {
		t.Fatalf("notice=%+v", notice)
	}

	if err := srv.SendFrame([]render.Op{{Kind: render.OpText, Text: "Hero", FG: render.White}}); err != nil {
		t.Fatalf("frame: %v", err)
	}
	var frame protocol.FrameMsg
	read(t, conn, &frame)
	if len(frame.Ops) != 1 || frame.Ops[0].FG != render.White {
		t.Fatalf("frame=%+v", frame)
	}
}

func TestNameResolver_RoundTrip(t *testing.T) {
	srv, url := startServer(t)
	conn, _ := hello(t, srv, url)

	go func() {
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req protocol.NameReqMsg
			if sonic.Unmarshal(b, &req) != nil || req.Type != protocol.TypeNameReq {
				continue
			}
			name := ""
			if item.Code(req.Code) == item.New(item.GroupHelper, 13) {
				name = "Jewel of Bless"
			}
			b, _ = sonic.Marshal(protocol.NameMsg{Type: protocol.TypeName, ReqID: req.ReqID, Name: name})
			_ = conn.WriteMessage(websocket.TextMessage, b)
		}
	}()

	r := srv.NameResolver(2 * time.Second)
	got, err := r.ResolveName(context.Background(), item.New(item.GroupHelper, 13), 0)
	if err != nil || got != "Jewel of Bless" {
		t.Fatalf("resolve: %q %v", got, err)
	}
	got, err = r.ResolveName(context.Background(), item.New(item.GroupHelper, 200), 3)
	if err != nil || got != "" {
		t.Fatalf("resolve empty: %q %v", got, err)
	}
}

func TestDisconnect(t *testing.T) {
	srv, url := startServer(t)
	conn, w := hello(t, srv, url)
	_ = conn.Close()

	in := nextInbound(t, srv)
	if in.Type != TypeDisconnected || in.Session != w.SessionID {
		t.Fatalf("inbound=%+v", in)
	}
	if err := srv.Command(protocol.CommandRepair, 1); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if _, err := srv.NameResolver(time.Second).ResolveName(context.Background(), 1, 0); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("resolve after disconnect: %v", err)
	}
}

func TestInboxFull_KeepsSessionBoundaries(t *testing.T) {
	srv := NewServer(Options{Log: zerolog.Nop(), InboxSize: 1})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	conn := dial(t, url)
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "hook"})
	var w protocol.WelcomeMsg
	read(t, conn, &w)

	// CONNECTED fills the inbox, so these are dropped
	for i := 0; i < 3; i++ {
		send(t, conn, protocol.SignalMsg{Type: protocol.TypeSignal, Signal: protocol.SignalPickup})
	}
	deadline := time.Now().Add(2 * time.Second)
	for srv.Dropped() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("dropped=%d want 3", srv.Dropped())
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = conn.Close()

	if in := nextInbound(t, srv); in.Type != TypeConnected || in.Session != w.SessionID {
		t.Fatalf("inbound=%+v", in)
	}
	if in := nextInbound(t, srv); in.Type != TypeDisconnected || in.Session != w.SessionID {
		t.Fatalf("inbound=%+v", in)
	}
}

func TestClose_ReleasesBlockedControlFrames(t *testing.T) {
	srv := NewServer(Options{Log: zerolog.Nop(), InboxSize: 1})
	srv.inbox <- Inbound{Type: protocol.TypeSignal}

	done := make(chan struct{})
	go func() {
		srv.pushControl(Inbound{Type: TypeDisconnected})
		close(done)
	}()
	select {
	case <-done:
		t.Fatalf("control frame must wait for room")
	case <-time.After(50 * time.Millisecond):
	}
	srv.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Close did not release the sender")
	}
}
