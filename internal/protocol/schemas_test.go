package protocol_test

import (
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"mutool.ai/internal/item"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/render"
	"mutool.ai/internal/world"
)

func TestSchemas_ValidateMessages(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	// Go message -> JSON -> generic value, as a hook would see it.
	validate := func(name string, msg any) {
		t.Helper()
		b, err := sonic.Marshal(msg)
		if err != nil {
			t.Fatalf("%s: marshal: %v", name, err)
		}
		var v any
		if err := sonic.Unmarshal(b, &v); err != nil {
			t.Fatalf("%s: unmarshal: %v", name, err)
		}
		if err := compile(name).Validate(v); err != nil {
			t.Fatalf("%s: validate %s: %v", name, b, err)
		}
	}

	bless := item.Item{Code: item.New(item.GroupHelper, 13), Durability: 1}

	validate("hello.schema.json", protocol.HelloMsg{
		Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "hook", MaxQueue: 64,
	})
	validate("welcome.schema.json", protocol.WelcomeMsg{
		Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, SessionID: "5b1c", Modules: []string{"BuffTimer"},
	})
	validate("packet.schema.json", protocol.PacketMsg{
		Type: protocol.TypePacket, Data: protocol.Build(protocol.CodeDamage, []byte{0, 1, 0, 10, 0, 0, 0}),
	})
	validate("state.schema.json", protocol.StateMsg{Type: protocol.TypeState, World: world.Snapshot{
		LocalID:   1,
		Character: &world.Stats{Level: 120, Experience: 1000, Energy: 400, Health: 80, MaxHealth: 100},
		Entities:  []world.Entity{{ID: 1, Name: "Hero", Active: true}},
		Loot:      []world.ItemEntity{{Slot: 3, Item: bless, Active: true, OnGround: true, Position: world.Vec3{X: 12}}},
		Inventory: []world.InventoryItem{{Slot: 5, Item: bless}},
		Equipment: []world.EquippedItem{{Slot: world.SlotArmor, Item: item.Item{Code: item.New(item.GroupArmor, 1)}}},
	}})
	validate("signal.schema.json", protocol.SignalMsg{Type: protocol.TypeSignal, Signal: protocol.SignalPickup})
	validate("chat.schema.json", protocol.ChatMsg{Type: protocol.TypeChat, Text: "/stats"})
	validate("name.schema.json", protocol.NameMsg{Type: protocol.TypeName, ReqID: 1, Name: "Kris"})
	validate("name_req.schema.json", protocol.NameReqMsg{Type: protocol.TypeNameReq, ReqID: 1, Code: 0, Level: 15})
	validate("command.schema.json", protocol.CommandMsg{Type: protocol.TypeCommand, Command: protocol.CommandUseItem, Slot: 19})
	validate("notice.schema.json", protocol.NoticeMsg{Type: protocol.TypeNotice, Text: "Using Healing Potion"})
	validate("frame.schema.json", protocol.FrameMsg{Type: protocol.TypeFrame, Ops: []render.Op{
		{Kind: render.OpRect, X: 549.6, Y: 400, W: 90.4, H: 26.4, FG: render.Black.Alpha(0x99)},
		{Kind: render.OpText, X: 553, Y: 404, Text: "Hero", FG: render.FromString("Hero"), BG: render.Transparent},
	}})
	validate("error.schema.json", protocol.ErrorMsg{Type: protocol.TypeError, Code: protocol.ErrBridgeBusy, Message: "busy"})
}

func TestSchemas_RejectBadSignal(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "signal.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var v any
	_ = sonic.Unmarshal([]byte(`{"type":"SIGNAL","signal":"JUMP"}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("unknown signal should not validate")
	}
}
