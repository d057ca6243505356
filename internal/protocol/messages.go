package protocol

import (
	"mutool.ai/internal/render"
	"mutool.ai/internal/world"
)

// HELLO (hook -> tool)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (tool -> hook)
type WelcomeMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SessionID       string   `json:"session_id"`
	Modules         []string `json:"modules,omitempty"`
}

// PACKET (hook -> tool): one raw server packet.
type PacketMsg struct {
	Type string `json:"type"`
	Data []byte `json:"data"`
}

// STATE (hook -> tool): world mirror snapshot.
type StateMsg struct {
	Type  string         `json:"type"`
	World world.Snapshot `json:"world"`
}

type SignalMsg struct {
	Type   string `json:"type"`
	Signal string `json:"signal"`
}

type ChatMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NAME (hook -> tool) answers a NAME_REQ.
type NameMsg struct {
	Type  string `json:"type"`
	ReqID uint64 `json:"req_id"`
	Name  string `json:"name"`
}

type NameReqMsg struct {
	Type  string `json:"type"`
	ReqID uint64 `json:"req_id"`
	Code  uint16 `json:"code"`
	Level uint8  `json:"level"`
}

type CommandMsg struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Slot    int    `json:"slot,omitempty"`
}

type NoticeMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// FRAME (tool -> hook): draw operations for the current frame.
type FrameMsg struct {
	Type string      `json:"type"`
	Ops  []render.Op `json:"ops"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
