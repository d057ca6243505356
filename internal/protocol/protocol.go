package protocol

import "github.com/bytedance/sonic"

const Version = "1.0"

// Bridge message types.
const (
	// hook -> tool
	TypeHello  = "HELLO"
	TypePacket = "PACKET"
	TypeState  = "STATE"
	TypeSignal = "SIGNAL"
	TypeChat   = "CHAT"
	TypeName   = "NAME"

	// tool -> hook
	TypeWelcome = "WELCOME"
	TypeNameReq = "NAME_REQ"
	TypeCommand = "COMMAND"
	TypeNotice  = "NOTICE"
	TypeFrame   = "FRAME"
	TypeError   = "ERROR"
)

// Signals carried by SIGNAL messages.
const (
	SignalReload = "RELOAD"
	SignalPickup = "PICKUP"
	SignalFrame  = "FRAME"
)

// Commands carried by COMMAND messages.
const (
	CommandPickup     = "PICKUP"
	CommandUseItem    = "USE_ITEM"
	CommandRepair     = "REPAIR"
	CommandScreenshot = "SCREENSHOT"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := sonic.Unmarshal(b, &m)
	return m, err
}
