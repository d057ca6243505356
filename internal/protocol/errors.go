package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Bridge session.
	ErrBridgeBusy = "E_BRIDGE_BUSY"

	// Payload layer.
	ErrBadPacket     = "E_BAD_PACKET"
	ErrUnknownSignal = "E_UNKNOWN_SIGNAL"
	ErrUnknownReq    = "E_UNKNOWN_REQ"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBridgeBusy:      {},
	ErrBadPacket:       {},
	ErrUnknownSignal:   {},
	ErrUnknownReq:      {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
