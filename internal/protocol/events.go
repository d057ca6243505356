package protocol

import (
	"encoding/binary"

	"mutool.ai/internal/item"
)

// Server packet codes understood by the classifier.
const (
	CodeDamage            byte = 0x11
	CodeDeath             byte = 0x17
	CodeMagicAttackResult byte = 0x19
	CodeItemList          byte = 0x20
	CodeItemGetResult     byte = 0x22
	CodeItemDurability    byte = 0x2A
	CodePartyItemInfo     byte = 0x47
	CodeExperience        byte = 0x9C
)

// EntityIDMask strips the flag bit the server sets on entity ids.
const EntityIDMask = 0x7FFF

// ItemWireSize is the size of a full item record inside packets.
const ItemWireSize = 9

// Event is a typed server event or a synthetic signal.
type Event interface {
	EventName() string
}

// Damage is sent for hits the local actor deals or takes.
type Damage struct {
	TargetID     uint16
	Damage       uint16
	Kind         uint8
	ShieldDamage uint16
}

// Experience is sent when the local actor kills a monster.
type Experience struct {
	VictimID   uint16
	Experience uint32
	Damage     uint16
}

type Death struct {
	VictimID   uint16
	Skill      uint8
	AttackerID uint16
}

type MagicAttackResult struct {
	Skill    uint16
	SourceID uint16
	TargetID uint16
}

type ItemListEntry struct {
	ID   uint16
	X, Y uint8
}

// Slot is the loot table index of the entry.
func (e ItemListEntry) Slot() int { return int(e.ID & EntityIDMask) }

// ItemList announces items spawned on the ground.
type ItemList struct {
	Items []ItemListEntry
}

type ItemGetOutcome uint8

const (
	ItemGetFailed ItemGetOutcome = iota
	ItemGetMoney
	ItemGetStack
	ItemGetItem
)

const (
	itemGetFail  = 0xFF
	itemGetMoney = 0xFE
	itemGetStack = 0xFD
)

// ItemGetResult answers the local actor's pickup request.
type ItemGetResult struct {
	Outcome ItemGetOutcome
	Slot    uint8
	Money   uint32
	Item    item.Item
}

type ItemDurability struct {
	Index      uint8
	Durability uint8
	Flag       uint8
}

// PartyItemInfo reports an item a party member picked up.
type PartyItemInfo struct {
	MemberID uint16
	Item     item.Fingerprint
}

// WorldReload marks a map change or relog.
type WorldReload struct{}

// PickupTrigger is raised when the user presses the pickup key.
type PickupTrigger struct{}

func (Damage) EventName() string            { return "Damage" }
func (Experience) EventName() string        { return "Experience" }
func (Death) EventName() string             { return "Death" }
func (MagicAttackResult) EventName() string { return "MagicAttackResult" }
func (ItemList) EventName() string          { return "ItemList" }
func (ItemGetResult) EventName() string     { return "ItemGetResult" }
func (ItemDurability) EventName() string    { return "ItemDurability" }
func (PartyItemInfo) EventName() string     { return "PartyItemInfo" }
func (WorldReload) EventName() string       { return "WorldReload" }
func (PickupTrigger) EventName() string     { return "PickupTrigger" }

func be16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }

func decodeDamage(p Packet) (Event, bool) {
	if p.Code != CodeDamage || len(p.Data) < 7 {
		return nil, false
	}
	return Damage{
		TargetID:     be16(p.Data[0:2]) & EntityIDMask,
		Damage:       be16(p.Data[2:4]),
		Kind:         p.Data[4],
		ShieldDamage: be16(p.Data[5:7]),
	}, true
}

func decodeExperience(p Packet) (Event, bool) {
	if p.Code != CodeExperience || len(p.Data) < 8 {
		return nil, false
	}
	return Experience{
		VictimID:   be16(p.Data[0:2]) & EntityIDMask,
		Experience: binary.BigEndian.Uint32(p.Data[2:6]),
		Damage:     be16(p.Data[6:8]),
	}, true
}

func decodeDeath(p Packet) (Event, bool) {
	if p.Code != CodeDeath || len(p.Data) < 5 {
		return nil, false
	}
	return Death{
		VictimID:   be16(p.Data[0:2]) & EntityIDMask,
		Skill:      p.Data[2],
		AttackerID: be16(p.Data[3:5]) & EntityIDMask,
	}, true
}

func decodeMagicAttackResult(p Packet) (Event, bool) {
	if p.Code != CodeMagicAttackResult || len(p.Data) < 6 {
		return nil, false
	}
	return MagicAttackResult{
		Skill:    be16(p.Data[0:2]),
		SourceID: be16(p.Data[2:4]) & EntityIDMask,
		TargetID: be16(p.Data[4:6]) & EntityIDMask,
	}, true
}

const itemListEntrySize = 4

func decodeItemList(p Packet) (Event, bool) {
	if p.Code != CodeItemList || len(p.Data) < 1 {
		return nil, false
	}
	n := int(p.Data[0])
	body := p.Data[1:]
	if len(body) < n*itemListEntrySize {
		return nil, false
	}
	list := ItemList{Items: make([]ItemListEntry, 0, n)}
	for i := 0; i < n; i++ {
		e := body[i*itemListEntrySize:]
		list.Items = append(list.Items, ItemListEntry{ID: be16(e[0:2]), X: e[2], Y: e[3]})
	}
	return list, true
}

func decodeItemGetResult(p Packet) (Event, bool) {
	if p.Code != CodeItemGetResult || len(p.Data) < 1 {
		return nil, false
	}
	switch p.Data[0] {
	case itemGetFail:
		return ItemGetResult{Outcome: ItemGetFailed}, true
	case itemGetMoney:
		if len(p.Data) < 5 {
			return nil, false
		}
		return ItemGetResult{Outcome: ItemGetMoney, Money: binary.BigEndian.Uint32(p.Data[1:5])}, true
	}
	if len(p.Data) < 1+ItemWireSize {
		return nil, false
	}
	res := ItemGetResult{Outcome: ItemGetItem, Slot: p.Data[0], Item: DecodeItem(p.Data[1:])}
	if p.Data[0] == itemGetStack {
		res.Outcome, res.Slot = ItemGetStack, 0
	}
	return res, true
}

func decodeItemDurability(p Packet) (Event, bool) {
	if p.Code != CodeItemDurability || len(p.Data) < 3 {
		return nil, false
	}
	return ItemDurability{Index: p.Data[0], Durability: p.Data[1], Flag: p.Data[2]}, true
}

func decodePartyItemInfo(p Packet) (Event, bool) {
	if p.Code != CodePartyItemInfo || len(p.Data) < 2+item.FingerprintSize {
		return nil, false
	}
	var fp item.Fingerprint
	if err := fp.UnmarshalBinary(p.Data[2:]); err != nil {
		return nil, false
	}
	return PartyItemInfo{MemberID: be16(p.Data[0:2]) & EntityIDMask, Item: fp}, true
}

// DecodeItem reads a 9-byte item record: code, modifier, excellent,
// ancient, durability.
func DecodeItem(b []byte) item.Item {
	return item.Item{
		Code:       item.Code(be16(b[0:2])),
		Modifier:   binary.BigEndian.Uint32(b[2:6]),
		Excellent:  b[6],
		Ancient:    b[7],
		Durability: b[8],
	}
}

func EncodeItem(it item.Item) []byte {
	b := make([]byte, ItemWireSize)
	binary.BigEndian.PutUint16(b[0:2], uint16(it.Code))
	binary.BigEndian.PutUint32(b[2:6], it.Modifier)
	b[6], b[7], b[8] = it.Excellent, it.Ancient, it.Durability
	return b
}
