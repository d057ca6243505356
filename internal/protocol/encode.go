package protocol

import (
	"encoding/binary"
	"fmt"
)

// Encode frames a server event as the game would send it. Synthetic events
// have no wire form.
func Encode(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case Damage:
		b := make([]byte, 7)
		binary.BigEndian.PutUint16(b[0:2], e.TargetID)
		binary.BigEndian.PutUint16(b[2:4], e.Damage)
		b[4] = e.Kind
		binary.BigEndian.PutUint16(b[5:7], e.ShieldDamage)
		return Build(CodeDamage, b), nil
	case Experience:
		b := make([]byte, 8)
		binary.BigEndian.PutUint16(b[0:2], e.VictimID)
		binary.BigEndian.PutUint32(b[2:6], e.Experience)
		binary.BigEndian.PutUint16(b[6:8], e.Damage)
		return Build(CodeExperience, b), nil
	case Death:
		b := make([]byte, 5)
		binary.BigEndian.PutUint16(b[0:2], e.VictimID)
		b[2] = e.Skill
		binary.BigEndian.PutUint16(b[3:5], e.AttackerID)
		return Build(CodeDeath, b), nil
	case MagicAttackResult:
		b := make([]byte, 6)
		binary.BigEndian.PutUint16(b[0:2], e.Skill)
		binary.BigEndian.PutUint16(b[2:4], e.SourceID)
		binary.BigEndian.PutUint16(b[4:6], e.TargetID)
		return Build(CodeMagicAttackResult, b), nil
	case ItemList:
		if len(e.Items) > 0xFF {
			return nil, fmt.Errorf("item list: %d entries", len(e.Items))
		}
		b := make([]byte, 1, 1+len(e.Items)*itemListEntrySize)
		b[0] = byte(len(e.Items))
		for _, it := range e.Items {
			b = binary.BigEndian.AppendUint16(b, it.ID)
			b = append(b, it.X, it.Y)
		}
		return Packet{Header: HeaderC2, Code: CodeItemList, Data: b}.Bytes(), nil
	case ItemGetResult:
		switch e.Outcome {
		case ItemGetFailed:
			return Build(CodeItemGetResult, []byte{itemGetFail}), nil
		case ItemGetMoney:
			b := []byte{itemGetMoney, 0, 0, 0, 0}
			binary.BigEndian.PutUint32(b[1:], e.Money)
			return Build(CodeItemGetResult, b), nil
		case ItemGetStack:
			return Build(CodeItemGetResult, append([]byte{itemGetStack}, EncodeItem(e.Item)...)), nil
		}
		return Build(CodeItemGetResult, append([]byte{e.Slot}, EncodeItem(e.Item)...)), nil
	case ItemDurability:
		return Build(CodeItemDurability, []byte{e.Index, e.Durability, e.Flag}), nil
	case PartyItemInfo:
		fp, _ := e.Item.MarshalBinary()
		b := binary.BigEndian.AppendUint16(nil, e.MemberID)
		return Build(CodePartyItemInfo, append(b, fp...)), nil
	}
	return nil, fmt.Errorf("no wire form for %s", ev.EventName())
}
