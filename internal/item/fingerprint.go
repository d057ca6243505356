package item

import (
	"encoding/binary"
	"errors"
)

// Fingerprint is the compact attribute tuple the server echoes back when an
// item is picked up. It carries no identity or position, so two drops of the
// same kind share a fingerprint.
type Fingerprint struct {
	Code      Code
	Level     uint8
	HasOption bool
	Excellent bool
	Skill     bool
	Luck      bool
	Ancient   bool
}

const FingerprintSize = 4

const (
	fpSkill     = 0x80
	fpLuck      = 0x40
	fpOption    = 0x20
	fpExcellent = 0x10
	fpAncient   = 0x08
)

var ErrShortFingerprint = errors.New("short item fingerprint")

func (it Item) Fingerprint() Fingerprint {
	return Fingerprint{
		Code:      it.Code,
		Level:     it.Level(),
		HasOption: it.Option() > 0,
		Excellent: it.IsExcellent(),
		Skill:     it.HasSkill(),
		Luck:      it.HasLuck(),
		Ancient:   it.IsAncient(),
	}
}

func (f Fingerprint) MarshalBinary() ([]byte, error) {
	b := make([]byte, FingerprintSize)
	binary.BigEndian.PutUint16(b[0:2], uint16(f.Code))
	var flags byte
	if f.Skill {
		flags |= fpSkill
	}
	if f.Luck {
		flags |= fpLuck
	}
	if f.HasOption {
		flags |= fpOption
	}
	if f.Excellent {
		flags |= fpExcellent
	}
	if f.Ancient {
		flags |= fpAncient
	}
	b[2] = flags
	b[3] = f.Level & 0xF
	return b, nil
}

func (f *Fingerprint) UnmarshalBinary(b []byte) error {
	if len(b) < FingerprintSize {
		return ErrShortFingerprint
	}
	flags := b[2]
	*f = Fingerprint{
		Code:      Code(binary.BigEndian.Uint16(b[0:2])),
		Level:     b[3] & 0xF,
		HasOption: flags&fpOption != 0,
		Excellent: flags&fpExcellent != 0,
		Skill:     flags&fpSkill != 0,
		Luck:      flags&fpLuck != 0,
		Ancient:   flags&fpAncient != 0,
	}
	return nil
}
