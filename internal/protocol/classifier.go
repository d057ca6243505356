package protocol

// Decoder turns a packet into a typed event. It reports false when the
// packet is not its kind.
type Decoder func(Packet) (Event, bool)

// DefaultDecoders lists every decoder in classification order.
func DefaultDecoders() []Decoder {
	return []Decoder{
		decodeItemList,
		decodePartyItemInfo,
		decodeItemGetResult,
		decodeMagicAttackResult,
		decodeDamage,
		decodeExperience,
		decodeDeath,
		decodeItemDurability,
	}
}

// Classifier tries an ordered decoder list; the first match wins.
type Classifier struct {
	decoders []Decoder
}

func NewClassifier(decoders ...Decoder) *Classifier {
	if len(decoders) == 0 {
		decoders = DefaultDecoders()
	}
	return &Classifier{decoders: decoders}
}

// Classify normalizes and frames raw, then decodes it. A nil event with a
// nil error means no decoder recognized the packet.
func (c *Classifier) Classify(raw []byte) (Event, error) {
	p, err := Parse(Normalize(raw))
	if err != nil {
		return nil, err
	}
	return c.Decode(p), nil
}

func (c *Classifier) Decode(p Packet) Event {
	for _, d := range c.decoders {
		if ev, ok := d(p); ok {
			return ev
		}
	}
	return nil
}
