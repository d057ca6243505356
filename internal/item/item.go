package item

import (
	"fmt"
	"strings"
)

// Code packs an item group (upper 7 bits) and id (lower 9 bits).
type Code uint16

type Group uint8

const (
	GroupSword Group = iota
	GroupAxe
	GroupMace
	GroupSpear
	GroupBow
	GroupStaff
	GroupShield
	GroupHelm
	GroupArmor
	GroupPants
	GroupGloves
	GroupBoots
	GroupWing
	GroupHelper
	GroupPotion
	GroupScroll
)

const (
	GroupCount  = 16
	IDsPerGroup = 512
	MaxLevel    = 15

	ZenCode Code = Code(uint16(GroupPotion)*IDsPerGroup + 15)
)

var groupNames = [GroupCount]string{
	"Sword", "Axe", "Mace", "Spear", "Bow", "Staff", "Shield", "Helm",
	"Armor", "Pants", "Gloves", "Boots", "Wing", "Helper", "Potion", "Scroll",
}

func (g Group) String() string {
	if int(g) < len(groupNames) {
		return groupNames[g]
	}
	return fmt.Sprintf("Group(%d)", uint8(g))
}

// Equipment reports whether items of this group carry a visible +level.
func (g Group) Equipment() bool { return g <= GroupBoots }

func New(g Group, id uint16) Code { return Code(uint16(g)*IDsPerGroup + id%IDsPerGroup) }

func (c Code) Group() Group { return Group(uint16(c) / IDsPerGroup) }
func (c Code) ID() uint16   { return uint16(c) % IDsPerGroup }

func (c Code) String() string { return fmt.Sprintf("%s/%d", c.Group(), c.ID()) }

type DurabilityStatus uint8

const (
	Perfect DurabilityStatus = iota
	Scratched
	Dented
	Damaged
	Shattered
	Destroyed
)

// Item is a borrowed snapshot of an item as the client stores it.
type Item struct {
	Code       Code             `json:"code" yaml:"code"`
	Modifier   uint32           `json:"modifier" yaml:"modifier"`
	Excellent  uint8            `json:"excellent" yaml:"excellent"`
	Ancient    uint8            `json:"ancient" yaml:"ancient"`
	Durability uint8            `json:"durability" yaml:"durability"`
	Status     DurabilityStatus `json:"status" yaml:"status"`
}

// modifier reads as zero for zen, whose modifier field holds the amount.
func (it Item) modifier() uint32 {
	if it.IsZen() {
		return 0
	}
	return it.Modifier
}

func (it Item) Level() uint8         { return uint8((it.modifier() >> 3) & 0xF) }
func (it Item) Option() uint8        { return uint8(it.modifier()&0x3) + ((it.Excellent >> 4) & 0x4) }
func (it Item) ExcellentBits() uint8 { return it.Excellent & 0x3F }
func (it Item) HasSkill() bool       { return (it.modifier()>>7)&0x1 > 0 }
func (it Item) HasLuck() bool        { return (it.modifier()>>2)&0x1 > 0 }
func (it Item) IsZen() bool          { return it.Code == ZenCode }
func (it Item) IsExcellent() bool    { return it.ExcellentBits() > 0 }
func (it Item) IsAncient() bool      { return it.Ancient%4 == 1 || it.Ancient%4 == 2 }

func (it Item) IsValuable() bool {
	return it.IsExcellent() || it.IsAncient() || (it.Code.Group().Equipment() && it.Level() > 4)
}

// ZenAmount is the currency amount carried by a zen drop.
func (it Item) ZenAmount() uint32 {
	if !it.IsZen() {
		return 0
	}
	return it.Modifier
}

// NameLevel is the level used when looking up the base display name.
// Equipment names do not vary with level.
func (it Item) NameLevel() uint8 {
	if it.Code.Group().Equipment() {
		return 0
	}
	return it.Level()
}

var (
	offensiveOptions = [6]string{"mana8", "hp8", "speed", "dmg", "dmg20", "xdmg"}
	defensiveOptions = [6]string{"zen", "dsr", "ref", "dd", "mana", "hp"}
)

// NameWithInfo decorates a base display name with level, option, skill,
// luck and excellent markers, e.g. "X Sphinx Pants+9+8+L+dd+dsr".
func (it Item) NameWithInfo(name string) string {
	if it.IsZen() {
		return fmt.Sprintf("Zen %d", it.Modifier)
	}

	var b strings.Builder
	if it.IsExcellent() {
		b.WriteString("X ")
	}
	b.WriteString(name)

	group := it.Code.Group()
	if group.Equipment() && (it.Option() > 0 || it.Level() > 0) {
		fmt.Fprintf(&b, "+%d", it.Level())
	}
	if opt := it.Option(); opt > 0 {
		switch {
		case group == GroupHelper:
			fmt.Fprintf(&b, "+%d%%", opt)
		case group == GroupShield:
			fmt.Fprintf(&b, "+%d", int(opt)*5)
		case group.Equipment():
			fmt.Fprintf(&b, "+%d", int(opt)*4)
		}
	}
	if it.HasSkill() {
		b.WriteString("+S")
	}
	if it.HasLuck() {
		b.WriteString("+L")
	}
	if it.IsExcellent() && group.Equipment() {
		opts := defensiveOptions
		if group <= GroupStaff {
			opts = offensiveOptions
		}
		bits := it.ExcellentBits()
		for i, o := range opts {
			if bits&(1<<i) != 0 {
				b.WriteString("+" + o)
			}
		}
	}
	return b.String()
}
