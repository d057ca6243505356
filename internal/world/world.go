package world

import (
	"errors"
	"fmt"
	"math"

	"mutool.ai/internal/item"
)

var (
	ErrMissingEntity     = errors.New("missing entity")
	ErrMissingWorldState = errors.New("missing world state")
)

// LootRange is the maximum distance at which a ground item can be picked up.
const LootRange = 300

type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (v Vec3) Distance(o Vec3) float32 {
	dx, dy, dz := float64(v.X-o.X), float64(v.Y-o.Y), float64(v.Z-o.Z)
	return float32(math.Sqrt(dx*dx + dy*dy + dz*dz))
}

type Entity struct {
	ID       uint16 `json:"id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Position Vec3   `json:"position"`
}

// Stats is the local character sheet.
type Stats struct {
	Level          uint16 `json:"level"`
	Experience     uint32 `json:"experience"`
	ExperienceNext uint32 `json:"experience_next"`
	Strength       uint16 `json:"strength"`
	Agility        uint16 `json:"agility"`
	Vitality       uint16 `json:"vitality"`
	Energy         uint16 `json:"energy"`
	Command        uint16 `json:"command"`
	Health         uint16 `json:"health"`
	Mana           uint16 `json:"mana"`
	MaxHealth      uint16 `json:"max_health"`
	MaxMana        uint16 `json:"max_mana"`
	Shield         uint16 `json:"shield"`
}

// HealthRatio is health over max health, 1 when max health is unknown.
func (s Stats) HealthRatio() float32 {
	if s.MaxHealth == 0 {
		return 1
	}
	return float32(s.Health) / float32(s.MaxHealth)
}

// ItemEntity is an item in the loot table.
type ItemEntity struct {
	Slot     int       `json:"slot"`
	Item     item.Item `json:"item"`
	Active   bool      `json:"active"`
	OnGround bool      `json:"on_ground"`
	Position Vec3      `json:"position"`
}

type EquipmentSlot uint8

const (
	SlotRightHand EquipmentSlot = iota
	SlotLeftHand
	SlotHelm
	SlotArmor
	SlotPants
	SlotGloves
	SlotBoots
	SlotWings
	SlotHelper
	SlotPendant
	SlotRightRing
	SlotLeftRing

	EquipmentSlots = 12
)

var slotNames = [EquipmentSlots]string{
	"RightHand", "LeftHand", "Helm", "Armor", "Pants", "Gloves",
	"Boots", "Wings", "Helper", "Pendant", "RightRing", "LeftRing",
}

func (s EquipmentSlot) String() string {
	if int(s) < len(slotNames) {
		return slotNames[s]
	}
	return fmt.Sprintf("Slot(%d)", uint8(s))
}

func (s EquipmentSlot) Valid() bool { return s < EquipmentSlots }

// View is read-only access to the live client state. Every lookup is
// fallible; callers skip the event on error.
type View interface {
	EntityByID(id uint16) (Entity, error)
	LocalActorID() (uint16, error)
	CharacterStats() (Stats, error)
	ItemEntityBySlot(slot int) (ItemEntity, error)
	InventoryHasSpaceFor(it item.Item) bool
	// InventorySlotFor finds the inventory slot holding code.
	InventorySlotFor(code item.Code) (int, bool)
	Equipment(slot EquipmentSlot) (item.Item, bool)
	PotionInUse() bool
}

// LocalEntity resolves the local actor's entity.
func LocalEntity(v View) (Entity, error) {
	id, err := v.LocalActorID()
	if err != nil {
		return Entity{}, err
	}
	return v.EntityByID(id)
}

// InLootRange reports whether e lies within pickup range of the local actor.
func InLootRange(v View, e ItemEntity) bool {
	self, err := LocalEntity(v)
	if err != nil {
		return false
	}
	return e.Position.Distance(self.Position) < LootRange
}
