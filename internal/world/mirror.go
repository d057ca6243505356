package world

import (
	"fmt"

	"mutool.ai/internal/item"
)

// Inventory grid geometry. Inventory slots are numbered row-major after
// the equipment slots.
const (
	InventoryColumns = 8
	InventoryRows    = 8
	InventoryOffset  = EquipmentSlots
)

type InventoryItem struct {
	Slot int       `json:"slot"`
	Item item.Item `json:"item"`
}

type EquippedItem struct {
	Slot EquipmentSlot `json:"slot"`
	Item item.Item     `json:"item"`
}

// Snapshot is the client state as reported by the hook.
type Snapshot struct {
	LocalID       uint16          `json:"local_id"`
	Character     *Stats          `json:"character,omitempty"`
	Entities      []Entity        `json:"entities"`
	Loot          []ItemEntity    `json:"loot"`
	Inventory     []InventoryItem `json:"inventory"`
	Equipment     []EquippedItem  `json:"equipment"`
	PickupPending bool            `json:"pickup_pending"`
	PotionInUse   bool            `json:"potion_in_use"`
}

// Mirror implements View over the latest Snapshot. It is owned by the
// runtime goroutine and is not safe for concurrent use.
type Mirror struct {
	loaded    bool
	snap      Snapshot
	entities  map[uint16]Entity
	loot      map[int]ItemEntity
	equipment map[EquipmentSlot]item.Item
	grid      [][]bool
}

func NewMirror() *Mirror {
	return &Mirror{}
}

// Apply replaces the mirrored state.
func (m *Mirror) Apply(s Snapshot) {
	m.loaded = true
	m.snap = s

	m.entities = make(map[uint16]Entity, len(s.Entities))
	for _, e := range s.Entities {
		m.entities[e.ID] = e
	}
	m.loot = make(map[int]ItemEntity, len(s.Loot))
	for _, e := range s.Loot {
		m.loot[e.Slot] = e
	}
	m.equipment = make(map[EquipmentSlot]item.Item, len(s.Equipment))
	for _, e := range s.Equipment {
		if e.Slot.Valid() {
			m.equipment[e.Slot] = e.Item
		}
	}

	m.grid = make([][]bool, InventoryRows)
	for y := range m.grid {
		m.grid[y] = make([]bool, InventoryColumns)
	}
	for _, inv := range s.Inventory {
		m.occupy(inv)
	}
}

func (m *Mirror) occupy(inv InventoryItem) {
	if inv.Slot < 0 || inv.Slot >= InventoryColumns*InventoryRows {
		return
	}
	x0, y0 := inv.Slot%InventoryColumns, inv.Slot/InventoryColumns
	sz := inv.Item.Code.Size()
	for y := y0; y < y0+sz.Height && y < InventoryRows; y++ {
		for x := x0; x < x0+sz.Width && x < InventoryColumns; x++ {
			m.grid[y][x] = true
		}
	}
}

// Reset forgets the mirrored state until the next Apply.
func (m *Mirror) Reset() { *m = Mirror{} }

func (m *Mirror) Snapshot() Snapshot { return m.snap }

// SetPickupPending records a pickup request until the next snapshot.
func (m *Mirror) SetPickupPending(v bool) { m.snap.PickupPending = v }

func (m *Mirror) PickupPending() bool { return m.snap.PickupPending }

func (m *Mirror) EntityByID(id uint16) (Entity, error) {
	if !m.loaded {
		return Entity{}, ErrMissingWorldState
	}
	e, ok := m.entities[id]
	if !ok || !e.Active {
		return Entity{}, fmt.Errorf("entity %d: %w", id, ErrMissingEntity)
	}
	return e, nil
}

func (m *Mirror) LocalActorID() (uint16, error) {
	if !m.loaded {
		return 0, ErrMissingWorldState
	}
	return m.snap.LocalID, nil
}

func (m *Mirror) CharacterStats() (Stats, error) {
	if !m.loaded || m.snap.Character == nil {
		return Stats{}, ErrMissingWorldState
	}
	return *m.snap.Character, nil
}

func (m *Mirror) ItemEntityBySlot(slot int) (ItemEntity, error) {
	if !m.loaded {
		return ItemEntity{}, ErrMissingWorldState
	}
	e, ok := m.loot[slot]
	if !ok {
		return ItemEntity{}, fmt.Errorf("loot slot %d: %w", slot, ErrMissingEntity)
	}
	return e, nil
}

func (m *Mirror) InventoryHasSpaceFor(it item.Item) bool {
	if it.IsZen() {
		return true
	}
	if !m.loaded {
		return false
	}
	return item.FitsGrid(m.grid, it.Code.Size())
}

func (m *Mirror) InventorySlotFor(code item.Code) (int, bool) {
	for _, inv := range m.snap.Inventory {
		if inv.Item.Code == code {
			return inv.Slot, true
		}
	}
	return 0, false
}

func (m *Mirror) Equipment(slot EquipmentSlot) (item.Item, bool) {
	it, ok := m.equipment[slot]
	return it, ok
}

// SetPotionInUse records a potion use until the next snapshot.
func (m *Mirror) SetPotionInUse(v bool) { m.snap.PotionInUse = v }

func (m *Mirror) PotionInUse() bool { return m.snap.PotionInUse }
