// Package moduletest provides in-memory collaborators for module tests.
package moduletest

import (
	"time"

	"github.com/rs/zerolog"

	"mutool.ai/internal/catalog"
	"mutool.ai/internal/item"
	"mutool.ai/internal/module"
	"mutool.ai/internal/persistence/statsdb"
	"mutool.ai/internal/world"
)

// World is a mutable world.View.
type World struct {
	LocalID   uint16
	HasLocal  bool
	Stats     *world.Stats
	Entities  map[uint16]world.Entity
	Loot      map[int]world.ItemEntity
	Inventory map[item.Code]int
	Equipped  map[world.EquipmentSlot]item.Item
	// Full lists item codes the inventory cannot take.
	Full       map[item.Code]bool
	PotionBusy bool
}

func NewWorld() *World {
	return &World{
		Entities:  map[uint16]world.Entity{},
		Loot:      map[int]world.ItemEntity{},
		Inventory: map[item.Code]int{},
		Equipped:  map[world.EquipmentSlot]item.Item{},
		Full:      map[item.Code]bool{},
	}
}

// SetLocal registers the local actor as an active entity.
func (w *World) SetLocal(id uint16, name string) {
	w.LocalID = id
	w.HasLocal = true
	w.Entities[id] = world.Entity{ID: id, Name: name, Active: true}
}

func (w *World) AddEntity(id uint16, name string) {
	w.Entities[id] = world.Entity{ID: id, Name: name, Active: true}
}

// Deactivate marks an entity inactive, as the client does when it leaves.
func (w *World) Deactivate(id uint16) {
	e := w.Entities[id]
	e.Active = false
	w.Entities[id] = e
}

func (w *World) EntityByID(id uint16) (world.Entity, error) {
	e, ok := w.Entities[id]
	if !ok || !e.Active {
		return world.Entity{}, world.ErrMissingEntity
	}
	return e, nil
}

func (w *World) LocalActorID() (uint16, error) {
	if !w.HasLocal {
		return 0, world.ErrMissingWorldState
	}
	return w.LocalID, nil
}

func (w *World) CharacterStats() (world.Stats, error) {
	if w.Stats == nil {
		return world.Stats{}, world.ErrMissingWorldState
	}
	return *w.Stats, nil
}

func (w *World) ItemEntityBySlot(slot int) (world.ItemEntity, error) {
	e, ok := w.Loot[slot]
	if !ok {
		return world.ItemEntity{}, world.ErrMissingEntity
	}
	return e, nil
}

func (w *World) InventoryHasSpaceFor(it item.Item) bool { return !w.Full[it.Code] }

func (w *World) InventorySlotFor(code item.Code) (int, bool) {
	slot, ok := w.Inventory[code]
	return slot, ok
}

func (w *World) Equipment(slot world.EquipmentSlot) (item.Item, bool) {
	it, ok := w.Equipped[slot]
	return it, ok
}

func (w *World) PotionInUse() bool { return w.PotionBusy }

// Request is one outbound request recorded by Sender.
type Request struct {
	Kind string
	Slot int
}

type Sender struct {
	Pending  bool
	Err      error
	Requests []Request
	// World, when set, has PotionBusy latched by UseItem.
	World *World
}

func (s *Sender) record(kind string, slot int) error {
	if s.Err != nil {
		return s.Err
	}
	s.Requests = append(s.Requests, Request{Kind: kind, Slot: slot})
	return nil
}

func (s *Sender) PickupPending() bool { return s.Pending }

func (s *Sender) SendPickupRequest(slot int) error {
	if err := s.record("pickup", slot); err != nil {
		return err
	}
	s.Pending = true
	return nil
}

func (s *Sender) UseItem(slot int) error {
	if err := s.record("use", slot); err != nil {
		return err
	}
	if s.World != nil {
		s.World.PotionBusy = true
	}
	return nil
}

func (s *Sender) RepairItem(slot int) error { return s.record("repair", slot) }
func (s *Sender) Screenshot() error         { return s.record("screenshot", 0) }

type Noticer struct {
	Notices []string
}

func (n *Noticer) ShowNotice(text string) { n.Notices = append(n.Notices, text) }

type Note struct {
	Title string
	Body  string
}

// Notifier records notifications and reports success.
type Notifier struct {
	Notes []Note
}

func (n *Notifier) Notify(title, body string) <-chan error {
	n.Notes = append(n.Notes, Note{Title: title, Body: body})
	ch := make(chan error, 1)
	ch <- nil
	close(ch)
	return ch
}

type History struct {
	Sessions []statsdb.Session
}

func (h *History) RecordSession(s statsdb.Session) { h.Sessions = append(h.Sessions, s) }

// Clock is a manually advanced time source.
type Clock struct {
	T time.Time
}

func (c *Clock) Now() time.Time          { return c.T }
func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// Fixture bundles fakes wired into a module.Env.
type Fixture struct {
	Env      *module.Env
	World    *World
	Sender   *Sender
	Noticer  *Noticer
	Notifier *Notifier
	History  *History
	Clock    *Clock
}

func New(entries ...catalog.Entry) *Fixture {
	w := NewWorld()
	f := &Fixture{
		World:    w,
		Sender:   &Sender{World: w},
		Noticer:  &Noticer{},
		Notifier: &Notifier{},
		History:  &History{},
		Clock:    &Clock{T: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.Env = &module.Env{
		World:   f.World,
		Sender:  f.Sender,
		Noticer: f.Noticer,
		Notify:  f.Notifier,
		History: f.History,
		Catalog: entries,
		Log:     zerolog.Nop(),
		Now:     f.Clock.Now,
	}
	return f
}
