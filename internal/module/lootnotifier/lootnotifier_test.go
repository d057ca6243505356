package lootnotifier

import (
	"testing"
	"time"

	"mutool.ai/internal/catalog"
	"mutool.ai/internal/item"
	"mutool.ai/internal/module/moduletest"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/world"
)

var entries = []catalog.Entry{
	{Name: "Jewel of Bless", Code: item.New(item.GroupHelper, 13)},
	{Name: "Sphinx Pants", Code: item.New(item.GroupPants, 9)},
}

var bless = item.Item{Code: item.New(item.GroupHelper, 13)}

func setup(t *testing.T, delay uint32, filters ...string) (*moduletest.Fixture, *LootNotifier) {
	t.Helper()
	f := moduletest.New(entries...)
	f.World.SetLocal(1, "Hero")
	f.World.AddEntity(2, "Friend")
	return f, New(Config{Enabled: true, Items: filters, Delay: delay}, f.Env)
}

func drop(f *moduletest.Fixture, slot int, it item.Item) protocol.ItemList {
	f.World.Loot[slot] = world.ItemEntity{Slot: slot, Item: it, Active: true, OnGround: true}
	return protocol.ItemList{Items: []protocol.ItemListEntry{{ID: uint16(slot) | 0x8000}}}
}

func TestNoDelay_NotifiesImmediately(t *testing.T) {
	f, l := setup(t, 0, `name:"Jewel of Bless"`)
	l.Process(drop(f, 3, bless))
	l.Process(drop(f, 4, item.Item{Code: item.New(item.GroupSword, 1)}))

	if len(f.Notifier.Notes) != 1 {
		t.Fatalf("notes=%+v", f.Notifier.Notes)
	}
	n := f.Notifier.Notes[0]
	if n.Title != "Mu Online [Loot]" || n.Body != "Item: Jewel of Bless" {
		t.Fatalf("note=%+v", n)
	}
	if l.Pending() != 0 {
		t.Fatalf("nothing should be watched without a delay")
	}
}

func TestDelay_PickupByPartyMember(t *testing.T) {
	f, l := setup(t, 5000, `name:"Jewel of Bless"`)
	l.Process(drop(f, 3, bless))
	if len(f.Notifier.Notes) != 0 || l.Pending() != 1 {
		t.Fatalf("drop should be watched, notes=%v", f.Notifier.Notes)
	}

	l.Process(protocol.PartyItemInfo{MemberID: 2, Item: bless.Fingerprint()})
	if len(f.Notifier.Notes) != 1 {
		t.Fatalf("notes=%+v", f.Notifier.Notes)
	}
	n := f.Notifier.Notes[0]
	if n.Title != "Mu Online [Looted]" || n.Body != "Item: Jewel of Bless\nUser: Friend" {
		t.Fatalf("note=%+v", n)
	}

	f.Clock.Advance(10 * time.Second)
	l.Update(f.Clock.Now())
	if len(f.Notifier.Notes) != 1 {
		t.Fatalf("picked up item must not be flushed again")
	}
}

func TestDelay_PickupBySelfAndUnknownMember(t *testing.T) {
	f, l := setup(t, 5000, "excellent")
	pants := item.Item{Code: item.New(item.GroupPants, 9), Excellent: 0x01}
	l.Process(drop(f, 3, pants))
	l.Process(protocol.ItemGetResult{Outcome: protocol.ItemGetItem, Slot: 20, Item: pants})
	if got := f.Notifier.Notes[0].Body; got != "Item: X Sphinx Pants+zen\nUser: Hero" {
		t.Fatalf("self pickup body=%q", got)
	}

	l.Process(drop(f, 4, pants))
	l.Process(protocol.PartyItemInfo{MemberID: 99, Item: pants.Fingerprint()})
	if got := f.Notifier.Notes[1].Body; got != "Item: X Sphinx Pants+zen\nUser: <unknown>" {
		t.Fatalf("unknown looter body=%q", got)
	}
}

func TestDelay_CollisionReportsBoth(t *testing.T) {
	f, l := setup(t, 5000, `name:"Jewel of Bless"`)
	l.Process(drop(f, 3, bless))
	l.Process(drop(f, 4, bless))

	if len(f.Notifier.Notes) != 2 {
		t.Fatalf("collision should report both drops, notes=%+v", f.Notifier.Notes)
	}
	for _, n := range f.Notifier.Notes {
		if n.Title != "Mu Online [Loot]" {
			t.Fatalf("collision notes are plain loot notes: %+v", n)
		}
	}
	if l.Pending() != 0 {
		t.Fatalf("collided fingerprint must leave the watchlist")
	}

	l.Process(protocol.PartyItemInfo{MemberID: 2, Item: bless.Fingerprint()})
	if len(f.Notifier.Notes) != 2 {
		t.Fatalf("pickup after collision must not notify")
	}
}

func TestUpdate_FlushesExpired(t *testing.T) {
	f, l := setup(t, 5000, `name:"Jewel of Bless"`, "level>=9")
	l.Process(drop(f, 3, bless))
	f.Clock.Advance(2 * time.Second)
	pants := item.Item{Code: item.New(item.GroupPants, 9), Modifier: 9 << 3}
	l.Process(drop(f, 4, pants))

	f.Clock.Advance(3 * time.Second)
	l.Update(f.Clock.Now())
	if len(f.Notifier.Notes) != 1 || f.Notifier.Notes[0].Body != "Item: Jewel of Bless" {
		t.Fatalf("notes=%+v", f.Notifier.Notes)
	}
	if l.Pending() != 1 {
		t.Fatalf("pending=%d", l.Pending())
	}

	f.Clock.Advance(2 * time.Second)
	l.Update(f.Clock.Now())
	if len(f.Notifier.Notes) != 2 || f.Notifier.Notes[1].Body != "Item: Sphinx Pants+9" {
		t.Fatalf("notes=%+v", f.Notifier.Notes)
	}
}

func TestInvalidFiltersAreSkipped(t *testing.T) {
	f, l := setup(t, 0, `name:"Nonexistent Thing"`, "bogus", `name:"Jewel of Bless"`)
	l.Process(drop(f, 3, bless))
	if len(f.Notifier.Notes) != 1 {
		t.Fatalf("valid filter should still apply, notes=%+v", f.Notifier.Notes)
	}
}

func TestZenNotNotifiedByAttributeFilter(t *testing.T) {
	f, l := setup(t, 0, "excellent")
	l.Process(drop(f, 3, item.Item{Code: item.ZenCode, Modifier: 1000}))
	if len(f.Notifier.Notes) != 0 {
		t.Fatalf("zen should not match an excellent filter")
	}
}
