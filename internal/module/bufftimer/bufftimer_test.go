package bufftimer

import (
	"testing"
	"time"

	"mutool.ai/internal/module/moduletest"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/render"
	"mutool.ai/internal/world"
)

const (
	selfID  = 10
	otherID = 20
)

func setup(t *testing.T, warn uint64) (*moduletest.Fixture, *BuffTimer) {
	t.Helper()
	f := moduletest.New()
	f.World.SetLocal(selfID, "Hero")
	f.World.AddEntity(otherID, "Friend")
	f.World.Stats = &world.Stats{Energy: 400}
	return f, New(Config{Enabled: true, Warn: warn}, f.Env)
}

func near(a, b float32) bool {
	d := a - b
	return d < 0.01 && d > -0.01
}

func cast(skill, source, target uint16) protocol.MagicAttackResult {
	return protocol.MagicAttackResult{Skill: skill, SourceID: source, TargetID: target}
}

func TestProcess_DynamicDurationFromLocalCaster(t *testing.T) {
	_, b := setup(t, 0)
	b.Process(cast(SkillGreaterFortitude, selfID, otherID))
	b.Process(cast(SkillSoulBarrier, selfID, otherID))

	active := b.Active(otherID)
	if got := active[SkillGreaterFortitude].Duration; got != 100*time.Second {
		t.Fatalf("fortitude duration=%v want 100s", got)
	}
	if got := active[SkillSoulBarrier].Duration; got != 70*time.Second {
		t.Fatalf("soul barrier duration=%v want 70s", got)
	}
	if active[SkillGreaterFortitude].Name != "Greater Fortitude" {
		t.Fatalf("name=%q", active[SkillGreaterFortitude].Name)
	}
}

func TestProcess_DynamicBuffOnSelfFromOtherIgnored(t *testing.T) {
	_, b := setup(t, 0)
	b.Process(cast(SkillGreaterFortitude, otherID, selfID))
	if len(b.Active(selfID)) != 0 {
		t.Fatalf("dynamic buff cast by someone else must be ignored")
	}

	b.Process(cast(SkillGreaterDefense, otherID, selfID))
	if got := b.Active(selfID)[SkillGreaterDefense].Duration; got != 60*time.Second {
		t.Fatalf("static buff duration=%v", got)
	}
}

func TestProcess_UnrelatedEntitiesIgnored(t *testing.T) {
	f, b := setup(t, 0)
	f.World.AddEntity(30, "Stranger")
	b.Process(cast(SkillGreaterDamage, otherID, 30))
	b.Process(cast(99, selfID, otherID))
	b.Process(cast(SkillGreaterDamage, selfID, 77)) // unknown target
	if len(b.Active(30)) != 0 || len(b.Active(otherID)) != 0 {
		t.Fatalf("unexpected tracking")
	}
}

func TestProcess_RecastReplaces(t *testing.T) {
	f, b := setup(t, 0)
	b.Process(cast(SkillGreaterDamage, selfID, otherID))
	f.Clock.Advance(30 * time.Second)
	b.Process(cast(SkillGreaterDamage, selfID, otherID))

	active := b.Active(otherID)
	if len(active) != 1 {
		t.Fatalf("buffs must replace, got %d", len(active))
	}
	if !active[SkillGreaterDamage].Start.Equal(f.Clock.Now()) {
		t.Fatalf("start not refreshed")
	}
}

func TestUpdate_ExpiresBuffsAndEntities(t *testing.T) {
	f, b := setup(t, 0)
	b.Process(cast(SkillGreaterDamage, selfID, otherID))
	b.Process(cast(SkillGreaterFortitude, selfID, otherID))
	b.Process(cast(SkillGreaterDefense, selfID, selfID))

	f.Clock.Advance(61 * time.Second)
	b.Update(f.Clock.Now())
	if _, ok := b.Active(otherID)[SkillGreaterDamage]; ok {
		t.Fatalf("expired buff kept")
	}
	if _, ok := b.Active(otherID)[SkillGreaterFortitude]; !ok {
		t.Fatalf("live buff dropped")
	}
	if len(b.Active(selfID)) != 0 {
		t.Fatalf("entity with no buffs kept")
	}

	f.World.Deactivate(otherID)
	b.Update(f.Clock.Now())
	if len(b.buffs) != 0 {
		t.Fatalf("inactive entity kept: %v", b.buffs)
	}
}

func TestRender_PanelLayout(t *testing.T) {
	f, b := setup(t, 0)
	b.Process(cast(SkillGreaterDamage, selfID, otherID))
	f.Clock.Advance(15 * time.Second)
	b.Update(f.Clock.Now())

	var rec render.Recorder
	b.Render(&rec)
	ops := rec.Ops()
	// background, name, border, bar background, bar
	if len(ops) != 5 {
		t.Fatalf("ops=%d want 5", len(ops))
	}

	bg := ops[0]
	wantHeight := float32(nameHeight + buffHeight + padding*3)
	if !near(bg.H, wantHeight) || !near(bg.Y, float32(posY)-wantHeight) || bg.FG != render.Black.Alpha(0x99) {
		t.Fatalf("background: %+v", bg)
	}
	if ops[1].Kind != render.OpText || ops[1].Text != "Friend" || ops[1].FG != render.FromString("Friend") {
		t.Fatalf("name: %+v", ops[1])
	}
	bar := ops[4]
	full := float32(buffWidth - buffPadding*2)
	if want := full * 0.75; !near(bar.W, want) {
		t.Fatalf("bar width=%v want %v", bar.W, want)
	}
	if bar.FG != render.Hex(0x00C000) {
		t.Fatalf("bar color=%v", bar.FG)
	}
}

func TestRender_WarnFlickersOnEvenSeconds(t *testing.T) {
	f, b := setup(t, 10)
	b.Process(cast(SkillGreaterDamage, selfID, otherID))

	f.Clock.Advance(52 * time.Second) // 8s left
	b.Update(f.Clock.Now())
	var rec render.Recorder
	b.Render(&rec)
	if a := rec.Ops()[4].FG.A; a != 0 {
		t.Fatalf("even second under warn should hide bar, alpha=%#x", a)
	}

	f.Clock.Advance(time.Second) // 7s left
	b.Update(f.Clock.Now())
	rec.Take()
	b.Render(&rec)
	if a := rec.Ops()[4].FG.A; a != 0xFF {
		t.Fatalf("odd second should show bar, alpha=%#x", a)
	}
}

func TestBuff_TimeLeftCountsDownToZero(t *testing.T) {
	f, b := setup(t, 0)
	b.Process(cast(SkillSoulBarrier, selfID, otherID))
	buff := b.Active(otherID)[SkillSoulBarrier]
	start, end := f.Clock.Now(), f.Clock.Now().Add(buff.Duration)

	prev := buff.TimeLeft(start)
	for f.Clock.Advance(997 * time.Millisecond); f.Clock.Now().Before(end); f.Clock.Advance(997 * time.Millisecond) {
		left := buff.TimeLeft(f.Clock.Now())
		if left <= 0 || left >= prev {
			t.Fatalf("at %v: left=%v prev=%v", f.Clock.Now().Sub(start), left, prev)
		}
		prev = left
	}
	for _, at := range []time.Time{end, end.Add(30 * time.Second)} {
		if left := buff.TimeLeft(at); left != 0 {
			t.Fatalf("at %v: left=%v want 0", at.Sub(start), left)
		}
	}
}
