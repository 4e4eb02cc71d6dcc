package stage

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if c.Count() != 9 {
		t.Fatalf("got %d stages want 9", c.Count())
	}
	if !c.IsFinal(8) || c.IsFinal(7) {
		t.Fatalf("stage 8 must be the only final stage")
	}
	if c.Get(0).Loops != 12 {
		t.Fatalf("stage 0 loops got %d want 12", c.Get(0).Loops)
	}
	if !c.Get(7).Rules.NoUpgrades {
		t.Fatalf("stage 7 must disable upgrades")
	}
	if got := c.Get(4).Rules.CostScaleOrDefault(); got != 1.5 {
		t.Fatalf("stage 4 cost scale got %v", got)
	}
	if got := c.Get(0).Rules.CostScaleOrDefault(); got != 1 {
		t.Fatalf("default cost scale got %v", got)
	}
	if c.Get(8).Rules.FixedThreshold != 50 {
		t.Fatalf("final stage threshold got %v", c.Get(8).Rules.FixedThreshold)
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", `stages: [{name: "a", description: "", loops: 1, reward: 0, bogus: 1}, {name: "b", description: "", loops: 1, reward: 0, final: true}]`},
		{"zero loops", `stages: [{name: "a", description: "", loops: 0, reward: 0}, {name: "b", description: "", loops: 1, reward: 0, final: true}]`},
		{"no final", `stages: [{name: "a", description: "", loops: 1, reward: 0}, {name: "b", description: "", loops: 1, reward: 0}]`},
		{"single stage", `stages: [{name: "a", description: "", loops: 1, reward: 0, final: true}]`},
		{"syntax", `stages: [`},
	}
	for _, tc := range tests {
		if _, err := Parse([]byte(tc.src), tc.name); !errors.Is(err, ErrInvalidCatalog) {
			t.Fatalf("%s: got err=%v want ErrInvalidCatalog", tc.name, err)
		}
	}
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.cue")
	src := `stages: [
	{name: "Warmup", description: "", loops: 2, reward: 5},
	{name: "End", description: "", loops: 3, reward: 0, final: true, rules: fixedThreshold: 10},
]`
	if err := os.WriteFile(path, []byte(src), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Count() != 2 || c.Get(0).Reward != 5 || c.Get(1).Rules.FixedThreshold != 10 {
		t.Fatalf("unexpected catalog %+v", c)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.cue")); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestAngle(t *testing.T) {
	c := Default()
	slot := 2 * math.Pi / 8
	if got := c.Angle(0); math.Abs(got-slot/2) > 1e-12 {
		t.Fatalf("stage 0 angle got %v want %v", got, slot/2)
	}
	if got := c.Angle(3); math.Abs(got-3.5*slot) > 1e-12 {
		t.Fatalf("stage 3 angle got %v", got)
	}
	if c.Angle(8) != c.Angle(0) {
		t.Fatalf("out-of-range index must clamp to 0")
	}
}

func TestCompletionSlots(t *testing.T) {
	c := Default()
	if got := c.CompletionSlots(0, false); got != 12 {
		t.Fatalf("got %d want 12", got)
	}
	if got := c.CompletionSlots(0, true); got != 11 {
		t.Fatalf("got %d want 11", got)
	}

	one := Catalog{Stages: []Definition{{Name: "a", Loops: 1}, {Name: "b", Loops: 1, Final: true}}}
	if got := one.CompletionSlots(0, true); got != 1 {
		t.Fatalf("slots must floor at 1, got %d", got)
	}
}

func TestUnlocked(t *testing.T) {
	c := Default()
	completed := make([]bool, 9)
	if !c.Unlocked(3, completed) {
		t.Fatalf("regular stages are always unlocked")
	}
	if c.Unlocked(8, completed) {
		t.Fatalf("final must be locked")
	}
	for i := 0; i < 8; i++ {
		completed[i] = true
	}
	if !c.Unlocked(8, completed) {
		t.Fatalf("final must unlock once 0-7 are completed")
	}
	if c.Unlocked(9, completed) || c.Unlocked(-1, completed) {
		t.Fatalf("out of range must be locked")
	}
}

func TestTrophyLifecycle(t *testing.T) {
	p := NewProgress(9)
	p.UpsertTrophy(2, 1.0, 500)
	p.PendingTrophy = 2

	tr, ok := p.Trophy(2)
	if !ok || tr.Spawned || tr.Color != Color(2) {
		t.Fatalf("unexpected trophy %+v", tr)
	}
	if i, ok := p.SpawnPending(); !ok || i != 2 {
		t.Fatalf("spawn got %d %v", i, ok)
	}
	if !tr.Spawned || p.PendingTrophy != NoStage {
		t.Fatalf("trophy not spawned: %+v pending=%d", tr, p.PendingTrophy)
	}
	if _, ok := p.SpawnPending(); ok {
		t.Fatalf("nothing pending")
	}

	p.UpsertTrophy(2, 2.0, 900)
	if len(p.Trophies) != 1 || p.Trophies[0].Loops != 900 || p.Trophies[0].Spawned {
		t.Fatalf("upsert must refresh in place: %+v", p.Trophies)
	}
}
