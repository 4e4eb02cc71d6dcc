package rate

import (
	"math"
	"testing"

	"spheres/internal/meta"
	"spheres/internal/ring"
	"spheres/internal/stage"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func withMeta(ups ...meta.Upgrade) meta.State {
	var s meta.State
	for _, u := range ups {
		s.Owned[u] = true
	}
	return s
}

func TestFreshStage(t *testing.T) {
	m := Model{Stage: stage.Default().Get(0)}
	if got := m.BaseRate(); got != 10 {
		t.Fatalf("base rate got %v want 10", got)
	}
	if got := m.LoopThreshold(); got != 50 {
		t.Fatalf("threshold got %v want 50", got)
	}
	if got := m.MultScale(); got != 1 {
		t.Fatalf("mult scale got %v want 1", got)
	}
	if got := m.MetaBoost(); got != 1 {
		t.Fatalf("boost got %v want 1", got)
	}
	if got := m.TotalMultiplier([]ring.Ring{{Level: 0, Progress: 30}}); got != 1 {
		t.Fatalf("multiplier got %v want 1", got)
	}
}

func TestLoopThresholdLevels(t *testing.T) {
	want := []float64{50, 40, 32, 25, 20, 16, 12, 9, 8, 8}
	for level, w := range want {
		m := Model{Stage: stage.Default().Get(0)}
		m.Levels[UpgradeLoop] = level
		if got := m.LoopThreshold(); got != w {
			t.Fatalf("level=%d got=%v want=%v", level, got, w)
		}
	}
}

func TestLoopThresholdModifiers(t *testing.T) {
	c := stage.Default()
	tests := []struct {
		name  string
		stage int
		level int
		meta  meta.State
		want  float64
	}{
		{name: "minus two", stage: 0, meta: withMeta(meta.ThresholdMinus2), want: 48},
		{name: "minus two floor", stage: 0, level: 20, meta: withMeta(meta.ThresholdMinus2), want: 6},
		{name: "free level", stage: 0, meta: withMeta(meta.AllPlusOne), want: 39},
		{name: "heavy base", stage: 6, want: 100},
		{name: "heavy base upgraded", stage: 6, level: 1, want: 80},
		{name: "fixed loop stage", stage: 2, level: 3, want: 50},
		{name: "no upgrades stage", stage: 7, level: 3, want: 50},
		{name: "final", stage: 8, level: 5, meta: withMeta(meta.ThresholdMinus2, meta.AllPlusOne), want: 50},
	}
	for _, tc := range tests {
		m := Model{Stage: c.Get(tc.stage), Meta: tc.meta}
		m.Levels[UpgradeLoop] = tc.level
		if got := m.LoopThreshold(); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestMetaBoostCap(t *testing.T) {
	m := Model{}
	m.Levels[UpgradeBoost] = 5
	if got := m.MetaBoost(); !approx(got, 1.2) {
		t.Fatalf("got %v want 1.2", got)
	}
	m.Meta = withMeta(meta.AllPlusOne)
	if got := m.MetaBoost(); !approx(got, 1.3) {
		t.Fatalf("got %v want 1.3", got)
	}
	m.Levels[UpgradeBoost] = 0
	if got := m.MetaBoost(); !approx(got, 1.1) {
		t.Fatalf("got %v want 1.1", got)
	}
}

func TestBaseRate(t *testing.T) {
	m := Model{Stage: stage.Default().Get(0)}
	m.Levels[UpgradeRate] = 2
	if got := m.BaseRate(); !approx(got, 40) {
		t.Fatalf("got %v want 40", got)
	}

	m.Levels[UpgradeBoost] = 1
	if got := m.BaseRate(); !approx(got, 10*math.Pow(2, 2*1.1)) {
		t.Fatalf("boosted got %v", got)
	}

	m = Model{Stage: stage.Default().Get(7), Meta: withMeta(meta.SpeedX3, meta.SpeedX5)}
	m.Levels[UpgradeRate] = 4
	if got := m.BaseRate(); got != 150 {
		t.Fatalf("no-upgrades stage got %v want 150", got)
	}
}

func TestMultScale(t *testing.T) {
	m := Model{}
	m.Levels[UpgradeMult] = 2
	if got := m.MultScale(); !approx(got, 1.5) {
		t.Fatalf("got %v want 1.5", got)
	}
	m.Meta = withMeta(meta.LoopMultX13)
	if got := m.MultScale(); !approx(got, 1.95) {
		t.Fatalf("got %v want 1.95", got)
	}
}

func TestUpgradeCost(t *testing.T) {
	c := stage.Default()
	tests := []struct {
		name  string
		stage int
		index int
		level int
		meta  meta.State
		want  int64
	}{
		{name: "rate l0", index: UpgradeRate, want: 5},
		{name: "rate l2", index: UpgradeRate, level: 2, want: 500},
		{name: "loop l1", index: UpgradeLoop, level: 1, want: 400},
		{name: "cheap", index: UpgradeRate, meta: withMeta(meta.CheapUpgrades), want: 1},
		{name: "cheap mult", index: UpgradeMult, meta: withMeta(meta.CheapUpgrades), want: 62},
		{name: "inflation", stage: 4, index: UpgradeRate, level: 1, want: 75},
		{name: "saturates", index: UpgradeBoost, level: 10, want: math.MaxInt64},
		{name: "bad index", index: 9, want: math.MaxInt64},
	}
	for _, tc := range tests {
		m := Model{Stage: c.Get(tc.stage), Meta: tc.meta}
		if tc.index >= 0 && tc.index < UpgradeCount {
			m.Levels[tc.index] = tc.level
		}
		if got := m.UpgradeCost(tc.index); got != tc.want {
			t.Fatalf("%s: got %d want %d", tc.name, got, tc.want)
		}
	}
}

func TestPurchasable(t *testing.T) {
	c := stage.Default()

	m := Model{Stage: c.Get(0)}
	for i := 0; i < UpgradeCount; i++ {
		if !m.Purchasable(i) {
			t.Fatalf("upgrade %d should be purchasable on a fresh run", i)
		}
	}

	m.Levels[UpgradeLoop] = 8
	if m.Purchasable(UpgradeLoop) {
		t.Fatalf("loop upgrade at floor must be blocked")
	}
	m.Levels[UpgradeBoost] = 2
	if m.Purchasable(UpgradeBoost) {
		t.Fatalf("boost is capped at 2 raw levels")
	}

	if (Model{Stage: c.Get(2)}).Purchasable(UpgradeLoop) {
		t.Fatalf("fixed loop stage must block the loop upgrade")
	}
	if !(Model{Stage: c.Get(2)}).Purchasable(UpgradeRate) {
		t.Fatalf("fixed loop stage keeps the other upgrades")
	}
	if (Model{Stage: c.Get(7)}).Purchasable(UpgradeRate) {
		t.Fatalf("no-upgrades stage must block everything")
	}
	if (Model{Stage: c.Get(8)}).Purchasable(UpgradeLoop) {
		t.Fatalf("final stage threshold is fixed")
	}
}

func TestTotalMultiplier(t *testing.T) {
	c := stage.Default()
	rings := []ring.Ring{
		{Level: 0, Progress: 12},
		{Level: 1, Progress: 3},
		{Level: 2, Progress: 8},
		{Level: 3},
	}

	if got := (Model{Stage: c.Get(0)}).TotalMultiplier(rings); !approx(got, 6) {
		t.Fatalf("got %v want 6", got)
	}

	floor := Model{Stage: c.Get(0), Meta: withMeta(meta.MultFloor)}
	if got := floor.TotalMultiplier(rings); !approx(got, math.Sqrt(5)*3) {
		t.Fatalf("floor got %v", got)
	}

	penalty := Model{Stage: c.Get(1)}
	want := math.Sqrt(4*0.93) * math.Sqrt(9*0.86)
	if got := penalty.TotalMultiplier(rings); !approx(got, want) {
		t.Fatalf("penalty got %v want %v", got, want)
	}

	if got := (Model{Stage: c.Get(5)}).TotalMultiplier(rings); got != 1 {
		t.Fatalf("flat rings got %v want 1", got)
	}
}

func TestSnapshot(t *testing.T) {
	m := Model{Stage: stage.Default().Get(0)}
	s := m.Snapshot([]ring.Ring{{Level: 0}}, 2)
	if s.Speed != 20 || s.LoopRate != 0.4 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	if s.Costs[UpgradeRate] != 5 || !s.Purchasable[UpgradeLoop] {
		t.Fatalf("unexpected costs %+v", s)
	}
}
