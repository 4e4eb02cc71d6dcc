package rate

import (
	"math"

	"spheres/internal/meta"
	"spheres/internal/ring"
	"spheres/internal/stage"
)

const (
	DefaultThreshold = 50.0
	BaseBaseRate     = 10.0
	BaseMultScale    = 1.0

	ThresholdFloor     = 8.0
	MetaThresholdFloor = 6.0
	MetaThresholdCut   = 2.0
	ThresholdStep      = 0.8

	MultStep     = 0.25
	MultFloor    = 0.05
	MultMetaX    = 1.3
	RingFloor    = 4.0
	PenaltyStep  = 0.07
	PenaltyFloor = 0.07

	BoostStep     = 0.10
	BoostCap      = 2
	BoostCapBonus = 3
)

// Per-run upgrade indexes.
const (
	UpgradeRate = iota
	UpgradeLoop
	UpgradeMult
	UpgradeBoost

	UpgradeCount = 4
)

var (
	baseCosts = [UpgradeCount]float64{5, 80, 250, 1000}
	growth    = [UpgradeCount]float64{10, 5, 100, 1000}
	labels    = [UpgradeCount]string{"rate x2", "loop *0.80", "mult x1.25", "boost others"}
)

func UpgradeLabel(index int) string {
	if index < 0 || index >= UpgradeCount {
		return ""
	}
	return labels[index]
}

// Model derives the per-tick quantities from upgrade levels, owned
// meta-upgrades and the active stage. It is a plain value; every method is
// a pure function of its fields.
type Model struct {
	Levels [UpgradeCount]int
	Meta   meta.State
	Stage  stage.Definition
}

func (m Model) has(u meta.Upgrade) bool {
	return m.Meta.Has(u)
}

func (m Model) EffectiveLevel(index int) int {
	if index < 0 || index >= UpgradeCount {
		return 0
	}
	level := m.Levels[index]
	if level < 0 {
		level = 0
	}
	if m.has(meta.AllPlusOne) {
		level++
	}
	return level
}

func (m Model) MetaBoost() float64 {
	level := m.EffectiveLevel(UpgradeBoost)
	limit := BoostCap
	if m.has(meta.AllPlusOne) {
		limit = BoostCapBonus
	}
	return 1 + BoostStep*float64(min(level, limit))
}

func (m Model) BaseRate() float64 {
	factor := 1.0
	if !m.Stage.Rules.NoUpgrades {
		factor = math.Pow(2, float64(m.EffectiveLevel(UpgradeRate))*m.MetaBoost())
	}
	if m.has(meta.SpeedX3) {
		factor *= 3
	}
	if m.has(meta.SpeedX5) {
		factor *= 5
	}
	return BaseBaseRate * factor
}

func (m Model) BaseThreshold() float64 {
	if m.Stage.Rules.BaseThreshold > 0 {
		return m.Stage.Rules.BaseThreshold
	}
	return DefaultThreshold
}

func (m Model) loopLevel() int {
	if m.Stage.Rules.NoUpgrades || m.Stage.Rules.NoLoopUpgrade {
		return 0
	}
	return m.EffectiveLevel(UpgradeLoop)
}

// thresholdAt applies level rounds of floor(x * 0.8^boost). Flooring every
// round compounds, so this cannot be collapsed into a single power.
func (m Model) thresholdAt(level int) float64 {
	if m.Stage.Final {
		if m.Stage.Rules.FixedThreshold > 0 {
			return m.Stage.Rules.FixedThreshold
		}
		return DefaultThreshold
	}
	step := math.Pow(ThresholdStep, m.MetaBoost())
	threshold := m.BaseThreshold()
	for i := 0; i < level; i++ {
		threshold = math.Floor(threshold * step)
		if threshold <= ThresholdFloor {
			break
		}
	}
	if threshold < ThresholdFloor {
		threshold = ThresholdFloor
	}
	if m.has(meta.ThresholdMinus2) {
		threshold = math.Max(MetaThresholdFloor, threshold-MetaThresholdCut)
	}
	return threshold
}

func (m Model) LoopThreshold() float64 {
	return m.thresholdAt(m.loopLevel())
}

func (m Model) NextThreshold() float64 {
	next := m
	next.Levels[UpgradeLoop]++
	return next.LoopThreshold()
}

func (m Model) MultScale() float64 {
	scale := 1 + MultStep*float64(m.EffectiveLevel(UpgradeMult))*m.MetaBoost()
	if m.has(meta.LoopMultX13) {
		scale *= MultMetaX
	}
	return math.Max(MultFloor, scale)
}

// UpgradeCost is floor(base * (growth*stageScale)^level), quartered with
// "-75% cost". Costs beyond int64 saturate.
func (m Model) UpgradeCost(index int) int64 {
	if index < 0 || index >= UpgradeCount {
		return math.MaxInt64
	}
	level := max(m.Levels[index], 0)
	cost := math.Floor(baseCosts[index] * math.Pow(growth[index]*m.Stage.Rules.CostScaleOrDefault(), float64(level)))
	if m.has(meta.CheapUpgrades) {
		cost = math.Max(1, math.Floor(cost*0.25))
	}
	return clampUnits(cost)
}

func (m Model) Purchasable(index int) bool {
	if index < 0 || index >= UpgradeCount {
		return false
	}
	if m.Stage.Rules.NoUpgrades {
		return false
	}
	switch index {
	case UpgradeLoop:
		if m.Stage.Rules.NoLoopUpgrade {
			return false
		}
		return m.NextThreshold() < m.LoopThreshold()
	case UpgradeBoost:
		return m.Levels[UpgradeBoost] < BoostCap
	}
	return true
}

// TotalMultiplier is the product over existing rings i >= 1 of
// sqrt(multScale * (progress_i + 1)), with the stage and meta modifiers.
func (m Model) TotalMultiplier(rings []ring.Ring) float64 {
	if m.Stage.Rules.NoLoopMult {
		return 1
	}
	scale := m.MultScale()
	floor := m.has(meta.MultFloor)
	total := 1.0
	for i := 1; i < len(rings); i++ {
		r := rings[i]
		if !r.Exists() {
			continue
		}
		p := r.Progress
		if floor {
			p = math.Max(p, RingFloor)
		}
		term := scale * (p + 1)
		if m.Stage.Rules.HighRingPenalty {
			term *= math.Max(PenaltyFloor, 1-PenaltyStep*float64(r.Level))
		}
		total *= math.Sqrt(math.Max(0, term))
	}
	return total
}

func (m Model) RingSpeed(rings []ring.Ring, speedScale float64) float64 {
	return m.BaseRate() * speedScale * m.TotalMultiplier(rings)
}

// Snapshot bundles the derived numbers a frame driver or UI needs.
type Snapshot struct {
	BaseRate      float64
	Threshold     float64
	NextThreshold float64
	MultScale     float64
	MetaBoost     float64
	Multiplier    float64
	Speed         float64
	LoopRate      float64
	Costs         [UpgradeCount]int64
	Purchasable   [UpgradeCount]bool
}

func (m Model) Snapshot(rings []ring.Ring, speedScale float64) Snapshot {
	s := Snapshot{
		BaseRate:      m.BaseRate(),
		Threshold:     m.LoopThreshold(),
		NextThreshold: m.NextThreshold(),
		MultScale:     m.MultScale(),
		MetaBoost:     m.MetaBoost(),
		Multiplier:    m.TotalMultiplier(rings),
	}
	s.Speed = s.BaseRate * speedScale * s.Multiplier
	if s.Threshold > 0 {
		s.LoopRate = s.Speed / s.Threshold
	}
	for i := 0; i < UpgradeCount; i++ {
		s.Costs[i] = m.UpgradeCost(i)
		s.Purchasable[i] = m.Purchasable(i)
	}
	return s
}

func clampUnits(v float64) int64 {
	if math.IsNaN(v) || v >= math.MaxInt64 {
		return math.MaxInt64
	}
	if v < 0 {
		return 0
	}
	return int64(v)
}
