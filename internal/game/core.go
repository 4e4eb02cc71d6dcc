package game

import (
	"log/slog"
	"math"

	"spheres/internal/meta"
	"spheres/internal/rate"
	"spheres/internal/ring"
	"spheres/internal/stage"
)

// Core is the whole game state owned by a frame driver. It is not safe for
// concurrent use: Advance and the player operations must be called from one
// goroutine, between frames.
type Core struct {
	catalog stage.Catalog
	policy  CompletionPolicy
	log     *slog.Logger

	ledger    *ring.Ledger
	levels    [rate.UpgradeCount]int
	meta      meta.State
	progress  stage.Progress
	multScale float64
	loopRate0 float64

	speedScale  float64
	devUnlocked bool
	devTools    bool
	playTime    float64
	orbit       float64

	phase Phase
	won   bool
	clock timers

	tracking  bool
	peakTicks int64

	subscribers []func(Event)
}

func New(catalog stage.Catalog, policy CompletionPolicy, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy = DefaultPolicy{}
	}
	c := &Core{
		catalog: catalog,
		policy:  policy,
		log:     logger,
	}
	c.wipe()
	return c
}

// wipe restores the first-launch state. The dev unlock survives.
func (c *Core) wipe() {
	c.meta.Reset()
	c.progress = stage.NewProgress(c.catalog.Count())
	c.orbit = 0
	c.won = false
	c.resetRun(0)
}

func (c *Core) resetRun(idx int) {
	c.progress.Active = idx
	c.levels = [rate.UpgradeCount]int{}
	m := c.model()
	if c.ledger == nil {
		c.ledger = ring.NewLedger(m.LoopThreshold())
	} else {
		c.ledger.Reset(m.LoopThreshold())
	}
	c.multScale = m.MultScale()
	c.loopRate0 = 0
	c.playTime = 0
	c.speedScale = 1
	c.phase = PhaseSimulating
	c.clock = timers{}
	c.resetTracking()
}

func (c *Core) model() rate.Model {
	return rate.Model{
		Levels: c.levels,
		Meta:   c.meta,
		Stage:  c.catalog.Get(c.progress.Active),
	}
}

func (c *Core) Subscribe(fn func(Event)) func() {
	c.subscribers = append(c.subscribers, fn)
	idx := len(c.subscribers) - 1
	return func() {
		if idx < len(c.subscribers) {
			c.subscribers[idx] = nil
		}
	}
}

func (c *Core) emit(ev Event) {
	c.log.Debug("lifecycle event", "kind", ev.Kind.String(), "stage", ev.Stage)
	for _, fn := range c.subscribers {
		if fn != nil {
			fn(ev)
		}
	}
}

// Advance runs one frame of dt seconds. Drivers clamp wall-clock deltas with
// ClampDelta first. It reports whether the simulation itself moved.
func (c *Core) Advance(dt float64) bool {
	if math.IsNaN(dt) || dt <= 0 {
		return false
	}
	if c.won {
		c.clock.win += dt
		return false
	}
	c.stepPicker(dt)

	switch c.phase {
	case PhaseFlashing, PhaseShrinking:
		c.stepFlash(dt)
		return false
	case PhaseParked:
		return false
	}

	c.playTime += dt
	unitsBefore := c.ledger.TotalUnits

	m := c.model()
	if c.ledger.SetThreshold(m.LoopThreshold()) {
		c.resetTracking()
	}
	c.multScale = m.MultScale()

	speed := m.RingSpeed(c.ledger.Rings, c.speedScale)
	c.loopRate0 = 0
	if c.ledger.Threshold > 0 {
		c.loopRate0 = speed / c.ledger.Threshold
	}
	c.ledger.Integrate(speed, dt)
	c.ledger.UpdateSolid(c.loopRate0)
	c.stepOrbit(dt)

	c.detectCompletion(unitsBefore)
	return true
}

func (c *Core) Spend(amount int64) bool {
	return c.ledger.Spend(amount)
}

func (c *Core) BuyUpgrade(index int) bool {
	if c.won || c.phase != PhaseSimulating {
		return false
	}
	m := c.model()
	if !m.Purchasable(index) {
		return false
	}
	cost := m.UpgradeCost(index)
	if !c.ledger.Spend(cost) {
		return false
	}
	c.levels[index]++

	m = c.model()
	if c.ledger.SetThreshold(m.LoopThreshold()) {
		c.resetTracking()
	}
	c.multScale = m.MultScale()
	c.ledger.Rebuild()
	c.log.Debug("upgrade bought", "index", index, "level", c.levels[index], "cost", cost)
	return true
}

func (c *Core) BuyStagePointUpgrade(index int) bool {
	if !c.meta.Buy(meta.Upgrade(index)) {
		return false
	}
	c.log.Info("meta upgrade bought", "index", index, "points_left", c.meta.Points)
	return true
}

// RespecStagePointUpgrades refunds every meta-upgrade and then restarts the
// active stage, exactly as StartStage(active) would. The refund happens even
// when the restart is refused.
func (c *Core) RespecStagePointUpgrades() bool {
	refund := c.meta.Respec()
	c.log.Info("meta respec", "refund", refund)
	c.StartStage(c.progress.Active)
	return true
}

// StartStage leaves the current run for stage idx. It is refused for an
// unknown or completed stage, for the final stage before every other stage
// is done, and for the same stage while a stage change is required.
func (c *Core) StartStage(idx int) bool {
	if c.won {
		return false
	}
	if !c.catalog.Valid(idx) || c.progress.IsCompleted(idx) {
		return false
	}
	if c.progress.RequireChange && idx == c.progress.Active {
		return false
	}
	if !c.catalog.Unlocked(idx, c.progress.Completed) {
		return false
	}

	c.resetRun(idx)
	c.progress.RequireChange = false
	c.progress.PendingTrophy = stage.NoStage
	c.progress.EnableRotation()
	c.log.Info("stage started", "stage", idx, "name", c.catalog.Get(idx).Name)
	c.emit(Event{Kind: EventStageStarted, Stage: idx})
	return true
}

func (c *Core) ResetAll() bool {
	c.wipe()
	c.devTools = false
	c.log.Info("game reset")
	c.emit(Event{Kind: EventReset})
	return true
}

// DismissWin closes the full-win overlay once it has been shown long enough
// and resets the game.
func (c *Core) DismissWin() bool {
	if !c.won || c.clock.win < WinClickDelay {
		return false
	}
	c.won = false
	c.emit(Event{Kind: EventWinDismissed})
	return c.ResetAll()
}

// SetDevTools toggles the developer controls. They only exist after the
// first completion.
func (c *Core) SetDevTools(enabled bool) bool {
	if !c.devUnlocked {
		return false
	}
	c.devTools = enabled
	if !enabled {
		c.speedScale = 1
	}
	return true
}

func (c *Core) SetSpeedScale(faster bool) bool {
	if !c.devUnlocked || !c.devTools {
		return false
	}
	if faster {
		c.speedScale = min(c.speedScale*2, MaxSpeedScale)
	} else {
		c.speedScale = max(c.speedScale/2, 1/MaxSpeedScale)
	}
	return true
}

func (c *Core) ForceWin() bool {
	if !c.devUnlocked || !c.devTools || c.won {
		return false
	}
	c.startWin()
	return true
}

type View struct {
	Phase          Phase
	Won            bool
	CanDismissWin  bool
	WinProgress    float64
	Stage          int
	StageName      string
	TotalUnits     int64
	Rings          []ring.Ring
	Levels         [rate.UpgradeCount]int
	Rate           rate.Snapshot
	SlotCount      int
	StagePoints    int64
	MetaOwned      [meta.Count]bool
	Completed      []bool
	Trophies       []stage.Trophy
	RequireChange  bool
	SpeedScale     float64
	DevUnlocked    bool
	DevTools       bool
	PlayTime       float64
	TrophyOrbit    float64
	FlashProgress  float64
	ShrinkProgress float64
}

func (c *Core) View() View {
	v := View{
		Phase:         c.phase,
		Won:           c.won,
		CanDismissWin: c.won && c.clock.win >= WinClickDelay,
		WinProgress:   min(c.clock.win/WinDuration, 1),
		Stage:         c.progress.Active,
		StageName:     c.catalog.Get(c.progress.Active).Name,
		TotalUnits:    c.ledger.TotalUnits,
		Rings:         append([]ring.Ring(nil), c.ledger.Rings...),
		Levels:        c.levels,
		Rate:          c.model().Snapshot(c.ledger.Rings, c.speedScale),
		SlotCount:     c.CompletionSlots(),
		StagePoints:   c.meta.Points,
		MetaOwned:     c.meta.Owned,
		Completed:     append([]bool(nil), c.progress.Completed...),
		Trophies:      append([]stage.Trophy(nil), c.progress.Trophies...),
		RequireChange: c.progress.RequireChange,
		SpeedScale:    c.speedScale,
		DevUnlocked:   c.devUnlocked,
		DevTools:      c.devTools,
		PlayTime:      c.playTime,
		TrophyOrbit:   c.orbit,
	}
	if c.clock.flashRunning {
		v.FlashProgress = min(c.clock.flash/FlashDuration, 1)
	}
	if c.clock.shrinkStarted {
		v.ShrinkProgress = min(c.clock.shrink/ShrinkDuration, 1)
	}
	return v
}

func (c *Core) Phase() Phase {
	return c.phase
}

func (c *Core) Won() bool {
	return c.won
}

func (c *Core) TotalUnits() int64 {
	return c.ledger.TotalUnits
}

func (c *Core) ActiveStage() int {
	return c.progress.Active
}

func (c *Core) Catalog() stage.Catalog {
	return c.catalog
}

func (c *Core) CompletionSlots() int {
	return c.catalog.CompletionSlots(c.progress.Active, c.meta.Has(meta.LoopsMinus1))
}
