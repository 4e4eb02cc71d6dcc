package game

import "math"

// Phase is the run lifecycle state. Simulation only advances in
// PhaseSimulating.
type Phase int

const (
	PhaseSimulating Phase = iota
	PhaseFlashing
	PhaseShrinking
	PhaseParked
)

func (p Phase) String() string {
	switch p {
	case PhaseSimulating:
		return "simulating"
	case PhaseFlashing:
		return "flashing"
	case PhaseShrinking:
		return "shrinking"
	case PhaseParked:
		return "parked"
	}
	return "unknown"
}

// Presentation timings in seconds.
const (
	FlashDuration   = 1.5
	FlashHold       = 1.5
	ShrinkDuration  = 1.2
	WinDuration     = 4.0
	WinClickDelay   = 3.0
	StagePickDelay  = 3.0
	MaxFrameDelta   = 0.2
	trophyOrbitRate = math.Pi * 0.6
)

const MaxSpeedScale = float64(1 << 20)

// ClampDelta bounds a wall-clock frame delta so a stalled driver cannot
// fast-forward the run.
func ClampDelta(dt float64) float64 {
	if math.IsNaN(dt) || dt < 0 {
		return 0
	}
	return math.Min(dt, MaxFrameDelta)
}

type EventKind int

const (
	EventStageStarted EventKind = iota
	EventStageCompleted
	EventFlashStarted
	EventShrinkStarted
	EventFlashEnded
	EventTrophySpawned
	EventParked
	EventStagePickerDue
	EventGameWon
	EventWinDismissed
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventStageStarted:
		return "stage_started"
	case EventStageCompleted:
		return "stage_completed"
	case EventFlashStarted:
		return "flash_started"
	case EventShrinkStarted:
		return "shrink_started"
	case EventFlashEnded:
		return "flash_ended"
	case EventTrophySpawned:
		return "trophy_spawned"
	case EventParked:
		return "parked"
	case EventStagePickerDue:
		return "stage_picker_due"
	case EventGameWon:
		return "game_won"
	case EventWinDismissed:
		return "win_dismissed"
	case EventReset:
		return "reset"
	}
	return "unknown"
}

// Event is a discrete lifecycle transition published to subscribers.
// Presentation layers own their own timers and easing on top of these.
type Event struct {
	Kind   EventKind
	Stage  int
	Points int64
}

type Outcome int

const (
	OutcomeFlash Outcome = iota
	OutcomePark
	OutcomeWin
)

// CompletionPolicy decides how the lifecycle reacts to a completed run. It
// is resolved once in New.
type CompletionPolicy interface {
	OnComplete(stage int, final bool) Outcome
}

// DefaultPolicy flashes and shrinks regular stages and wins on the final one.
type DefaultPolicy struct{}

func (DefaultPolicy) OnComplete(_ int, final bool) Outcome {
	if final {
		return OutcomeWin
	}
	return OutcomeFlash
}

// ParkPolicy skips the hand-off animation and parks right away. Headless
// drivers use it.
type ParkPolicy struct{}

func (ParkPolicy) OnComplete(_ int, final bool) Outcome {
	if final {
		return OutcomeWin
	}
	return OutcomePark
}

// timers is transient presentation state; it is never persisted.
type timers struct {
	flash         float64
	flashRunning  bool
	shrink        float64
	shrinkStarted bool
	win           float64
	picker        float64
	pickerArmed   bool
}

func (c *Core) enterFlashing() {
	c.phase = PhaseFlashing
	c.clock = timers{flashRunning: true, picker: c.clock.picker, pickerArmed: c.clock.pickerArmed}
	c.emit(Event{Kind: EventFlashStarted, Stage: c.progress.Active})
}

func (c *Core) enterShrinking() {
	c.phase = PhaseShrinking
	c.clock.shrinkStarted = true
	c.clock.shrink = 0
	c.emit(Event{Kind: EventShrinkStarted, Stage: c.progress.Active})
}

func (c *Core) enterParked() {
	c.phase = PhaseParked
	if i, ok := c.progress.SpawnPending(); ok {
		c.emit(Event{Kind: EventTrophySpawned, Stage: i})
	}
	c.emit(Event{Kind: EventParked, Stage: c.progress.Active})
}

func (c *Core) stepFlash(dt float64) {
	if c.phase == PhaseFlashing {
		c.clock.flash += dt
		if !c.clock.shrinkStarted && c.clock.flash >= math.Min(FlashHold, FlashDuration) {
			c.enterShrinking()
		}
	} else if c.clock.flashRunning {
		c.clock.flash += dt
	}

	if c.phase == PhaseShrinking {
		c.clock.shrink += dt
		if c.clock.shrink >= ShrinkDuration {
			c.clock.shrink = ShrinkDuration
			c.endFlash()
			c.enterParked()
			return
		}
	}
	if c.clock.flashRunning && c.clock.flash >= FlashDuration {
		c.endFlash()
	}
}

func (c *Core) endFlash() {
	if !c.clock.flashRunning {
		return
	}
	c.clock.flashRunning = false
	c.emit(Event{Kind: EventFlashEnded, Stage: c.progress.Active})
}

func (c *Core) stepPicker(dt float64) {
	if !c.clock.pickerArmed {
		return
	}
	c.clock.picker += dt
	if c.clock.picker >= StagePickDelay {
		c.clock.pickerArmed = false
		c.clock.picker = 0
		c.emit(Event{Kind: EventStagePickerDue, Stage: c.progress.Active})
	}
}

// detectCompletion watches the top ring of the active stage. A run completes
// only when that ring's wrap count rises above anything seen since tracking
// was last reset, and only when units did not go down during the frame.
func (c *Core) detectCompletion(unitsBefore int64) {
	slots := c.CompletionSlots()
	ticks := c.ledger.TopTicks(slots - 1)

	if !c.tracking {
		c.tracking = true
		c.peakTicks = ticks
		return
	}
	if ticks <= c.peakTicks {
		return
	}
	c.peakTicks = ticks
	if c.ledger.TotalUnits < unitsBefore {
		return
	}
	c.completeRun()
}

func (c *Core) resetTracking() {
	c.tracking = false
	c.peakTicks = 0
}

func (c *Core) completeRun() {
	idx := c.progress.Active
	final := c.catalog.IsFinal(idx)
	c.recordCompletion(idx, final)
	c.devUnlocked = true

	switch c.policy.OnComplete(idx, final) {
	case OutcomeWin:
		c.startWin()
	case OutcomePark:
		c.enterParked()
	default:
		c.enterFlashing()
	}
}

// recordCompletion is the bookkeeping half of a completion. A stage is only
// completable once, so repeat calls change nothing.
func (c *Core) recordCompletion(idx int, final bool) {
	if c.progress.IsCompleted(idx) {
		return
	}
	c.progress.Completed[idx] = true
	reward := c.catalog.Get(idx).Reward
	c.meta.Award(reward)
	c.log.Info("stage completed", "stage", idx, "reward", reward, "units", c.ledger.TotalUnits, "play_time", c.playTime)
	c.emit(Event{Kind: EventStageCompleted, Stage: idx, Points: reward})

	if final {
		return
	}
	c.progress.UpsertTrophy(idx, c.catalog.Angle(idx), c.ledger.TotalUnits)
	c.progress.PendingTrophy = idx
	c.progress.RequireChange = true
	c.clock.pickerArmed = true
	c.clock.picker = 0
}

func (c *Core) startWin() {
	c.phase = PhaseParked
	c.won = true
	c.clock = timers{}
	c.emit(Event{Kind: EventGameWon, Stage: c.progress.Active})
}

func (c *Core) stepOrbit(dt float64) {
	if !c.catalog.IsFinal(c.progress.Active) || len(c.progress.Trophies) == 0 {
		return
	}
	slots := c.CompletionSlots()
	used := 0
	for i := 0; i < len(c.ledger.Rings) && used < slots; i++ {
		if c.ledger.Rings[i].Exists() {
			used++
		}
	}
	c.orbit = math.Mod(c.orbit+trophyOrbitRate*float64(used)/float64(slots)*dt, 2*math.Pi)
}
