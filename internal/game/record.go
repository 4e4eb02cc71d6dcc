package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"spheres/internal/rate"
	"spheres/internal/ring"
	"spheres/internal/stage"
)

const RecordVersion = 1

var ErrInvalidRecord = errors.New("invalid save record")

type RingRecord struct {
	Progress float64 `json:"progress"`
	Ticks    int64   `json:"ticks"`
	Solid    bool    `json:"solid"`
}

// TrophyRecord keeps Spawned and RotationEnabled optional: saves written
// before those flags existed mean "true".
type TrophyRecord struct {
	Stage           int     `json:"stage"`
	Angle           float64 `json:"angle"`
	Color           string  `json:"color"`
	Loops           int64   `json:"loops"`
	Spawned         *bool   `json:"spawned,omitempty"`
	RotationEnabled *bool   `json:"rotationEnabled,omitempty"`
}

type Record struct {
	Version               int            `json:"version"`
	TotalUnits            int64          `json:"totalUnits"`
	LoopThreshold         float64        `json:"loopThreshold"`
	MultScale             float64        `json:"multScale"`
	UpgradeLevels         []int          `json:"upgradeLevels"`
	Rings                 []RingRecord   `json:"rings"`
	StagePoints           int64          `json:"stagePoints"`
	StagePointLevels      []int          `json:"stagePointLevels"`
	StageCompleted        []bool         `json:"stageCompleted"`
	ActiveStageIndex      int            `json:"activeStageIndex"`
	RequireStageChange    bool           `json:"requireStageChange"`
	CompletedSphereStatic bool           `json:"completedSphereStatic"`
	CompletedStageSpheres []TrophyRecord `json:"completedStageSpheres"`
	DevUnlocked           bool           `json:"devUnlocked"`
	DevToolsEnabled       bool           `json:"devToolsEnabled"`
	SpeedScale            float64        `json:"speedScale"`
	PlayTime              float64        `json:"playTime"`
}

func boolPtr(v bool) *bool {
	return &v
}

func (c *Core) Serialize() Record {
	rec := Record{
		Version:               RecordVersion,
		TotalUnits:            c.ledger.TotalUnits,
		LoopThreshold:         c.ledger.Threshold,
		MultScale:             c.multScale,
		UpgradeLevels:         append([]int(nil), c.levels[:]...),
		StagePoints:           c.meta.Points,
		StagePointLevels:      c.meta.Levels(),
		StageCompleted:        append([]bool(nil), c.progress.Completed...),
		ActiveStageIndex:      c.progress.Active,
		RequireStageChange:    c.progress.RequireChange,
		CompletedSphereStatic: c.phase != PhaseSimulating,
		DevUnlocked:           c.devUnlocked,
		DevToolsEnabled:       c.devTools,
		SpeedScale:            c.speedScale,
		PlayTime:              c.playTime,
	}
	rec.Rings = make([]RingRecord, len(c.ledger.Rings))
	for i, r := range c.ledger.Rings {
		rec.Rings[i] = RingRecord{Progress: r.Progress, Ticks: r.Ticks, Solid: r.Solid}
	}
	rec.CompletedStageSpheres = make([]TrophyRecord, len(c.progress.Trophies))
	for i, t := range c.progress.Trophies {
		rec.CompletedStageSpheres[i] = TrophyRecord{
			Stage:           t.Stage,
			Angle:           t.Angle,
			Color:           t.Color,
			Loops:           t.Loops,
			Spawned:         boolPtr(t.Spawned),
			RotationEnabled: boolPtr(t.RotationEnabled),
		}
	}
	return rec
}

func validateRecord(rec Record, count int) error {
	if rec.TotalUnits < 0 {
		return fmt.Errorf("%w: negative totalUnits %d", ErrInvalidRecord, rec.TotalUnits)
	}
	if rec.StagePoints < 0 {
		return fmt.Errorf("%w: negative stagePoints %d", ErrInvalidRecord, rec.StagePoints)
	}
	if math.IsNaN(rec.LoopThreshold) || math.IsInf(rec.LoopThreshold, 0) {
		return fmt.Errorf("%w: loopThreshold %v", ErrInvalidRecord, rec.LoopThreshold)
	}
	for i, lvl := range rec.UpgradeLevels {
		if lvl < 0 {
			return fmt.Errorf("%w: upgrade %d level %d", ErrInvalidRecord, i, lvl)
		}
	}
	for i, t := range rec.CompletedStageSpheres {
		if t.Stage < 0 || t.Stage >= count {
			return fmt.Errorf("%w: trophy %d for unknown stage %d", ErrInvalidRecord, i, t.Stage)
		}
	}
	return nil
}

// Apply replaces the state with rec. Short arrays are padded with defaults
// and longer ones are truncated.
// A half-played hand-off never resumes: the run comes back parked when it
// was parked or a stage change is pending, and simulating otherwise. On
// error the core is left untouched.
func (c *Core) Apply(rec Record) error {
	count := c.catalog.Count()
	if err := validateRecord(rec, count); err != nil {
		return err
	}

	c.won = false
	c.clock = timers{}
	c.orbit = 0

	c.levels = [rate.UpgradeCount]int{}
	copy(c.levels[:], rec.UpgradeLevels)

	c.meta.Points = rec.StagePoints
	c.meta.SetLevels(rec.StagePointLevels)

	c.progress = stage.NewProgress(count)
	copy(c.progress.Completed, rec.StageCompleted)
	c.progress.Active = rec.ActiveStageIndex
	if !c.catalog.Valid(c.progress.Active) {
		c.progress.Active = 0
	}
	c.progress.RequireChange = rec.RequireStageChange
	c.progress.Trophies = make([]stage.Trophy, 0, len(rec.CompletedStageSpheres))
	for _, t := range rec.CompletedStageSpheres {
		spawned := t.Spawned == nil || *t.Spawned
		if c.progress.Completed[t.Stage] {
			spawned = true
		}
		c.progress.Trophies = append(c.progress.Trophies, stage.Trophy{
			Stage:           t.Stage,
			Angle:           t.Angle,
			Color:           t.Color,
			Loops:           t.Loops,
			Spawned:         spawned,
			RotationEnabled: t.RotationEnabled == nil || *t.RotationEnabled,
		})
	}

	c.devUnlocked = rec.DevUnlocked
	c.devTools = rec.DevToolsEnabled && rec.DevUnlocked
	c.speedScale = 1
	if c.devTools && rec.SpeedScale > 0 && !math.IsInf(rec.SpeedScale, 0) {
		c.speedScale = min(max(rec.SpeedScale, 1/MaxSpeedScale), MaxSpeedScale)
	}
	c.playTime = max(rec.PlayTime, 0)

	m := c.model()
	threshold := rec.LoopThreshold
	if threshold < ring.MinThreshold {
		threshold = m.LoopThreshold()
	}
	c.ledger.Reset(threshold)
	c.ledger.TotalUnits = rec.TotalUnits
	c.ledger.Rebuild()
	if len(rec.Rings) > 0 {
		p := rec.Rings[0].Progress
		if math.IsNaN(p) || p < 0 || p >= threshold {
			p = 0
		}
		c.ledger.Rings[0].Progress = p
	}
	for i := range c.ledger.Rings {
		if i < len(rec.Rings) {
			c.ledger.Rings[i].Solid = rec.Rings[i].Solid && c.ledger.Rings[i].Exists()
		}
	}
	c.multScale = m.MultScale()
	c.loopRate0 = 0

	c.phase = PhaseSimulating
	if rec.CompletedSphereStatic || rec.RequireStageChange {
		c.phase = PhaseParked
	}
	// A finished final stage comes back on the win overlay.
	if c.catalog.IsFinal(c.progress.Active) && c.progress.IsCompleted(c.progress.Active) {
		c.phase = PhaseParked
		c.won = true
	}
	c.resetTracking()
	return nil
}

// Restore builds a core from rec, or a fresh one when rec is unusable. The
// failure is logged and never returned.
func Restore(catalog stage.Catalog, policy CompletionPolicy, rec *Record, logger *slog.Logger) *Core {
	c := New(catalog, policy, logger)
	if rec == nil {
		return c
	}
	if err := c.Apply(*rec); err != nil {
		c.log.Warn("save record skipped", "err", err)
	}
	return c
}
