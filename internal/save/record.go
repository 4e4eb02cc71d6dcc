package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"spheres/internal/game"
)

var (
	ErrCorrupt            = errors.New("corrupt save data")
	ErrUnsupportedVersion = errors.New("unsupported save version")
	ErrWrongPassword      = errors.New("wrong password or damaged export")
)

// One decoder per schema version. Each one converges on the current
// game.Record shape.
var decoders = map[int]func([]byte) (game.Record, error){
	0: decodeV0,
	1: decodeV1,
}

// Decode reads any known save version.
func Decode(raw []byte) (game.Record, error) {
	var head struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return game.Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	version := 0
	if head.Version != nil {
		version = *head.Version
	}
	decode, ok := decoders[version]
	if !ok {
		return game.Record{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	rec, err := decode(raw)
	if err != nil {
		return game.Record{}, err
	}
	rec.Version = game.RecordVersion
	return rec, nil
}

// Encode writes rec as the current version.
func Encode(rec game.Record) ([]byte, error) {
	rec.Version = game.RecordVersion
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode save: %w", err)
	}
	return raw, nil
}

func decodeV1(raw []byte) (game.Record, error) {
	var rec game.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return game.Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return rec, nil
}

// legacyV0 is the unversioned browser save. Every number was a float and
// any field may be missing.
type legacyV0 struct {
	TotalUnits       *float64  `json:"totalUnits"`
	LoopThreshold    *float64  `json:"loopThreshold"`
	MultScale        *float64  `json:"multScale"`
	UpgradeLevels    []float64 `json:"upgradeLevels"`
	StagePoints      *float64  `json:"stagePoints"`
	StagePointLevels []float64 `json:"stagePointLevels"`
	Rings            []struct {
		Progress float64 `json:"progress"`
		Ticks    float64 `json:"ticks"`
		Solid    bool    `json:"solid"`
	} `json:"rings"`
	StageCompleted        []bool   `json:"stageCompleted"`
	ActiveStageIndex      *float64 `json:"activeStageIndex"`
	RequireStageChange    bool     `json:"requireStageChange"`
	CompletedSphereStatic bool     `json:"completedSphereStatic"`
	CompletedStageSpheres []struct {
		Stage           float64 `json:"stage"`
		Angle           float64 `json:"angle"`
		Color           string  `json:"color"`
		Loops           float64 `json:"loops"`
		Spawned         *bool   `json:"spawned"`
		RotationEnabled *bool   `json:"rotationEnabled"`
	} `json:"completedStageSpheres"`
	DevUnlocked     bool     `json:"devUnlocked"`
	DevToolsEnabled bool     `json:"devToolsEnabled"`
	SpeedScale      *float64 `json:"speedScale"`
}

func decodeV0(raw []byte) (game.Record, error) {
	var old legacyV0
	if err := json.Unmarshal(raw, &old); err != nil {
		return game.Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	rec := game.Record{
		TotalUnits:            toInt64(deref(old.TotalUnits, 0)),
		LoopThreshold:         deref(old.LoopThreshold, 0),
		MultScale:             deref(old.MultScale, 1),
		StagePoints:           toInt64(deref(old.StagePoints, 0)),
		StageCompleted:        old.StageCompleted,
		ActiveStageIndex:      int(toInt64(deref(old.ActiveStageIndex, 0))),
		RequireStageChange:    old.RequireStageChange,
		CompletedSphereStatic: old.CompletedSphereStatic,
		DevUnlocked:           old.DevUnlocked,
		DevToolsEnabled:       old.DevToolsEnabled,
		SpeedScale:            deref(old.SpeedScale, 1),
	}
	if deref(old.TotalUnits, 0) < 0 || deref(old.StagePoints, 0) < 0 {
		return game.Record{}, fmt.Errorf("%w: negative counter", ErrCorrupt)
	}
	for _, lvl := range old.UpgradeLevels {
		rec.UpgradeLevels = append(rec.UpgradeLevels, int(toInt64(lvl)))
	}
	for _, lvl := range old.StagePointLevels {
		rec.StagePointLevels = append(rec.StagePointLevels, int(toInt64(lvl)))
	}
	for _, r := range old.Rings {
		rec.Rings = append(rec.Rings, game.RingRecord{
			Progress: r.Progress,
			Ticks:    toInt64(r.Ticks),
			Solid:    r.Solid,
		})
	}
	for _, t := range old.CompletedStageSpheres {
		rec.CompletedStageSpheres = append(rec.CompletedStageSpheres, game.TrophyRecord{
			Stage:           int(toInt64(t.Stage)),
			Angle:           t.Angle,
			Color:           t.Color,
			Loops:           toInt64(t.Loops),
			Spawned:         t.Spawned,
			RotationEnabled: t.RotationEnabled,
		})
	}
	return rec, nil
}

func deref(v *float64, fallback float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return fallback
	}
	return *v
}

// toInt64 floors v and saturates at the int64 range.
func toInt64(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(math.Floor(v))
}
