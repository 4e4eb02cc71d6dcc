package stage

import "math"

// NoStage marks "no pending trophy".
const NoStage = -1

var palette = []string{
	"#70ffa3",
	"#6ef4ff",
	"#a98bff",
	"#ff7bd9",
	"#ffc857",
	"#f25f5c",
}

// Color is the palette entry for a ring or stage index.
func Color(i int) string {
	if i < 0 {
		i = -i
	}
	return palette[i%len(palette)]
}

func (c Catalog) Count() int {
	return len(c.Stages)
}

func (c Catalog) FinalIndex() int {
	return len(c.Stages) - 1
}

func (c Catalog) IsFinal(i int) bool {
	return i == c.FinalIndex()
}

func (c Catalog) Valid(i int) bool {
	return i >= 0 && i < len(c.Stages)
}

// Get returns the definition at i; out-of-range indexes fall back to stage 0.
func (c Catalog) Get(i int) Definition {
	if !c.Valid(i) {
		i = 0
	}
	return c.Stages[i]
}

// Angle places the trophy of a non-final stage on a circle split into one
// slot per non-final stage, offset by half a slot.
func (c Catalog) Angle(i int) float64 {
	visible := len(c.Stages) - 1
	if visible <= 0 {
		return 0
	}
	if i < 0 || i >= visible {
		i = 0
	}
	slot := 2 * math.Pi / float64(visible)
	return float64(i)*slot + slot/2
}

// CompletionSlots is the number of ring slots that make up one run of stage
// i. The top watched ring is at index CompletionSlots-1.
func (c Catalog) CompletionSlots(i int, loopsMinusOne bool) int {
	slots := c.Get(i).Loops
	if slots < 1 {
		slots = 1
	}
	if loopsMinusOne {
		slots--
	}
	if slots < 1 {
		slots = 1
	}
	return slots
}

// Unlocked reports whether stage i may be entered given the completion flags.
// The final stage needs every other stage completed.
func (c Catalog) Unlocked(i int, completed []bool) bool {
	if !c.Valid(i) {
		return false
	}
	if !c.IsFinal(i) {
		return true
	}
	for j := 0; j < c.FinalIndex(); j++ {
		if j >= len(completed) || !completed[j] {
			return false
		}
	}
	return true
}

// Trophy is the record left by a completed non-final stage.
type Trophy struct {
	Stage           int
	Angle           float64
	Color           string
	Loops           int64
	Spawned         bool
	RotationEnabled bool
}

// Progress is the stage runtime carried across runs.
type Progress struct {
	Completed     []bool
	Active        int
	Trophies      []Trophy
	RequireChange bool
	PendingTrophy int
}

func NewProgress(count int) Progress {
	return Progress{
		Completed:     make([]bool, count),
		PendingTrophy: NoStage,
	}
}

func (p *Progress) IsCompleted(i int) bool {
	return i >= 0 && i < len(p.Completed) && p.Completed[i]
}

func (p *Progress) AnyCompleted() bool {
	for _, done := range p.Completed {
		if done {
			return true
		}
	}
	return false
}

// Trophy returns the trophy for stage i, if any.
func (p *Progress) Trophy(i int) (*Trophy, bool) {
	for k := range p.Trophies {
		if p.Trophies[k].Stage == i {
			return &p.Trophies[k], true
		}
	}
	return nil, false
}

// UpsertTrophy creates or refreshes the trophy of stage i. The trophy stays
// hidden until SpawnPending runs.
func (p *Progress) UpsertTrophy(i int, angle float64, loops int64) *Trophy {
	t, ok := p.Trophy(i)
	if !ok {
		p.Trophies = append(p.Trophies, Trophy{Stage: i})
		t = &p.Trophies[len(p.Trophies)-1]
	}
	t.Angle = angle
	t.Color = Color(i)
	t.Loops = loops
	t.Spawned = false
	return t
}

// SpawnPending makes the pending trophy visible and clears the pending mark.
func (p *Progress) SpawnPending() (int, bool) {
	i := p.PendingTrophy
	p.PendingTrophy = NoStage
	if i == NoStage {
		return NoStage, false
	}
	t, ok := p.Trophy(i)
	if !ok {
		return NoStage, false
	}
	t.Spawned = true
	t.RotationEnabled = true
	return i, true
}

// EnableRotation lets every spawned trophy spin.
func (p *Progress) EnableRotation() {
	for k := range p.Trophies {
		if p.Trophies[k].Spawned {
			p.Trophies[k].RotationEnabled = true
		}
	}
}
