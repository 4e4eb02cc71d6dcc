package meta

// Upgrade indexes the binary meta-upgrades bought with stage points.
type Upgrade int

const (
	SpeedX3 Upgrade = iota
	ThresholdMinus2
	LoopsMinus1
	MultFloor
	SpeedX5
	CheapUpgrades
	LoopMultX13
	AllPlusOne

	Count = 8
)

type spec struct {
	cost  int64
	label string
	lines []string
}

var specs = [Count]spec{
	SpeedX3:         {1, "x3 speed", []string{"Triples base progression."}},
	ThresholdMinus2: {1, "threshold -2", []string{"Subtracts 2 from the threshold.", "Can break the cap of 8."}},
	LoopsMinus1:     {1, "loops -1", []string{"Reduces the number of loops required", "for a stage completion by 1."}},
	MultFloor:       {1, "min mult", []string{"Rings with fewer than 4 loops of progress", "count as 4 for the multiplier."}},
	SpeedX5:         {2, "x5 speed", []string{"Quintuples base progression."}},
	CheapUpgrades:   {1, "-75% cost", []string{"Quarters the cost of regular upgrades."}},
	LoopMultX13:     {3, "mult x1.3", []string{"Increases the per-loop multiplier by 30 percent."}},
	AllPlusOne:      {3, "all +1", []string{"Grants 1 free level to all upgrades.", "Doesn't count towards the cap of upgrade 4."}},
}

func (u Upgrade) Valid() bool {
	return u >= 0 && u < Count
}

// Cost is the stage point price of u, or 0 for an unknown upgrade.
func (u Upgrade) Cost() int64 {
	if !u.Valid() {
		return 0
	}
	return specs[u].cost
}

func (u Upgrade) Label() string {
	if !u.Valid() {
		return ""
	}
	return specs[u].label
}

func (u Upgrade) Description() []string {
	if !u.Valid() {
		return nil
	}
	return append([]string(nil), specs[u].lines...)
}

// State is the cross-run meta layer: stage points and owned upgrades.
type State struct {
	Points int64
	Owned  [Count]bool
}

func (s *State) Has(u Upgrade) bool {
	return u.Valid() && s.Owned[u]
}

// Buy fails when u is unknown, already owned or unaffordable.
func (s *State) Buy(u Upgrade) bool {
	if !u.Valid() || s.Owned[u] {
		return false
	}
	cost := u.Cost()
	if s.Points < cost {
		return false
	}
	s.Points -= cost
	s.Owned[u] = true
	return true
}

// Respec refunds every owned upgrade and clears all flags. It returns the
// refunded amount.
func (s *State) Respec() int64 {
	var refund int64
	for i := range s.Owned {
		if s.Owned[i] {
			refund += Upgrade(i).Cost()
			s.Owned[i] = false
		}
	}
	s.Points += refund
	return refund
}

// Award adds stage points; non-positive amounts are ignored.
func (s *State) Award(points int64) {
	if points <= 0 {
		return
	}
	s.Points += points
}

func (s *State) Reset() {
	*s = State{}
}

// Levels renders the flags as 0/1 integers, the persisted shape.
func (s *State) Levels() []int {
	out := make([]int, Count)
	for i, owned := range s.Owned {
		if owned {
			out[i] = 1
		}
	}
	return out
}

// SetLevels restores flags from persisted levels; missing entries are unowned.
func (s *State) SetLevels(levels []int) {
	for i := range s.Owned {
		s.Owned[i] = i < len(levels) && levels[i] > 0
	}
}
