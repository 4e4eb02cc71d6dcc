package ring

import "math"

const (
	// MinThreshold is the smallest base the ledger will convert in.
	MinThreshold = 2.0

	SolidOnLoopsPerSec  = 10.0
	SolidOffLoopsPerSec = 4.0
)

// Ring is one positional digit of the counter. Ring 0 is the sub-unit
// accumulator and is not part of the positional representation.
type Ring struct {
	Level    int
	Progress float64
	Ticks    int64
	Solid    bool
}

func (r Ring) Exists() bool {
	return r.Level == 0 || r.Progress > 0 || r.Ticks > 0
}

// Ledger holds the counter and its ring view. TotalUnits is authoritative;
// Rings[1:] are re-derived from it by Rebuild.
type Ledger struct {
	TotalUnits int64
	Threshold  float64
	Rings      []Ring
}

func NewLedger(threshold float64) *Ledger {
	l := &Ledger{}
	l.Reset(threshold)
	return l
}

// Reset drops all progress and keeps only ring 0.
func (l *Ledger) Reset(threshold float64) {
	l.TotalUnits = 0
	l.Threshold = threshold
	l.Rings = []Ring{{Level: 0}}
}

// TopTicks returns the wrap count of ring index, 0 when the ring has not
// been created yet.
func (l *Ledger) TopTicks(index int) int64 {
	if index < 0 || index >= len(l.Rings) {
		return 0
	}
	return l.Rings[index].Ticks
}

func (l *Ledger) base() int64 {
	t := l.Threshold
	if math.IsNaN(t) || t < MinThreshold {
		t = MinThreshold
	}
	return int64(math.Floor(t))
}

func (l *Ledger) ensure(count int) {
	for len(l.Rings) < count {
		l.Rings = append(l.Rings, Ring{Level: len(l.Rings)})
	}
}

// Rebuild re-derives Rings[1:] from TotalUnits in base Threshold. Rings above
// the highest nonzero digit are zeroed but kept. Ring 0 counts every wrap,
// so its Ticks mirror TotalUnits.
func (l *Ledger) Rebuild() {
	l.ensure(1)
	if l.TotalUnits < 0 {
		l.TotalUnits = 0
	}
	l.Rings[0].Ticks = l.TotalUnits
	base := l.base()
	units := l.TotalUnits
	level := 1
	for units > 0 {
		l.ensure(level + 1)
		digit := units % base
		carry := units / base
		l.Rings[level].Progress = float64(digit)
		l.Rings[level].Ticks = carry
		units = carry
		level++
	}
	for i := level; i < len(l.Rings); i++ {
		l.Rings[i].Progress = 0
		l.Rings[i].Ticks = 0
		l.Rings[i].Solid = false
	}
}

// Spend removes amount units. It fails without touching anything when
// amount is not positive or exceeds the balance.
func (l *Ledger) Spend(amount int64) bool {
	if amount <= 0 || amount > l.TotalUnits {
		return false
	}
	l.TotalUnits -= amount
	l.Rebuild()
	return true
}

// SetThreshold switches the base. Ring 0 keeps its fractional position
// proportionally and any overflow becomes whole units. It reports whether
// the threshold actually changed.
func (l *Ledger) SetThreshold(next float64) bool {
	if next == l.Threshold {
		return false
	}
	if next < MinThreshold || math.IsNaN(next) {
		next = MinThreshold
	}
	r0 := &l.Rings[0]
	if l.Threshold > 0 {
		r0.Progress *= next / l.Threshold
	}
	for r0.Progress >= next {
		r0.Progress -= next
		l.TotalUnits = addUnits(l.TotalUnits, 1)
	}
	l.Threshold = next
	l.Rebuild()
	return true
}

// Integrate advances ring 0 by speed*dt and moves every whole threshold
// crossed into TotalUnits in one step. It returns the units gained.
func (l *Ledger) Integrate(speed, dt float64) int64 {
	step := speed * dt
	if speed <= 0 || dt <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return 0
	}
	r0 := &l.Rings[0]
	r0.Progress += step
	var gained int64
	if l.Threshold > 0 {
		loops := math.Floor(r0.Progress / l.Threshold)
		if loops > 0 {
			r0.Progress -= loops * l.Threshold
			if r0.Progress < 0 {
				r0.Progress = 0
			}
			gained = floatToUnits(loops)
			before := l.TotalUnits
			l.TotalUnits = addUnits(l.TotalUnits, gained)
			gained = l.TotalUnits - before
		}
	}
	l.Rebuild()
	return gained
}

// Value reconstructs the counter from the digit rings.
func (l *Ledger) Value() int64 {
	base := l.base()
	var total, place int64 = 0, 1
	for i := 1; i < len(l.Rings); i++ {
		r := l.Rings[i]
		if !r.Exists() {
			break
		}
		total += int64(r.Progress) * place
		next := i + 1
		if next == len(l.Rings) || !l.Rings[next].Exists() {
			// carry left in the top ring
			total += r.Ticks * place * base
			break
		}
		place *= base
	}
	return total
}

// ExistingCount counts rings that are currently visible.
func (l *Ledger) ExistingCount() int {
	n := 0
	for _, r := range l.Rings {
		if r.Exists() {
			n++
		}
	}
	return n
}

// UpdateSolid latches each ring's Solid flag with hysteresis on its own loop
// rate, derived from ring 0's loops per second.
func (l *Ledger) UpdateSolid(loopRate0 float64) {
	base := float64(l.base())
	rate := loopRate0
	for i := range l.Rings {
		r := &l.Rings[i]
		if i > 0 {
			rate /= base
		}
		if !r.Exists() {
			r.Solid = false
			continue
		}
		switch {
		case !r.Solid && rate >= SolidOnLoopsPerSec:
			r.Solid = true
		case r.Solid && rate <= SolidOffLoopsPerSec:
			r.Solid = false
		}
	}
}

func addUnits(total, delta int64) int64 {
	if delta > 0 && total > math.MaxInt64-delta {
		return math.MaxInt64
	}
	return total + delta
}

func floatToUnits(v float64) int64 {
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	if v <= 0 {
		return 0
	}
	return int64(v)
}
