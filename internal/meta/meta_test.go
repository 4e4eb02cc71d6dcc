package meta

import "testing"

func TestBuy(t *testing.T) {
	s := State{Points: 3}
	if !s.Buy(SpeedX5) {
		t.Fatalf("expected buy to succeed")
	}
	if s.Points != 1 || !s.Has(SpeedX5) {
		t.Fatalf("got points=%d owned=%v", s.Points, s.Owned)
	}
	if s.Buy(SpeedX5) {
		t.Fatalf("buying an owned upgrade must be a no-op")
	}
	if s.Points != 1 {
		t.Fatalf("re-buy changed points to %d", s.Points)
	}
	if s.Buy(AllPlusOne) {
		t.Fatalf("expected insufficient points")
	}
	if s.Buy(Upgrade(-1)) || s.Buy(Upgrade(Count)) {
		t.Fatalf("unknown upgrades must be rejected")
	}
}

func TestRespec(t *testing.T) {
	s := State{Points: 10}
	for _, u := range []Upgrade{SpeedX3, SpeedX5, LoopMultX13} {
		if !s.Buy(u) {
			t.Fatalf("buy %v failed", u)
		}
	}
	if s.Points != 4 {
		t.Fatalf("got %d want 4", s.Points)
	}
	refund := s.Respec()
	if refund != 6 {
		t.Fatalf("got refund %d want 6", refund)
	}
	if s.Points != 10 {
		t.Fatalf("got %d want 10", s.Points)
	}
	for i, owned := range s.Owned {
		if owned {
			t.Fatalf("flag %d still owned", i)
		}
	}
	if s.Respec() != 0 {
		t.Fatalf("second respec must refund nothing")
	}
}

func TestLevelsRoundTrip(t *testing.T) {
	s := State{}
	s.Owned[MultFloor] = true
	s.Owned[AllPlusOne] = true
	levels := s.Levels()
	var restored State
	restored.SetLevels(levels)
	if restored.Owned != s.Owned {
		t.Fatalf("got %v want %v", restored.Owned, s.Owned)
	}

	restored.SetLevels([]int{1})
	if !restored.Has(SpeedX3) || restored.Has(AllPlusOne) {
		t.Fatalf("short levels must pad with unowned: %v", restored.Owned)
	}
}

func TestAwardIgnoresNonPositive(t *testing.T) {
	s := State{}
	s.Award(0)
	s.Award(-3)
	s.Award(2)
	if s.Points != 2 {
		t.Fatalf("got %d want 2", s.Points)
	}
}

func TestCosts(t *testing.T) {
	want := []int64{1, 1, 1, 1, 2, 1, 3, 3}
	for i, c := range want {
		if got := Upgrade(i).Cost(); got != c {
			t.Fatalf("upgrade %d got %d want %d", i, got, c)
		}
	}
}
