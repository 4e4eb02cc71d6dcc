package main

import (
	"testing"

	"spheres/internal/game"
	"spheres/internal/stage"
)

func TestComma(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{-1234567, "-1,234,567"},
		{100000, "100,000"},
	}
	for _, tc := range tests {
		if got := comma(tc.in); got != tc.want {
			t.Fatalf("comma(%d) got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestIndexArg(t *testing.T) {
	if n, err := indexArg(" 3 ", 4); err != nil || n != 2 {
		t.Fatalf("got %d err=%v want 2", n, err)
	}
	for _, bad := range []string{"0", "5", "x", ""} {
		if _, err := indexArg(bad, 4); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestStageBlockReason(t *testing.T) {
	cat := stage.Default()
	completed := make([]bool, cat.Count())
	completed[0] = true
	v := game.View{Stage: 0, Completed: completed}

	if got := stageBlockReason(v, cat, 0); got != "already completed" {
		t.Fatalf("got %q", got)
	}
	if got := stageBlockReason(v, cat, cat.FinalIndex()); got != "complete every other stage first" {
		t.Fatalf("got %q", got)
	}
	v.RequireChange = true
	v.Stage = 1
	if got := stageBlockReason(v, cat, 1); got != "pick a different stage" {
		t.Fatalf("got %q", got)
	}
}

func TestTextBar(t *testing.T) {
	if got := textBar(0.5, 4); got != "[##..]" {
		t.Fatalf("got %q", got)
	}
	if got := textBar(3, 2); got != "[##]" {
		t.Fatalf("overflow got %q", got)
	}
}
