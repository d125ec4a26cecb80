package main

import "testing"

func TestNewPipeGapInvariant(t *testing.T) {
	for i := 0; i < 100; i++ {
		pipe := NewPipe()
		if pipe.X != BoardWidth {
			t.Fatalf("pipe must spawn at the right edge, got x=%v", pipe.X)
		}
		if got := pipe.Top + PipeGap + pipe.Bottom; got != BoardHeight {
			t.Fatalf("top+gap+bottom = %v, want %v", got, BoardHeight)
		}
		if pipe.Top < 100 || pipe.Top >= BoardHeight-200 {
			t.Fatalf("gap offset %v out of range", pipe.Top)
		}
	}
}

func TestPipeMotionAndCulling(t *testing.T) {
	pipe := RelayedPipe(0, 200, 250)
	for !pipe.Offscreen() {
		pipe.Step()
	}
	if pipe.X+PipeWidth >= 0 {
		t.Errorf("offscreen pipe still visible at x=%v", pipe.X)
	}
}

func TestPipeCollision(t *testing.T) {
	pipe := RelayedPipe(90, 200, 250) // gap band y in [200, 350)
	p := NewParticipant("c1", "bird", 0, &mockSender{})

	p.Y = 250 // inside the gap
	if pipe.Collides(p) {
		t.Error("bird inside gap must not collide")
	}
	p.Y = 150 // overlaps top segment
	if !pipe.Collides(p) {
		t.Error("bird in top segment must collide")
	}
	p.Y = 340 // bird bottom at 370, inside bottom segment
	if !pipe.Collides(p) {
		t.Error("bird in bottom segment must collide")
	}

	p.Y = 150
	pipe.X = 300 // no horizontal overlap with bird at x=100
	if pipe.Collides(p) {
		t.Error("no collision without x-range overlap")
	}
}

func TestPipePassLedgerPerParticipant(t *testing.T) {
	pipe := RelayedPipe(50, 200, 250)
	a := NewParticipant("a", "A", 0, &mockSender{}) // x = 100
	b := NewParticipant("b", "B", 1, &mockSender{}) // x = 150

	if pipe.JustPassed(a) {
		t.Error("trailing edge at 130 is not past x=100")
	}
	pipe.X = 10 // trailing edge at 90, past both birds
	if !pipe.JustPassed(a) {
		t.Error("a should pass once the trailing edge clears its x")
	}
	if pipe.JustPassed(a) {
		t.Error("a must not pass the same pipe twice")
	}
	if !pipe.JustPassed(b) {
		t.Error("b's ledger is independent of a's")
	}
	if pipe.JustPassed(b) {
		t.Error("b must not pass the same pipe twice")
	}
}
