package main

import "math/rand"

const (
	PipeWidth         = 80.0
	PipeGap           = 150.0
	PipeSpawnInterval = 90  // ticks between spawns
	GameSpeed         = 3.0 // horizontal scroll per tick
)

// Pipe is a paired top/bottom obstacle with a vertical gap band. The pass
// ledger is tracked per participant so both players score independently.
type Pipe struct {
	X      float64
	Top    float64 // height of the top segment
	Bottom float64 // height of the bottom segment

	passedBy map[string]bool
}

// NewPipe spawns a pipe at the right edge with a uniformly random gap
// position. Top + gap + bottom always equals the board height exactly.
func NewPipe() *Pipe {
	top := 100 + rand.Float64()*(BoardHeight-300)
	return &Pipe{
		X:        BoardWidth,
		Top:      top,
		Bottom:   BoardHeight - top - PipeGap,
		passedBy: make(map[string]bool),
	}
}

// RelayedPipe builds a pipe from host-reported geometry (relay rooms).
func RelayedPipe(x, top, bottom float64) *Pipe {
	return &Pipe{X: x, Top: top, Bottom: bottom, passedBy: make(map[string]bool)}
}

// Step scrolls the pipe left one tick.
func (pipe *Pipe) Step() {
	pipe.X -= GameSpeed
}

// Offscreen reports whether the pipe has fully left the board.
func (pipe *Pipe) Offscreen() bool {
	return pipe.X+PipeWidth < 0
}

// Collides tests the participant's bird box against the pipe segments.
// The bird collides when its x-range overlaps the pipe and it sits outside
// the gap band.
func (pipe *Pipe) Collides(p *Participant) bool {
	if p.X >= pipe.X+PipeWidth || p.X+BirdWidth <= pipe.X {
		return false
	}
	return p.Y < pipe.Top || p.Y+BirdHeight > BoardHeight-pipe.Bottom
}

// JustPassed reports whether this tick is the first on which the pipe's
// trailing edge fell strictly left of the participant. Each participant
// passes a given pipe at most once.
func (pipe *Pipe) JustPassed(p *Participant) bool {
	if pipe.passedBy[p.ConnID] {
		return false
	}
	if pipe.X+PipeWidth < p.X {
		pipe.passedBy[p.ConnID] = true
		return true
	}
	return false
}

// ToState converts to the protocol representation.
func (pipe *Pipe) ToState() PipeState {
	return PipeState{X: pipe.X, Top: pipe.Top, Bottom: pipe.Bottom}
}
