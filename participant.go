package main

// Board and bird dimensions, shared with the browser client.
const (
	BoardWidth  = 800.0
	BoardHeight = 600.0
	BirdWidth   = 40.0
	BirdHeight  = 30.0
)

// Simulation constants in board units per tick. They match the original
// client-side loop so single-player and server-hosted play feel identical.
const (
	Gravity      = 0.3  // added to velocity every tick
	MaxFallSpeed = 12.0 // terminal downward velocity
	JumpImpulse  = -8.0 // velocity overwrite on jump
	StartY       = 300.0
)

// slotX is the fixed horizontal position for each participant slot.
var slotX = [RoomCapacity]float64{100, 150}

// Participant is one connected player's live state within a room.
type Participant struct {
	ConnID   string
	Name     string
	AuthID   int64 // 0 = guest
	Slot     int
	X, Y     float64
	Velocity float64
	Score    int
	Dead     bool

	client Sender
}

// NewParticipant creates a participant at the preset position for a slot.
func NewParticipant(connID, name string, slot int, client Sender) *Participant {
	return &Participant{
		ConnID: connID,
		Name:   name,
		Slot:   slot,
		X:      slotX[slot],
		Y:      StartY,
		client: client,
	}
}

// Step advances one tick of vertical physics: gravity, terminal-speed clamp,
// integration, then boundaries. The ceiling is soft (clamp and zero
// velocity); the floor is lethal.
func (p *Participant) Step() {
	p.Velocity += Gravity
	if p.Velocity > MaxFallSpeed {
		p.Velocity = MaxFallSpeed
	}
	p.Y += p.Velocity

	if p.Y < 0 {
		p.Y = 0
		p.Velocity = 0
	}
	if p.Y+BirdHeight > BoardHeight {
		p.Y = BoardHeight - BirdHeight
		p.Dead = true
	}
}

// Jump overwrites velocity with the jump impulse. Repeated jumps in the same
// tick do not stack.
func (p *Participant) Jump() {
	p.Velocity = JumpImpulse
}

// ResetForStart returns the participant to its slot preset for a new game.
func (p *Participant) ResetForStart(slot int) {
	p.Slot = slot
	p.X = slotX[slot]
	p.Y = StartY
	p.Velocity = 0
	p.Score = 0
	p.Dead = false
}

// ToState converts to the protocol representation.
func (p *Participant) ToState(hostID string) ParticipantState {
	return ParticipantState{
		ID:       p.ConnID,
		Name:     p.Name,
		Slot:     p.Slot,
		X:        p.X,
		Y:        p.Y,
		Velocity: p.Velocity,
		Score:    p.Score,
		Dead:     p.Dead,
		Host:     hostID != "" && p.ConnID == hostID,
	}
}
