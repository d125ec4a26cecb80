package main

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// RoomCapacity is fixed for every lobby.
const RoomCapacity = 2

// Phase is the room's state-machine state.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseCountdown
	PhaseActive
	PhaseEnded
)

func (ph Phase) String() string {
	switch ph {
	case PhaseCountdown:
		return "countdown"
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	default:
		return "waiting"
	}
}

// Authority says which side simulates a room.
type Authority int

const (
	AuthorityServer Authority = iota // the tick scheduler owns physics
	AuthorityHost                    // legacy: slot-0 client relays state
)

// Room is one fixed-capacity game session. All mutation is serialized by the
// owning Registry's lock; Room methods never lock.
type Room struct {
	ID           string
	Authority    Authority
	Phase        Phase
	Participants []*Participant
	Pipes        []*Pipe
	Frame        uint64

	// HostID is fixed at Active entry and never changes mid-game.
	HostID string

	// phaseTimer drives the pending Countdown step or Ended->Waiting reset.
	// It is owned here so transitions can cancel it; callbacks re-enter
	// through the Registry, which takes the lock.
	phaseTimer    *time.Timer
	countdownLeft int
}

// NewRoom creates an empty room in the Waiting phase.
func NewRoom(id string, authority Authority) *Room {
	return &Room{ID: id, Authority: authority}
}

// find returns the participant for a connection, or nil.
func (r *Room) find(connID string) *Participant {
	for _, p := range r.Participants {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

// remove deletes a participant by connection id, preserving join order.
// Returns false if the connection is not a member.
func (r *Room) remove(connID string) bool {
	for i, p := range r.Participants {
		if p.ConnID == connID {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return true
		}
	}
	return false
}

// cancelTimer stops any pending countdown or reset callback.
func (r *Room) cancelTimer() {
	if r.phaseTimer != nil {
		r.phaseTimer.Stop()
		r.phaseTimer = nil
	}
}

// startGame resets all per-game state and enters Active. The participant at
// slot 0 becomes host for the whole game.
func (r *Room) startGame() {
	r.Pipes = nil
	r.Frame = 0
	for i, p := range r.Participants {
		p.ResetForStart(i)
	}
	r.HostID = r.Participants[0].ConnID
	r.Phase = PhaseActive
}

// advance runs one authoritative simulation tick: participant physics, pipe
// spawn/motion/culling, collisions, and scoring.
func (r *Room) advance() {
	r.Frame++

	for _, p := range r.Participants {
		if p.Dead {
			continue
		}
		p.Step()
	}

	if r.Frame%PipeSpawnInterval == 0 {
		r.Pipes = append(r.Pipes, NewPipe())
	}

	kept := r.Pipes[:0]
	for _, pipe := range r.Pipes {
		pipe.Step()
		for _, p := range r.Participants {
			if p.Dead {
				continue
			}
			if pipe.Collides(p) {
				p.Dead = true
				continue
			}
			if pipe.JustPassed(p) {
				p.Score++
			}
		}
		if !pipe.Offscreen() {
			kept = append(kept, pipe)
		}
	}
	r.Pipes = kept
}

// allDead reports whether every participant has died. False for empty rooms.
func (r *Room) allDead() bool {
	if len(r.Participants) == 0 {
		return false
	}
	for _, p := range r.Participants {
		if !p.Dead {
			return false
		}
	}
	return true
}

// state builds a point-in-time snapshot for broadcast.
func (r *Room) state() RoomState {
	st := RoomState{
		Participants: r.participantStates(),
		Pipes:        make([]PipeState, 0, len(r.Pipes)),
		Frame:        r.Frame,
	}
	for _, pipe := range r.Pipes {
		st.Pipes = append(st.Pipes, pipe.ToState())
	}
	return st
}

func (r *Room) participantStates() []ParticipantState {
	states := make([]ParticipantState, 0, len(r.Participants))
	for _, p := range r.Participants {
		states = append(states, p.ToState(r.HostID))
	}
	return states
}

// sendJSON delivers an envelope to every room member.
func (r *Room) sendJSON(msg Envelope) {
	for _, p := range r.Participants {
		p.client.SendJSON(msg)
	}
}

// sendState broadcasts the post-tick snapshot. Authoritative rooms use a
// compact msgpack binary frame; relay rooms stay on the JSON surface the
// legacy client understands.
func (r *Room) sendState() {
	if r.Authority == AuthorityHost {
		r.sendJSON(Envelope{T: MsgStateSnapshot, Data: r.state()})
		return
	}
	data, err := msgpack.Marshal(r.state())
	if err != nil {
		return
	}
	for _, p := range r.Participants {
		p.client.SendBinary(data)
	}
}

// winnerID returns the connection id of the game's winner: the sole
// survivor if there is one, otherwise the unique top scorer. Empty on ties.
func (r *Room) winnerID() string {
	alive := ""
	for _, p := range r.Participants {
		if !p.Dead {
			if alive != "" {
				alive = ""
				break
			}
			alive = p.ConnID
		}
	}
	if alive != "" {
		return alive
	}

	best, bestScore, tied := "", -1, false
	for _, p := range r.Participants {
		switch {
		case p.Score > bestScore:
			best, bestScore, tied = p.ConnID, p.Score, false
		case p.Score == bestScore:
			tied = true
		}
	}
	if tied {
		return ""
	}
	return best
}
