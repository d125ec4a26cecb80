package main

import (
	"errors"
	"log"
	"sync"
	"time"
)

// lobbyIDs are the pre-declared rooms, matching the original deployment.
var lobbyIDs = []string{"1", "2", "3", "4"}

// Join errors surfaced to the caller. Anything else (stale participants,
// wrong-phase input) is silently ignored.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
)

// LobbyBroadcaster delivers a message to every connection, member or not.
// The Hub implements it; the registry uses it for lobby-list refreshes.
type LobbyBroadcaster interface {
	BroadcastJSON(msg interface{})
}

// Sender is one connection's outbound side.
type Sender interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Registry owns all rooms and serializes every mutation — joins, leaves,
// input, timer callbacks, and the shared tick — behind one lock. This is the
// Go rendition of the original single-threaded event loop: each handler runs
// to completion before the next one observes the rooms.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	order []string

	cfg   *Config
	lobby LobbyBroadcaster
	db    *DB // nil disables persistence
}

// NewRegistry creates the fixed lobby set.
func NewRegistry(cfg *Config, lobby LobbyBroadcaster, db *DB) *Registry {
	reg := &Registry{
		rooms: make(map[string]*Room),
		cfg:   cfg,
		lobby: lobby,
		db:    db,
	}
	for _, id := range lobbyIDs {
		authority := AuthorityServer
		if cfg.RelayRooms[id] {
			authority = AuthorityHost
		}
		reg.rooms[id] = NewRoom(id, authority)
		reg.order = append(reg.order, id)
	}
	return reg
}

// List returns a consistent point-in-time copy of the lobby table.
func (reg *Registry) List() map[string]RoomInfo {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.listLocked()
}

func (reg *Registry) listLocked() map[string]RoomInfo {
	list := make(map[string]RoomInfo, len(reg.rooms))
	for id, room := range reg.rooms {
		list[id] = RoomInfo{
			Players:    len(room.Participants),
			MaxPlayers: RoomCapacity,
			Phase:      room.Phase.String(),
		}
	}
	return list
}

// Join adds a connection to a room. On success the new participant's slot
// and host flag are returned and, if the room just filled, the start
// transition fires before any other handler can observe the room.
func (reg *Registry) Join(roomID, connID, name string, client Sender) (slot int, isHost bool, err error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[roomID]
	if !ok {
		return 0, false, ErrRoomNotFound
	}
	if len(room.Participants) >= RoomCapacity {
		return 0, false, ErrRoomFull
	}

	slot = len(room.Participants)
	p := NewParticipant(connID, name, slot, client)
	room.Participants = append(room.Participants, p)
	log.Printf("room %s: %s joined (slot %d)", roomID, connID, slot)

	room.sendJSON(Envelope{T: MsgParticipants, Data: ParticipantsMsg{Participants: room.participantStates()}})
	reg.maybeStart(room)
	reg.broadcastLobby()

	return slot, slot == 0, nil
}

// Leave removes a connection from a room. It is idempotent; removing a
// participant from an Active room ends the game so the remaining player is
// notified before the room resets.
func (reg *Registry) Leave(roomID, connID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[roomID]
	if !ok || !room.remove(connID) {
		return
	}
	log.Printf("room %s: %s left", roomID, connID)

	switch room.Phase {
	case PhaseActive:
		reg.endGame(room)
	case PhaseCountdown:
		room.cancelTimer()
		room.Phase = PhaseWaiting
	}
	if len(room.Participants) == 0 {
		room.cancelTimer()
		room.Phase = PhaseWaiting
		room.Pipes = nil
	}

	room.sendJSON(Envelope{T: MsgParticipants, Data: ParticipantsMsg{Participants: room.participantStates()}})
	reg.broadcastLobby()
}

// Jump applies the caller's jump. In authoritative rooms the impulse is
// fixed server-side; relay rooms trust the reported velocity and echo it.
func (reg *Registry) Jump(roomID, connID string, velocity float64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, p := reg.activeParticipant(roomID, connID)
	if p == nil || p.Dead {
		return
	}
	if room.Authority == AuthorityHost {
		p.Velocity = velocity
		room.sendJSON(Envelope{T: MsgJumped, Data: JumpedMsg{PlayerID: connID, Velocity: velocity}})
		return
	}
	p.Jump()
}

// ReportPosition overwrites the caller's state in a relay room and rebroadcasts
// the room snapshot, mirroring the original relay behavior. Positions are not
// validated. Ignored in authoritative rooms.
func (reg *Registry) ReportPosition(roomID, connID string, x, y, velocity float64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, p := reg.activeParticipant(roomID, connID)
	if p == nil || room.Authority != AuthorityHost {
		return
	}
	p.X, p.Y, p.Velocity = x, y, velocity
	room.sendState()
}

// SpawnPipe appends a host-generated pipe in a relay room. Only the host has
// spawn authority; anyone else is ignored to prevent duplicate pipes.
func (reg *Registry) SpawnPipe(roomID, connID string, ps PipeState) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, p := reg.activeParticipant(roomID, connID)
	if p == nil || room.Authority != AuthorityHost || room.HostID != connID {
		return
	}
	room.Pipes = append(room.Pipes, RelayedPipe(ps.X, ps.Top, ps.Bottom))
	room.sendJSON(Envelope{T: MsgPipeSpawned, Data: PipeSpawnedMsg{Pipe: ps}})
}

// ReportGameOver forces the Ended transition for the caller's room.
func (reg *Registry) ReportGameOver(roomID, connID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, p := reg.activeParticipant(roomID, connID)
	if p == nil {
		return
	}
	reg.endGame(room)
}

// TickAll advances every Active authoritative room one simulation step and
// broadcasts the post-tick snapshot. Idle rooms cost one phase check.
func (reg *Registry) TickAll() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, id := range reg.order {
		room := reg.rooms[id]
		if room.Phase != PhaseActive || room.Authority != AuthorityServer {
			continue
		}
		room.advance()
		room.sendState()
		if room.allDead() {
			reg.endGame(room)
		}
	}
}

// activeParticipant resolves a (room, connection) pair for gameplay input.
// Returns nil when the room is unknown, not Active, or the connection is no
// longer a member — all silently dropped per the error taxonomy.
func (reg *Registry) activeParticipant(roomID, connID string) (*Room, *Participant) {
	room, ok := reg.rooms[roomID]
	if !ok || room.Phase != PhaseActive {
		return nil, nil
	}
	return room, room.find(connID)
}

// maybeStart fires the start transition the instant occupancy hits capacity.
// Relay rooms start immediately (the legacy client has no countdown screen);
// authoritative rooms run the countdown first.
func (reg *Registry) maybeStart(room *Room) {
	if room.Phase != PhaseWaiting || len(room.Participants) != RoomCapacity {
		return
	}
	if room.Authority == AuthorityHost {
		room.startGame()
		room.sendJSON(Envelope{T: MsgGameStart, Data: room.state()})
		return
	}
	reg.beginCountdown(room)
}

// beginCountdown enters Countdown and arms the per-second timer chain.
func (reg *Registry) beginCountdown(room *Room) {
	room.Phase = PhaseCountdown
	room.countdownLeft = reg.cfg.CountdownSeconds
	room.sendJSON(Envelope{T: MsgCountdownTick, Data: CountdownMsg{Seconds: room.countdownLeft}})
	room.phaseTimer = time.AfterFunc(time.Second, func() { reg.countdownStep(room) })
}

// countdownStep is the timer callback decrementing the countdown. A room
// that left Countdown in the meantime (disconnects) is left alone.
func (reg *Registry) countdownStep(room *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room.Phase != PhaseCountdown {
		return
	}
	room.countdownLeft--
	if room.countdownLeft > 0 {
		room.sendJSON(Envelope{T: MsgCountdownTick, Data: CountdownMsg{Seconds: room.countdownLeft}})
		room.phaseTimer = time.AfterFunc(time.Second, func() { reg.countdownStep(room) })
		return
	}
	room.phaseTimer = nil
	room.startGame()
	room.sendJSON(Envelope{T: MsgGameStart, Data: room.state()})
	reg.broadcastLobby()
}

// endGame moves an Active room to Ended, shows final scores, records the
// result, and arms the reset delay. Callers hold the lock.
func (reg *Registry) endGame(room *Room) {
	if room.Phase != PhaseActive {
		return
	}
	room.cancelTimer()
	room.Phase = PhaseEnded
	room.sendJSON(Envelope{T: MsgEnded, Data: ParticipantsMsg{Participants: room.participantStates()}})
	log.Printf("room %s: game over at frame %d", room.ID, room.Frame)

	reg.recordGame(room)
	room.phaseTimer = time.AfterFunc(reg.cfg.ResetDelay(), func() { reg.resetRoom(room) })
	reg.broadcastLobby()
}

// resetRoom is the timer callback returning an Ended room to Waiting. The
// participant list survives so the same players can rematch; if the room
// refilled to capacity the next game starts at once.
func (reg *Registry) resetRoom(room *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room.Phase != PhaseEnded {
		return
	}
	room.phaseTimer = nil
	room.Phase = PhaseWaiting
	room.Pipes = nil
	room.Frame = 0
	room.HostID = ""
	for i, p := range room.Participants {
		p.ResetForStart(i)
	}
	room.sendJSON(Envelope{T: MsgReset, Data: ParticipantsMsg{Participants: room.participantStates()}})
	reg.maybeStart(room)
	reg.broadcastLobby()
}

// recordGame persists the finished game off the tick path. Relay rooms are
// skipped: the server never sees trustworthy scores for them.
func (reg *Registry) recordGame(room *Room) {
	if reg.db == nil || room.Authority != AuthorityServer {
		return
	}
	winnerID := room.winnerID()
	results := make([]GameResult, 0, len(room.Participants))
	for _, p := range room.Participants {
		results = append(results, GameResult{
			PlayerID: p.AuthID,
			Name:     p.Name,
			Score:    p.Score,
			Won:      winnerID != "" && p.ConnID == winnerID,
		})
	}
	roomID, frames := room.ID, room.Frame
	go func() {
		if err := reg.db.RecordGame(roomID, frames, results); err != nil {
			log.Printf("record game: %v", err)
		}
	}()
}

// broadcastLobby pushes the occupancy snapshot to every connection so menu
// screens refresh, matching the original server's global roomStatus emits.
func (reg *Registry) broadcastLobby() {
	reg.lobby.BroadcastJSON(Envelope{T: MsgRoomSnapshot, Data: reg.listLocked()})
}
