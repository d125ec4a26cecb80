package main

import (
	"sync"
	"testing"
)

// mockSender captures sent messages for testing
type mockSender struct {
	mu     sync.Mutex
	msgs   []Envelope
	binary [][]byte
}

func (m *mockSender) SendJSON(msg interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if env, ok := msg.(Envelope); ok {
		m.msgs = append(m.msgs, env)
	}
}

func (m *mockSender) SendBinary(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.binary = append(m.binary, data)
}

func (m *mockSender) lastOfType(t string) (Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.msgs) - 1; i >= 0; i-- {
		if m.msgs[i].T == t {
			return m.msgs[i], true
		}
	}
	return Envelope{}, false
}

func (m *mockSender) countOfType(t string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, env := range m.msgs {
		if env.T == t {
			n++
		}
	}
	return n
}

func (m *mockSender) binaryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.binary)
}

// mockLobby counts lobby-wide broadcasts
type mockLobby struct {
	mu    sync.Mutex
	count int
}

func (m *mockLobby) BroadcastJSON(msg interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
}

func (m *mockLobby) broadcasts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func testConfig() *Config {
	return &Config{
		TickRate:         60,
		CountdownSeconds: 3,
		ResetSeconds:     60, // keep test timers from firing on their own
		RelayRooms:       map[string]bool{"4": true},
	}
}

func newTestRegistry() (*Registry, *mockLobby) {
	lobby := &mockLobby{}
	return NewRegistry(testConfig(), lobby, nil), lobby
}

func TestRegistryList(t *testing.T) {
	reg, _ := newTestRegistry()
	list := reg.List()
	if len(list) != len(lobbyIDs) {
		t.Fatalf("expected %d lobbies, got %d", len(lobbyIDs), len(list))
	}
	for id, info := range list {
		if info.Players != 0 || info.MaxPlayers != RoomCapacity || info.Phase != "waiting" {
			t.Errorf("room %s: unexpected initial info %+v", id, info)
		}
	}
}

func TestRegistryJoinErrors(t *testing.T) {
	reg, _ := newTestRegistry()

	if _, _, err := reg.Join("nope", "c1", "A", &mockSender{}); err != ErrRoomNotFound {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}

	reg.Join("1", "c1", "A", &mockSender{})
	reg.Join("1", "c2", "B", &mockSender{})
	if _, _, err := reg.Join("1", "c3", "C", &mockSender{}); err != ErrRoomFull {
		t.Errorf("expected ErrRoomFull, got %v", err)
	}
	if got := reg.List()["1"].Players; got != 2 {
		t.Errorf("failed join must not mutate participants, occupancy %d", got)
	}
}

func TestRegistryJoinSequence(t *testing.T) {
	reg, lobby := newTestRegistry()
	s1, s2 := &mockSender{}, &mockSender{}

	slot, isHost, err := reg.Join("1", "c1", "A", s1)
	if err != nil || slot != 0 || !isHost {
		t.Fatalf("first join: slot=%d host=%v err=%v", slot, isHost, err)
	}

	slot, isHost, err = reg.Join("1", "c2", "B", s2)
	if err != nil || slot != 1 || isHost {
		t.Fatalf("second join: slot=%d host=%v err=%v", slot, isHost, err)
	}

	// Room filled: membership update then countdown start, lobby refreshed
	if s2.countOfType(MsgParticipants) == 0 {
		t.Error("expected participantsChanged after join")
	}
	if env, ok := s2.lastOfType(MsgCountdownTick); !ok {
		t.Error("expected countdown to begin at capacity")
	} else if env.Data.(CountdownMsg).Seconds != 3 {
		t.Errorf("countdown should open at 3, got %+v", env.Data)
	}
	if reg.List()["1"].Phase != "countdown" {
		t.Errorf("expected countdown phase, got %s", reg.List()["1"].Phase)
	}
	if lobby.broadcasts() != 2 {
		t.Errorf("expected 2 lobby broadcasts, got %d", lobby.broadcasts())
	}
}

func TestCountdownRunsToActive(t *testing.T) {
	reg, _ := newTestRegistry()
	s1, s2 := &mockSender{}, &mockSender{}
	reg.Join("1", "c1", "A", s1)
	reg.Join("1", "c2", "B", s2)

	room := reg.rooms["1"]
	room.cancelTimer() // drive the chain by hand
	reg.countdownStep(room)
	reg.countdownStep(room)
	if room.Phase != PhaseCountdown {
		t.Fatalf("phase %v before final step", room.Phase)
	}
	reg.countdownStep(room)

	if room.Phase != PhaseActive {
		t.Fatalf("expected Active after countdown, got %v", room.Phase)
	}
	if _, ok := s1.lastOfType(MsgGameStart); !ok {
		t.Error("expected gameStart broadcast")
	}
	if room.HostID != "c1" {
		t.Errorf("slot 0 must be host, got %q", room.HostID)
	}
}

func TestCountdownCancelledOnLeave(t *testing.T) {
	reg, _ := newTestRegistry()
	reg.Join("1", "c1", "A", &mockSender{})
	reg.Join("1", "c2", "B", &mockSender{})

	reg.Leave("1", "c2")
	room := reg.rooms["1"]
	if room.Phase != PhaseWaiting {
		t.Fatalf("expected Waiting after countdown abort, got %v", room.Phase)
	}
	// A stale timer callback must be a no-op
	reg.countdownStep(room)
	if room.Phase != PhaseWaiting {
		t.Error("stale countdown step mutated an aborted room")
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	reg, lobby := newTestRegistry()
	reg.Join("1", "c1", "A", &mockSender{})
	before := lobby.broadcasts()

	reg.Leave("1", "ghost")
	reg.Leave("2", "c1")
	if lobby.broadcasts() != before {
		t.Error("no-op leaves must not broadcast")
	}

	reg.Leave("1", "c1")
	reg.Leave("1", "c1")
	if got := reg.List()["1"].Players; got != 0 {
		t.Errorf("expected empty room, occupancy %d", got)
	}
}

// startActiveGame joins two players and fast-forwards the countdown.
func startActiveGame(t *testing.T, reg *Registry) (*Room, *mockSender, *mockSender) {
	t.Helper()
	s1, s2 := &mockSender{}, &mockSender{}
	if _, _, err := reg.Join("1", "c1", "A", s1); err != nil {
		t.Fatal(err)
	}
	if _, _, err := reg.Join("1", "c2", "B", s2); err != nil {
		t.Fatal(err)
	}
	room := reg.rooms["1"]
	room.cancelTimer()
	for room.Phase == PhaseCountdown {
		reg.countdownStep(room)
	}
	if room.Phase != PhaseActive {
		t.Fatalf("expected Active, got %v", room.Phase)
	}
	return room, s1, s2
}

func TestTickBroadcastsSnapshots(t *testing.T) {
	reg, _ := newTestRegistry()
	room, s1, s2 := startActiveGame(t, reg)

	for i := 0; i < 5; i++ {
		reg.TickAll()
	}
	if room.Frame != 5 {
		t.Errorf("expected frame 5, got %d", room.Frame)
	}
	if s1.binaryCount() != 5 || s2.binaryCount() != 5 {
		t.Errorf("expected 5 binary snapshots each, got %d/%d", s1.binaryCount(), s2.binaryCount())
	}
}

func TestJumpAppliesServerImpulse(t *testing.T) {
	reg, _ := newTestRegistry()
	room, _, _ := startActiveGame(t, reg)

	reg.Jump("1", "c1", -99) // reported velocity ignored in authoritative rooms
	if v := room.find("c1").Velocity; v != JumpImpulse {
		t.Errorf("expected server impulse %v, got %v", JumpImpulse, v)
	}

	// Wrong-phase and stale inputs are dropped silently
	reg.Jump("1", "ghost", 0)
	reg.ReportGameOver("1", "ghost")
	if room.Phase != PhaseActive {
		t.Error("stale input must not end the game")
	}
}

func TestAllDeadEndsGame(t *testing.T) {
	reg, _ := newTestRegistry()
	room, s1, _ := startActiveGame(t, reg)

	for _, p := range room.Participants {
		p.Dead = true
	}
	reg.TickAll()

	if room.Phase != PhaseEnded {
		t.Fatalf("expected Ended when every participant is dead, got %v", room.Phase)
	}
	if _, ok := s1.lastOfType(MsgEnded); !ok {
		t.Error("expected ended broadcast with final scores")
	}
	if reg.List()["1"].Phase != "ended" {
		t.Errorf("lobby list should show ended, got %s", reg.List()["1"].Phase)
	}
}

func TestLeaveDuringActiveEndsGame(t *testing.T) {
	reg, _ := newTestRegistry()
	room, _, s2 := startActiveGame(t, reg)
	room.find("c2").Score = 7

	reg.Leave("1", "c1")

	if room.Phase != PhaseEnded {
		t.Fatalf("expected Ended after mid-game leave, got %v", room.Phase)
	}
	env, ok := s2.lastOfType(MsgEnded)
	if !ok {
		t.Fatal("remaining player must receive ended")
	}
	parts := env.Data.(ParticipantsMsg).Participants
	if len(parts) != 1 || parts[0].ID != "c2" || parts[0].Score != 7 {
		t.Errorf("ended payload should carry the survivor's score, got %+v", parts)
	}

	// Reset returns the room to Waiting with the survivor kept
	reg.resetRoom(room)
	if room.Phase != PhaseWaiting || len(room.Participants) != 1 {
		t.Errorf("after reset: phase=%v occupancy=%d", room.Phase, len(room.Participants))
	}
	if _, ok := s2.lastOfType(MsgReset); !ok {
		t.Error("expected reset broadcast")
	}
}

func TestResetRematchStartsNextGame(t *testing.T) {
	reg, _ := newTestRegistry()
	room, _, _ := startActiveGame(t, reg)
	room.find("c1").Score = 3
	reg.ReportGameOver("1", "c1")
	if room.Phase != PhaseEnded {
		t.Fatalf("expected Ended, got %v", room.Phase)
	}

	reg.resetRoom(room)
	if room.Phase != PhaseCountdown {
		t.Fatalf("full room must rematch into Countdown, got %v", room.Phase)
	}
	for _, p := range room.Participants {
		if p.Score != 0 || p.Dead || p.Y != StartY {
			t.Errorf("stale state leaked into rematch: %+v", p)
		}
	}
	// Stale reset timer must not fire twice
	reg.resetRoom(room)
	if room.Phase != PhaseCountdown {
		t.Error("duplicate reset mutated the room")
	}
}

func TestRelayRoomBehavior(t *testing.T) {
	reg, _ := newTestRegistry()
	s1, s2 := &mockSender{}, &mockSender{}
	reg.Join("4", "c1", "A", s1) // room 4 is relay in testConfig
	reg.Join("4", "c2", "B", s2)

	room := reg.rooms["4"]
	if room.Phase != PhaseActive {
		t.Fatalf("relay rooms start without countdown, got %v", room.Phase)
	}
	if _, ok := s1.lastOfType(MsgGameStart); !ok {
		t.Fatal("expected immediate gameStart")
	}

	// Jump trusts and echoes the reported velocity
	reg.Jump("4", "c1", -8)
	if v := room.find("c1").Velocity; v != -8 {
		t.Errorf("relay jump velocity = %v", v)
	}
	if _, ok := s2.lastOfType(MsgJumped); !ok {
		t.Error("expected jumped echo to room members")
	}

	// Only the host may spawn pipes
	reg.SpawnPipe("4", "c2", PipeState{X: 800, Top: 200, Bottom: 250})
	if len(room.Pipes) != 0 {
		t.Error("non-host pipe spawn must be rejected")
	}
	reg.SpawnPipe("4", "c1", PipeState{X: 800, Top: 200, Bottom: 250})
	if len(room.Pipes) != 1 {
		t.Error("host pipe spawn must be appended")
	}
	if _, ok := s2.lastOfType(MsgPipeSpawned); !ok {
		t.Error("expected pipeSpawned relay")
	}

	// Position reports overwrite and rebroadcast
	reg.ReportPosition("4", "c2", 150, 111, 2.5)
	p := room.find("c2")
	if p.Y != 111 || p.Velocity != 2.5 {
		t.Errorf("position not applied: %+v", p)
	}
	if _, ok := s1.lastOfType(MsgStateSnapshot); !ok {
		t.Error("expected relayed stateSnapshot")
	}

	// The relay room is skipped by the authoritative tick
	reg.TickAll()
	if room.Frame != 0 || s1.binaryCount() != 0 {
		t.Error("tick scheduler must not simulate relay rooms")
	}

	reg.ReportGameOver("4", "c1")
	if room.Phase != PhaseEnded {
		t.Errorf("expected Ended after reportGameOver, got %v", room.Phase)
	}
}

func TestScoringDuringTicks(t *testing.T) {
	reg, _ := newTestRegistry()
	room, _, _ := startActiveGame(t, reg)
	a, b := room.find("c1"), room.find("c2")
	b.Dead = true

	// Pipe whose trailing edge crosses a's x=100 after a couple of ticks,
	// with the gap band placed so a stays inside it while jumping.
	room.Pipes = append(room.Pipes, RelayedPipe(25, 250, BoardHeight-250-PipeGap))
	for i := 0; i < 4; i++ {
		reg.Jump("1", "c1", 0)
		reg.TickAll()
	}

	if a.Score != 1 {
		t.Errorf("live participant should score exactly once, got %d", a.Score)
	}
	if b.Score != 0 {
		t.Errorf("dead participant must never score, got %d", b.Score)
	}
}
