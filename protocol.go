package main

import "encoding/json"

// Client -> Server message types
const (
	MsgListRooms      = "listRooms"
	MsgJoinRoom       = "joinRoom"
	MsgLeaveRoom      = "leaveRoom"
	MsgJump           = "jump"
	MsgReportPosition = "reportPosition" // relay rooms only
	MsgSpawnPipe      = "spawnPipe"      // relay room host only
	MsgReportGameOver = "reportGameOver"
	MsgRegister       = "register"
	MsgLogin          = "login"
	MsgAuth           = "auth"
	MsgLeaderboard    = "leaderboard"
)

// Server -> Client message types
const (
	MsgRoomSnapshot   = "roomSnapshot"
	MsgJoinResult     = "joinResult"
	MsgParticipants   = "participantsChanged"
	MsgCountdownTick  = "countdownTick"
	MsgGameStart      = "gameStart"
	MsgStateSnapshot  = "stateSnapshot" // relay rooms; authoritative rooms use binary frames
	MsgJumped         = "jumped"        // relay rooms
	MsgPipeSpawned    = "pipeSpawned"   // relay rooms
	MsgEnded          = "ended"
	MsgReset          = "reset"
	MsgError          = "error"
	MsgAuthOK         = "authOk"
	MsgLeaderboardRes = "leaderboardResult"
)

// Error codes carried in ErrorMsg
const (
	CodeRoomNotFound = "room_not_found"
	CodeRoomFull     = "room_full"
)

// Envelope wraps all outgoing text messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinRoomMsg asks to join a lobby.
type JoinRoomMsg struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// RoomRefMsg carries just a room reference (leaveRoom, reportGameOver).
type RoomRefMsg struct {
	RoomID string `json:"roomId"`
}

// JumpMsg applies the jump impulse. Velocity is honored only in relay rooms.
type JumpMsg struct {
	RoomID   string  `json:"roomId"`
	Velocity float64 `json:"velocity,omitempty"`
}

// PositionMsg overwrites the caller's state in a relay room.
type PositionMsg struct {
	RoomID   string  `json:"roomId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Velocity float64 `json:"velocity"`
}

// SpawnPipeMsg appends a host-generated pipe in a relay room.
type SpawnPipeMsg struct {
	RoomID string    `json:"roomId"`
	Pipe   PipeState `json:"pipe"`
}

// ParticipantState is the per-player wire representation.
type ParticipantState struct {
	ID       string  `json:"id"`
	Name     string  `json:"n"`
	Slot     int     `json:"sl"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Velocity float64 `json:"v"`
	Score    int     `json:"sc"`
	Dead     bool    `json:"d"`
	Host     bool    `json:"h"`
}

// PipeState is the per-pipe wire representation.
type PipeState struct {
	X      float64 `json:"x"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// RoomState is the full per-tick snapshot. Authoritative rooms broadcast it
// as a raw msgpack binary frame; relay rooms send it inside a JSON envelope.
type RoomState struct {
	Participants []ParticipantState `json:"p"`
	Pipes        []PipeState        `json:"pi"`
	Frame        uint64             `json:"f"`
}

// RoomInfo is one entry of the lobby list.
type RoomInfo struct {
	Players    int    `json:"players"`
	MaxPlayers int    `json:"maxPlayers"`
	Phase      string `json:"phase"`
}

// JoinResultMsg confirms a successful join.
type JoinResultMsg struct {
	RoomID string `json:"roomId"`
	Slot   int    `json:"slot"`
	IsHost bool   `json:"isHost"`
}

// ParticipantsMsg announces a membership change.
type ParticipantsMsg struct {
	Participants []ParticipantState `json:"participants"`
}

// CountdownMsg carries the remaining seconds before the game starts.
type CountdownMsg struct {
	Seconds int `json:"seconds"`
}

// JumpedMsg relays another player's jump in a relay room.
type JumpedMsg struct {
	PlayerID string  `json:"playerId"`
	Velocity float64 `json:"velocity"`
}

// PipeSpawnedMsg relays a host-generated pipe in a relay room.
type PipeSpawnedMsg struct {
	Pipe PipeState `json:"pipe"`
}

// ErrorMsg sends an error to the client.
type ErrorMsg struct {
	Code string `json:"code,omitempty"`
	Msg  string `json:"msg"`
}

// RegisterMsg creates an account.
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates with a password.
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg authenticates with a previously issued token.
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthOKMsg confirms authentication.
type AuthOKMsg struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	PlayerID int64  `json:"playerId"`
}

// LeaderboardMsg requests the top best scores.
type LeaderboardMsg struct {
	Limit int `json:"limit,omitempty"`
}
