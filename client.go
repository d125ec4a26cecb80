package main

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 120 // relay clients report positions every frame
	maxNameLen        = 16
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	connID     string
	roomID     string
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
	// Auth state
	authPlayerID int64  // 0 = unauthenticated/guest
	authUsername string // "" = unauthenticated
}

// NewClient creates a new Client with a fresh connection identity
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		connID:     uuid.NewString(),
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope).
// Unknown tags are logged and dropped; they must never crash the router.
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgListRooms:
		c.handleListRooms()
	case MsgJoinRoom:
		c.handleJoinRoom(env.D)
	case MsgLeaveRoom:
		c.handleLeaveRoom()
	case MsgJump:
		c.handleJump(env.D)
	case MsgReportPosition:
		c.handleReportPosition(env.D)
	case MsgSpawnPipe:
		c.handleSpawnPipe(env.D)
	case MsgReportGameOver:
		c.handleReportGameOver(env.D)
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	case MsgLeaderboard:
		c.handleLeaderboard(env.D)
	default:
		log.Printf("unknown message type %q from %s", env.T, c.remoteAddr)
	}
}

func (c *Client) handleListRooms() {
	c.SendJSON(Envelope{T: MsgRoomSnapshot, Data: c.hub.registry.List()})
}

func (c *Client) handleJoinRoom(data json.RawMessage) {
	var msg JoinRoomMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if c.roomID != "" {
		c.hub.registry.Leave(c.roomID, c.connID)
		c.roomID = ""
	}

	name := msg.Name
	if c.authUsername != "" {
		name = c.authUsername
	}
	if name == "" {
		name = GuestName()
	}
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	slot, isHost, err := c.hub.registry.Join(msg.RoomID, c.connID, name, c)
	if err != nil {
		code := CodeRoomNotFound
		if errors.Is(err, ErrRoomFull) {
			code = CodeRoomFull
		}
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Code: code, Msg: err.Error()}})
		return
	}

	c.roomID = msg.RoomID
	c.setParticipantAuth()
	c.SendJSON(Envelope{T: MsgJoinResult, Data: JoinResultMsg{RoomID: msg.RoomID, Slot: slot, IsHost: isHost}})
}

// setParticipantAuth links the logged-in account to the in-room participant
// so finished games credit the right player.
func (c *Client) setParticipantAuth() {
	if c.authPlayerID == 0 {
		return
	}
	reg := c.hub.registry
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok := reg.rooms[c.roomID]; ok {
		if p := room.find(c.connID); p != nil {
			p.AuthID = c.authPlayerID
		}
	}
}

func (c *Client) handleLeaveRoom() {
	if c.roomID == "" {
		return
	}
	c.hub.registry.Leave(c.roomID, c.connID)
	c.roomID = ""
}

func (c *Client) handleJump(data json.RawMessage) {
	if c.roomID == "" {
		return
	}
	var msg JumpMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.hub.registry.Jump(c.roomID, c.connID, msg.Velocity)
}

func (c *Client) handleReportPosition(data json.RawMessage) {
	if c.roomID == "" {
		return
	}
	var msg PositionMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.hub.registry.ReportPosition(c.roomID, c.connID, msg.X, msg.Y, msg.Velocity)
}

func (c *Client) handleSpawnPipe(data json.RawMessage) {
	if c.roomID == "" {
		return
	}
	var msg SpawnPipeMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.hub.registry.SpawnPipe(c.roomID, c.connID, msg.Pipe)
}

func (c *Client) handleReportGameOver(data json.RawMessage) {
	if c.roomID == "" {
		return
	}
	c.hub.registry.ReportGameOver(c.roomID, c.connID)
}

func (c *Client) handleRegister(data json.RawMessage) {
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Register(msg.Username, msg.Password)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{Token: token, Username: msg.Username, PlayerID: id}})
}

func (c *Client) handleLogin(data json.RawMessage) {
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, token, err := c.hub.auth.Login(msg.Username, msg.Password, c.remoteAddr)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: err.Error()}})
		return
	}
	c.authPlayerID = id
	c.authUsername = msg.Username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{Token: token, Username: msg.Username, PlayerID: id}})
}

func (c *Client) handleAuth(data json.RawMessage) {
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	id, username, err := c.hub.auth.ValidateToken(msg.Token)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "invalid token"}})
		return
	}
	c.authPlayerID = id
	c.authUsername = username
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{Token: msg.Token, Username: username, PlayerID: id}})
}

func (c *Client) handleLeaderboard(data json.RawMessage) {
	if c.hub.db == nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "leaderboard unavailable"}})
		return
	}
	var msg LeaderboardMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
	}
	limit := msg.Limit
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	entries, err := c.hub.db.GetLeaderboard(limit)
	if err != nil {
		c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: "leaderboard unavailable"}})
		return
	}
	c.SendJSON(Envelope{T: MsgLeaderboardRes, Data: entries})
}
