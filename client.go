package main

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // join carries ship images
	sendBufSize    = 256
	// sustained inbound rate and burst; a 50 Hz controller fits with room
	messagesPerSec = 100
	messageBurst   = 200
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	limiter    *rate.Limiter
	// pilot is the registered name this connection logged in as, if any
	pilot string
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
		limiter:    rate.NewLimiter(messagesPerSec, messageBurst),
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
		if !c.limiter.Allow() {
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

// SendBinary sends pre-marshaled bytes as a binary WebSocket message
// Prefixes with 0xFF marker byte so WritePump can distinguish from text
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("unmarshal error: %v", err)
		return
	}

	switch env.T {
	case MsgJoin:
		c.handleJoin(env.D)
	case MsgControl:
		c.handleControl(env.D)
	case MsgRequest:
		c.handleCode(env.D, func(code string) any { return RequestCmd{Conn: c, Code: code} })
	case MsgEvent:
		c.handleCode(env.D, func(code string) any { return EventCmd{Conn: c, Code: code} })
	case MsgPing:
		c.handlePing(env.D)
	case MsgRegister:
		c.handleRegister(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	}
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg JoinMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("malformed join")
		return
	}
	if err := msg.sanitize(); err != nil {
		c.sendError("malformed join")
		return
	}
	name, err := c.pilotName(msg)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.hub.game.Inbox <- JoinCmd{
		Conn: c,
		Spec: ObjectSpec{
			Name:    name,
			Radius:  msg.Radius,
			WMax:    msg.WMax,
			FMax:    msg.FMax,
			SMax:    msg.SMax,
			Visuals: msg.Visuals,
		},
	}
}

// pilotName picks the name a join flies under. A token or an earlier login
// on this connection wins; otherwise registered names are refused.
func (c *Client) pilotName(msg JoinMsg) (string, error) {
	if msg.Token != "" {
		if c.hub.auth == nil {
			return "", ErrInvalidToken
		}
		return c.hub.auth.ValidateToken(msg.Token)
	}
	if c.pilot != "" {
		return c.pilot, nil
	}
	name := CleanName(msg.Name)
	if name == "" {
		name = "Pilot"
	}
	if c.hub.auth != nil {
		reserved, err := c.hub.auth.Reserved(name)
		if err != nil {
			log.Printf("auth: reserved check for %q: %v", name, err)
		}
		if reserved {
			return "", ErrNameReserved
		}
	}
	return name, nil
}

func (c *Client) handleControl(data json.RawMessage) {
	var msg ControlMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("malformed control")
		return
	}
	if err := msg.sanitize(); err != nil {
		c.sendError("malformed control")
		return
	}
	c.hub.game.Inbox <- ControlCmd{Conn: c, Msg: msg}
}

func (c *Client) handleCode(data json.RawMessage, build func(code string) any) {
	var msg CodeMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.hub.game.Inbox <- build(msg.Code)
}

func (c *Client) handlePing(data json.RawMessage) {
	var msg PingMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	c.SendJSON(Envelope{T: MsgPong, Data: PongMsg{ClientTime: msg.ClientTime, ServerTime: c.hub.clock()}})
}

func (c *Client) handleRegister(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError("accounts disabled")
		return
	}
	var msg RegisterMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	token, err := c.hub.auth.Register(msg.Name, msg.Password)
	if err != nil {
		c.authFailed(err)
		return
	}
	c.authOK(CleanName(msg.Name), token)
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError("accounts disabled")
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	token, err := c.hub.auth.Login(msg.Name, msg.Password, c.remoteAddr)
	if err != nil {
		c.authFailed(err)
		return
	}
	c.authOK(CleanName(msg.Name), token)
}

func (c *Client) authOK(name, token string) {
	c.pilot = name
	c.SendJSON(Envelope{T: MsgAuthOK, Data: AuthOKMsg{Token: token, Name: name}})
}

// authFailed reports user errors verbatim and hides storage errors.
func (c *Client) authFailed(err error) {
	switch {
	case errors.Is(err, ErrNameTaken), errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrTooManyAttempts), errors.Is(err, ErrInvalidAccount):
		c.sendError(err.Error())
	default:
		log.Printf("auth: %v", err)
		c.sendError("request failed")
	}
}
