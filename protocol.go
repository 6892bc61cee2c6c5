package main

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Client -> Server message types
const (
	MsgJoin     = "join"
	MsgControl  = "control"
	MsgRequest  = "request"
	MsgEvent    = "event"
	MsgPing     = "ping"
	MsgRegister = "register"
	MsgLogin    = "login"
)

// Server -> Client JSON replies
const (
	MsgJoined = "joined"
	MsgPong   = "pong"
	MsgAuthOK = "auth_ok"
	MsgError  = "error"
)

// Server -> Client world events, sent as msgpack binary frames
const (
	EvtState   = "state"
	EvtJoin    = "join"
	EvtPrivate = "private"
	EvtDrop    = "drop"
	EvtStats   = "stats"
)

// Generic request and event codes
const (
	RequestFullUpdate = "r_fu"
	RequestStats      = "r_su"
	EventQuit         = "e_qu"
)

// Envelope wraps all outgoing JSON messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// EventFrame is the msgpack envelope of a world event.
type EventFrame struct {
	T string      `msgpack:"t"`
	D interface{} `msgpack:"d"`
}

// RawEventFrame is used to decode an EventFrame in two passes.
type RawEventFrame struct {
	T string             `msgpack:"t"`
	D msgpack.RawMessage `msgpack:"d"`
}

// EncodeEvent marshals a world event frame.
func EncodeEvent(t string, data interface{}) ([]byte, error) {
	return msgpack.Marshal(EventFrame{T: t, D: data})
}

// DecodeEvent reads the type of an event frame and its raw payload.
func DecodeEvent(raw []byte) (RawEventFrame, error) {
	var f RawEventFrame
	err := msgpack.Unmarshal(raw, &f)
	return f, err
}

// JoinMsg asks for a ship. Token is optional and names a registered pilot.
type JoinMsg struct {
	Name   string  `json:"name"`
	Radius float64 `json:"radius"`
	WMax   float64 `json:"wmax"`
	FMax   float64 `json:"fmax"`
	SMax   float64 `json:"smax"`
	Token  string  `json:"token,omitempty"`
	Visuals
}

// JoinedMsg answers a successful join.
type JoinedMsg struct {
	ID         int64   `json:"id"`
	ServerTime float64 `json:"time"`
	Width      float64 `json:"w"`
	Height     float64 `json:"h"`
}

// ControlMsg carries the pilot's controls. Timestamp is the client's
// estimate of server time; the server clock is authoritative.
type ControlMsg struct {
	Timestamp    float64 `json:"time"`
	Thrust       float64 `json:"thrust"`
	CCWThrust    float64 `json:"ccw"`
	ShotVelocity float64 `json:"shotv"`
	ShotEnergy   float64 `json:"shote"`
}

// CodeMsg carries a generic request or event code.
type CodeMsg struct {
	Code string `json:"code"`
}

// PingMsg is answered with PongMsg by the connection handler.
type PingMsg struct {
	ClientTime float64 `json:"time"`
}

// PongMsg echoes the client time alongside server time.
type PongMsg struct {
	ClientTime float64 `json:"time"`
	ServerTime float64 `json:"server"`
}

// RegisterMsg / LoginMsg carry pilot credentials
type RegisterMsg struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginMsg struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// AuthOKMsg returns a pilot token
type AuthOKMsg struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// StateEvent is the public kinematic state of one object.
type StateEvent struct {
	ID        int64   `msgpack:"id"`
	Kind      string  `msgpack:"kind"`
	Name      string  `msgpack:"name"`
	Timestamp float64 `msgpack:"time"`
	X         float64 `msgpack:"x"`
	Y         float64 `msgpack:"y"`
	VX        float64 `msgpack:"vx"`
	VY        float64 `msgpack:"vy"`
	A         float64 `msgpack:"a"`
	R         float64 `msgpack:"r"`
	RR        float64 `msgpack:"rr"`
}

// JoinEvent introduces a ship or asteroid.
type JoinEvent struct {
	ID      int64   `msgpack:"id"`
	Kind    string  `msgpack:"kind"`
	Name    string  `msgpack:"name"`
	Radius  float64 `msgpack:"radius"`
	Visuals `msgpack:",inline"`
}

// PrivateEvent carries tank levels, sent to the owner only.
type PrivateEvent struct {
	ID     int64   `msgpack:"id"`
	Weapon float64 `msgpack:"weapon"`
	Fuel   float64 `msgpack:"fuel"`
	Shield float64 `msgpack:"shield"`
}

// DropEvent removes an object.
type DropEvent struct {
	ID        int64   `msgpack:"id"`
	Timestamp float64 `msgpack:"time"`
}

// StatsEvent is one player's record. A record with an empty name ends a
// stats dump.
type StatsEvent struct {
	Name     string  `msgpack:"name"`
	Playtime float64 `msgpack:"playtime"`
	Kills    int     `msgpack:"kills"`
	Deaths   int     `msgpack:"deaths"`
}

var errNonFiniteField = errors.New("non-finite field")

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// sanitize rejects non-finite numbers and takes the absolute value of every
// size and capacity.
func (m *JoinMsg) sanitize() error {
	if !finite(m.Radius, m.WMax, m.FMax, m.SMax) {
		return errNonFiniteField
	}
	m.Radius = math.Abs(m.Radius)
	m.WMax = math.Abs(m.WMax)
	m.FMax = math.Abs(m.FMax)
	m.SMax = math.Abs(m.SMax)
	if m.Radius == 0 {
		m.Radius = DefaultRadius
	}
	return nil
}

// sanitize rejects non-finite numbers, bounds both thrusts to ±MaxThrust
// and takes the absolute value of the shot parameters. Thrust keeps its sign.
func (m *ControlMsg) sanitize() error {
	if !finite(m.Timestamp, m.Thrust, m.CCWThrust, m.ShotVelocity, m.ShotEnergy) {
		return errNonFiniteField
	}
	m.Thrust = Clamp(m.Thrust, -MaxThrust, MaxThrust)
	m.CCWThrust = Clamp(m.CCWThrust, -MaxThrust, MaxThrust)
	m.ShotVelocity = math.Abs(m.ShotVelocity)
	m.ShotEnergy = math.Abs(m.ShotEnergy)
	return nil
}
