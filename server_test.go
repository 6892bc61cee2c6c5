package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	*httptest.Server
	hub *Hub
}

func startServer(t *testing.T, db *DB) *testServer {
	t.Helper()
	var auth *Auth
	if db != nil {
		auth = NewAuth(db, "")
		auth.cost = bcrypt.MinCost
	}
	game := NewGame(newTestWorld(), WallClock, 20*time.Millisecond)
	go game.Run()
	t.Cleanup(game.Stop)

	hub := NewHub(game, WallClock, db, auth)
	go hub.Run()

	srv := httptest.NewServer(SetupRoutes(hub))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, hub: hub}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitClients blocks until the hub counts n clients. A counted client is
// already attached to the game.
func (s *testServer) waitClients(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for s.hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", s.hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, data interface{}) {
	t.Helper()
	if err := conn.WriteJSON(map[string]interface{}{"t": typ, "d": data}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// readJSON returns the next text message of type typ, skipping event frames.
func readJSON(t *testing.T, conn *websocket.Conn, typ string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		var env InEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad json %q: %v", data, err)
		}
		if env.T == typ {
			return env.D
		}
		if env.T == MsgError && typ != MsgError {
			t.Fatalf("waiting for %s got error %s", typ, env.D)
		}
	}
}

// readEvent returns the next binary event frame of type typ.
func readEvent(t *testing.T, conn *websocket.Conn, typ string) RawEventFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s event: %v", typ, err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		ev, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.T == typ {
			return ev
		}
	}
}

func TestWebsocketJoinAndFly(t *testing.T) {
	srv := startServer(t, nil)
	watcher := srv.dial(t)
	srv.waitClients(t, 1)
	conn := srv.dial(t)

	send(t, conn, MsgJoin, map[string]interface{}{"name": "ace", "radius": 25})
	var joined JoinedMsg
	if err := json.Unmarshal(readJSON(t, conn, MsgJoined), &joined); err != nil {
		t.Fatal(err)
	}
	if joined.ID == 0 || joined.Width != 800 || joined.Height != 550 {
		t.Fatalf("joined %+v", joined)
	}

	var intro JoinEvent
	if err := msgpack.Unmarshal(readEvent(t, watcher, EvtJoin).D, &intro); err != nil {
		t.Fatal(err)
	}
	if intro.ID != joined.ID || intro.Name != "ace" || intro.Radius != 25 || intro.Kind != "ship" {
		t.Errorf("join event %+v", intro)
	}

	var priv PrivateEvent
	if err := msgpack.Unmarshal(readEvent(t, conn, EvtPrivate).D, &priv); err != nil {
		t.Fatal(err)
	}
	if priv.ID != joined.ID || priv.Shield <= 0 {
		t.Errorf("private event %+v", priv)
	}

	send(t, conn, MsgControl, map[string]interface{}{"thrust": 2})
	var st StateEvent
	if err := msgpack.Unmarshal(readEvent(t, conn, EvtState).D, &st); err != nil {
		t.Fatal(err)
	}
	if st.ID != joined.ID || st.A == 0 {
		t.Errorf("state after thrust %+v", st)
	}

	send(t, conn, MsgPing, map[string]interface{}{"time": 123.5})
	var pong PongMsg
	if err := json.Unmarshal(readJSON(t, conn, MsgPong), &pong); err != nil {
		t.Fatal(err)
	}
	if pong.ClientTime != 123.5 || pong.ServerTime <= 0 {
		t.Errorf("pong %+v", pong)
	}

	send(t, conn, MsgEvent, map[string]interface{}{"code": EventQuit})
	var drop DropEvent
	if err := msgpack.Unmarshal(readEvent(t, conn, EvtDrop).D, &drop); err != nil {
		t.Fatal(err)
	}
	if drop.ID != joined.ID {
		t.Errorf("drop %+v, want ship %d", drop, joined.ID)
	}
}

func TestWebsocketRejectsNonFiniteControl(t *testing.T) {
	srv := startServer(t, nil)
	conn := srv.dial(t)
	send(t, conn, MsgJoin, map[string]interface{}{"name": "ace"})
	readJSON(t, conn, MsgJoined)

	// 1e999 does not fit a float64
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"t":"control","d":{"thrust":1e999}}`)); err != nil {
		t.Fatal(err)
	}
	var e ErrorMsg
	if err := json.Unmarshal(readJSON(t, conn, MsgError), &e); err != nil {
		t.Fatal(err)
	}
	if e.Msg != "malformed control" {
		t.Errorf("error %q", e.Msg)
	}
}

func TestWebsocketSpectatorSeesJoins(t *testing.T) {
	srv := startServer(t, nil)
	spectator := srv.dial(t)
	srv.waitClients(t, 1)
	send(t, spectator, MsgRequest, map[string]interface{}{"code": RequestStats})
	var sentinel StatsEvent
	if err := msgpack.Unmarshal(readEvent(t, spectator, EvtStats).D, &sentinel); err != nil {
		t.Fatal(err)
	}
	if sentinel != (StatsEvent{}) {
		t.Errorf("empty dump %+v, want only the sentinel", sentinel)
	}

	pilot := srv.dial(t)
	send(t, pilot, MsgJoin, map[string]interface{}{"name": "rook"})
	var intro JoinEvent
	if err := msgpack.Unmarshal(readEvent(t, spectator, EvtJoin).D, &intro); err != nil {
		t.Fatal(err)
	}
	if intro.Name != "rook" {
		t.Errorf("spectator saw %+v", intro)
	}
}

func TestWebsocketAccounts(t *testing.T) {
	srv := startServer(t, openTestDB(t))
	conn := srv.dial(t)

	send(t, conn, MsgRegister, map[string]interface{}{"name": "maverick", "password": "hunter2"})
	var ok AuthOKMsg
	if err := json.Unmarshal(readJSON(t, conn, MsgAuthOK), &ok); err != nil {
		t.Fatal(err)
	}
	if ok.Name != "maverick" || ok.Token == "" {
		t.Fatalf("auth ok %+v", ok)
	}

	// another connection cannot fly under a registered name
	other := srv.dial(t)
	send(t, other, MsgJoin, map[string]interface{}{"name": "maverick"})
	var e ErrorMsg
	if err := json.Unmarshal(readJSON(t, other, MsgError), &e); err != nil {
		t.Fatal(err)
	}
	if e.Msg != ErrNameReserved.Error() {
		t.Errorf("error %q, want %q", e.Msg, ErrNameReserved)
	}

	// but the token holder can
	srv.waitClients(t, 2)
	send(t, other, MsgJoin, map[string]interface{}{"name": "whatever", "token": ok.Token})
	readJSON(t, other, MsgJoined)
	var intro JoinEvent
	if err := msgpack.Unmarshal(readEvent(t, conn, EvtJoin).D, &intro); err != nil {
		t.Fatal(err)
	}
	if intro.Name != "maverick" {
		t.Errorf("token join flew as %q", intro.Name)
	}
}

func TestHealthz(t *testing.T) {
	srv := startServer(t, nil)
	srv.dial(t)
	srv.waitClients(t, 1)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Clients     int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		t.Errorf("status %d body %+v", resp.StatusCode, body)
	}
	if body.Clients != 1 || body.Connections != 1 {
		t.Errorf("health %+v, want one client", body)
	}
}

func TestQRCode(t *testing.T) {
	srv := startServer(t, nil)
	resp, err := http.Get(srv.URL + "/qr.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Header.Get("Content-Type") != "image/png" || !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("content type %q, %d bytes", resp.Header.Get("Content-Type"), len(data))
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	off := startServer(t, nil)
	resp, err := http.Get(off.URL + "/api/leaderboard")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("without a database: status %d", resp.StatusCode)
	}

	db := openTestDB(t)
	if err := db.ApplyStatDeltas([]StatDelta{{Name: "ace", Kills: 4}, {Name: "rook", Kills: 9}}); err != nil {
		t.Fatal(err)
	}
	srv := startServer(t, db)

	resp, err = http.Get(srv.URL + "/api/leaderboard?limit=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var entries []LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "rook" || entries[0].Rank != 1 {
		t.Errorf("entries %+v", entries)
	}

	bad, err := http.Get(srv.URL + "/api/leaderboard?limit=-3")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit: status %d", bad.StatusCode)
	}
}
