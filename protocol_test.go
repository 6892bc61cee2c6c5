package main

import (
	"math"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestJoinSanitize(t *testing.T) {
	m := JoinMsg{Radius: -30, WMax: -1, FMax: 2, SMax: -3}
	if err := m.sanitize(); err != nil {
		t.Fatal(err)
	}
	if m.Radius != 30 || m.WMax != 1 || m.FMax != 2 || m.SMax != 3 {
		t.Errorf("got %+v", m)
	}

	m = JoinMsg{}
	if err := m.sanitize(); err != nil {
		t.Fatal(err)
	}
	if m.Radius != DefaultRadius {
		t.Errorf("zero radius became %v, want %v", m.Radius, DefaultRadius)
	}

	m = JoinMsg{Radius: math.NaN()}
	if err := m.sanitize(); err == nil {
		t.Error("NaN radius accepted")
	}
}

func TestControlSanitize(t *testing.T) {
	m := ControlMsg{Thrust: -2, CCWThrust: -1, ShotVelocity: -40, ShotEnergy: -3}
	if err := m.sanitize(); err != nil {
		t.Fatal(err)
	}
	if m.Thrust != -2 || m.CCWThrust != -1 {
		t.Errorf("thrust lost its sign: %+v", m)
	}
	if m.ShotVelocity != 40 || m.ShotEnergy != 3 {
		t.Errorf("shot not made positive: %+v", m)
	}

	m = ControlMsg{Thrust: 1.7e308, CCWThrust: -1e300}
	if err := m.sanitize(); err != nil {
		t.Fatal(err)
	}
	if m.Thrust != MaxThrust || m.CCWThrust != -MaxThrust {
		t.Errorf("huge thrust not bounded: %+v", m)
	}

	for _, bad := range []ControlMsg{
		{Thrust: math.Inf(1)},
		{CCWThrust: math.NaN()},
		{Timestamp: math.Inf(-1)},
	} {
		if err := bad.sanitize(); err == nil {
			t.Errorf("%+v accepted", bad)
		}
	}
}

func TestEventFrameLayout(t *testing.T) {
	raw, err := EncodeEvent(EvtDrop, DropEvent{ID: 7, Timestamp: 1.5})
	if err != nil {
		t.Fatal(err)
	}
	// clients read the payload as a plain map
	var generic map[string]interface{}
	if err := msgpack.Unmarshal(raw, &generic); err != nil {
		t.Fatal(err)
	}
	if generic["t"] != EvtDrop {
		t.Errorf("type field %v", generic["t"])
	}
	d, ok := generic["d"].(map[string]interface{})
	if !ok {
		t.Fatalf("payload %T, want a map", generic["d"])
	}
	if d["time"] != 1.5 {
		t.Errorf("payload %v", d)
	}
}
