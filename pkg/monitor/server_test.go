package monitor

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/ljramones/dynamis-audio/pkg/acoustics"
	"github.com/ljramones/dynamis-audio/pkg/audioio"
	"github.com/ljramones/dynamis-audio/pkg/engine"
	"github.com/ljramones/dynamis-audio/pkg/events"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := engine.DefaultConfig()
	sink := audioio.NewMockSink(cfg.Output, nil)
	eng, err := engine.New(cfg, events.NewRegistry(), &acoustics.StaticProvider{}, sink)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return NewServer("0", eng)
}

func TestStatusEndpoint(t *testing.T) {
	s := testServer(t)

	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/status", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var body struct {
		Session string `json:"session"`
		Blocks  uint64 `json:"blocks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Session == "" {
		t.Error("session: got empty string")
	}
}

func TestVoicesEndpoint(t *testing.T) {
	s := testServer(t)

	resp, err := s.app.Test(httptest.NewRequest("GET", "/api/voices", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var body struct {
		TotalSlots    int `json:"total_slots"`
		ReservedSlots int `json:"reserved_slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalSlots != 64 {
		t.Errorf("total_slots: got %d, want 64", body.TotalSlots)
	}
	if body.ReservedSlots != 8 {
		t.Errorf("reserved_slots: got %d, want 8", body.ReservedSlots)
	}
}
