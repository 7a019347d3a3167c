package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vovakirdan/pianoroom/internal/core"
)

func TestListRooms(t *testing.T) {
	ts, router := startTestServer(t, nil)

	hidden := false
	for _, tc := range []struct {
		conn string
		room string
		hint core.SettingsHint
	}{
		{"c1", "jam", core.SettingsHint{}},
		{"c2", "lobby", core.SettingsHint{}},
		{"c3", "secret", core.SettingsHint{Visible: &hidden}},
		{"c4", "jam", core.SettingsHint{}},
	} {
		c := core.NewClient(tc.conn, 8)
		if _, err := router.Connect(c); err != nil {
			t.Fatalf("connect: %v", err)
		}
		if err := router.Handle(c, &core.Command{Kind: core.CommandJoinRoom, Room: tc.room, Settings: tc.hint}); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	resp, err := ts.Client().Get(ts.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var body RoomsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Rooms) != 2 {
		t.Fatalf("expected 2 visible rooms, got %+v", body.Rooms)
	}
	if body.Rooms[0].ID != "jam" || body.Rooms[0].Count != 2 || body.Rooms[0].Crown == nil {
		t.Fatalf("unexpected jam summary: %+v", body.Rooms[0])
	}
	if body.Rooms[1].ID != "lobby" || body.Rooms[1].Crown != nil {
		t.Fatalf("unexpected lobby summary: %+v", body.Rooms[1])
	}
}

func TestGetRoom(t *testing.T) {
	ts, router := startTestServer(t, nil)
	c := core.NewClient("c1", 8)
	if _, err := router.Connect(c); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := router.Handle(c, &core.Command{Kind: core.CommandJoinRoom, Room: "jam"}); err != nil {
		t.Fatalf("join: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/jam", nil)
	rec := httptest.NewRecorder()
	ts.Config.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/rooms/missing", nil)
	rec = httptest.NewRecorder()
	ts.Config.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
