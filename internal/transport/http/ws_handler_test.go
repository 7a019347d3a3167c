package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pianoroom/internal/config"
	"github.com/vovakirdan/pianoroom/internal/core"
	"github.com/vovakirdan/pianoroom/internal/proto"
)

func startTestServer(t *testing.T, mutate func(*config.Config, *core.RouterOptions)) (*httptest.Server, *core.Router) {
	t.Helper()

	cfg := config.Default()
	cfg.MaxFramesPerSecond = 0
	opts := core.RouterOptions{}
	if mutate != nil {
		mutate(&cfg, &opts)
	}

	logger := zerolog.Nop()
	router := core.NewRouter(core.NewRoomRegistry(core.RoomDefaults{}), core.NewParticipantRegistry(), &logger, opts)
	t.Cleanup(router.Close)

	server := NewServer(router, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, router
}

type wsPeer struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []proto.Envelope
}

func dialPeer(ctx context.Context, t *testing.T, ts *httptest.Server) *wsPeer {
	t.Helper()
	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return &wsPeer{t: t, conn: conn}
}

func (p *wsPeer) send(ctx context.Context, raw string) {
	p.t.Helper()
	if err := p.conn.Write(ctx, websocket.MessageText, []byte(raw)); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}

// expect reads envelopes until one of the given kind arrives and decodes it into v.
func (p *wsPeer) expect(ctx context.Context, kind string, v any) {
	p.t.Helper()
	for {
		for i, env := range p.pending {
			if env.Kind != kind {
				continue
			}
			p.pending = append(p.pending[:i:i], p.pending[i+1:]...)
			if err := env.Decode(v); err != nil {
				p.t.Fatalf("decode %s: %v", kind, err)
			}
			return
		}
		p.pending = p.pending[:0]

		_, data, err := p.conn.Read(ctx)
		if err != nil {
			p.t.Fatalf("waiting for %q: %v", kind, err)
		}
		envs, err := proto.DecodeFrame(data)
		if err != nil {
			p.t.Fatalf("decode frame %s: %v", data, err)
		}
		p.pending = envs
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t, nil)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestServerHandlerServesSocketAndAPI(t *testing.T) {
	ts, _ := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	peer := dialPeer(ctx, t, ts)
	var hello proto.Hello
	peer.expect(ctx, proto.TypeHello, &hello)
	if hello.U.ID == "" {
		t.Fatalf("unexpected hello: %+v", hello)
	}

	peer.send(ctx, `{"m":"ch","_id":"jam"}`)
	peer.expect(ctx, proto.TypeChannel, &proto.ChannelState{})

	for _, path := range []string{"/health", "/api/rooms", "/api/rooms/jam"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != 200 {
			t.Fatalf("GET %s: unexpected status %d", path, resp.StatusCode)
		}
	}
}

func TestWebSocketLobbyScenario(t *testing.T) {
	ts, router := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := dialPeer(ctx, t, ts)
	b := dialPeer(ctx, t, ts)

	var hello proto.Hello
	a.expect(ctx, proto.TypeHello, &hello)
	if hello.U.ID == "" || hello.U.Name != "Anonymous" || hello.V != proto.ProtocolVersion {
		t.Fatalf("unexpected hello: %+v", hello)
	}
	b.expect(ctx, proto.TypeHello, &proto.Hello{})

	a.send(ctx, `{"m":"ch","_id":"lobby"}`)
	var stateA proto.ChannelState
	a.expect(ctx, proto.TypeChannel, &stateA)
	if stateA.Ch.Crown != nil || stateA.Ch.Settings.Lobby == nil || !*stateA.Ch.Settings.Lobby {
		t.Fatalf("unexpected lobby state: %+v", stateA.Ch)
	}
	if stateA.P == hello.U.ID {
		t.Fatalf("member id must differ from the connection id")
	}

	b.send(ctx, `[{"type":"ch","_id":"lobby"}]`)
	var stateB proto.ChannelState
	b.expect(ctx, proto.TypeChannel, &stateB)
	if stateB.Ch.Count != 2 || stateB.Ch.Crown != nil || len(stateB.Ppl) != 2 {
		t.Fatalf("unexpected state for B: %+v", stateB)
	}

	var joined proto.ParticipantUpdate
	a.expect(ctx, proto.TypeParticipant, &joined)
	if joined.ID != stateB.P {
		t.Fatalf("A saw %q join, want %q", joined.ID, stateB.P)
	}

	a.send(ctx, `{"m":"n","t":1500,"n":[{"n":60,"v":0.8}]}`)
	var notes proto.Notes
	b.expect(ctx, proto.TypeNotes, &notes)
	if notes.P != stateA.P || notes.T != 1500 || string(notes.N) != `[{"n":60,"v":0.8}]` {
		t.Fatalf("unexpected notes relay: p=%s t=%v n=%s", notes.P, notes.T, notes.N)
	}

	a.conn.Close(websocket.StatusNormalClosure, "bye")
	var bye proto.Bye
	b.expect(ctx, proto.TypeBye, &bye)
	if bye.P != stateA.P {
		t.Fatalf("bye for %q, want %q", bye.P, stateA.P)
	}
	room, ok := router.Rooms().Get("lobby")
	if !ok || room.Count() != 1 {
		t.Fatalf("expected lobby with one member")
	}
}

func TestWebSocketTimeEchoAndMalformedFrames(t *testing.T) {
	ts, _ := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := dialPeer(ctx, t, ts)
	a.expect(ctx, proto.TypeHello, &proto.Hello{})

	a.send(ctx, `not json`)
	a.send(ctx, `[{"m":"nope"},42,{"m":"m"}]`)
	a.send(ctx, `{"m":"t","e":12345}`)

	var tm proto.Time
	a.expect(ctx, proto.TypeTime, &tm)
	if tm.T == 0 || string(tm.E) != "12345" {
		t.Fatalf("unexpected time reply: t=%d e=%s", tm.T, tm.E)
	}
}

func TestWebSocketChatAndUserSet(t *testing.T) {
	ts, _ := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a := dialPeer(ctx, t, ts)
	b := dialPeer(ctx, t, ts)
	a.send(ctx, `{"m":"ch","_id":"jam"}`)
	var stateA proto.ChannelState
	a.expect(ctx, proto.TypeChannel, &stateA)
	if stateA.Ch.Crown == nil || stateA.Ch.Crown.ParticipantID != stateA.P {
		t.Fatalf("first occupant should hold the crown: %+v", stateA.Ch.Crown)
	}
	b.send(ctx, `{"m":"ch","_id":"jam"}`)
	b.expect(ctx, proto.TypeChannel, &proto.ChannelState{})

	a.send(ctx, `{"m":"userset","set":{"name":"Clara","color":"#112233"}}`)
	var update proto.ParticipantUpdate
	b.expect(ctx, proto.TypeParticipant, &update)
	if update.ID != stateA.P || update.Name != "Clara" || update.Color != "#112233" {
		t.Fatalf("unexpected participant update: %+v", update)
	}

	a.send(ctx, `{"m":"a","message":"hello\nthere"}`)
	var chat proto.Chat
	b.expect(ctx, proto.TypeChat, &chat)
	if chat.A != "hellothere" || chat.P.Name != "Clara" {
		t.Fatalf("unexpected chat: %+v", chat)
	}
}

func TestWebSocketListing(t *testing.T) {
	ts, _ := startTestServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	watcher := dialPeer(ctx, t, ts)
	watcher.send(ctx, `{"m":"+ls"}`)
	var list proto.List
	watcher.expect(ctx, proto.TypeList, &list)
	if !list.C || len(list.U) != 0 {
		t.Fatalf("unexpected initial listing: %+v", list)
	}

	a := dialPeer(ctx, t, ts)
	a.send(ctx, `{"m":"ch","_id":"jam"}`)
	watcher.expect(ctx, proto.TypeList, &list)
	if len(list.U) != 1 || list.U[0].ID != "jam" || list.U[0].Count != 1 {
		t.Fatalf("unexpected listing: %+v", list)
	}
}

func TestOutboundEnvelopeShapes(t *testing.T) {
	cases := []struct {
		name string
		ev   *core.Event
		want string
	}{
		{
			name: "bye",
			ev:   &core.Event{Kind: core.EventBye, MemberID: "m1"},
			want: `{"m":"bye","p":"m1"}`,
		},
		{
			name: "move",
			ev:   &core.Event{Kind: core.EventMove, MemberID: "m1", X: 0, Y: 50.5},
			want: `{"m":"m","id":"m1","x":0,"y":50.5}`,
		},
		{
			name: "quota",
			ev:   &core.Event{Kind: core.EventNoteQuota, Quota: core.QuotaParams{Allowance: 200, Max: 600, MaxHistLen: 3}},
			want: `{"m":"nq","allowance":200,"max":600,"maxHistLen":3}`,
		},
		{
			name: "room state",
			ev: &core.Event{
				Kind:     core.EventRoomState,
				Room:     core.RoomInfo{ID: "lobby", Settings: core.Settings{Chat: true, Visible: true, Color: "#73b3cc", Lobby: true}, Count: 1},
				Members:  []core.MemberInfo{{ID: "m1", Name: "Anonymous", Color: "#445566"}},
				MemberID: "m1",
			},
			want: `{"m":"ch","ch":{"_id":"lobby","settings":{"chat":true,"visible":true,"crownsolo":false,"color":"#73b3cc","lobby":true},"count":1},"ppl":[{"id":"m1","name":"Anonymous","color":"#445566","x":0,"y":0}],"p":"m1"}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(outboundFromEvent(tc.ev))
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tc.want {
				t.Fatalf("got  %s\nwant %s", data, tc.want)
			}
		})
	}
}
