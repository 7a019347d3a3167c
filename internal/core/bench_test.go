package core

import (
	"encoding/json"
	"fmt"
	"testing"
)

func benchmarkNoteRelay(b *testing.B, recipients int) {
	r := NewRouter(NewRoomRegistry(RoomDefaults{}), NewParticipantRegistry(), nil, RouterOptions{})
	defer r.Close()

	sender := NewClient("sender", 16)
	if _, err := r.Connect(sender); err != nil {
		b.Fatal(err)
	}
	if err := r.Handle(sender, &Command{Kind: CommandJoinRoom, Room: "bench"}); err != nil {
		b.Fatal(err)
	}

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient(fmt.Sprintf("c%d", i), 16)
		if _, err := r.Connect(c); err != nil {
			b.Fatal(err)
		}
		if err := r.Handle(c, &Command{Kind: CommandJoinRoom, Room: "bench"}); err != nil {
			b.Fatal(err)
		}
		clients = append(clients, c)
	}

	// Only the first recipient is drained; the rest exercise the drop path.
	target := clients[0]
	drain(target.Events)
	notes := json.RawMessage(`[{"n":"c4","v":0.5},{"d":40,"n":"c4","s":1}]`)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := r.Handle(sender, &Command{Kind: CommandNotes, NoteTime: float64(i), Notes: notes}); err != nil {
			b.Fatal(err)
		}
		<-target.Events
	}
}

func BenchmarkNoteRelay_10(b *testing.B)  { benchmarkNoteRelay(b, 10) }
func BenchmarkNoteRelay_100(b *testing.B) { benchmarkNoteRelay(b, 100) }
func BenchmarkNoteRelay_500(b *testing.B) { benchmarkNoteRelay(b, 500) }
