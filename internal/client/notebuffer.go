package client

import (
	"encoding/json"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vovakirdan/pianoroom/internal/proto"
)

// NoteBuffer collects note events between flushes. The first event fixes the base
// time; later events carry their distance from it in milliseconds.
type NoteBuffer struct {
	clock clockwork.Clock
	base  time.Time
	notes []proto.Note
}

// NewNoteBuffer creates an empty buffer.
func NewNoteBuffer(clock clockwork.Clock) *NoteBuffer {
	return &NoteBuffer{clock: clock}
}

// StartNote records a note-on. A nil velocity is left for the receiver to default.
func (b *NoteBuffer) StartNote(note string, velocity *float64) {
	n := proto.Note{N: proto.KeyName(note)}
	if velocity != nil {
		v := roundVelocity(*velocity)
		n.V = &v
	}
	b.push(n)
}

// StopNote records a note-off.
func (b *NoteBuffer) StopNote(note string) {
	b.push(proto.Note{N: proto.KeyName(note), S: 1})
}

func (b *NoteBuffer) push(n proto.Note) {
	now := b.clock.Now()
	if b.base.IsZero() {
		b.base = now
	} else {
		n.D = now.Sub(b.base).Milliseconds()
	}
	b.notes = append(b.notes, n)
}

// Len returns the number of buffered events.
func (b *NoteBuffer) Len() int { return len(b.notes) }

// Flush returns the buffered batch stamped with the server-corrected base time and
// clears the buffer. ok is false when there was nothing to send.
func (b *NoteBuffer) Flush(offset float64) (proto.Notes, bool) {
	if len(b.notes) == 0 {
		return proto.Notes{}, false
	}
	raw, err := json.Marshal(b.notes)
	if err != nil {
		b.Reset()
		return proto.Notes{}, false
	}
	msg := proto.Notes{
		M: proto.TypeNotes,
		T: float64(b.base.UnixMilli()) + offset,
		N: raw,
	}
	b.Reset()
	return msg, true
}

// Reset drops buffered events.
func (b *NoteBuffer) Reset() {
	b.base = time.Time{}
	b.notes = nil
}

func roundVelocity(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return math.Round(v*1000) / 1000
}

// TimedNote is a received note with its absolute time on the server timeline.
type TimedNote struct {
	proto.Note
	At float64
}

// Schedule resolves a received batch into absolute note times (t + d).
func Schedule(msg proto.Notes) ([]TimedNote, error) {
	var notes []proto.Note
	if err := json.Unmarshal(msg.N, &notes); err != nil {
		return nil, err
	}
	out := make([]TimedNote, 0, len(notes))
	for _, n := range notes {
		out = append(out, TimedNote{Note: n, At: msg.T + float64(n.D)})
	}
	return out, nil
}
