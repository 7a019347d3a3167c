package core

import "encoding/json"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventHello greets a new connection with its identity and the server time.
	EventHello EventKind = iota
	// EventTime answers a time echo.
	EventTime
	// EventRoomState delivers the full room snapshot to a joining client.
	EventRoomState
	// EventParticipant announces a new or updated membership record.
	EventParticipant
	// EventMove relays a cursor position.
	EventMove
	// EventNotes relays a note batch.
	EventNotes
	// EventChat relays a chat line.
	EventChat
	// EventBye notifies that a member left the room.
	EventBye
	// EventRoomList delivers the visible room listing.
	EventRoomList
	// EventNoteQuota advises the client of its note budget.
	EventNoteQuota
)

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be modified after sending.
type Event struct {
	Kind EventKind

	// Time is the server wall clock in Unix milliseconds.
	Time int64
	Echo json.RawMessage

	Self     ParticipantInfo
	Room     RoomInfo
	Members  []MemberInfo
	Member   MemberInfo
	MemberID string

	X, Y float64

	NoteTime float64
	Notes    json.RawMessage

	Text  string
	Rooms []RoomInfo
	Quota QuotaParams
}

// ParticipantInfo is the connection-level identity, only ever sent to its owner.
type ParticipantInfo struct {
	ID    string
	Name  string
	Color string
}
