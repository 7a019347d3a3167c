package core

import "encoding/json"

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom moves the client into a room, creating it if needed.
	CommandJoinRoom CommandKind = iota
	// CommandMove updates the client's cursor position.
	CommandMove
	// CommandNotes relays a note batch to the room.
	CommandNotes
	// CommandChat sends a chat line to the room.
	CommandChat
	// CommandUserSet changes display name and/or color.
	CommandUserSet
	// CommandTimeEcho asks for the server clock.
	CommandTimeEcho
	// CommandListSubscribe subscribes to the visible room listing.
	CommandListSubscribe
	// CommandListUnsubscribe cancels a listing subscription.
	CommandListUnsubscribe
)

func (k CommandKind) String() string {
	switch k {
	case CommandJoinRoom:
		return "join"
	case CommandMove:
		return "move"
	case CommandNotes:
		return "notes"
	case CommandChat:
		return "chat"
	case CommandUserSet:
		return "userset"
	case CommandTimeEcho:
		return "time"
	case CommandListSubscribe:
		return "list_subscribe"
	case CommandListUnsubscribe:
		return "list_unsubscribe"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind

	Room     string
	Settings SettingsHint

	X, Y float64

	// NoteTime is the batch base time on the server timeline; Notes is relayed as is.
	NoteTime float64
	Notes    json.RawMessage

	Text  string
	Name  *string
	Color *string

	Echo json.RawMessage
}
