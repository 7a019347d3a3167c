package client

import "github.com/vovakirdan/pianoroom/internal/proto"

// Listener receives client notifications. Calls are made while the client's exec lock
// is held; implementations must not call back into the Client synchronously.
type Listener interface {
	Status(state State)
	ParticipantAdded(p proto.Participant)
	ParticipantRemoved(p proto.Participant)
	ParticipantUpdated(p proto.Participant)
	Count(n int)
	Channel(ch proto.Channel)
	Notes(from string, notes []TimedNote)
	Cursor(id string, x, y float64)
	Chat(msg proto.Chat)
	Rooms(rooms []proto.Channel)
}

// NopListener ignores every notification. Embed it to implement part of Listener.
type NopListener struct{}

func (NopListener) Status(State)                         {}
func (NopListener) ParticipantAdded(proto.Participant)   {}
func (NopListener) ParticipantRemoved(proto.Participant) {}
func (NopListener) ParticipantUpdated(proto.Participant) {}
func (NopListener) Count(int)                            {}
func (NopListener) Channel(proto.Channel)                {}
func (NopListener) Notes(string, []TimedNote)            {}
func (NopListener) Cursor(string, float64, float64)      {}
func (NopListener) Chat(proto.Chat)                      {}
func (NopListener) Rooms([]proto.Channel)                {}
