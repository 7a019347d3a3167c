package proto

import "encoding/json"

const (
	ProtocolVersion = 1

	TypeHello           = "hi"
	TypeTime            = "t"
	TypeChannel         = "ch"
	TypeParticipant     = "p"
	TypeMove            = "m"
	TypeNotes           = "n"
	TypeChat            = "a"
	TypeBye             = "bye"
	TypeUserSet         = "userset"
	TypeListSubscribe   = "+ls"
	TypeListUnsubscribe = "-ls"
	TypeList            = "ls"
	TypeNoteQuota       = "nq"
)

// Header carries the envelope discriminator. Older clients send "type" instead of "m".
type Header struct {
	M    string `json:"m"`
	Type string `json:"type,omitempty"`
}

// Kind returns the discriminator, preferring "m".
func (h Header) Kind() string {
	if h.M != "" {
		return h.M
	}
	return h.Type
}

// Settings is the wire form of room settings. Nil fields are left to server defaults
// when sent as a hint.
type Settings struct {
	Chat      *bool   `json:"chat,omitempty"`
	Visible   *bool   `json:"visible,omitempty"`
	CrownSolo *bool   `json:"crownsolo,omitempty"`
	Color     *string `json:"color,omitempty"`
	Lobby     *bool   `json:"lobby,omitempty"`
}

// User identifies the connection itself. Only ever sent to its owner.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Participant is a room-scoped membership record as seen by other occupants.
type Participant struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color string  `json:"color"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// Crown names the room member allowed to play in crown-solo rooms.
type Crown struct {
	ParticipantID string `json:"participantId"`
	Time          int64  `json:"time"`
}

// Channel summarizes a room.
type Channel struct {
	ID       string   `json:"_id"`
	Settings Settings `json:"settings"`
	Crown    *Crown   `json:"crown,omitempty"`
	Count    int      `json:"count"`
}

// Note is a single note-on or note-off inside a batch.
// D is the millisecond offset from the batch base time; the first note omits it.
type Note struct {
	N NoteKey  `json:"n"`
	V *float64 `json:"v,omitempty"`
	S int      `json:"s,omitempty"`
	D int64    `json:"d,omitempty"`
}

// NoteKey is an opaque note identifier. Any JSON value ("c4", 60) is carried as is.
type NoteKey json.RawMessage

// KeyName wraps a note name as a JSON string key.
func KeyName(name string) NoteKey {
	raw, _ := json.Marshal(name)
	return NoteKey(raw)
}

// String returns the key as text: string keys unquoted, anything else verbatim.
func (k NoteKey) String() string {
	var name string
	if err := json.Unmarshal(k, &name); err == nil {
		return name
	}
	return string(k)
}

func (k NoteKey) MarshalJSON() ([]byte, error) {
	if len(k) == 0 {
		return []byte("null"), nil
	}
	return k, nil
}

func (k *NoteKey) UnmarshalJSON(data []byte) error {
	*k = append((*k)[:0], data...)
	return nil
}

// Hello greets a freshly connected client.
type Hello struct {
	M string `json:"m"`
	U User   `json:"u"`
	T int64  `json:"t"`
	V int    `json:"v"`
}

// Time is the time echo. Clients send E; the server answers with T and the same E.
type Time struct {
	M string          `json:"m"`
	T int64           `json:"t,omitempty"`
	E json.RawMessage `json:"e,omitempty"`
}

// ChannelRequest asks to join (or create) a room.
type ChannelRequest struct {
	M   string    `json:"m"`
	ID  string    `json:"_id"`
	Set *Settings `json:"set,omitempty"`
}

// ChannelState is the full room snapshot sent to a joining connection.
// P is the member id assigned to the receiver.
type ChannelState struct {
	M   string        `json:"m"`
	Ch  Channel       `json:"ch"`
	Ppl []Participant `json:"ppl"`
	P   string        `json:"p"`
}

// ParticipantUpdate announces a new or changed membership record.
type ParticipantUpdate struct {
	M string `json:"m"`
	Participant
}

// Move is a cursor position. ID is set by the server on relay.
type Move struct {
	M  string   `json:"m"`
	ID string   `json:"id,omitempty"`
	X  *float64 `json:"x"`
	Y  *float64 `json:"y"`
}

// Notes is a note batch. N is relayed byte for byte; P is set by the server on relay.
type Notes struct {
	M string          `json:"m"`
	T float64         `json:"t"`
	N json.RawMessage `json:"n"`
	P string          `json:"p,omitempty"`
}

// ChatRequest is a chat line from a client.
type ChatRequest struct {
	M       string `json:"m"`
	Message string `json:"message"`
}

// Chat is a chat line relayed to a room.
type Chat struct {
	M string      `json:"m"`
	A string      `json:"a"`
	P Participant `json:"p"`
	T int64       `json:"t"`
}

// UserSet changes the sender's display name and/or color.
type UserSet struct {
	M   string      `json:"m"`
	Set UserSetData `json:"set"`
}

// UserSetData holds the optional fields of a UserSet.
type UserSetData struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// Bye tells a room that a member left.
type Bye struct {
	M string `json:"m"`
	P string `json:"p"`
}

// List is a room discovery listing. C marks a complete listing.
type List struct {
	M string    `json:"m"`
	C bool      `json:"c"`
	U []Channel `json:"u"`
}

// NoteQuota advises the client how many notes it may send.
type NoteQuota struct {
	M          string `json:"m"`
	Allowance  int    `json:"allowance"`
	Max        int    `json:"max"`
	MaxHistLen int    `json:"maxHistLen"`
}

// Simple is an envelope without payload (+ls, -ls).
type Simple struct {
	M string `json:"m"`
}
