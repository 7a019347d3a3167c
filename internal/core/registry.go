package core

import (
	"iter"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vovakirdan/pianoroom/internal/utils"
)

// RoomDefaults holds the settings applied to newly created rooms.
type RoomDefaults struct {
	Color      string
	LobbyColor string
}

// RoomRegistry maps room ids to live rooms. Rooms exist only while they have members.
// Lock order is registry before participant.
type RoomRegistry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	defaults RoomDefaults
	now      func() time.Time
}

// NewRoomRegistry creates an empty registry.
func NewRoomRegistry(defaults RoomDefaults) *RoomRegistry {
	if defaults.Color == "" {
		defaults.Color = "#3b5054"
	}
	if defaults.LobbyColor == "" {
		defaults.LobbyColor = "#73b3cc"
	}
	return &RoomRegistry{
		rooms:    make(map[string]*Room),
		defaults: defaults,
		now:      time.Now,
	}
}

// GetOrCreate returns the room with the given id, creating it from defaults and hint.
func (g *RoomRegistry) GetOrCreate(id string, hint SettingsHint) *Room {
	g.mu.RLock()
	room, ok := g.rooms[id]
	g.mu.RUnlock()
	if ok {
		return room
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	room, _ = g.getOrCreateLocked(id, hint)
	return room
}

// Join adds the participant to the room.
func (g *RoomRegistry) Join(room *Room, p *Participant) (*Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.joinLocked(room, p)
}

// Enter finds or creates the room and joins it in one step. created reports a new room.
func (g *RoomRegistry) Enter(id string, hint SettingsHint, p *Participant) (*Room, *Member, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	room, created := g.getOrCreateLocked(id, hint)
	member, err := g.joinLocked(room, p)
	if err != nil {
		if created {
			g.destroyLocked(room)
		}
		return nil, nil, false, err
	}
	return room, member, created, nil
}

// Leave removes the participant from the room. destroyed reports that the room was deleted.
func (g *RoomRegistry) Leave(room *Room, p *Participant) (*Member, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := room.indexOf(p.ID)
	if idx < 0 {
		return nil, false, ErrNotInRoom
	}
	member := room.members[idx]
	room.members = slices.Delete(room.members, idx, idx+1)
	room.count--
	p.setRoom(nil, nil)

	if room.crown != nil && room.crown.ConnID == p.ID {
		room.crown = nil
	}
	if room.count == 0 {
		g.destroyLocked(room)
		return member, true, nil
	}
	return member, false, nil
}

// UpdateMember applies fn to the participant's membership record and returns the result.
func (g *RoomRegistry) UpdateMember(room *Room, p *Participant, fn func(m *Member)) (MemberInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	idx := room.indexOf(p.ID)
	if idx < 0 {
		return MemberInfo{}, ErrNotInRoom
	}
	m := room.members[idx]
	fn(m)
	return m.info(), nil
}

// Snapshot returns the room and its member list from the same critical section.
func (g *RoomRegistry) Snapshot(room *Room) (RoomInfo, []MemberInfo) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return room.infoLocked(), room.membersLocked()
}

// Seat pairs an occupant's client with its member id.
type Seat struct {
	Client   *Client
	MemberID string
}

// Seating returns the room snapshot along with every occupant's seat.
func (g *RoomRegistry) Seating(room *Room) (RoomInfo, []MemberInfo, []Seat) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seats := make([]Seat, 0, len(room.members))
	for _, m := range room.members {
		seats = append(seats, Seat{Client: m.participant.client, MemberID: m.ID})
	}
	return room.infoLocked(), room.membersLocked(), seats
}

// Recipients returns the clients in the room, optionally skipping one connection.
func (g *RoomRegistry) Recipients(room *Room, except string) []*Client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return room.clientsLocked(except)
}

// Get looks up a live room.
func (g *RoomRegistry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[id]
	return room, ok
}

// Len returns the number of live rooms.
func (g *RoomRegistry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// ListVisible returns the visible rooms ordered by id. The sequence can be ranged over once;
// each room is read when it is reached, so rooms destroyed in the meantime are skipped.
func (g *RoomRegistry) ListVisible() iter.Seq[RoomInfo] {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		rooms = append(rooms, room)
	}
	g.mu.RUnlock()
	slices.SortFunc(rooms, func(a, b *Room) int { return strings.Compare(a.ID, b.ID) })

	var used atomic.Bool
	return func(yield func(RoomInfo) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		for _, room := range rooms {
			g.mu.RLock()
			if room.closed || !room.settings.Visible {
				g.mu.RUnlock()
				continue
			}
			info := room.infoLocked()
			g.mu.RUnlock()

			if !yield(info) {
				return
			}
		}
	}
}

// Close destroys every room and detaches their members.
func (g *RoomRegistry) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, room := range g.rooms {
		for _, m := range room.members {
			m.participant.setRoom(nil, nil)
		}
		room.members = nil
		room.count = 0
		room.crown = nil
		g.destroyLocked(room)
	}
}

func (g *RoomRegistry) getOrCreateLocked(id string, hint SettingsHint) (*Room, bool) {
	if room, ok := g.rooms[id]; ok {
		return room, false
	}
	room := &Room{
		ID:       id,
		lock:     &g.mu,
		settings: g.settingsFor(id, hint),
	}
	g.rooms[id] = room
	return room, true
}

func (g *RoomRegistry) settingsFor(id string, hint SettingsHint) Settings {
	lobby := IsLobby(id)
	s := Settings{Chat: true, Visible: true, Color: g.defaults.Color, Lobby: lobby}
	if lobby {
		s.Color = g.defaults.LobbyColor
	}
	if hint.Chat != nil {
		s.Chat = *hint.Chat
	}
	if hint.Visible != nil {
		s.Visible = *hint.Visible
	}
	if hint.CrownSolo != nil && !lobby {
		s.CrownSolo = *hint.CrownSolo
	}
	if hint.Color != nil && utils.ValidColor(*hint.Color) {
		s.Color = strings.ToLower(*hint.Color)
	}
	return s
}

func (g *RoomRegistry) joinLocked(room *Room, p *Participant) (*Member, error) {
	if room.closed {
		return nil, ErrRoomClosed
	}
	if cur := p.Room(); cur != nil {
		return nil, ErrAlreadyJoined
	}

	x, y := p.Position()
	member := &Member{
		ID:          utils.NewMemberID(),
		ConnID:      p.ID,
		Name:        p.Name(),
		Color:       p.Color(),
		X:           x,
		Y:           y,
		participant: p,
	}
	room.members = append(room.members, member)
	room.count++
	p.setRoom(room, member)

	if !room.settings.Lobby && room.count == 1 && !room.hadCrown {
		room.crown = &Crown{MemberID: member.ID, ConnID: p.ID, Time: g.now()}
		room.hadCrown = true
	}
	return member, nil
}

func (g *RoomRegistry) destroyLocked(room *Room) {
	room.closed = true
	if g.rooms[room.ID] == room {
		delete(g.rooms, room.ID)
	}
}
