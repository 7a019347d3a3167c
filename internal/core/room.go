package core

import (
	"strings"
	"sync"
	"time"
)

// Settings is the effective configuration of a room.
type Settings struct {
	Chat      bool
	Visible   bool
	CrownSolo bool
	Color     string
	Lobby     bool
}

// SettingsHint carries the optional settings a client may propose when creating a room.
type SettingsHint struct {
	Chat      *bool
	Visible   *bool
	CrownSolo *bool
	Color     *string
}

// Crown marks the room owner.
type Crown struct {
	MemberID string
	ConnID   string
	Time     time.Time
}

// Member is the room-scoped view of a participant. The member id is never the connection id.
type Member struct {
	ID     string
	ConnID string
	Name   string
	Color  string
	X, Y   float64

	participant *Participant
}

// info returns a copy safe to hand to other goroutines.
func (m *Member) info() MemberInfo {
	return MemberInfo{ID: m.ID, Name: m.Name, Color: m.Color, X: m.X, Y: m.Y}
}

// MemberInfo is an immutable snapshot of a membership record.
type MemberInfo struct {
	ID    string
	Name  string
	Color string
	X, Y  float64
}

// CrownInfo is the crown as clients see it.
type CrownInfo struct {
	MemberID string
	Time     time.Time
}

// RoomInfo is an immutable snapshot of a room.
type RoomInfo struct {
	ID       string
	Settings Settings
	Crown    *CrownInfo
	Count    int
}

// Room groups participants that share a piano. All state is guarded by the owning registry's lock.
type Room struct {
	ID string

	lock     *sync.RWMutex
	settings Settings
	members  []*Member
	count    int
	crown    *Crown
	hadCrown bool
	closed   bool
}

// IsLobby reports whether a room id names a lobby room.
func IsLobby(id string) bool {
	return strings.Contains(strings.ToLower(id), "lobby")
}

// Info returns a snapshot of the room.
func (r *Room) Info() RoomInfo {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.infoLocked()
}

// Members returns snapshots of all members in join order.
func (r *Room) Members() []MemberInfo {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.membersLocked()
}

// Count returns the number of members.
func (r *Room) Count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.count
}

// Settings returns the effective settings.
func (r *Room) Settings() Settings {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.settings
}

// Crown returns the current crown, if any.
func (r *Room) Crown() (Crown, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.crown == nil {
		return Crown{}, false
	}
	return *r.crown, true
}

// Closed reports whether the room was destroyed.
func (r *Room) Closed() bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.closed
}

// IsOwner reports whether the participant holds the crown.
func (r *Room) IsOwner(connID string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.crown != nil && r.crown.ConnID == connID
}

func (r *Room) infoLocked() RoomInfo {
	info := RoomInfo{ID: r.ID, Settings: r.settings, Count: r.count}
	if r.crown != nil {
		info.Crown = &CrownInfo{MemberID: r.crown.MemberID, Time: r.crown.Time}
	}
	return info
}

func (r *Room) membersLocked() []MemberInfo {
	out := make([]MemberInfo, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m.info())
	}
	return out
}

func (r *Room) clientsLocked(except string) []*Client {
	out := make([]*Client, 0, len(r.members))
	for _, m := range r.members {
		if m.ConnID == except {
			continue
		}
		out = append(out, m.participant.client)
	}
	return out
}

func (r *Room) indexOf(connID string) int {
	for i, m := range r.members {
		if m.ConnID == connID {
			return i
		}
	}
	return -1
}
