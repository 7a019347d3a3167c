package core

import (
	"sort"
	"sync"

	"github.com/vovakirdan/pianoroom/internal/utils"
)

const defaultName = "Anonymous"

// Participant is a connected identity. Room and member are only changed by the
// RoomRegistry while it holds its lock, so they always agree with the room's list.
type Participant struct {
	ID     string
	client *Client

	mu     sync.RWMutex
	name   string
	color  string
	x, y   float64
	room   *Room
	member *Member
}

// Client returns the connection the participant belongs to.
func (p *Participant) Client() *Client { return p.client }

// Name returns the display name.
func (p *Participant) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// Color returns the display color.
func (p *Participant) Color() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.color
}

// Position returns the last known cursor position.
func (p *Participant) Position() (float64, float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.x, p.y
}

// Room returns the current room, or nil.
func (p *Participant) Room() *Room {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.room
}

// Member returns the membership record in the current room, or nil.
func (p *Participant) Member() *Member {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.member
}

// Info returns the connection-level identity.
func (p *Participant) Info() ParticipantInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ParticipantInfo{ID: p.ID, Name: p.name, Color: p.color}
}

func (p *Participant) setRoom(room *Room, member *Member) {
	p.mu.Lock()
	p.room = room
	p.member = member
	p.mu.Unlock()
}

func (p *Participant) setPresence(name, color string) {
	p.mu.Lock()
	p.name = name
	p.color = color
	p.mu.Unlock()
}

func (p *Participant) setPosition(x, y float64) {
	p.mu.Lock()
	p.x, p.y = x, y
	p.mu.Unlock()
}

// ParticipantRegistry holds every connected participant keyed by connection id.
type ParticipantRegistry struct {
	mu   sync.RWMutex
	byID map[string]*Participant
}

// NewParticipantRegistry creates an empty registry.
func NewParticipantRegistry() *ParticipantRegistry {
	return &ParticipantRegistry{byID: make(map[string]*Participant)}
}

// Add registers a participant for the client, or returns the existing one.
func (r *ParticipantRegistry) Add(c *Client) *Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.byID[c.ID]; ok {
		return p
	}
	p := &Participant{
		ID:     c.ID,
		client: c,
		name:   defaultName,
		color:  utils.ColorFor(c.ID),
	}
	r.byID[c.ID] = p
	return p
}

// Get looks up a participant by connection id.
func (r *ParticipantRegistry) Get(id string) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	return p, ok
}

// Remove deletes a participant. The caller must have removed it from its room.
func (r *ParticipantRegistry) Remove(id string) (*Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
	}
	return p, ok
}

// Len returns the number of connected participants.
func (r *ParticipantRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Snapshot returns all participants ordered by id.
func (r *ParticipantRegistry) Snapshot() []*Participant {
	r.mu.RLock()
	out := make([]*Participant, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clear drops every participant.
func (r *ParticipantRegistry) Clear() {
	r.mu.Lock()
	r.byID = make(map[string]*Participant)
	r.mu.Unlock()
}
