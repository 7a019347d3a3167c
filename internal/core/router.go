package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/pianoroom/internal/utils"
)

// Position bounds for cursor moves.
const (
	MinPosition = 0
	MaxPosition = 100
)

// RouterOptions tunes validation and policy.
type RouterOptions struct {
	NameMaxLen       int
	ChatMaxLen       int
	EnforceCrownSolo bool
	Quota            NoteQuota
	Observers        []Observer
	Now              func() time.Time
}

// Router applies client commands to the registries and fans the resulting events out.
// Each command runs to completion under one lock, so every member of a room observes
// events in the same order they were processed.
type Router struct {
	mu        sync.Mutex
	rooms     *RoomRegistry
	people    *ParticipantRegistry
	opts      RouterOptions
	listeners map[string]*Client
	closed    bool
	log       *zerolog.Logger
}

// NewRouter wires the registries into a router.
func NewRouter(rooms *RoomRegistry, people *ParticipantRegistry, logger *zerolog.Logger, opts RouterOptions) *Router {
	if opts.NameMaxLen <= 0 {
		opts.NameMaxLen = 40
	}
	if opts.ChatMaxLen <= 0 {
		opts.ChatMaxLen = 512
	}
	if opts.Quota == nil {
		opts.Quota = NopQuota{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Router{
		rooms:     rooms,
		people:    people,
		opts:      opts,
		listeners: make(map[string]*Client),
		log:       logger,
	}
}

// Rooms exposes the room registry for read-only consumers such as the HTTP listing.
func (r *Router) Rooms() *RoomRegistry { return r.rooms }

// Participants exposes the participant registry.
func (r *Router) Participants() *ParticipantRegistry { return r.people }

// Connect registers a participant for the client and greets it.
func (r *Router) Connect(c *Client) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	p := r.people.Add(c)
	c.TrySend(&Event{Kind: EventHello, Self: p.Info(), Time: r.nowMs()})
	return p, nil
}

// Disconnect removes the client's participant, leaving its room first.
func (r *Router) Disconnect(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.listeners, c.ID)
	p, ok := r.people.Get(c.ID)
	if !ok {
		return
	}
	if room := p.Room(); room != nil {
		r.leaveRoom(p, room)
	}
	r.people.Remove(c.ID)
	r.opts.Quota.Forget(c.ID)
}

// Handle processes one command. Errors describe why a command was dropped; nothing is
// sent back to the client for them.
func (r *Router) Handle(c *Client, cmd *Command) error {
	if cmd == nil {
		return ErrBadRequest
	}
	if cmd.Kind == CommandTimeEcho {
		c.TrySend(&Event{Kind: EventTime, Time: r.nowMs(), Echo: cmd.Echo})
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	p, ok := r.people.Get(c.ID)
	if !ok {
		return ErrUnknownParticipant
	}

	switch cmd.Kind {
	case CommandJoinRoom:
		return r.handleJoin(p, cmd)
	case CommandMove:
		return r.handleMove(p, cmd)
	case CommandNotes:
		return r.handleNotes(p, cmd)
	case CommandChat:
		return r.handleChat(p, cmd)
	case CommandUserSet:
		return r.handleUserSet(p, cmd)
	case CommandListSubscribe:
		r.listeners[c.ID] = c
		c.TrySend(r.listingEvent())
		return nil
	case CommandListUnsubscribe:
		delete(r.listeners, c.ID)
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCommand, cmd.Kind)
	}
}

// Close detaches everyone and drops all rooms. Further commands fail with ErrClosed.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, p := range r.people.Snapshot() {
		r.opts.Quota.Forget(p.ID)
	}
	r.rooms.Close()
	r.people.Clear()
	clear(r.listeners)
}

func (r *Router) handleJoin(p *Participant, cmd *Command) error {
	if !validRoomID(cmd.Room) {
		return ErrBadRequest
	}

	if old := p.Room(); old != nil {
		if old.ID == cmd.Room && !old.Closed() {
			info, members := r.rooms.Snapshot(old)
			p.client.TrySend(&Event{Kind: EventRoomState, Room: info, Members: members, MemberID: p.Member().ID})
			return nil
		}
		r.leaveRoom(p, old)
	}

	room, member, created, err := r.rooms.Enter(cmd.Room, cmd.Settings, p)
	if err != nil {
		return err
	}
	info, members := r.rooms.Snapshot(room)
	memberInfo := member.info()
	if created {
		r.log.Debug().Str("room", room.ID).Bool("lobby", info.Settings.Lobby).Msg("room created")
	}

	p.client.TrySend(&Event{Kind: EventRoomState, Room: info, Members: members, MemberID: member.ID})

	owner := info.Crown != nil && info.Crown.MemberID == member.ID
	params := r.opts.Quota.Params(info, owner)
	r.opts.Quota.Assign(p.ID, params)
	if params.Max > 0 {
		p.client.TrySend(&Event{Kind: EventNoteQuota, Quota: params})
	}

	r.broadcast(room, p.ID, &Event{Kind: EventParticipant, Member: memberInfo})

	for _, o := range r.opts.Observers {
		o.MembershipChanged(info, memberInfo, true)
		o.CountChanged(info)
	}
	r.refreshListing()
	return nil
}

func (r *Router) leaveRoom(p *Participant, room *Room) {
	wasOwner := room.IsOwner(p.ID)
	member, destroyed, err := r.rooms.Leave(room, p)
	if err != nil {
		r.log.Debug().Err(err).Str("room", room.ID).Str("conn", p.ID).Msg("leave skipped")
		return
	}
	info := room.Info()
	if destroyed {
		r.log.Debug().Str("room", room.ID).Msg("room destroyed")
	} else {
		r.broadcast(room, "", &Event{Kind: EventBye, MemberID: member.ID})
		if wasOwner {
			// the crown is not passed on; occupants learn it is gone
			r.sendRoomState(room)
		}
	}

	memberInfo := member.info()
	for _, o := range r.opts.Observers {
		o.MembershipChanged(info, memberInfo, false)
		o.CountChanged(info)
	}
	r.refreshListing()
}

func (r *Router) handleMove(p *Participant, cmd *Command) error {
	room := p.Room()
	if room == nil {
		return ErrNotInRoom
	}
	if !inRange(cmd.X) || !inRange(cmd.Y) {
		return ErrOutOfRange
	}

	info, err := r.rooms.UpdateMember(room, p, func(m *Member) {
		m.X, m.Y = cmd.X, cmd.Y
	})
	if err != nil {
		return err
	}
	p.setPosition(cmd.X, cmd.Y)

	r.broadcast(room, p.ID, &Event{Kind: EventMove, MemberID: info.ID, X: info.X, Y: info.Y})
	return nil
}

func (r *Router) handleNotes(p *Participant, cmd *Command) error {
	room := p.Room()
	member := p.Member()
	if room == nil || member == nil {
		return ErrNotInRoom
	}

	var notes []struct {
		S int `json:"s"`
	}
	if err := json.Unmarshal(cmd.Notes, &notes); err != nil || len(notes) == 0 {
		return ErrBadRequest
	}

	if r.opts.EnforceCrownSolo && room.Settings().CrownSolo && !room.IsOwner(p.ID) {
		return ErrNotCrownHolder
	}

	ons := 0
	for _, n := range notes {
		if n.S == 0 {
			ons++
		}
	}
	if !r.opts.Quota.Spend(p.ID, ons) {
		return ErrQuotaExceeded
	}

	r.broadcast(room, p.ID, &Event{Kind: EventNotes, MemberID: member.ID, NoteTime: cmd.NoteTime, Notes: cmd.Notes})
	return nil
}

func (r *Router) handleChat(p *Participant, cmd *Command) error {
	room := p.Room()
	if room == nil {
		return ErrNotInRoom
	}
	if !room.Settings().Chat {
		return ErrChatDisabled
	}

	text := cleanChat(cmd.Text, r.opts.ChatMaxLen)
	if strings.TrimSpace(text) == "" {
		return ErrBadRequest
	}

	info, err := r.rooms.UpdateMember(room, p, func(*Member) {})
	if err != nil {
		return err
	}
	r.broadcast(room, "", &Event{Kind: EventChat, Member: info, Text: text, Time: r.nowMs()})
	return nil
}

func (r *Router) handleUserSet(p *Participant, cmd *Command) error {
	room := p.Room()
	if room == nil {
		return ErrNotInRoom
	}

	name, color := p.Name(), p.Color()
	changed := false
	if cmd.Name != nil {
		if n := cleanName(*cmd.Name, r.opts.NameMaxLen); n != "" && n != name {
			name = n
			changed = true
		}
	}
	if cmd.Color != nil && utils.ValidColor(*cmd.Color) {
		if c := strings.ToLower(*cmd.Color); c != color {
			color = c
			changed = true
		}
	}
	if !changed {
		return nil
	}

	p.setPresence(name, color)
	info, err := r.rooms.UpdateMember(room, p, func(m *Member) {
		m.Name, m.Color = name, color
	})
	if err != nil {
		return err
	}

	r.broadcast(room, "", &Event{Kind: EventParticipant, Member: info})

	roomInfo := room.Info()
	for _, o := range r.opts.Observers {
		o.ParticipantUpdated(roomInfo, info)
	}
	return nil
}

func (r *Router) broadcast(room *Room, except string, ev *Event) {
	for _, c := range r.rooms.Recipients(room, except) {
		if !c.TrySend(ev) {
			r.log.Debug().Str("conn", c.ID).Str("room", room.ID).Msg("dropping event for slow consumer")
		}
	}
}

// sendRoomState gives every occupant a fresh snapshot addressed with its own member id.
func (r *Router) sendRoomState(room *Room) {
	info, members, seats := r.rooms.Seating(room)
	for _, s := range seats {
		ev := &Event{Kind: EventRoomState, Room: info, Members: members, MemberID: s.MemberID}
		if !s.Client.TrySend(ev) {
			r.log.Debug().Str("conn", s.Client.ID).Str("room", room.ID).Msg("dropping event for slow consumer")
		}
	}
}

func (r *Router) listingEvent() *Event {
	ev := &Event{Kind: EventRoomList}
	for info := range r.rooms.ListVisible() {
		ev.Rooms = append(ev.Rooms, info)
	}
	return ev
}

func (r *Router) refreshListing() {
	if len(r.listeners) == 0 {
		return
	}
	ev := r.listingEvent()
	for _, c := range r.listeners {
		c.TrySend(ev)
	}
}

func (r *Router) nowMs() int64 {
	return r.opts.Now().UnixMilli()
}

func inRange(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= MinPosition && v <= MaxPosition
}
