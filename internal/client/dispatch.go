package client

import (
	"github.com/vovakirdan/pianoroom/internal/proto"
)

func (c *Client) dispatchLocked(data []byte) {
	envs, err := proto.DecodeFrame(data)
	if err != nil {
		c.log.Debug().Err(err).Msg("malformed frame from server")
		return
	}
	for _, env := range envs {
		if err := c.handleLocked(env); err != nil {
			c.log.Debug().Err(err).Str("type", env.Kind).Msg("dropping envelope")
		}
	}
}

func (c *Client) handleLocked(env proto.Envelope) error {
	switch env.Kind {
	case proto.TypeHello:
		var m proto.Hello
		if err := env.Decode(&m); err != nil {
			return err
		}
		c.user = m.U
		if m.T != 0 {
			c.sync.Receive(m.T, nil)
		}
	case proto.TypeTime:
		var m proto.Time
		if err := env.Decode(&m); err != nil {
			return err
		}
		c.sync.Receive(m.T, m.E)
	case proto.TypeChannel:
		var m proto.ChannelState
		if err := env.Decode(&m); err != nil {
			return err
		}
		ch := m.Ch
		c.channel = &ch
		c.memberID = m.P
		c.setParticipantsLocked(m.Ppl)
		c.listener.Channel(ch)
	case proto.TypeParticipant:
		var m proto.ParticipantUpdate
		if err := env.Decode(&m); err != nil {
			return err
		}
		c.participantUpdateLocked(m.Participant)
	case proto.TypeMove:
		var m proto.Move
		if err := env.Decode(&m); err != nil {
			return err
		}
		if m.X == nil || m.Y == nil {
			return nil
		}
		if p, ok := c.ppl[m.ID]; ok {
			p.X, p.Y = *m.X, *m.Y
		}
		c.listener.Cursor(m.ID, *m.X, *m.Y)
	case proto.TypeNotes:
		var m proto.Notes
		if err := env.Decode(&m); err != nil {
			return err
		}
		notes, err := Schedule(m)
		if err != nil {
			return err
		}
		c.listener.Notes(m.P, notes)
	case proto.TypeChat:
		var m proto.Chat
		if err := env.Decode(&m); err != nil {
			return err
		}
		c.listener.Chat(m)
	case proto.TypeBye:
		var m proto.Bye
		if err := env.Decode(&m); err != nil {
			return err
		}
		c.removeParticipantLocked(m.P)
	case proto.TypeList:
		var m proto.List
		if err := env.Decode(&m); err != nil {
			return err
		}
		c.listener.Rooms(m.U)
	case proto.TypeNoteQuota:
		var m proto.NoteQuota
		if err := env.Decode(&m); err != nil {
			return err
		}
		c.quota = m
	default:
		c.log.Trace().Str("type", env.Kind).Msg("ignoring envelope")
	}
	return nil
}

// setParticipantsLocked replaces the member list, announcing removals and additions.
func (c *Client) setParticipantsLocked(ppl []proto.Participant) {
	keep := make(map[string]struct{}, len(ppl))
	for _, p := range ppl {
		keep[p.ID] = struct{}{}
	}
	for id := range c.ppl {
		if _, ok := keep[id]; !ok {
			c.removeParticipantLocked(id)
		}
	}
	for _, p := range ppl {
		c.participantUpdateLocked(p)
	}
}

func (c *Client) participantUpdateLocked(update proto.Participant) {
	part, ok := c.ppl[update.ID]
	if !ok {
		p := update
		c.ppl[p.ID] = &p
		c.listener.ParticipantAdded(p)
		c.listener.Count(len(c.ppl))
		return
	}
	part.X, part.Y = update.X, update.Y
	if update.Color != "" {
		part.Color = update.Color
	}
	if update.Name != "" {
		part.Name = update.Name
	}
	c.listener.ParticipantUpdated(*part)
}

func (c *Client) removeParticipantLocked(id string) {
	part, ok := c.ppl[id]
	if !ok {
		return
	}
	delete(c.ppl, id)
	c.listener.ParticipantRemoved(*part)
	c.listener.Count(len(c.ppl))
}
