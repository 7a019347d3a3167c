package http

import (
	"fmt"
	"time"

	"github.com/vovakirdan/pianoroom/internal/core"
	"github.com/vovakirdan/pianoroom/internal/proto"
)

func envelopeToCommand(env proto.Envelope) (*core.Command, error) {
	switch env.Kind {
	case proto.TypeChannel:
		var req proto.ChannelRequest
		if err := env.Decode(&req); err != nil {
			return nil, badRequest(env.Kind, err.Error())
		}
		if req.ID == "" {
			return nil, badRequest(env.Kind, "_id is required")
		}
		cmd := &core.Command{Kind: core.CommandJoinRoom, Room: req.ID}
		if req.Set != nil {
			cmd.Settings = core.SettingsHint{
				Chat:      req.Set.Chat,
				Visible:   req.Set.Visible,
				CrownSolo: req.Set.CrownSolo,
				Color:     req.Set.Color,
			}
		}
		return cmd, nil
	case proto.TypeMove:
		var mv proto.Move
		if err := env.Decode(&mv); err != nil {
			return nil, badRequest(env.Kind, err.Error())
		}
		if mv.X == nil || mv.Y == nil {
			return nil, badRequest(env.Kind, "x and y are required")
		}
		return &core.Command{Kind: core.CommandMove, X: *mv.X, Y: *mv.Y}, nil
	case proto.TypeNotes:
		var n proto.Notes
		if err := env.Decode(&n); err != nil {
			return nil, badRequest(env.Kind, err.Error())
		}
		if len(n.N) == 0 {
			return nil, badRequest(env.Kind, "n is required")
		}
		return &core.Command{Kind: core.CommandNotes, NoteTime: n.T, Notes: n.N}, nil
	case proto.TypeChat:
		var msg proto.ChatRequest
		if err := env.Decode(&msg); err != nil {
			return nil, badRequest(env.Kind, err.Error())
		}
		return &core.Command{Kind: core.CommandChat, Text: msg.Message}, nil
	case proto.TypeUserSet:
		var us proto.UserSet
		if err := env.Decode(&us); err != nil {
			return nil, badRequest(env.Kind, err.Error())
		}
		return &core.Command{Kind: core.CommandUserSet, Name: us.Set.Name, Color: us.Set.Color}, nil
	case proto.TypeTime:
		var tm proto.Time
		if err := env.Decode(&tm); err != nil {
			return nil, badRequest(env.Kind, err.Error())
		}
		return &core.Command{Kind: core.CommandTimeEcho, Echo: tm.E}, nil
	case proto.TypeListSubscribe:
		return &core.Command{Kind: core.CommandListSubscribe}, nil
	case proto.TypeListUnsubscribe:
		return &core.Command{Kind: core.CommandListUnsubscribe}, nil
	case "":
		return nil, badRequest(env.Kind, "missing message type")
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownCommand, env.Kind)
	}
}

func badRequest(kind, msg string) error {
	return fmt.Errorf("%w: %s: %s", core.ErrBadRequest, kind, msg)
}

func outboundFromEvent(ev *core.Event) any {
	switch ev.Kind {
	case core.EventHello:
		return proto.Hello{
			M: proto.TypeHello,
			U: proto.User{ID: ev.Self.ID, Name: ev.Self.Name, Color: ev.Self.Color},
			T: ev.Time,
			V: proto.ProtocolVersion,
		}
	case core.EventTime:
		return proto.Time{M: proto.TypeTime, T: ev.Time, E: ev.Echo}
	case core.EventRoomState:
		return proto.ChannelState{
			M:   proto.TypeChannel,
			Ch:  channelFromRoom(ev.Room),
			Ppl: participantsFromMembers(ev.Members),
			P:   ev.MemberID,
		}
	case core.EventParticipant:
		return proto.ParticipantUpdate{M: proto.TypeParticipant, Participant: participantFromMember(ev.Member)}
	case core.EventMove:
		x, y := ev.X, ev.Y
		return proto.Move{M: proto.TypeMove, ID: ev.MemberID, X: &x, Y: &y}
	case core.EventNotes:
		return proto.Notes{M: proto.TypeNotes, T: ev.NoteTime, N: ev.Notes, P: ev.MemberID}
	case core.EventChat:
		return proto.Chat{M: proto.TypeChat, A: ev.Text, P: participantFromMember(ev.Member), T: ev.Time}
	case core.EventBye:
		return proto.Bye{M: proto.TypeBye, P: ev.MemberID}
	case core.EventRoomList:
		list := proto.List{M: proto.TypeList, C: true, U: make([]proto.Channel, 0, len(ev.Rooms))}
		for _, info := range ev.Rooms {
			list.U = append(list.U, channelFromRoom(info))
		}
		return list
	case core.EventNoteQuota:
		return proto.NoteQuota{
			M:          proto.TypeNoteQuota,
			Allowance:  ev.Quota.Allowance,
			Max:        ev.Quota.Max,
			MaxHistLen: ev.Quota.MaxHistLen,
		}
	default:
		return nil
	}
}

func channelFromRoom(info core.RoomInfo) proto.Channel {
	s := info.Settings
	ch := proto.Channel{
		ID: info.ID,
		Settings: proto.Settings{
			Chat:      &s.Chat,
			Visible:   &s.Visible,
			CrownSolo: &s.CrownSolo,
			Color:     &s.Color,
			Lobby:     &s.Lobby,
		},
		Count: info.Count,
	}
	if info.Crown != nil {
		ch.Crown = &proto.Crown{ParticipantID: info.Crown.MemberID, Time: unixMilli(info.Crown.Time)}
	}
	return ch
}

func participantFromMember(m core.MemberInfo) proto.Participant {
	return proto.Participant{ID: m.ID, Name: m.Name, Color: m.Color, X: m.X, Y: m.Y}
}

func participantsFromMembers(members []core.MemberInfo) []proto.Participant {
	out := make([]proto.Participant, 0, len(members))
	for _, m := range members {
		out = append(out, participantFromMember(m))
	}
	return out
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
