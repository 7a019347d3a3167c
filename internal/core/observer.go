package core

import "github.com/rs/zerolog"

// Observer receives named notifications about room membership. Calls happen while the
// router lock is held, so implementations must not call back into the Router.
type Observer interface {
	MembershipChanged(room RoomInfo, member MemberInfo, joined bool)
	CountChanged(room RoomInfo)
	ParticipantUpdated(room RoomInfo, member MemberInfo)
}

// LogObserver writes membership changes to a logger.
type LogObserver struct {
	Logger *zerolog.Logger
}

func (o LogObserver) MembershipChanged(room RoomInfo, member MemberInfo, joined bool) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.Debug().Str("room", room.ID).Str("member", member.ID).Str("name", member.Name)
	if joined {
		ev.Msg("participant added")
		return
	}
	ev.Msg("participant removed")
}

func (o LogObserver) CountChanged(room RoomInfo) {
	if o.Logger == nil {
		return
	}
	o.Logger.Debug().Str("room", room.ID).Int("count", room.Count).Msg("count")
}

func (o LogObserver) ParticipantUpdated(room RoomInfo, member MemberInfo) {
	if o.Logger == nil {
		return
	}
	o.Logger.Debug().Str("room", room.ID).Str("member", member.ID).Str("name", member.Name).Str("color", member.Color).Msg("participant update")
}
