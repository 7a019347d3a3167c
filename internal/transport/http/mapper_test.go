package http

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vovakirdan/pianoroom/internal/core"
	"github.com/vovakirdan/pianoroom/internal/proto"
)

func decodeOne(t *testing.T, raw string) proto.Envelope {
	t.Helper()
	envs, err := proto.DecodeFrame([]byte(raw))
	if err != nil || len(envs) != 1 {
		t.Fatalf("decode %s: %v (%d envelopes)", raw, err, len(envs))
	}
	return envs[0]
}

func TestEnvelopeToCommand(t *testing.T) {
	yes := true
	color := "#abcdef"
	name := "Ada"

	cases := []struct {
		raw  string
		want *core.Command
	}{
		{`{"m":"ch","_id":"jam","set":{"crownsolo":true,"color":"#abcdef"}}`, &core.Command{
			Kind: core.CommandJoinRoom, Room: "jam",
			Settings: core.SettingsHint{CrownSolo: &yes, Color: &color},
		}},
		{`{"m":"m","x":1.5,"y":2}`, &core.Command{Kind: core.CommandMove, X: 1.5, Y: 2}},
		{`{"m":"a","message":"hi"}`, &core.Command{Kind: core.CommandChat, Text: "hi"}},
		{`{"m":"userset","set":{"name":"Ada"}}`, &core.Command{Kind: core.CommandUserSet, Name: &name}},
		{`{"m":"t","e":99}`, &core.Command{Kind: core.CommandTimeEcho, Echo: []byte("99")}},
		{`{"m":"+ls"}`, &core.Command{Kind: core.CommandListSubscribe}},
		{`{"type":"-ls"}`, &core.Command{Kind: core.CommandListUnsubscribe}},
		{`{"m":"n","t":10,"n":[{"n":"c4"}]}`, &core.Command{Kind: core.CommandNotes, NoteTime: 10, Notes: []byte(`[{"n":"c4"}]`)}},
	}
	for _, tc := range cases {
		got, err := envelopeToCommand(decodeOne(t, tc.raw))
		if err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("%s: command mismatch (-want +got):\n%s", tc.raw, diff)
		}
	}
}

func TestEnvelopeToCommandRejects(t *testing.T) {
	cases := []struct {
		raw  string
		want error
	}{
		{`{"m":"ch"}`, core.ErrBadRequest},
		{`{"m":"m","x":1}`, core.ErrBadRequest},
		{`{"m":"n","t":1}`, core.ErrBadRequest},
		{`{"m":"ch","_id":5}`, core.ErrBadRequest},
		{`{"x":1}`, core.ErrBadRequest},
		{`{"m":"dance"}`, core.ErrUnknownCommand},
	}
	for _, tc := range cases {
		_, err := envelopeToCommand(decodeOne(t, tc.raw))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.raw, tc.want, err)
		}
	}
}
