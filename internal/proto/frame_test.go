package proto

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeFrameSingleObject(t *testing.T) {
	envs, err := DecodeFrame([]byte(` {"m":"t","e":123} `))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envs) != 1 || envs[0].Kind != TypeTime {
		t.Fatalf("unexpected envelopes: %+v", envs)
	}

	var tm Time
	if err := envs[0].Decode(&tm); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if string(tm.E) != "123" {
		t.Fatalf("echo token changed: %s", tm.E)
	}
}

func TestDecodeFrameArrayAndTypeFallback(t *testing.T) {
	envs, err := DecodeFrame([]byte(`[{"m":"+ls"},{"type":"a","message":"hi"},42]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envs) != 3 {
		t.Fatalf("expected 3 envelopes, got %d", len(envs))
	}
	if envs[0].Kind != TypeListSubscribe || envs[1].Kind != TypeChat {
		t.Fatalf("unexpected kinds: %q %q", envs[0].Kind, envs[1].Kind)
	}
	if envs[2].Kind != "" {
		t.Fatalf("non-object element should have empty kind, got %q", envs[2].Kind)
	}
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	if _, err := DecodeFrame([]byte("   ")); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame, got %v", err)
	}
	if _, err := DecodeFrame([]byte(`{"m":`)); err == nil {
		t.Fatal("expected error for truncated object")
	}
	if _, err := DecodeFrame([]byte(`[{"m":"t"}`)); err == nil {
		t.Fatal("expected error for truncated array")
	}
}

func TestEncodeFrameShapes(t *testing.T) {
	one, err := EncodeFrame(Bye{M: TypeBye, P: "abc"})
	if err != nil {
		t.Fatalf("encode single: %v", err)
	}
	if string(one) != `{"m":"bye","p":"abc"}` {
		t.Fatalf("unexpected single frame: %s", one)
	}

	many, err := EncodeFrame(Bye{M: TypeBye, P: "a"}, Simple{M: TypeListSubscribe})
	if err != nil {
		t.Fatalf("encode array: %v", err)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(many, &raws); err != nil || len(raws) != 2 {
		t.Fatalf("expected two-element array, got %s (%v)", many, err)
	}
}

func TestParticipantUpdateFlattens(t *testing.T) {
	data, err := json.Marshal(ParticipantUpdate{
		M:           TypeParticipant,
		Participant: Participant{ID: "x1", Name: "Anon", Color: "#123456", X: 1, Y: 2},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"m":"p","id":"x1","name":"Anon","color":"#123456","x":1,"y":2}`
	if string(data) != want {
		t.Fatalf("got %s want %s", data, want)
	}
}
