package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/pianoroom/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	name := flag.String("name", "tester", "display name to announce with userset")
	room := flag.String("room", "smoke", "room to join")
	text := flag.String("text", "hello from smoke test", "chat line to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	sent := time.Now()
	frame, err := proto.EncodeFrame(
		proto.ChannelRequest{M: proto.TypeChannel, ID: *room},
		proto.UserSet{M: proto.TypeUserSet, Set: proto.UserSetData{Name: name}},
		proto.Time{M: proto.TypeTime, E: []byte(fmt.Sprint(sent.UnixMilli()))},
		proto.ChatRequest{M: proto.TypeChat, Message: *text},
	)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		envs, err := proto.DecodeFrame(data)
		if err != nil {
			return fmt.Errorf("decode %s: %w", data, err)
		}

		for _, env := range envs {
			fmt.Printf("Received envelope: m=%s\n", env.Kind)

			switch env.Kind {
			case proto.TypeHello:
				var m proto.Hello
				if err := env.Decode(&m); err == nil {
					fmt.Printf("Hello: id=%s name=%s color=%s\n", m.U.ID, m.U.Name, m.U.Color)
				}
			case proto.TypeChannel:
				var m proto.ChannelState
				if err := env.Decode(&m); err == nil {
					fmt.Printf("Room: id=%s count=%d member=%s\n", m.Ch.ID, m.Ch.Count, m.P)
				}
			case proto.TypeTime:
				var m proto.Time
				if err := env.Decode(&m); err == nil {
					fmt.Printf("Time: server=%d rtt=%s\n", m.T, time.Since(sent).Round(time.Millisecond))
				}
			case proto.TypeChat:
				var m proto.Chat
				if err := env.Decode(&m); err != nil {
					return fmt.Errorf("decode chat: %w", err)
				}
				fmt.Printf("Chat: room=%s from=%s text=%q t=%d\n", *room, m.P.Name, m.A, m.T)
				return nil
			}
		}
	}
}
