package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/pianoroom/internal/client"
	"github.com/vovakirdan/pianoroom/internal/config"
	"github.com/vovakirdan/pianoroom/internal/log"
	"github.com/vovakirdan/pianoroom/internal/proto"
)

func newPlayCmd(flags *rootFlags) *cobra.Command {
	overrides := config.Config{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a room from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bootLog := log.NewWithWriter(os.Stderr, flags.logLevel)
			cfg, _, err := config.Load(bootLog, flags.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			overrides.LogLevel = flags.logLevel
			cfg.UpdateFrom(overrides)

			logger := log.NewWithWriter(os.Stderr, cfg.LogLevel)
			out := cmd.OutOrStdout()

			opts := client.OptionsFromConfig(cfg.Client)
			opts.Logger = logger
			opts.Listener = &printer{out: out}
			opts.Dialer = client.WSDialer{ReadLimit: cfg.MaxMessageBytes}
			cl := client.New(opts)

			cl.SetChannel(cfg.Client.Room, nil)
			if err := cl.Start(); err != nil {
				return err
			}
			defer cl.Stop()
			if cfg.Client.Name != "" {
				name := cfg.Client.Name
				cl.SetUser(&name, nil)
			}

			fmt.Fprintf(out, "Connecting to %s, room %s\n", cfg.Client.URL, cfg.Client.Room)
			fmt.Fprintln(out, "Type to chat. Commands: /room ID, /name NAME, /color #RRGGBB, /note KEY [VEL], /stop KEY, /rooms, /who, /quit")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					if quit := runLine(cl, out, strings.TrimSpace(line)); quit {
						return nil
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&overrides.Client.URL, "url", "", "websocket URL of the server")
	cmd.Flags().StringVar(&overrides.Client.Room, "room", "", "room to join")
	cmd.Flags().StringVar(&overrides.Client.Name, "name", "", "display name")
	return cmd
}

// runLine executes one line of terminal input and reports whether to quit.
func runLine(cl *client.Client, out io.Writer, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		cl.Say(line)
		return false
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "quit", "exit":
		return true
	case "room":
		if arg == "" {
			fmt.Fprintln(out, "usage: /room ID")
			return false
		}
		cl.SetChannel(arg, nil)
	case "name":
		cl.SetUser(&arg, nil)
	case "color":
		cl.SetUser(nil, &arg)
	case "note":
		key, velArg, _ := strings.Cut(arg, " ")
		var vel *float64
		if v, err := strconv.ParseFloat(strings.TrimSpace(velArg), 64); err == nil {
			vel = &v
		}
		if !cl.StartNote(key, vel) {
			fmt.Fprintln(out, "note not sent: not connected or another player holds the crown")
		}
	case "stop":
		if !cl.StopNote(arg) {
			fmt.Fprintln(out, "note not sent")
		}
	case "rooms":
		cl.SubscribeRooms()
	case "who":
		for _, p := range cl.Participants() {
			marker := " "
			if p.ID == cl.MemberID() {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s %s (%s)\n", marker, p.ID, p.Name, p.Color)
		}
	default:
		fmt.Fprintf(out, "unknown command /%s\n", cmd)
	}
	return false
}

// printer renders client notifications as terminal lines.
type printer struct {
	client.NopListener
	out io.Writer
}

func (p *printer) Status(s client.State) {
	fmt.Fprintf(p.out, "* %s\n", s)
}

func (p *printer) Channel(ch proto.Channel) {
	owner := "nobody"
	if ch.Crown != nil {
		owner = ch.Crown.ParticipantID
	}
	fmt.Fprintf(p.out, "* in room %s (%d here, crown: %s)\n", ch.ID, ch.Count, owner)
}

func (p *printer) ParticipantAdded(part proto.Participant) {
	fmt.Fprintf(p.out, "* %s joined\n", displayName(part))
}

func (p *printer) ParticipantRemoved(part proto.Participant) {
	fmt.Fprintf(p.out, "* %s left\n", displayName(part))
}

func (p *printer) Chat(msg proto.Chat) {
	fmt.Fprintf(p.out, "[%s] %s\n", displayName(msg.P), msg.A)
}

func (p *printer) Notes(from string, notes []client.TimedNote) {
	keys := make([]string, 0, len(notes))
	for _, n := range notes {
		if n.S == 1 {
			continue
		}
		keys = append(keys, n.N.String())
	}
	if len(keys) > 0 {
		fmt.Fprintf(p.out, "♪ %s: %s\n", from, strings.Join(keys, " "))
	}
}

func (p *printer) Rooms(rooms []proto.Channel) {
	for _, r := range rooms {
		fmt.Fprintf(p.out, "  %s (%d)\n", r.ID, r.Count)
	}
}

func displayName(p proto.Participant) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
