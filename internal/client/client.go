package client

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/pianoroom/internal/config"
	"github.com/vovakirdan/pianoroom/internal/proto"
)

// State is the connection lifecycle state.
type State int

const (
	Idle State = iota
	Connecting
	Connected
	Disconnected
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrStopped is returned when starting a client that was stopped.
var ErrStopped = errors.New("client stopped")

// Settings is a room's settings with every field resolved.
type Settings struct {
	Chat      bool
	Visible   bool
	CrownSolo bool
	Lobby     bool
	Color     string
}

// OfflineSettings apply while there is no room to read settings from.
var OfflineSettings = Settings{Lobby: true, Visible: false, Chat: false, CrownSolo: false, Color: "#ecfaed"}

// OfflineParticipant stands in for our own record while not in a room.
var OfflineParticipant = proto.Participant{Color: "#777"}

// Options configures a Client.
type Options struct {
	URL      string
	Dialer   Dialer
	Clock    clockwork.Clock
	Logger   *zerolog.Logger
	Listener Listener

	PingInterval       time.Duration
	FlushInterval      time.Duration
	ConvergenceWindow  time.Duration
	ConvergenceSteps   int
	ReconnectThreshold int
	BackoffBase        time.Duration
	BackoffCeiling     time.Duration
	MinConnectSpacing  time.Duration
	DialTimeout        time.Duration
	SendBuffer         int
}

// OptionsFromConfig maps the client section of the configuration.
func OptionsFromConfig(cfg config.ClientConfig) Options {
	return Options{
		URL:                cfg.URL,
		PingInterval:       cfg.PingInterval,
		FlushInterval:      cfg.FlushInterval,
		ConvergenceWindow:  cfg.ConvergenceWindow,
		ConvergenceSteps:   cfg.ConvergenceSteps,
		ReconnectThreshold: cfg.ReconnectThreshold,
		BackoffBase:        cfg.BackoffBase,
		BackoffCeiling:     cfg.BackoffCeiling,
		MinConnectSpacing:  cfg.MinConnectSpacing,
	}
}

func (o *Options) applyDefaults() {
	if o.Dialer == nil {
		o.Dialer = WSDialer{}
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.Listener == nil {
		o.Listener = NopListener{}
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 200 * time.Millisecond
	}
	if o.ReconnectThreshold < 0 {
		o.ReconnectThreshold = 0
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffCeiling <= 0 {
		o.BackoffCeiling = 30 * time.Second
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
}

type session struct {
	conn   Conn
	cancel context.CancelFunc
	out    chan []byte
}

// Client keeps one participant connected to a room: it reconnects with backoff, keeps
// its clock in step with the server and batches outgoing notes.
type Client struct {
	opts     Options
	log      *zerolog.Logger
	sched    *Scheduler
	sync     *ClockSync
	notes    *NoteBuffer
	listener Listener

	// guarded by sched.exec
	state       State
	gen         int
	attempts    int
	lastConnect time.Time
	dialCancel  context.CancelFunc
	session     *session
	retry       *Task
	flush       *Task

	user       proto.User
	memberID   string
	channel    *proto.Channel
	ppl        map[string]*proto.Participant
	quota      proto.NoteQuota
	desiredID  string
	desiredSet *proto.Settings

	desiredName  *string
	desiredColor *string
}

// New creates an idle client.
func New(opts Options) *Client {
	opts.applyDefaults()
	sched := NewScheduler(opts.Clock)
	return &Client{
		opts:     opts,
		log:      opts.Logger,
		sched:    sched,
		sync:     NewClockSync(sched, opts.ConvergenceWindow, opts.ConvergenceSteps, opts.PingInterval),
		notes:    NewNoteBuffer(opts.Clock),
		listener: opts.Listener,
		ppl:      make(map[string]*proto.Participant),
	}
}

// Start begins connecting. It is a no-op while connecting or connected.
func (c *Client) Start() error {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()

	switch c.state {
	case Stopped:
		return ErrStopped
	case Idle, Disconnected:
		c.retry.Cancel()
		c.retry = nil
		c.connectLocked()
	}
	return nil
}

// Stop disconnects and cancels every pending task. No callback runs after Stop returns.
func (c *Client) Stop() {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()

	if c.state == Stopped {
		return
	}
	c.retry.Cancel()
	c.retry = nil
	c.teardownLocked()
	c.sched.CancelAll()
	c.setState(Stopped)
}

// SetChannel asks to join a room. The request is remembered and repeated after reconnects.
func (c *Client) SetChannel(id string, set *proto.Settings) {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()

	c.desiredID = id
	c.desiredSet = set
	if c.state == Connected {
		c.sendLocked(c.channelRequest())
	}
}

// StartNote buffers a note-on. It reports false when the note was discarded.
func (c *Client) StartNote(note string, velocity *float64) bool {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()

	if c.state != Connected || c.preventsPlayingLocked() {
		return false
	}
	c.notes.StartNote(note, velocity)
	return true
}

// StopNote buffers a note-off. It reports false when the note was discarded.
func (c *Client) StopNote(note string) bool {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()

	if c.state != Connected || c.preventsPlayingLocked() {
		return false
	}
	c.notes.StopNote(note)
	return true
}

// Move sends our cursor position.
func (c *Client) Move(x, y float64) {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	c.sendLocked(proto.Move{M: proto.TypeMove, X: &x, Y: &y})
}

// Say sends a chat line.
func (c *Client) Say(text string) {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	c.sendLocked(proto.ChatRequest{M: proto.TypeChat, Message: text})
}

// SetUser changes our display name and/or color. The values are reapplied after reconnects.
func (c *Client) SetUser(name, color *string) {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	if name != nil {
		c.desiredName = name
	}
	if color != nil {
		c.desiredColor = color
	}
	c.sendLocked(proto.UserSet{M: proto.TypeUserSet, Set: proto.UserSetData{Name: name, Color: color}})
}

// SubscribeRooms asks for room listing updates.
func (c *Client) SubscribeRooms() {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	c.sendLocked(proto.Simple{M: proto.TypeListSubscribe})
}

// UnsubscribeRooms cancels room listing updates.
func (c *Client) UnsubscribeRooms() {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	c.sendLocked(proto.Simple{M: proto.TypeListUnsubscribe})
}

// State returns the lifecycle state.
func (c *Client) State() State {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	return c.state
}

// IsConnected reports whether a connection is open.
func (c *Client) IsConnected() bool {
	return c.State() == Connected
}

// IsOwner reports whether we hold the crown of the current room.
func (c *Client) IsOwner() bool {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	return c.isOwnerLocked()
}

// PreventsPlaying reports whether the room's crown-solo setting stops us from playing.
func (c *Client) PreventsPlaying() bool {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	return c.preventsPlayingLocked()
}

// CanPlay reports whether notes would currently be sent.
func (c *Client) CanPlay() bool {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	return c.state == Connected && !c.preventsPlayingLocked()
}

// Settings returns the current room settings, or OfflineSettings.
func (c *Client) Settings() Settings {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	return c.settingsLocked()
}

// Channel returns the current room summary.
func (c *Client) Channel() (proto.Channel, bool) {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	if c.channel == nil {
		return proto.Channel{}, false
	}
	return *c.channel, true
}

// MemberID returns our id in the current room.
func (c *Client) MemberID() string {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	return c.memberID
}

// User returns our connection identity from the greeting.
func (c *Client) User() proto.User {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	return c.user
}

// Quota returns the last advertised note quota.
func (c *Client) Quota() proto.NoteQuota {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	return c.quota
}

// OwnParticipant returns our record in the room, or OfflineParticipant.
func (c *Client) OwnParticipant() proto.Participant {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	if p, ok := c.ppl[c.memberID]; ok && c.memberID != "" {
		return *p
	}
	return OfflineParticipant
}

// Participants returns the room's members ordered by id.
func (c *Client) Participants() []proto.Participant {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	out := make([]proto.Participant, 0, len(c.ppl))
	for _, p := range c.ppl {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CountParticipants returns the number of known room members.
func (c *Client) CountParticipants() int {
	c.sched.exec.Lock()
	defer c.sched.exec.Unlock()
	return len(c.ppl)
}

// ServerNow estimates the server clock in Unix milliseconds.
func (c *Client) ServerNow() float64 {
	return c.sync.ServerNow()
}

// Offset returns the clock correction in milliseconds.
func (c *Client) Offset() float64 {
	return c.sync.Offset()
}

// ClockState returns the state of the clock synchronizer.
func (c *Client) ClockState() SyncState {
	return c.sync.State()
}

func (c *Client) setState(s State) {
	if c.state == s {
		return
	}
	c.log.Debug().Str("from", c.state.String()).Str("to", s.String()).Msg("client state")
	c.state = s
	c.listener.Status(s)
}

func (c *Client) connectLocked() {
	c.gen++
	gen := c.gen
	c.setState(Connecting)

	ctx, cancel := context.WithCancel(context.Background())
	c.dialCancel = cancel
	go func() {
		dctx, dcancel := context.WithTimeout(ctx, c.opts.DialTimeout)
		conn, err := c.opts.Dialer.Dial(dctx, c.opts.URL)
		dcancel()

		c.sched.exec.Lock()
		defer c.sched.exec.Unlock()
		if gen != c.gen || c.state != Connecting {
			cancel()
			if conn != nil {
				go conn.Close()
			}
			return
		}
		if err != nil {
			c.log.Debug().Err(err).Str("url", c.opts.URL).Msg("dial failed")
			c.lostLocked()
			return
		}
		c.dialCancel = nil
		c.openLocked(ctx, cancel, conn)
	}()
}

func (c *Client) openLocked(ctx context.Context, cancel context.CancelFunc, conn Conn) {
	now := c.sched.clock.Now()
	if !c.lastConnect.IsZero() && now.Sub(c.lastConnect) < c.opts.MinConnectSpacing {
		c.log.Warn().Dur("since_last", now.Sub(c.lastConnect)).Msg("reconnected too quickly, backing off")
		cancel()
		go conn.Close()
		c.lastConnect = now
		c.attempts++
		c.gen++
		c.setState(Disconnected)
		delay := max(c.backoff(), c.opts.MinConnectSpacing)
		c.scheduleRetryLocked(delay)
		return
	}

	c.lastConnect = now
	c.attempts = 0
	s := &session{conn: conn, cancel: cancel, out: make(chan []byte, c.opts.SendBuffer)}
	c.session = s
	c.notes.Reset()
	c.setState(Connected)

	gen := c.gen
	go c.readLoop(ctx, gen, conn)
	go c.writeLoop(ctx, gen, s)

	c.sync.Start(func(t proto.Time) { c.sendLocked(t) })
	c.flush.Cancel()
	c.flush = c.sched.Every(c.opts.FlushInterval, c.flushLocked)
	if c.desiredID != "" {
		c.sendLocked(c.channelRequest())
		// userset needs a room, so it follows the join.
		if c.desiredName != nil || c.desiredColor != nil {
			c.sendLocked(proto.UserSet{M: proto.TypeUserSet, Set: proto.UserSetData{Name: c.desiredName, Color: c.desiredColor}})
		}
	}
}

func (c *Client) readLoop(ctx context.Context, gen int, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			c.sched.Do(func() {
				if gen == c.gen {
					c.log.Debug().Err(err).Msg("connection lost")
					c.lostLocked()
				}
			})
			return
		}
		c.sched.Do(func() {
			if gen == c.gen && c.state == Connected {
				c.dispatchLocked(data)
			}
		})
	}
}

func (c *Client) writeLoop(ctx context.Context, gen int, s *session) {
	for {
		select {
		case data := <-s.out:
			if err := s.conn.Write(ctx, data); err != nil {
				c.sched.Do(func() {
					if gen == c.gen {
						c.log.Debug().Err(err).Msg("write failed")
						c.lostLocked()
					}
				})
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// lostLocked handles an unexpected disconnect or a failed dial.
func (c *Client) lostLocked() {
	if c.state != Connected && c.state != Connecting {
		return
	}
	c.teardownLocked()
	c.attempts++
	c.setState(Disconnected)
	c.scheduleRetryLocked(c.backoff())
}

func (c *Client) backoff() time.Duration {
	return BackoffDelay(c.attempts, c.opts.ReconnectThreshold, c.opts.BackoffBase, c.opts.BackoffCeiling)
}

func (c *Client) scheduleRetryLocked(delay time.Duration) {
	c.retry.Cancel()
	c.retry = nil
	if delay <= 0 {
		c.connectLocked()
		return
	}
	c.log.Info().Dur("delay", delay).Int("attempts", c.attempts).Msg("reconnecting")
	c.retry = c.sched.After(delay, func() {
		c.retry = nil
		if c.state == Disconnected {
			c.connectLocked()
		}
	})
}

func (c *Client) teardownLocked() {
	c.gen++
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	if s := c.session; s != nil {
		s.cancel()
		go s.conn.Close()
		c.session = nil
	}
	c.sync.Stop()
	c.flush.Cancel()
	c.flush = nil
	c.notes.Reset()

	c.user = proto.User{}
	c.memberID = ""
	c.channel = nil
	c.quota = proto.NoteQuota{}
	c.setParticipantsLocked(nil)
}

func (c *Client) flushLocked() {
	if c.state != Connected {
		return
	}
	if msg, ok := c.notes.Flush(c.sync.Offset()); ok {
		c.sendLocked(msg)
	}
}

func (c *Client) sendLocked(envs ...any) bool {
	s := c.session
	if s == nil || c.state != Connected {
		return false
	}
	data, err := proto.EncodeFrame(envs...)
	if err != nil {
		c.log.Error().Err(err).Msg("encode frame")
		return false
	}
	select {
	case s.out <- data:
		return true
	default:
		c.log.Warn().Msg("send queue full, dropping frame")
		return false
	}
}

func (c *Client) channelRequest() proto.ChannelRequest {
	return proto.ChannelRequest{M: proto.TypeChannel, ID: c.desiredID, Set: c.desiredSet}
}

func (c *Client) settingsLocked() Settings {
	if c.state != Connected || c.channel == nil {
		return OfflineSettings
	}
	s := c.channel.Settings
	out := Settings{}
	if s.Chat != nil {
		out.Chat = *s.Chat
	}
	if s.Visible != nil {
		out.Visible = *s.Visible
	}
	if s.CrownSolo != nil {
		out.CrownSolo = *s.CrownSolo
	}
	if s.Lobby != nil {
		out.Lobby = *s.Lobby
	}
	if s.Color != nil {
		out.Color = *s.Color
	}
	return out
}

func (c *Client) isOwnerLocked() bool {
	return c.channel != nil && c.channel.Crown != nil && c.memberID != "" &&
		c.channel.Crown.ParticipantID == c.memberID
}

func (c *Client) preventsPlayingLocked() bool {
	return c.state == Connected && c.settingsLocked().CrownSolo && !c.isOwnerLocked()
}
