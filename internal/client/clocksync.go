package client

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vovakirdan/pianoroom/internal/proto"
)

// SyncState describes the clock synchronizer.
type SyncState int

const (
	Unsynced SyncState = iota
	Converging
	Synced
)

func (s SyncState) String() string {
	switch s {
	case Converging:
		return "converging"
	case Synced:
		return "synced"
	default:
		return "unsynced"
	}
}

// ClockSync estimates the offset between the local clock and the server clock.
// Each time reply moves the offset towards the new target in equal steps spread over
// the convergence window; the last step lands on the target exactly.
type ClockSync struct {
	sched        *Scheduler
	clock        clockwork.Clock
	window       time.Duration
	steps        int
	pingInterval time.Duration

	mu       sync.Mutex
	state    SyncState
	offset   float64
	target   float64
	inc      float64
	step     int
	gen      int
	rtt      time.Duration
	converge *Task
	ping     *Task
}

// NewClockSync creates a synchronizer. Zero values fall back to 50 steps over one second.
func NewClockSync(sched *Scheduler, window time.Duration, steps int, pingInterval time.Duration) *ClockSync {
	if window <= 0 {
		window = time.Second
	}
	if steps <= 0 {
		steps = 50
	}
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	return &ClockSync{
		sched:        sched,
		clock:        sched.Clock(),
		window:       window,
		steps:        steps,
		pingInterval: pingInterval,
	}
}

// Start sends a time echo now and then every ping interval.
func (c *ClockSync) Start(send func(proto.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ping != nil {
		c.ping.Cancel()
	}
	echo := func() {
		send(proto.Time{M: proto.TypeTime, E: c.echoStamp()})
	}
	echo()
	c.ping = c.sched.Every(c.pingInterval, echo)
}

// Stop cancels the ping and any convergence in progress. The offset is kept.
func (c *ClockSync) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ping.Cancel()
	c.ping = nil
	c.converge.Cancel()
	c.converge = nil
	c.gen++
	c.state = Unsynced
}

// Receive handles a server time stamp. echo is the local send time we attached, if any.
func (c *ClockSync) Receive(serverMs int64, echo json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	localMs := float64(now.UnixMilli())
	if sent, ok := parseEcho(echo); ok && localMs >= sent {
		c.rtt = time.Duration((localMs - sent) * float64(time.Millisecond))
	}

	c.converge.Cancel()
	c.target = float64(serverMs) - localMs
	c.inc = (c.target - c.offset) / float64(c.steps)
	c.step = 0
	c.gen++
	c.state = Converging
	gen := c.gen
	c.converge = c.sched.Every(c.window/time.Duration(c.steps), func() { c.advance(gen) })
}

func (c *ClockSync) advance(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Converging || c.gen != gen {
		return
	}
	c.step++
	if c.step >= c.steps {
		c.offset = c.target
		c.state = Synced
		c.converge.Cancel()
		c.converge = nil
		return
	}
	c.offset += c.inc
}

// Offset returns the current correction in milliseconds.
func (c *ClockSync) Offset() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Target returns the offset the synchronizer is converging to.
func (c *ClockSync) Target() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// State returns the synchronizer state.
func (c *ClockSync) State() SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RTT returns the last measured round trip.
func (c *ClockSync) RTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtt
}

// ServerNow estimates the server clock in Unix milliseconds.
func (c *ClockSync) ServerNow() float64 {
	return float64(c.clock.Now().UnixMilli()) + c.Offset()
}

func (c *ClockSync) echoStamp() json.RawMessage {
	return json.RawMessage(strconv.FormatInt(c.clock.Now().UnixMilli(), 10))
}

func parseEcho(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
