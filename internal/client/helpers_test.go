package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/vovakirdan/pianoroom/internal/proto"
)

var testStart = time.UnixMilli(1_700_000_000_000)

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func blockUntil(t *testing.T, fc *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fc.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d timers: %v", n, err)
	}
}

type fakeConn struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-f.in:
		return data, nil
	case <-f.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeConn) Write(_ context.Context, data []byte) error {
	select {
	case <-f.closed:
		return io.ErrClosedPipe
	default:
	}
	f.out <- data
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) push(t *testing.T, envs ...any) {
	t.Helper()
	data, err := proto.EncodeFrame(envs...)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.in <- data
}

// expect reads written frames until an envelope of the given kind shows up.
func (f *fakeConn) expect(t *testing.T, kind string, v any) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case data := <-f.out:
			if f.decodeKind(t, data, kind, v) {
				return
			}
		case <-timeout:
			t.Fatalf("no %q envelope written", kind)
		}
	}
}

func (f *fakeConn) decodeKind(t *testing.T, data []byte, kind string, v any) bool {
	t.Helper()
	envs, err := proto.DecodeFrame(data)
	if err != nil {
		t.Fatalf("client wrote malformed frame %s: %v", data, err)
	}
	for _, env := range envs {
		if env.Kind == kind {
			if v != nil {
				if err := env.Decode(v); err != nil {
					t.Fatalf("decode %s: %v", kind, err)
				}
			}
			return true
		}
	}
	return false
}

// advanceUntil steps the fake clock until the client writes an envelope of the given kind.
func (f *fakeConn) advanceUntil(t *testing.T, fc *clockwork.FakeClock, step time.Duration, kind string, v any) {
	t.Helper()
	for range 100 {
		fc.Advance(step)
		select {
		case data := <-f.out:
			if f.decodeKind(t, data, kind, v) {
				return
			}
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatalf("no %q envelope after advancing the clock", kind)
}

var errDialRefused = errors.New("connection refused")

type fakeDialer struct {
	clock clockwork.Clock
	conns chan *fakeConn

	mu    sync.Mutex
	fail  bool
	dials []time.Time
}

func newFakeDialer(clock clockwork.Clock) *fakeDialer {
	return &fakeDialer{clock: clock, conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(context.Context, string) (Conn, error) {
	d.mu.Lock()
	d.dials = append(d.dials, d.clock.Now())
	fail := d.fail
	d.mu.Unlock()

	if fail {
		return nil, errDialRefused
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) dialTimes() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.dials...)
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("no connection dialed")
		return nil
	}
}

type recordingListener struct {
	NopListener

	mu       sync.Mutex
	statuses []State
	added    []string
	removed  []string
	counts   []int
	notes    chan []TimedNote
	chats    []proto.Chat
}

func newRecordingListener() *recordingListener {
	return &recordingListener{notes: make(chan []TimedNote, 16)}
}

func (l *recordingListener) Status(s State) {
	l.mu.Lock()
	l.statuses = append(l.statuses, s)
	l.mu.Unlock()
}

func (l *recordingListener) ParticipantAdded(p proto.Participant) {
	l.mu.Lock()
	l.added = append(l.added, p.ID)
	l.mu.Unlock()
}

func (l *recordingListener) ParticipantRemoved(p proto.Participant) {
	l.mu.Lock()
	l.removed = append(l.removed, p.ID)
	l.mu.Unlock()
}

func (l *recordingListener) Count(n int) {
	l.mu.Lock()
	l.counts = append(l.counts, n)
	l.mu.Unlock()
}

func (l *recordingListener) Notes(_ string, notes []TimedNote) {
	l.notes <- notes
}

func (l *recordingListener) Chat(msg proto.Chat) {
	l.mu.Lock()
	l.chats = append(l.chats, msg)
	l.mu.Unlock()
}

func (l *recordingListener) snapshot() (added, removed []string, counts []int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.added...), append([]string(nil), l.removed...), append([]int(nil), l.counts...)
}

func ptr[T any](v T) *T { return &v }
