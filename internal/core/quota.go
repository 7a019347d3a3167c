package core

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// QuotaTick is the interval over which one Allowance of notes is refilled.
const QuotaTick = 2 * time.Second

// DefaultMaxHistLen is the number of ticks a client keeps in its local quota history.
const DefaultMaxHistLen = 3

// QuotaParams is the note budget advertised to a client.
type QuotaParams struct {
	Allowance  int
	Max        int
	MaxHistLen int
}

// NoteQuota meters note-on events per connection.
type NoteQuota interface {
	// Params returns the budget for a participant entering the room.
	Params(room RoomInfo, owner bool) QuotaParams
	// Assign installs the budget for a connection. A budget already held by the
	// connection keeps its remaining tokens.
	Assign(connID string, params QuotaParams)
	// Spend consumes n notes and reports whether the budget allowed it.
	Spend(connID string, n int) bool
	// Forget releases the connection's budget.
	Forget(connID string)
}

// QuotaTiers holds the budgets for lobby rooms, ordinary rooms and crown holders.
type QuotaTiers struct {
	Lobby QuotaParams
	Room  QuotaParams
	Owner QuotaParams
}

// RateQuota implements NoteQuota with a token bucket per connection.
type RateQuota struct {
	mu       sync.Mutex
	tiers    QuotaTiers
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewRateQuota creates a quota with the given tiers.
func NewRateQuota(tiers QuotaTiers) *RateQuota {
	return &RateQuota{
		tiers:    tiers,
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

func (q *RateQuota) Params(room RoomInfo, owner bool) QuotaParams {
	var p QuotaParams
	switch {
	case room.Settings.Lobby:
		p = q.tiers.Lobby
	case owner:
		p = q.tiers.Owner
	default:
		p = q.tiers.Room
	}
	if p.MaxHistLen == 0 {
		p.MaxHistLen = DefaultMaxHistLen
	}
	return p
}

// Assign keeps the tokens left in an existing bucket, so changing rooms never
// refills the budget.
func (q *RateQuota) Assign(connID string, params QuotaParams) {
	limit := rate.Limit(float64(params.Allowance) / QuotaTick.Seconds())
	now := q.now()

	q.mu.Lock()
	defer q.mu.Unlock()
	if lim, ok := q.limiters[connID]; ok {
		lim.SetLimitAt(now, limit)
		lim.SetBurstAt(now, params.Max)
		return
	}
	q.limiters[connID] = rate.NewLimiter(limit, params.Max)
}

func (q *RateQuota) Spend(connID string, n int) bool {
	if n <= 0 {
		return true
	}
	q.mu.Lock()
	lim, ok := q.limiters[connID]
	q.mu.Unlock()
	if !ok {
		return true
	}
	return lim.AllowN(q.now(), n)
}

func (q *RateQuota) Forget(connID string) {
	q.mu.Lock()
	delete(q.limiters, connID)
	q.mu.Unlock()
}

// NopQuota never limits and advertises no budget.
type NopQuota struct{}

func (NopQuota) Params(RoomInfo, bool) QuotaParams { return QuotaParams{} }
func (NopQuota) Assign(string, QuotaParams)        {}
func (NopQuota) Spend(string, int) bool            { return true }
func (NopQuota) Forget(string)                     {}
