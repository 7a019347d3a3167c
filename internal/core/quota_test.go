package core

import (
	"testing"
	"time"
)

func TestRateQuotaTiers(t *testing.T) {
	q := NewRateQuota(QuotaTiers{
		Lobby: QuotaParams{Allowance: 200, Max: 600},
		Room:  QuotaParams{Allowance: 400, Max: 1200},
		Owner: QuotaParams{Allowance: 600, Max: 1800, MaxHistLen: 5},
	})

	cases := []struct {
		name  string
		room  RoomInfo
		owner bool
		want  QuotaParams
	}{
		{"lobby", RoomInfo{Settings: Settings{Lobby: true}}, false, QuotaParams{200, 600, DefaultMaxHistLen}},
		{"lobby ignores owner", RoomInfo{Settings: Settings{Lobby: true}}, true, QuotaParams{200, 600, DefaultMaxHistLen}},
		{"room", RoomInfo{}, false, QuotaParams{400, 1200, DefaultMaxHistLen}},
		{"owner", RoomInfo{}, true, QuotaParams{600, 1800, 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := q.Params(tc.room, tc.owner); got != tc.want {
				t.Fatalf("Params() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRateQuotaRefills(t *testing.T) {
	q := NewRateQuota(QuotaTiers{})
	now := time.Unix(1000, 0)
	q.now = func() time.Time { return now }

	q.Assign("a", QuotaParams{Allowance: 4, Max: 4})
	if !q.Spend("a", 4) {
		t.Fatalf("full bucket should allow max")
	}
	if q.Spend("a", 1) {
		t.Fatalf("empty bucket should refuse")
	}

	now = now.Add(QuotaTick)
	if !q.Spend("a", 4) {
		t.Fatalf("bucket should refill one allowance per tick")
	}

	q.Forget("a")
	if !q.Spend("a", 100) {
		t.Fatalf("unknown connections are not metered")
	}
}

func TestRateQuotaReassignKeepsTokens(t *testing.T) {
	q := NewRateQuota(QuotaTiers{})
	now := time.Unix(1000, 0)
	q.now = func() time.Time { return now }

	q.Assign("a", QuotaParams{Allowance: 4, Max: 4})
	if !q.Spend("a", 4) {
		t.Fatalf("full bucket should allow max")
	}

	q.Assign("a", QuotaParams{Allowance: 4, Max: 4})
	if q.Spend("a", 1) {
		t.Fatalf("reassigning the same budget must not refill it")
	}

	q.Assign("a", QuotaParams{Allowance: 8, Max: 8})
	if q.Spend("a", 1) {
		t.Fatalf("a larger tier must not refill the bucket either")
	}

	now = now.Add(QuotaTick)
	if !q.Spend("a", 8) {
		t.Fatalf("bucket should refill at the new rate")
	}
}
