// Package reputation derives aggregate trust signals from a snapshot of
// live vouch records: counts, time-decayed scores, badge tiers, and ranked
// leaderboards. Every function is pure and operates on exactly one snapshot
// so counts and scores for the same view can never skew apart.
package reputation

import (
	"math"
	"sort"
	"time"

	"github.com/vouchlab/vouchd/internal/ledger"
)

const dayMillis = 24 * 60 * 60 * 1000

// Badge tiers, evaluated top-down against the received count.
const (
	BadgeNone      = ""
	BadgeBronze    = "Bronze"
	BadgeGold      = "Gold"
	BadgeCenturion = "Centurion"
)

// Badge thresholds.
const (
	bronzeThreshold    = 10
	goldThreshold      = 50
	centurionThreshold = 100
)

// DefaultLeaderboardSize is how many entries a leaderboard is truncated to.
const DefaultLeaderboardSize = 10

// Given counts the snapshot records given by the user.
func Given(snapshot []ledger.Vouch, userID string) int {
	n := 0
	for _, v := range snapshot {
		if v.VoucherID == userID {
			n++
		}
	}
	return n
}

// Received counts the snapshot records received by the user.
func Received(snapshot []ledger.Vouch, userID string) int {
	n := 0
	for _, v := range snapshot {
		if v.TargetID == userID {
			n++
		}
	}
	return n
}

// Weight returns the decayed contribution of a record created at createdAt,
// evaluated at now: 0.5^(ageInDays/halfLifeDays), age clamped to zero. A
// non-positive half-life disables decay, and a record with a zero timestamp
// contributes full weight rather than aborting the aggregation.
func Weight(createdAt, now time.Time, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		return 1
	}
	if createdAt.IsZero() {
		return 1
	}
	ageDays := float64(now.Sub(createdAt).Milliseconds()) / dayMillis
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Pow(0.5, ageDays/halfLifeDays)
}

// Score sums the decayed weights of the snapshot records received by the
// user.
func Score(snapshot []ledger.Vouch, userID string, halfLifeDays float64, now time.Time) float64 {
	sum := 0.0
	for _, v := range snapshot {
		if v.TargetID == userID {
			sum += Weight(v.CreatedAt, now, halfLifeDays)
		}
	}
	return sum
}

// BadgeFor maps a received count to its badge tier.
func BadgeFor(received int) string {
	switch {
	case received >= centurionThreshold:
		return BadgeCenturion
	case received >= goldThreshold:
		return BadgeGold
	case received >= bronzeThreshold:
		return BadgeBronze
	default:
		return BadgeNone
	}
}

// Side selects which party of a record a leaderboard groups by.
type Side int

const (
	// ByReceived ranks targets by vouches received.
	ByReceived Side = iota
	// ByGiven ranks vouchers by vouches given.
	ByGiven
)

// Entry is one leaderboard row.
type Entry struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Tag         string `json:"tag"`
	Count       int    `json:"count"`
}

// Leaderboard groups the snapshot by the chosen side, counts per identity,
// and returns the top entries by count descending. Ties keep the order in
// which each identity was first seen during the scan, making the ranking
// reproducible for a given snapshot.
func Leaderboard(snapshot []ledger.Vouch, side Side, limit int) []Entry {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}

	index := make(map[string]int)
	var entries []Entry
	for _, v := range snapshot {
		id, name, tag := v.TargetID, v.TargetDisplayName, v.TargetTag
		if side == ByGiven {
			id, name, tag = v.VoucherID, v.VoucherDisplayName, v.VoucherTag
		}
		i, seen := index[id]
		if !seen {
			i = len(entries)
			index[id] = i
			entries = append(entries, Entry{UserID: id, DisplayName: name, Tag: tag})
		}
		entries[i].Count++
	}

	// Stable sort: equal counts preserve first-seen order.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Count > entries[j].Count })

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
