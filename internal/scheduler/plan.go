package scheduler

import (
	"math/rand"
	"sort"
	"time"
)

// planAttempts draws a random attempt count in [min, max] and that many
// distinct second-offsets from [0, 3600) without replacement, then keeps
// only the offsets at or after now (a plan for a partial hour must not
// schedule into the past).
//
// The returned times are ascending and all inside the current hour.
func planAttempts(now time.Time, min, max int, rng *rand.Rand) []time.Time {
	if min < 1 {
		min = 1
	}
	if max < min {
		max = min
	}
	n := min + rng.Intn(max-min+1)
	if n > 3600 {
		n = 3600
	}

	offsets := rng.Perm(3600)[:n]
	sort.Ints(offsets)

	hourStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	out := make([]time.Time, 0, n)
	for _, sec := range offsets {
		at := hourStart.Add(time.Duration(sec) * time.Second)
		if at.Before(now) {
			continue
		}
		out = append(out, at)
	}
	return out
}
