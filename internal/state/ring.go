package state

import "time"

// RecentCapacity bounds the recent inter-kill interval history.
const RecentCapacity = 10

// Ring is a fixed-capacity FIFO of durations; pushing into a full ring
// evicts the oldest entry. The zero value holds RecentCapacity entries.
type Ring struct {
	buf   [RecentCapacity]time.Duration
	start int
	n     int
}

func (r *Ring) Push(d time.Duration) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = d
		r.n++
		return
	}
	r.buf[r.start] = d
	r.start = (r.start + 1) % len(r.buf)
}

func (r *Ring) Len() int { return r.n }

func (r *Ring) Full() bool { return r.n == len(r.buf) }

// Values returns the entries oldest first.
func (r *Ring) Values() []time.Duration {
	out := make([]time.Duration, 0, r.n)
	for i := 0; i < r.n; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

func (r *Ring) Sum() time.Duration {
	var total time.Duration
	for i := 0; i < r.n; i++ {
		total += r.buf[(r.start+i)%len(r.buf)]
	}
	return total
}
