package memstore

import "vaultrag/internal/domain"

// ring is a fixed-capacity FIFO of turns; pushing onto a full ring drops
// the oldest turn.
type ring struct {
	buf   []domain.Turn
	start int
	n     int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]domain.Turn, capacity)}
}

func (r *ring) push(t domain.Turn) {
	if r.n == len(r.buf) {
		r.buf[r.start] = t
		r.start = (r.start + 1) % len(r.buf)
		return
	}
	r.buf[(r.start+r.n)%len(r.buf)] = t
	r.n++
}

// trim drops the oldest turns until at most max remain.
func (r *ring) trim(max int) {
	if max < 0 {
		max = 0
	}
	for r.n > max {
		r.buf[r.start] = domain.Turn{}
		r.start = (r.start + 1) % len(r.buf)
		r.n--
	}
}

// items returns the turns oldest first.
func (r *ring) items() []domain.Turn {
	out := make([]domain.Turn, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
