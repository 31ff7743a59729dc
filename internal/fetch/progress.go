package fetch

import "sync"

// ProgressFunc receives cumulative byte counts for one engine operation.
// total is zero while the size is unknown. Calls for one operation never overlap.
type ProgressFunc func(done, total int64)

// tracker aggregates progress across the transfers of one operation.
type tracker struct {
	mu    sync.Mutex
	fn    ProgressFunc
	done  int64
	total int64
}

func newTracker(fn ProgressFunc, total int64) *tracker {
	return &tracker{fn: fn, total: total}
}

func (t *tracker) grow(n int64) {
	t.mu.Lock()
	t.total += n
	t.mu.Unlock()
}

func (t *tracker) advance(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done += n
	if t.fn != nil {
		t.fn(t.done, t.total)
	}
}

// meter counts the bytes of a single transfer. Bytes re-received on a retry
// are not reported twice, so the aggregate never moves backwards.
type meter struct {
	t        *tracker
	seen     int64
	reported int64
	sized    bool
}

func (m *meter) reset() {
	m.seen = 0
}

// size registers the transfer's length with the tracker once.
func (m *meter) size(n int64) {
	if m.sized || n <= 0 {
		return
	}
	m.sized = true
	m.t.grow(n)
}

func (m *meter) Write(p []byte) (int, error) {
	m.seen += int64(len(p))
	if m.seen > m.reported {
		m.t.advance(m.seen - m.reported)
		m.reported = m.seen
	}
	return len(p), nil
}
