package throttle

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	sent []int
	fail bool
}

func (r *recorder) send(v int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("link down")
	}
	r.sent = append(r.sent, v)
	return nil
}

func (r *recorder) values() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.sent...)
}

func newTest(gate func() bool) (*Coalescer[int], *recorder, *clock.Mock) {
	mock := clock.NewMock()
	rec := &recorder{}
	c := New[int](rec.send, gate, WithClock(mock), WithInterval(50*time.Millisecond))
	return c, rec, mock
}

func TestSubmit_FirstSendImmediate(t *testing.T) {
	c, rec, _ := newTest(nil)
	c.Submit(1)
	assert.Equal(t, []int{1}, rec.values())
	_, pending := c.Pending()
	assert.False(t, pending)
}

func TestSubmit_TrailingSendCarriesLatest(t *testing.T) {
	c, rec, mock := newTest(nil)

	c.Submit(1)
	mock.Add(10 * time.Millisecond)
	c.Submit(2)
	assert.Equal(t, []int{1}, rec.values())
	v, pending := c.Pending()
	require.True(t, pending)
	assert.Equal(t, 2, v)

	// not yet due
	mock.Add(39 * time.Millisecond)
	assert.Equal(t, []int{1}, rec.values())

	mock.Add(1 * time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.values()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 2}, rec.values())
	_, pending = c.Pending()
	assert.False(t, pending)
}

func TestSubmit_Coalesces(t *testing.T) {
	c, rec, mock := newTest(nil)

	c.Submit(0)
	for i := 1; i <= 4; i++ {
		mock.Add(5 * time.Millisecond)
		c.Submit(i)
	}
	mock.Add(50 * time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.values()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{0, 4}, rec.values())
}

func TestSubmit_RateBound(t *testing.T) {
	c, rec, mock := newTest(nil)
	const window = time.Second
	step := 10 * time.Millisecond

	last := 0
	for elapsed := time.Duration(0); elapsed < window; elapsed += step {
		last++
		c.Submit(last)
		mock.Add(step)
	}

	mock.Add(c.Interval())
	require.Eventually(t, func() bool {
		v := rec.values()
		return len(v) > 0 && v[len(v)-1] == last
	}, time.Second, time.Millisecond)

	bound := int(window/c.Interval()) + 1 + 1 // ceil(W/interval)+1, window extended by one interval for the tail
	assert.LessOrEqual(t, len(rec.values()), bound)
}

func TestSubmit_GateClosed(t *testing.T) {
	var open atomic.Bool
	c, rec, mock := newTest(open.Load)

	c.Submit(1)
	assert.Empty(t, rec.values())

	open.Store(true)
	c.Submit(2)
	mock.Add(10 * time.Millisecond)
	c.Submit(3)
	open.Store(false)
	mock.Add(50 * time.Millisecond)

	// the trailing send sees the closed gate and drops the value
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, []int{2}, rec.values())
	_, pending := c.Pending()
	assert.False(t, pending)
}

func TestCancel_StopsTrailingSend(t *testing.T) {
	c, rec, mock := newTest(nil)

	c.Submit(1)
	mock.Add(10 * time.Millisecond)
	c.Submit(2)
	c.Cancel()
	mock.Add(100 * time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, []int{1}, rec.values())
}

func TestSubmit_FailedSendDoesNotStartInterval(t *testing.T) {
	c, rec, _ := newTest(nil)
	rec.fail = true
	c.Submit(1)
	rec.mu.Lock()
	rec.fail = false
	rec.mu.Unlock()

	// nothing went out, so the next value is not throttled
	c.Submit(2)
	assert.Equal(t, []int{2}, rec.values())
}
