package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignalCoalesces(t *testing.T) {
	s := NewSignal()
	s.Notify()
	s.Notify()
	s.Notify()
	assert.Len(t, s.C(), 1)
	<-s.C()
	select {
	case <-s.C():
		t.Fatal("signal fired twice")
	default:
	}
}

func TestEarliestDeadline(t *testing.T) {
	base := time.Unix(1000, 0)
	assert.True(t, EarliestDeadline().IsZero())
	assert.True(t, EarliestDeadline(time.Time{}, time.Time{}).IsZero())
	assert.Equal(t, base, EarliestDeadline(time.Time{}, base.Add(time.Second), base))
}

func TestDeadlineTimer(t *testing.T) {
	dt := NewDeadlineTimer()
	now := time.Now()
	assert.Nil(t, dt.Arm(time.Time{}, now))

	ch := dt.Arm(now.Add(5*time.Millisecond), now)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("deadline timer did not fire")
	}

	// already expired deadlines fire immediately
	ch = dt.Arm(now.Add(-time.Second), time.Now())
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expired deadline did not fire")
	}

	// re-arming discards a stale expiry
	dt.Arm(time.Now().Add(time.Hour), time.Now())
	select {
	case <-dt.t.C:
		t.Fatal("stale expiry leaked")
	case <-time.After(10 * time.Millisecond):
	}
	dt.Stop()
}
