package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualScheduler_TickOrder(t *testing.T) {
	s := NewManualScheduler()
	var order []string
	s.AfterFunc(2*time.Second, func() { order = append(order, "b") })
	s.AfterFunc(time.Second, func() { order = append(order, "a") })
	s.AfterFunc(2*time.Second, func() { order = append(order, "c") })

	for s.Tick() {
	}

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 2*time.Second, s.Now())
}

func TestManualScheduler_Stop(t *testing.T) {
	s := NewManualScheduler()
	fired := false
	timer := s.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second Stop reports nothing pending")
	assert.False(t, s.Tick())
	assert.False(t, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestManualScheduler_AdvanceFiresRearmed(t *testing.T) {
	s := NewManualScheduler()
	count := 0
	var arm func()
	arm = func() {
		s.AfterFunc(10*time.Second, func() {
			count++
			arm()
		})
	}
	arm()

	fired := s.Advance(35 * time.Second)

	assert.Equal(t, 3, fired)
	assert.Equal(t, 3, count)
	assert.Equal(t, 35*time.Second, s.Now())
	assert.Equal(t, 1, s.Pending())
}
