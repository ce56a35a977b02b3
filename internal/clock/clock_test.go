package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClock_AfterFunc(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMock(start)

	var fired []string
	c.AfterFunc(10*time.Second, func() { fired = append(fired, "late") })
	c.AfterFunc(5*time.Second, func() { fired = append(fired, "early") })
	assert.Equal(t, 2, c.Pending())

	c.Advance(4 * time.Second)
	assert.Empty(t, fired)

	c.Advance(6 * time.Second)
	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Equal(t, start.Add(10*time.Second), c.Now())
	assert.Equal(t, 0, c.Pending())
}

func TestMockClock_Stop(t *testing.T) {
	c := NewMock(time.Now())
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	c.Advance(time.Minute)

	assert.False(t, fired)
}

func TestMockClock_Set(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMock(start)
	fired := false
	c.AfterFunc(time.Hour, func() { fired = true })

	c.Set(start.Add(-time.Hour))
	assert.False(t, fired)

	c.Set(start.Add(time.Hour))
	assert.True(t, fired)
}
