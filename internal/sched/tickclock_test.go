package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickClock(t *testing.T) {
	c := NewTickClock()
	assert.Equal(t, 0, c.Count())
	assert.False(t, c.Done(2))

	assert.Equal(t, 1, c.Advance())
	assert.Equal(t, 2, c.Advance())
	assert.True(t, c.Done(2))

	c.Reset()
	assert.Equal(t, 0, c.Count())
	assert.True(t, c.Done(0))
}
