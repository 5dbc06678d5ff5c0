package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMark_NewKeyIsNotDuplicate(t *testing.T) {
	c := New(time.Minute, 10)
	defer c.Close()

	assert.False(t, c.CheckAndMark("evt1"))
	assert.True(t, c.CheckAndMark("evt1"))
}

func TestCheckAndMark_ExpiredKeyIsNew(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	defer c.Close()

	assert.False(t, c.CheckAndMark("evt1"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, c.CheckAndMark("evt1"))
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	c := New(time.Minute, 2)
	defer c.Close()

	c.CheckAndMark("a")
	c.CheckAndMark("b")
	c.CheckAndMark("c") // evicts a

	assert.True(t, c.CheckAndMark("b"))
	assert.True(t, c.CheckAndMark("c"))
	assert.False(t, c.CheckAndMark("a"))
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}
