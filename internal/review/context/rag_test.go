package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoEvictsOldestWhenFull(t *testing.T) {
	m := NewMemo(2)
	m.Put("a", "1")
	m.Put("b", "2")
	m.Put("c", "3")

	_, ok := m.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")

	v, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	v, ok = m.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestMemoOverwriteDoesNotEvict(t *testing.T) {
	m := NewMemo(2)
	m.Put("a", "1")
	m.Put("a", "2")
	m.Put("b", "3")

	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}
