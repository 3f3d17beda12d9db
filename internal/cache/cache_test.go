package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslations_StoreAndLookup(t *testing.T) {
	c := NewTranslations(nil)

	_, ok := c.Lookup("1. Hello\n2. World")
	assert.False(t, ok)

	require.NoError(t, c.Store("1. Hello\n2. World", []string{"Hola", "Mundo"}))
	require.NoError(t, c.Store("1. Hello\n2. World", []string{"Hola", "Mundo"}))
	assert.Equal(t, 1, c.Len())

	lines, ok := c.Lookup("1. Hello\n2. World")
	require.True(t, ok)
	assert.Equal(t, []string{"Hola", "Mundo"}, lines)

	// Returned slices are copies.
	lines[0] = "changed"
	again, _ := c.Lookup("1. Hello\n2. World")
	assert.Equal(t, "Hola", again[0])
}

func TestTranslations_RejectsLengthMismatch(t *testing.T) {
	c := NewTranslations(nil)

	err := c.Store("1. a\n2. b\n3. c", []string{"x", "y"})
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.Zero(t, c.Len())
}

func TestNewTranslations_DropsInvalidSnapshotEntries(t *testing.T) {
	c := NewTranslations(map[string][]string{
		"1. ok":        {"bien"},
		"1. a\n2. bad": {"solo una"},
	})
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, map[string][]string{"1. ok": {"bien"}}, c.Snapshot())
}
