package camelot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompatibleKeys(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected []string
	}{
		{
			name:     "mid wheel minor",
			key:      "8A",
			expected: []string{"8A", "9A", "7A", "8B"},
		},
		{
			name:     "wrap up from 12",
			key:      "12B",
			expected: []string{"12B", "1B", "11B", "12A"},
		},
		{
			name:     "wrap down from 1",
			key:      "1A",
			expected: []string{"1A", "2A", "12A", "1B"},
		},
		{
			name:     "lowercase input normalized",
			key:      "5b",
			expected: []string{"5B", "6B", "4B", "5A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, err := CompatibleKeys(tt.key)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.expected, keys)
		})
	}
}

func TestCompatibleKeysAlwaysFourDistinct(t *testing.T) {
	for _, key := range AllKeys {
		keys, err := CompatibleKeys(key)
		require.NoError(t, err, "key %s", key)
		assert.Len(t, keys, 4, "key %s", key)
		assert.Contains(t, keys, key)

		seen := make(map[string]bool)
		for _, k := range keys {
			assert.False(t, seen[k], "duplicate %s in result for %s", k, key)
			seen[k] = true
			assert.True(t, IsValidKey(k))
		}
	}
}

func TestCompatibleKeysMalformed(t *testing.T) {
	for _, key := range []string{"", "13A", "0B", "8C", "A8", "8", "AB", "100A"} {
		_, err := CompatibleKeys(key)
		assert.Error(t, err, "key %q", key)
	}
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible("8A", "9A"))
	assert.True(t, Compatible("8A", "8B"))
	assert.True(t, Compatible("8A", "8a"))
	assert.False(t, Compatible("8A", "10A"))
	assert.False(t, Compatible("8A", "9B"))
	assert.False(t, Compatible("bogus", "8A"))
}

func TestPitchClassRoundTrip(t *testing.T) {
	for pc := 0; pc <= 11; pc++ {
		for _, mode := range []int{0, 1} {
			key, err := PitchClassToKey(pc, mode)
			require.NoError(t, err)
			require.True(t, IsValidKey(key))

			gotPC, gotMode, err := KeyToPitchClass(key)
			require.NoError(t, err)
			assert.Equal(t, pc, gotPC)
			assert.Equal(t, mode, gotMode)
		}
	}

	_, err := PitchClassToKey(12, 1)
	assert.Error(t, err)
}
