// Package camelot implements harmonic-mixing arithmetic on the Camelot
// wheel: 24 positions numbered 1-12 with an A (minor) or B (major)
// suffix.
package camelot

import (
	"fmt"
	"strconv"
	"strings"
)

// AllKeys is the canonical set of the 24 valid Camelot notations.
var AllKeys = buildAllKeys()

func buildAllKeys() []string {
	keys := make([]string, 0, 24)
	for n := 1; n <= 12; n++ {
		keys = append(keys, fmt.Sprintf("%dA", n), fmt.Sprintf("%dB", n))
	}
	return keys
}

// ParseKey splits a Camelot notation into its wheel number and letter.
// The letter is normalized to upper case.
func ParseKey(key string) (int, string, error) {
	k := strings.ToUpper(strings.TrimSpace(key))
	if len(k) < 2 || len(k) > 3 {
		return 0, "", fmt.Errorf("invalid camelot key: %q", key)
	}

	letter := k[len(k)-1:]
	if letter != "A" && letter != "B" {
		return 0, "", fmt.Errorf("invalid camelot key: %q", key)
	}

	num, err := strconv.Atoi(k[:len(k)-1])
	if err != nil || num < 1 || num > 12 {
		return 0, "", fmt.Errorf("invalid camelot key: %q", key)
	}

	return num, letter, nil
}

// IsValidKey reports whether key is one of the 24 Camelot notations.
func IsValidKey(key string) bool {
	_, _, err := ParseKey(key)
	return err == nil
}

// CompatibleKeys returns the harmonically compatible keys for key: the
// key itself, the two wheel-adjacent keys on the same letter (numbers
// wrap around 12), and the relative major/minor (same number, opposite
// letter). Always exactly 4 distinct keys for well-formed input.
func CompatibleKeys(key string) ([]string, error) {
	num, letter, err := ParseKey(key)
	if err != nil {
		return nil, err
	}

	up := num + 1
	if up > 12 {
		up = 1
	}
	down := num - 1
	if down < 1 {
		down = 12
	}

	relative := "A"
	if letter == "A" {
		relative = "B"
	}

	return []string{
		fmt.Sprintf("%d%s", num, letter),
		fmt.Sprintf("%d%s", up, letter),
		fmt.Sprintf("%d%s", down, letter),
		fmt.Sprintf("%d%s", num, relative),
	}, nil
}

// Compatible reports whether two keys mix harmonically, i.e. b is in
// a's compatibility set.
func Compatible(a, b string) bool {
	keys, err := CompatibleKeys(a)
	if err != nil {
		return false
	}
	bn, bl, err := ParseKey(b)
	if err != nil {
		return false
	}
	normalized := fmt.Sprintf("%d%s", bn, bl)
	for _, k := range keys {
		if k == normalized {
			return true
		}
	}
	return false
}

// PitchClassToKey converts a Spotify pitch class (0-11) and mode
// (1 major, 0 minor) to Camelot notation. Returns an error for an
// unknown pitch class.
func PitchClassToKey(pitchClass, mode int) (string, error) {
	// Index: pitch class 0 (C) through 11 (B).
	major := []string{"8B", "3B", "10B", "5B", "12B", "7B", "2B", "9B", "4B", "11B", "6B", "1B"}
	minor := []string{"5A", "12A", "7A", "2A", "9A", "4A", "11A", "6A", "1A", "8A", "3A", "10A"}

	if pitchClass < 0 || pitchClass > 11 {
		return "", fmt.Errorf("invalid pitch class: %d", pitchClass)
	}
	if mode == 1 {
		return major[pitchClass], nil
	}
	return minor[pitchClass], nil
}

// KeyToPitchClass converts a Camelot notation back to a Spotify pitch
// class and mode pair.
func KeyToPitchClass(key string) (pitchClass, mode int, err error) {
	num, letter, err := ParseKey(key)
	if err != nil {
		return -1, -1, err
	}

	normalized := fmt.Sprintf("%d%s", num, letter)
	major := []string{"8B", "3B", "10B", "5B", "12B", "7B", "2B", "9B", "4B", "11B", "6B", "1B"}
	minor := []string{"5A", "12A", "7A", "2A", "9A", "4A", "11A", "6A", "1A", "8A", "3A", "10A"}

	for i, k := range major {
		if k == normalized {
			return i, 1, nil
		}
	}
	for i, k := range minor {
		if k == normalized {
			return i, 0, nil
		}
	}
	return -1, -1, fmt.Errorf("invalid camelot key: %q", key)
}
