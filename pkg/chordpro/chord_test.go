package chordpro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChord(t *testing.T) {
	tests := []struct {
		symbol string
		want   Chord
	}{
		{symbol: "C", want: Chord{Root: "C"}},
		{symbol: "F#m7", want: Chord{Root: "F#", Suffix: "m7"}},
		{symbol: "Bbmaj7", want: Chord{Root: "Bb", Suffix: "maj7"}},
		{symbol: "D/F#", want: Chord{Root: "D", Bass: "F#"}},
		{symbol: "Gsus4", want: Chord{Root: "G", Suffix: "sus4"}},
		{symbol: "Adim", want: Chord{Root: "A", Suffix: "dim"}},
		{symbol: "E7b5", want: Chord{Root: "E", Suffix: "7b5"}},
		{symbol: "Cadd9/G", want: Chord{Root: "C", Suffix: "add9", Bass: "G"}},
	}
	for _, tc := range tests {
		t.Run(tc.symbol, func(t *testing.T) {
			chord, err := ParseChord(tc.symbol)
			require.NoError(t, err)
			assert.Equal(t, tc.want, *chord)
			assert.Equal(t, tc.symbol, chord.String())
		})
	}
}

func TestParseChordRejectsGarbage(t *testing.T) {
	for _, symbol := range []string{"", "H", "c", "123", "C//G", "[C]"} {
		t.Run(symbol, func(t *testing.T) {
			_, err := ParseChord(symbol)
			assert.ErrorIs(t, err, ErrInvalidChord)
		})
	}
}

func TestChordTranspose(t *testing.T) {
	tests := []struct {
		symbol    string
		semitones int
		want      string
	}{
		{symbol: "C", semitones: 2, want: "D"},
		{symbol: "B", semitones: 1, want: "C"},
		{symbol: "C", semitones: -1, want: "B"},
		{symbol: "F#m7", semitones: 2, want: "G#m7"},
		{symbol: "Bb", semitones: 2, want: "C"},
		{symbol: "Eb", semitones: -2, want: "Db"},
		{symbol: "D/F#", semitones: 2, want: "E/G#"},
		{symbol: "A", semitones: 12, want: "A"},
	}
	for _, tc := range tests {
		t.Run(tc.symbol, func(t *testing.T) {
			chord, err := ParseChord(tc.symbol)
			require.NoError(t, err)
			shifted, err := chord.Transpose(tc.semitones)
			require.NoError(t, err)
			assert.Equal(t, tc.want, shifted.String())
		})
	}
}

func TestChordTransposePreservesFlatSpelling(t *testing.T) {
	chord, err := ParseChord("Bb")
	require.NoError(t, err)
	shifted, err := chord.Transpose(1)
	require.NoError(t, err)
	assert.Equal(t, "B", shifted.Root)

	shifted, err = chord.Transpose(-2)
	require.NoError(t, err)
	assert.Equal(t, "Ab", shifted.Root)
}
