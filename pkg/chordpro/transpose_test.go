package chordpro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranspose(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		semitones int
		want      string
	}{
		{
			name:      "up two",
			content:   "He[C]llo [G]world",
			semitones: 2,
			want:      "He[D]llo [A]world",
		},
		{
			name:      "down one wraps",
			content:   "[C]la",
			semitones: -1,
			want:      "[B]la",
		},
		{
			name:      "key directive follows",
			content:   "{key: G}\n[G]la [C]la",
			semitones: 2,
			want:      "{key: A}\n[A]la [D]la",
		},
		{
			name:      "zero is identity",
			content:   "He[C]llo",
			semitones: 0,
			want:      "He[C]llo",
		},
		{
			name:      "suffix and bass preserved",
			content:   "[Am7]x [D/F#]y",
			semitones: 2,
			want:      "[Bm7]x [E/G#]y",
		},
		{
			name:      "lyrics untouched",
			content:   "no chords at all",
			semitones: 5,
			want:      "no chords at all",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Transpose(tc.content, tc.semitones)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTransposeOutOfRange(t *testing.T) {
	_, err := Transpose("[C]la", 12)
	assert.Error(t, err)
	_, err = Transpose("[C]la", -12)
	assert.Error(t, err)
}

func TestTransposeLeavesUnparseableKey(t *testing.T) {
	got, err := Transpose("{key: dorian}\n[C]la", 2)
	require.NoError(t, err)
	assert.Equal(t, "{key: dorian}\n[D]la", got)
}
