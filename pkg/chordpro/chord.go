package chordpro

import (
	"fmt"
	"regexp"
	"strings"
)

// Chord is a parsed chord symbol: root note, optional quality suffix
// and optional slash bass.
type Chord struct {
	Root   string
	Suffix string
	Bass   string
}

// chordPattern accepts a root note with optional accidental, a quality
// suffix (m, maj7, sus4, dim, add9, 7b5 and the like) and an optional
// slash bass.
var chordPattern = regexp.MustCompile(`^([A-G][#b]?)([a-zA-Z0-9#b+\-()]*)(?:/([A-G][#b]?))?$`)

// ErrInvalidChord is wrapped by ParseChord failures.
var ErrInvalidChord = fmt.Errorf("invalid chord")

// ParseChord parses a chord symbol such as "C", "F#m7" or "D/F#".
func ParseChord(symbol string) (*Chord, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidChord)
	}
	matches := chordPattern.FindStringSubmatch(symbol)
	if matches == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidChord, symbol)
	}
	return &Chord{Root: matches[1], Suffix: matches[2], Bass: matches[3]}, nil
}

// String renders the chord back to its symbol form.
func (c *Chord) String() string {
	s := c.Root + c.Suffix
	if c.Bass != "" {
		s += "/" + c.Bass
	}
	return s
}

// Semitone indices for the twelve-tone scale.
var noteIndex = map[string]int{
	"C": 0, "C#": 1, "Db": 1,
	"D": 2, "D#": 3, "Eb": 3,
	"E": 4, "Fb": 4, "E#": 5,
	"F": 5, "F#": 6, "Gb": 6,
	"G": 7, "G#": 8, "Ab": 8,
	"A": 9, "A#": 10, "Bb": 10,
	"B": 11, "Cb": 11, "B#": 0,
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
var flatNames = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

// transposeNote shifts a note by semitones, spelling the result with
// flats when the source note used a flat.
func transposeNote(note string, semitones int) (string, error) {
	idx, ok := noteIndex[note]
	if !ok {
		return "", fmt.Errorf("%w: unknown note %q", ErrInvalidChord, note)
	}
	shifted := ((idx+semitones)%12 + 12) % 12
	if strings.HasSuffix(note, "b") {
		return flatNames[shifted], nil
	}
	return sharpNames[shifted], nil
}

// Transpose returns a copy of the chord shifted by semitones.
func (c *Chord) Transpose(semitones int) (*Chord, error) {
	root, err := transposeNote(c.Root, semitones)
	if err != nil {
		return nil, err
	}
	out := &Chord{Root: root, Suffix: c.Suffix}
	if c.Bass != "" {
		if out.Bass, err = transposeNote(c.Bass, semitones); err != nil {
			return nil, err
		}
	}
	return out, nil
}
