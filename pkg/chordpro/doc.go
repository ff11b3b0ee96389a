// Package chordpro parses, validates and transposes ChordPro song
// content. It understands the directive subset that matters to a chord
// sheet host ({title}, {artist}, {key}, {capo}, section markers and
// comments) and treats inline [Chord] markers as first-class tokens so
// content can be transposed without touching lyrics.
package chordpro
