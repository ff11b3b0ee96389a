package chordpro

import "fmt"

// Transpose shifts every chord in content by semitones and returns the
// re-rendered text. The {key} directive, when present and parseable,
// is shifted too. Semitones outside [-11, 11] are rejected.
func Transpose(content string, semitones int) (string, error) {
	if semitones < -11 || semitones > 11 {
		return "", fmt.Errorf("transpose amount %d out of range [-11, 11]", semitones)
	}
	if semitones == 0 {
		return content, nil
	}

	doc := Parse(content)
	for li := range doc.Lines {
		line := &doc.Lines[li]
		switch line.Kind {
		case LineLyric:
			for si := range line.Segments {
				if line.Segments[si].Chord == nil {
					continue
				}
				shifted, err := line.Segments[si].Chord.Transpose(semitones)
				if err != nil {
					return "", fmt.Errorf("line %d: %w", line.Number, err)
				}
				line.Segments[si].Chord = shifted
			}
		case LineDirective:
			if line.Directive.Name != DirectiveKey {
				continue
			}
			// A key value that is not a chord (e.g. "unknown") is
			// left alone rather than failing the whole transpose.
			key, err := ParseChord(line.Directive.Value)
			if err != nil {
				continue
			}
			shifted, err := key.Transpose(semitones)
			if err != nil {
				continue
			}
			line.Directive.Value = shifted.String()
		}
	}
	return doc.Render(), nil
}
