package chordpro

import (
	"strings"
)

// Parse parses ChordPro content into a Document. Parse itself is
// permissive: malformed chord markers are kept as literal text and
// surfaced later by Validate, so a stored song can always be rendered.
func Parse(content string) *Document {
	doc := &Document{}
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	for i, raw := range lines {
		doc.Lines = append(doc.Lines, parseLine(raw, i+1))
	}
	return doc
}

func parseLine(raw string, number int) Line {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return Line{Kind: LineEmpty, Number: number}
	case strings.HasPrefix(trimmed, "#"):
		return Line{Kind: LineComment, Number: number, Text: raw}
	case strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}"):
		return Line{Kind: LineDirective, Number: number, Directive: parseDirective(trimmed), Text: raw}
	default:
		return Line{Kind: LineLyric, Number: number, Segments: parseSegments(raw), Text: raw}
	}
}

func parseDirective(trimmed string) *Directive {
	body := trimmed[1 : len(trimmed)-1]
	name, value := body, ""
	if idx := strings.IndexByte(body, ':'); idx >= 0 {
		name = body[:idx]
		value = strings.TrimSpace(body[idx+1:])
	}
	name = strings.TrimSpace(name)

	canonical := DirectiveName(strings.ToLower(name))
	if alias, ok := directiveAliases[canonical]; ok {
		canonical = alias
	}
	return &Directive{Name: canonical, Raw: name, Value: value}
}

// parseSegments splits a lyric line on [chord] markers. A marker whose
// contents do not parse as a chord is kept inline as literal text.
func parseSegments(raw string) []Segment {
	var segments []Segment
	var current Segment

	rest := raw
	for {
		open := strings.IndexByte(rest, '[')
		if open < 0 {
			break
		}
		closing := strings.IndexByte(rest[open:], ']')
		if closing < 0 {
			break
		}
		closing += open

		chord, err := ParseChord(rest[open+1 : closing])
		if err != nil {
			// Keep the bracketed text and continue after it.
			current.Text += rest[:closing+1]
			rest = rest[closing+1:]
			continue
		}

		current.Text += rest[:open]
		if current.Chord != nil || current.Text != "" {
			segments = append(segments, current)
		}
		current = Segment{Chord: chord}
		rest = rest[closing+1:]
	}

	current.Text += rest
	if current.Chord != nil || current.Text != "" || len(segments) == 0 {
		segments = append(segments, current)
	}
	return segments
}

// Render serializes the document back to ChordPro text.
func (d *Document) Render() string {
	var b strings.Builder
	for i, line := range d.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch line.Kind {
		case LineEmpty:
			// nothing
		case LineComment:
			b.WriteString(line.Text)
		case LineDirective:
			dir := line.Directive
			b.WriteByte('{')
			b.WriteString(string(dir.Name))
			if dir.Value != "" {
				b.WriteString(": ")
				b.WriteString(dir.Value)
			}
			b.WriteByte('}')
		case LineLyric:
			for _, seg := range line.Segments {
				if seg.Chord != nil {
					b.WriteByte('[')
					b.WriteString(seg.Chord.String())
					b.WriteByte(']')
				}
				b.WriteString(seg.Text)
			}
		}
	}
	return b.String()
}
