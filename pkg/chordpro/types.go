package chordpro

// DirectiveName identifies a ChordPro directive such as {title: ...}.
type DirectiveName string

// Directives recognized by the parser. Unknown directives survive a
// parse round trip but are flagged by Validate.
const (
	DirectiveTitle         DirectiveName = "title"
	DirectiveSubtitle      DirectiveName = "subtitle"
	DirectiveArtist        DirectiveName = "artist"
	DirectiveKey           DirectiveName = "key"
	DirectiveCapo          DirectiveName = "capo"
	DirectiveTempo         DirectiveName = "tempo"
	DirectiveComment       DirectiveName = "comment"
	DirectiveStartOfChorus DirectiveName = "start_of_chorus"
	DirectiveEndOfChorus   DirectiveName = "end_of_chorus"
	DirectiveStartOfVerse  DirectiveName = "start_of_verse"
	DirectiveEndOfVerse    DirectiveName = "end_of_verse"
	DirectiveStartOfBridge DirectiveName = "start_of_bridge"
	DirectiveEndOfBridge   DirectiveName = "end_of_bridge"
)

// directiveAliases maps the short forms ChordPro allows to their
// canonical names.
var directiveAliases = map[DirectiveName]DirectiveName{
	"t":   DirectiveTitle,
	"st":  DirectiveSubtitle,
	"c":   DirectiveComment,
	"soc": DirectiveStartOfChorus,
	"eoc": DirectiveEndOfChorus,
	"sov": DirectiveStartOfVerse,
	"eov": DirectiveEndOfVerse,
	"sob": DirectiveStartOfBridge,
	"eob": DirectiveEndOfBridge,
}

var knownDirectives = map[DirectiveName]bool{
	DirectiveTitle:         true,
	DirectiveSubtitle:      true,
	DirectiveArtist:        true,
	DirectiveKey:           true,
	DirectiveCapo:          true,
	DirectiveTempo:         true,
	DirectiveComment:       true,
	DirectiveStartOfChorus: true,
	DirectiveEndOfChorus:   true,
	DirectiveStartOfVerse:  true,
	DirectiveEndOfVerse:    true,
	DirectiveStartOfBridge: true,
	DirectiveEndOfBridge:   true,
}

// sectionPairs maps section openers to their closers.
var sectionPairs = map[DirectiveName]DirectiveName{
	DirectiveStartOfChorus: DirectiveEndOfChorus,
	DirectiveStartOfVerse:  DirectiveEndOfVerse,
	DirectiveStartOfBridge: DirectiveEndOfBridge,
}

// LineKind discriminates the parsed line variants.
type LineKind int

const (
	// LineEmpty is a blank line, preserved for layout.
	LineEmpty LineKind = iota
	// LineDirective is a {name: value} directive.
	LineDirective
	// LineLyric is a lyric line, possibly with inline chords.
	LineLyric
	// LineComment is a # source comment, not rendered.
	LineComment
)

// Directive is a parsed {name: value} line.
type Directive struct {
	// Name is the canonical directive name after alias resolution.
	Name DirectiveName
	// Raw is the name as written, before alias resolution.
	Raw string
	// Value is the text after the colon, trimmed. Empty for flag
	// directives like {start_of_chorus}.
	Value string
}

// Segment is a run of lyric text preceded by an optional chord.
type Segment struct {
	// Chord is the chord active over Text, nil when the run is
	// unchorded (lyrics before the first chord marker).
	Chord *Chord
	// Text is the lyric text, possibly empty for back-to-back chords.
	Text string
}

// Line is one parsed line of song content.
type Line struct {
	Kind      LineKind
	Number    int
	Directive *Directive
	Segments  []Segment
	// Text preserves the raw source for comment lines and for lyric
	// lines whose chord markers failed to parse.
	Text string
}

// Document is a parsed ChordPro song.
type Document struct {
	Lines []Line
}

// Title returns the {title} directive value, or "".
func (d *Document) Title() string { return d.directiveValue(DirectiveTitle) }

// Artist returns the {artist} directive value, or "".
func (d *Document) Artist() string { return d.directiveValue(DirectiveArtist) }

// Key returns the declared {key} directive value, or "".
func (d *Document) Key() string { return d.directiveValue(DirectiveKey) }

func (d *Document) directiveValue(name DirectiveName) string {
	for _, line := range d.Lines {
		if line.Kind == LineDirective && line.Directive.Name == name {
			return line.Directive.Value
		}
	}
	return ""
}

// Chords returns every chord in the document, in source order.
func (d *Document) Chords() []*Chord {
	var chords []*Chord
	for _, line := range d.Lines {
		for i := range line.Segments {
			if line.Segments[i].Chord != nil {
				chords = append(chords, line.Segments[i].Chord)
			}
		}
	}
	return chords
}
