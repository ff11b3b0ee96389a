package chordpro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSong = `{title: Amazing Grace}
{artist: John Newton}
{key: G}

{start_of_verse}
A[G]mazing grace, how [G7]sweet the [C]sound
That [G]saved a wretch like [D]me
{end_of_verse}`

func TestParseDirectives(t *testing.T) {
	doc := Parse(sampleSong)

	assert.Equal(t, "Amazing Grace", doc.Title())
	assert.Equal(t, "John Newton", doc.Artist())
	assert.Equal(t, "G", doc.Key())
}

func TestParseDirectiveAliases(t *testing.T) {
	doc := Parse("{t: Short Title}\n{soc}\nla la\n{eoc}")

	assert.Equal(t, "Short Title", doc.Title())
	require.Len(t, doc.Lines, 4)
	assert.Equal(t, DirectiveStartOfChorus, doc.Lines[1].Directive.Name)
	assert.Equal(t, "soc", doc.Lines[1].Directive.Raw)
	assert.Equal(t, DirectiveEndOfChorus, doc.Lines[3].Directive.Name)
}

func TestParseSegments(t *testing.T) {
	doc := Parse("He[C]llo [G]world")
	require.Len(t, doc.Lines, 1)

	segments := doc.Lines[0].Segments
	require.Len(t, segments, 3)
	assert.Nil(t, segments[0].Chord)
	assert.Equal(t, "He", segments[0].Text)
	assert.Equal(t, "C", segments[1].Chord.String())
	assert.Equal(t, "llo ", segments[1].Text)
	assert.Equal(t, "G", segments[2].Chord.String())
	assert.Equal(t, "world", segments[2].Text)
}

func TestParseKeepsMalformedMarkersAsText(t *testing.T) {
	doc := Parse("la [Hx]la la")
	require.Len(t, doc.Lines, 1)

	segments := doc.Lines[0].Segments
	require.Len(t, segments, 1)
	assert.Nil(t, segments[0].Chord)
	assert.Equal(t, "la [Hx]la la", segments[0].Text)
}

func TestParseCommentsAndBlankLines(t *testing.T) {
	doc := Parse("# source note\n\nlyric")
	require.Len(t, doc.Lines, 3)
	assert.Equal(t, LineComment, doc.Lines[0].Kind)
	assert.Equal(t, LineEmpty, doc.Lines[1].Kind)
	assert.Equal(t, LineLyric, doc.Lines[2].Kind)
	assert.Equal(t, 3, doc.Lines[2].Number)
}

func TestRenderRoundTrip(t *testing.T) {
	assert.Equal(t, sampleSong, Parse(sampleSong).Render())
}

func TestRenderNormalizesAliases(t *testing.T) {
	rendered := Parse("{t: X}").Render()
	assert.Equal(t, "{title: X}", rendered)
}

func TestChordsInSourceOrder(t *testing.T) {
	chords := Parse(sampleSong).Chords()
	symbols := make([]string, 0, len(chords))
	for _, chord := range chords {
		symbols = append(symbols, chord.String())
	}
	assert.Equal(t, []string{"G", "G7", "C", "G", "D"}, symbols)
}
