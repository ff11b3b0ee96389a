package chordpro

import (
	"fmt"
	"strconv"
	"strings"
)

// Severity grades validation issues.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding.
type Issue struct {
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Result collects the findings for one document.
type Result struct {
	Issues []Issue `json:"issues"`
}

// Valid reports whether the document has no error-grade issues.
// Warnings do not block persistence.
func (r Result) Valid() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return false
		}
	}
	return true
}

func (r *Result) add(line int, severity Severity, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{
		Line:     line,
		Severity: severity,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Validate checks parsed content for structural problems: unknown
// directives, malformed chord markers, unbalanced section markers and
// out-of-range capo values.
func Validate(content string) Result {
	doc := Parse(content)
	var result Result

	type openSection struct {
		closer DirectiveName
		line   int
	}
	var sections []openSection

	for _, line := range doc.Lines {
		switch line.Kind {
		case LineDirective:
			dir := line.Directive
			if !knownDirectives[dir.Name] {
				result.add(line.Number, SeverityWarning, "unknown directive {%s}", dir.Raw)
				continue
			}
			if closer, ok := sectionPairs[dir.Name]; ok {
				sections = append(sections, openSection{closer: closer, line: line.Number})
				continue
			}
			if isSectionCloser(dir.Name) {
				if len(sections) == 0 || sections[len(sections)-1].closer != dir.Name {
					result.add(line.Number, SeverityError, "{%s} without matching opener", dir.Name)
					continue
				}
				sections = sections[:len(sections)-1]
			}
			if dir.Name == DirectiveCapo {
				capo, err := strconv.Atoi(dir.Value)
				if err != nil || capo < 0 || capo > 11 {
					result.add(line.Number, SeverityError, "capo value %q must be an integer in [0, 11]", dir.Value)
				}
			}
			if dir.Name == DirectiveKey && dir.Value != "" {
				if _, err := ParseChord(dir.Value); err != nil {
					result.add(line.Number, SeverityWarning, "unparseable key %q", dir.Value)
				}
			}
		case LineLyric:
			checkLyricMarkers(line, &result)
		}
	}

	for _, open := range sections {
		result.add(open.line, SeverityError, "section opened here is never closed")
	}
	return result
}

func isSectionCloser(name DirectiveName) bool {
	for _, closer := range sectionPairs {
		if closer == name {
			return true
		}
	}
	return false
}

// checkLyricMarkers flags bracketed markers the permissive parser kept
// as literal text, and brackets that never close.
func checkLyricMarkers(line Line, result *Result) {
	rest := line.Text
	for {
		open := strings.IndexByte(rest, '[')
		if open < 0 {
			return
		}
		closing := strings.IndexByte(rest[open:], ']')
		if closing < 0 {
			result.add(line.Number, SeverityError, "unclosed chord bracket")
			return
		}
		closing += open
		symbol := rest[open+1 : closing]
		if _, err := ParseChord(symbol); err != nil {
			result.add(line.Number, SeverityError, "invalid chord [%s]", symbol)
		}
		rest = rest[closing+1:]
	}
}
