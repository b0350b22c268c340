// Package render turns generated assistant text into HTML markup.
//
// Rendering is a fixed pipeline of independent stages applied once, in order,
// over a document. Stages that produce code markup park the finished HTML
// behind an opaque placeholder, so later stages never see code content and
// cannot reinterpret it. Placeholders are swapped back after the last stage.
//
// Supported subset, in pipeline order:
//
//	```lang ... ```   fenced code block, lang optional (defaults to "text")
//	`x`               inline code
//	& < >             escaped in prose
//	**x** / *x*       strong / emphasis, bold first, single line only
//	# .. ###          headings, marker followed by one space
//	- item            unordered list, consecutive lines
//	1. item           ordered list, consecutive lines, numeral dropped
//	\n                <br>
package render

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// stage rewrites a document in place.
type stage func(d *document)

var pipeline = []stage{
	fencedCode,
	inlineCode,
	escapeProse,
	emphasis,
	headings,
	unorderedLists,
	orderedLists,
	lineBreaks,
}

// Render converts text to markup. It is deterministic and has no side effects.
func Render(text string) string {
	d := newDocument(text)
	for _, s := range pipeline {
		s(d)
	}
	return d.String()
}

const (
	fence     = "```"
	sentinel  = "\x00"
	defLang   = "text"
	ulOpen    = "<ul>"
	ulClose   = "</ul>"
	olOpen    = "<ol>"
	olClose   = "</ol>"
	itemOpen  = "<li>"
	itemClose = "</li>"
)

type document struct {
	text   string
	parked []string
}

func newDocument(text string) *document {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	// the sentinel byte is reserved for placeholders
	text = strings.ReplaceAll(text, sentinel, "�")
	return &document{text: text}
}

// park stores finished markup and returns the placeholder standing in for it.
// Placeholders never contain a newline, '#', '*', '-' or a backtick.
func (d *document) park(markup string) string {
	d.parked = append(d.parked, markup)
	return sentinel + strconv.Itoa(len(d.parked)-1) + sentinel
}

var placeholderRe = regexp.MustCompile(`\x00([0-9]+)\x00`)

func (d *document) String() string {
	if len(d.parked) == 0 {
		return d.text
	}
	return placeholderRe.ReplaceAllStringFunc(d.text, func(m string) string {
		i, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || i >= len(d.parked) {
			return m
		}
		return d.parked[i]
	})
}

// fencedCode replaces ```lang ... ``` runs. The language tag is the run of
// word characters directly after the opening fence; surrounding whitespace of
// the body is trimmed. A fence left open runs to the end of the input.
func fencedCode(d *document) {
	rest := d.text
	var b strings.Builder
	for {
		i := strings.Index(rest, fence)
		if i < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:i])
		after := rest[i+len(fence):]
		lang := leadingWord(after)
		body := after[len(lang):]
		if j := strings.Index(body, fence); j >= 0 {
			rest = body[j+len(fence):]
			body = body[:j]
		} else {
			rest = ""
		}
		if lang == "" {
			lang = defLang
		}
		b.WriteString(d.park(`<pre><code class="language-` + lang + `">` +
			html.EscapeString(strings.TrimSpace(body)) + `</code></pre>`))
	}
	d.text = b.String()
}

func leadingWord(s string) string {
	for i, r := range s {
		if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return s[:i]
		}
	}
	return s
}

// inlineCodeRe: a backtick, one or more characters that are neither a
// backtick nor part of a placeholder, a backtick.
var inlineCodeRe = regexp.MustCompile("`([^`\\x00]+)`")

func inlineCode(d *document) {
	d.text = inlineCodeRe.ReplaceAllStringFunc(d.text, func(m string) string {
		return d.park("<code>" + html.EscapeString(m[1:len(m)-1]) + "</code>")
	})
}

var proseEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeProse neutralises markup the generator emitted outside code.
func escapeProse(d *document) {
	d.text = proseEscaper.Replace(d.text)
}

var (
	// boldRe: shortest run between two "**" on one line.
	boldRe = regexp.MustCompile(`\*\*(.*?)\*\*`)
	// italicRe: shortest run between two "*" on one line.
	italicRe = regexp.MustCompile(`\*(.*?)\*`)
)

func emphasis(d *document) {
	d.text = boldRe.ReplaceAllString(d.text, "<strong>$1</strong>")
	d.text = italicRe.ReplaceAllString(d.text, "<em>$1</em>")
}

// headings: a line starting with one to three '#' and a space.
func headings(d *document) {
	lines := strings.Split(d.text, "\n")
	for i, line := range lines {
		n := 0
		for n < len(line) && line[n] == '#' {
			n++
		}
		if n < 1 || n > 3 || n >= len(line) || line[n] != ' ' {
			continue
		}
		level := strconv.Itoa(n)
		lines[i] = "<h" + level + ">" + line[n+1:] + "</h" + level + ">"
	}
	d.text = strings.Join(lines, "\n")
}

// unorderedLists groups consecutive lines starting with "- ".
func unorderedLists(d *document) {
	d.text = groupLines(d.text, ulOpen, ulClose, func(line string) (string, bool) {
		if strings.HasPrefix(line, "- ") {
			return line[2:], true
		}
		return "", false
	})
}

// orderedItemRe: decimal digits, a dot and a space at the start of the line.
var orderedItemRe = regexp.MustCompile(`^[0-9]+\. `)

// orderedLists groups consecutive lines starting with "N. ".
func orderedLists(d *document) {
	d.text = groupLines(d.text, olOpen, olClose, func(line string) (string, bool) {
		loc := orderedItemRe.FindStringIndex(line)
		if loc == nil {
			return "", false
		}
		return line[loc[1]:], true
	})
}

// groupLines folds each run of matching lines into a single line holding the
// whole list. A list still open at the end of input is closed.
func groupLines(text, openTag, closeTag string, item func(string) (string, bool)) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	var list strings.Builder
	inList := false
	flush := func() {
		if inList {
			list.WriteString(closeTag)
			out = append(out, list.String())
			list.Reset()
			inList = false
		}
	}
	for _, line := range lines {
		content, ok := item(line)
		if !ok {
			flush()
			out = append(out, line)
			continue
		}
		if !inList {
			list.WriteString(openTag)
			inList = true
		}
		list.WriteString(itemOpen + content + itemClose)
	}
	flush()
	return strings.Join(out, "\n")
}

var breakReplacer = strings.NewReplacer("\n\n", "<br><br>", "\n", "<br>")

// lineBreaks: a blank line becomes a double break, any other newline a single one.
func lineBreaks(d *document) {
	d.text = breakReplacer.Replace(d.text)
}
