// Package codec maps notes to and from their plain-text Markdown document
// form: a ----delimited header block of key/value pairs followed by a
// rendered body. Encoding is exact; decoding is tolerant and never fails.
package codec

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/starford/ehwaz/internal/models"
)

const headerDelim = "---"

// timeFormats are tried in this fixed order when parsing header timestamps.
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Encode renders a note as a Markdown document. The header block is the sole
// mechanism for lossless round-trip of the structured fields; the body below
// it is presentation.
func Encode(n *models.Note) ([]byte, error) {
	if n == nil {
		return nil, fmt.Errorf("codec: encode nil note")
	}

	var b strings.Builder
	b.WriteString(headerDelim + "\n")
	writeField(&b, "title", n.Title)
	writeField(&b, "url", n.URL)
	b.WriteString("tags: " + renderList(n.Tags) + "\n")
	writeField(&b, "category", n.Category)
	writeField(&b, "date", n.DateCreated.UTC().Format("2006-01-02"))
	writeField(&b, "id", n.ID)
	writeField(&b, "created", n.DateCreated.UTC().Format(time.RFC3339))
	writeField(&b, "modified", n.DateModified.UTC().Format(time.RFC3339))
	b.WriteString(headerDelim + "\n\n")

	if n.Title != "" {
		b.WriteString("# " + n.Title + "\n\n")
	}
	if n.Summary != "" {
		b.WriteString(n.Summary + "\n\n")
	}
	if n.Category != "" {
		b.WriteString("**Category**: " + n.Category + "\n")
	}
	if len(n.Tags) > 0 {
		b.WriteString("**Tags**: " + strings.Join(n.Tags, ", ") + "\n")
	}
	if n.URL != "" {
		b.WriteString("**Source**: " + n.URL + "\n")
	}
	b.WriteString("\n" + headerDelim + "\n\n")
	if n.Content != "" {
		b.WriteString(n.Content)
		if !strings.HasSuffix(n.Content, "\n") {
			b.WriteString("\n")
		}
	}

	return []byte(b.String()), nil
}

// writeField emits one header line, quoting the value when needed.
func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key + ": " + quoteIfNeeded(value) + "\n")
}

// quoteIfNeeded wraps s in double quotes (with escapes) when it contains
// characters that would break naive key: value parsing.
func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if !strings.ContainsAny(s, ":\"\n#[]{}") && strings.TrimSpace(s) == s {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

// renderList renders tags as a bracketed, comma-delimited list.
func renderList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = quoteIfNeeded(it)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Decode parses a document back into a note. It never fails: malformed or
// legacy input degrades through a fixed sequence of strategies (header
// document, heading heuristics, raw text) and always yields a usable note.
// A document without a header id decodes as a NEW note with a fresh id —
// hand-edited remote files without front matter become new local notes on
// pull rather than updates.
func Decode(data []byte, filename string) *models.Note {
	doc := string(data)

	d, ok := decodeHeaderDocument(doc)
	if !ok {
		d, ok = decodeHeadingDocument(doc)
	}
	if !ok {
		d = decodePlainDocument(doc)
	}

	return d.finalize(filename)
}

// draft accumulates fields during decoding before defaults are applied.
type draft struct {
	title    string
	url      string
	tags     []string
	category string
	summary  string
	content  string
	id       string
	date     time.Time
	created  time.Time
	modified time.Time
	hasDate  bool
}

// finalize applies fallback defaults and builds the note.
func (d *draft) finalize(filename string) *models.Note {
	if d.id == "" {
		d.id = uuid.NewString()
	}
	if !d.hasDate {
		d.date = time.Now().UTC()
	}
	if d.created.IsZero() {
		d.created = d.date
	}
	if d.modified.IsZero() {
		d.modified = d.date
	}
	if d.title == "" {
		d.title = titleFromFilename(filename)
	}
	if d.summary == "" && d.content != "" {
		d.summary = firstN(d.content, 200)
	}
	return &models.Note{
		ID:           d.id,
		Title:        d.title,
		Summary:      d.summary,
		Content:      d.content,
		URL:          d.url,
		Tags:         d.tags,
		Category:     d.category,
		DateCreated:  d.created,
		DateModified: d.modified,
	}
}

// decodeHeaderDocument handles documents with a ----delimited header block.
func decodeHeaderDocument(doc string) (*draft, bool) {
	trimmed := strings.TrimLeft(doc, "\n\r \t")
	if !strings.HasPrefix(trimmed, headerDelim) {
		return nil, false
	}
	rest := trimmed[len(headerDelim):]
	idx := strings.Index(rest, "\n"+headerDelim)
	if idx < 0 {
		return nil, false
	}
	headerBlock := rest[:idx]
	body := rest[idx+1+len(headerDelim):]

	d := &draft{}
	fields := parseHeaderFields(headerBlock)

	d.title = fields.str("title")
	d.url = fields.str("url")
	d.category = fields.str("category")
	d.id = fields.str("id")
	d.summary = fields.str("summary")
	d.tags = fields.tags()

	if t, ok := parseTime(fields.str("date")); ok {
		d.date = t
		d.hasDate = true
	}
	if t, ok := parseTime(fields.str("created")); ok {
		d.created = t
	}
	if t, ok := parseTime(fields.str("modified")); ok {
		d.modified = t
	}

	parseBody(d, body)
	return d, true
}

// headerFields is the tolerant view over a parsed header block. Every key is
// optional and looked up independently.
type headerFields struct {
	values map[string]any
}

// parseHeaderFields parses the header as YAML first; when that fails it
// falls back to a line-by-line split at the first colon so that one bad
// line never poisons the rest.
func parseHeaderFields(block string) headerFields {
	var m map[string]any
	if err := yaml.Unmarshal([]byte(block), &m); err == nil && m != nil {
		return headerFields{values: m}
	}

	m = make(map[string]any)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		m[strings.TrimSpace(k)] = unquote(strings.TrimSpace(v))
	}
	return headerFields{values: m}
}

func (f headerFields) str(key string) string {
	v, ok := f.values[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// tags accepts both a real list and the legacy string shapes:
// bracketed ([a, b]) and quoted CSV ("a","b").
func (f headerFields) tags() []string {
	v, ok := f.values["tags"]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	case string:
		return splitTagString(t)
	}
	return nil
}

func splitTagString(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = unquote(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// unquote strips a surrounding double-quote pair and reverses the escapes
// applied by quoteIfNeeded.
func unquote(s string) string {
	if len(s) < 2 || !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) {
		return s
	}
	inner := s[1 : len(s)-1]
	r := strings.NewReplacer(`\n`, "\n", `\"`, `"`, `\\`, `\`)
	return r.Replace(inner)
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseBody fills summary and content from the rendered body. The meta block
// Encode emits (title heading, summary line, **Key**: lines) ends at the
// first --- separator; everything after the separator is content and is kept
// verbatim. Bodies without a separator start content at the first substantial
// line.
func parseBody(d *draft, body string) {
	lines := strings.Split(body, "\n")

	contentStart := -1
	sawDelim := false
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" || isHeading(t) || isMetaLine(t) {
			continue
		}
		if t == headerDelim {
			contentStart = i + 1
			sawDelim = true
			break
		}
		if d.summary == "" && len(t) > 10 {
			d.summary = t
			continue
		}
		// Substantial text before any separator: content starts here.
		contentStart = i
		break
	}

	if contentStart >= 0 && contentStart < len(lines) {
		d.content = strings.TrimSpace(strings.Join(lines[contentStart:], "\n"))
	}
	// A separator with nothing after it means the content really is empty;
	// without one, fall back to the raw body so nothing is lost.
	if d.content == "" && !sawDelim {
		d.content = strings.TrimSpace(body)
	}
}

func isHeading(line string) bool {
	return strings.HasPrefix(line, "#")
}

func isMetaLine(line string) bool {
	return strings.HasPrefix(line, "**Category**:") ||
		strings.HasPrefix(line, "**Tags**:") ||
		strings.HasPrefix(line, "**Source**:")
}

// decodeHeadingDocument handles headerless documents with a Markdown
// heading: the first # heading (or first non-empty line) becomes the title,
// the first substantial line after it becomes the summary, the remainder is
// content.
func decodeHeadingDocument(doc string) (*draft, bool) {
	lines := strings.Split(doc, "\n")
	d := &draft{}

	titleIdx := -1
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if isHeading(t) {
			d.title = strings.TrimSpace(strings.TrimLeft(t, "# "))
		} else {
			d.title = t
		}
		titleIdx = i
		break
	}
	if titleIdx < 0 {
		return nil, false
	}

	rest := lines[titleIdx+1:]
	for i, line := range rest {
		t := strings.TrimSpace(line)
		if t == "" || isHeading(t) {
			continue
		}
		if len(t) > 10 {
			d.summary = t
			rest = rest[i+1:]
		} else {
			rest = rest[i:]
		}
		break
	}
	d.content = strings.TrimSpace(strings.Join(rest, "\n"))
	if d.content == "" {
		d.content = strings.TrimSpace(doc)
	}
	return d, true
}

// decodePlainDocument is the last resort: the raw text becomes the content.
func decodePlainDocument(doc string) *draft {
	return &draft{content: strings.TrimSpace(doc)}
}

// titleFromFilename derives a title from a remote filename by stripping the
// date+id prefix (YYYY-MM-DD-xxxxxxxx-) or a bare date prefix, then turning
// dashes into spaces and title-casing each word.
func titleFromFilename(filename string) string {
	name := filename
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".md")

	if rest, ok := stripDatePrefix(name); ok {
		name = rest
		if len(name) > 9 && isHexRun(name[:8]) && name[8] == '-' {
			name = name[9:]
		}
	}

	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	out := strings.Join(words, " ")
	if out == "" {
		return "Untitled"
	}
	return out
}

// stripDatePrefix removes a leading YYYY-MM-DD- and reports whether it was
// present.
func stripDatePrefix(name string) (string, bool) {
	if len(name) < 11 {
		return name, false
	}
	head := name[:11]
	if head[4] != '-' || head[7] != '-' || head[10] != '-' {
		return name, false
	}
	for i, c := range head[:10] {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return name, false
		}
	}
	return name[11:], true
}

func isHexRun(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}

// firstN returns the first n characters of s.
func firstN(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
