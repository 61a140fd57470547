// Package embedpager splits a long embed into pages that fit the chat
// platform's embed limits.
package embedpager

import (
	"strings"
	"unicode/utf8"
)

// Platform limits for a single embed.
const (
	MaxFields          = 25
	MaxTotalCharacters = 6000
	MaxFieldValue      = 1024
	MaxFieldName       = 256
	MaxTitle           = 256
	MaxDescription     = 4096
)

// continuationName is the zero-width name used for fields that continue a value
// split across several fields.
const continuationName = "​"

// Colors used by the renderers.
const (
	ColorDefault = 0x5865F2
	ColorSuccess = 0x57F287
	ColorError   = 0xED4245
)

// Field is one name/value pair of an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Embed is a rich message page.
type Embed struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Color       int     `json:"color,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
}

// Length counts the characters the platform charges against the total budget.
func (e Embed) Length() int {
	n := utf8.RuneCountInString(e.Title) + utf8.RuneCountInString(e.Description)
	for _, f := range e.Fields {
		n += utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
	}
	return n
}

// Paginate appends fields to base and returns as many embeds as needed so that
// none exceeds MaxFields fields or MaxTotalCharacters characters. Values longer
// than MaxFieldValue are split on line boundaries into consecutive fields, the
// first keeping the original name. Pages after the first are titled
// "<title> (continued)" and carry neither the description nor the image.
// Fields already present on base stay on the first page.
func Paginate(base Embed, fields []Field) []Embed {
	first := base
	first.Title = truncate(first.Title, MaxTitle)
	first.Description = truncate(first.Description, MaxDescription)
	first.Fields = append([]Field(nil), base.Fields...)

	pages := []Embed{first}
	current := &pages[0]

	newPage := func() {
		pages = append(pages, Embed{
			Title: truncate(base.Title+" (continued)", MaxTitle),
			Color: base.Color,
		})
		current = &pages[len(pages)-1]
	}

	for _, f := range fields {
		name := truncate(f.Name, MaxFieldName)
		if name == "" {
			name = continuationName
		}
		chunks := SplitValue(f.Value, MaxFieldValue)
		inline := f.Inline && len(chunks) == 1

		for i, chunk := range chunks {
			fieldName := name
			if i > 0 {
				fieldName = continuationName
			}
			nf := Field{Name: fieldName, Value: chunk, Inline: inline}
			size := utf8.RuneCountInString(nf.Name) + utf8.RuneCountInString(nf.Value)

			if len(current.Fields)+1 > MaxFields || current.Length()+size > MaxTotalCharacters {
				if len(current.Fields) > 0 {
					newPage()
				}
			}
			current.Fields = append(current.Fields, nf)
		}
	}

	return pages
}

// SplitValue breaks value into chunks of at most limit runes, preferring line
// boundaries. A single line longer than limit is hard-split. An empty value
// yields one "None" chunk, matching how empty lists are displayed.
func SplitValue(value string, limit int) []string {
	if value == "" {
		return []string{"None"}
	}
	if utf8.RuneCountInString(value) <= limit {
		return []string{value}
	}

	var chunks []string
	var b strings.Builder
	size := 0

	flush := func() {
		if b.Len() > 0 {
			chunks = append(chunks, b.String())
			b.Reset()
			size = 0
		}
	}

	for _, line := range strings.Split(value, "\n") {
		for utf8.RuneCountInString(line) > limit {
			flush()
			head, tail := splitRunes(line, limit)
			chunks = append(chunks, head)
			line = tail
		}

		lineLen := utf8.RuneCountInString(line)
		extra := lineLen
		if size > 0 {
			extra++
		}
		if size+extra > limit {
			flush()
			extra = lineLen
		}
		if size > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		size += extra
	}
	flush()

	return chunks
}

func splitRunes(s string, n int) (string, string) {
	i := 0
	for idx := range s {
		if i == n {
			return s[:idx], s[idx:]
		}
		i++
	}
	return s, ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	head, _ := splitRunes(s, n)
	return head
}
