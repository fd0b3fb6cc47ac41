package docmeta

import "strings"

// fieldAlias maps a recognized line prefix to its target field. Order
// matters: longer aliases come before their shorter variants.
type fieldAlias struct {
	prefix string
	assign func(*Fields, string)
}

var fieldAliases = []fieldAlias{
	{"title:", func(f *Fields, v string) { f.Title = v }},
	{"author(s):", func(f *Fields, v string) { f.Author = v }},
	{"author:", func(f *Fields, v string) { f.Author = v }},
	{"institution(s):", func(f *Fields, v string) { f.Institution = v }},
	{"institution:", func(f *Fields, v string) { f.Institution = v }},
	{"date/year:", func(f *Fields, v string) { f.Date = v }},
	{"date:", func(f *Fields, v string) { f.Date = v }},
	{"year:", func(f *Fields, v string) { f.Date = v }},
	{"abstract:", func(f *Fields, v string) { f.Abstract = v }},
	{"keywords:", func(f *Fields, v string) { f.Keywords = v }},
	{"document type:", func(f *Fields, v string) { f.DocType = v }},
	{"type:", func(f *Fields, v string) { f.DocType = v }},
}

// ParseLLMResponse turns a line-oriented model response into fields. Lines
// matching no alias continue the previous field's value, which is how
// multi-line abstracts come through. Placeholder answers are dropped.
func ParseLLMResponse(response string) Fields {
	var fields Fields
	var current func(*Fields, string)
	var value strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		if v := cleanValue(value.String()); v != "" {
			current(&fields, v)
		}
		current = nil
		value.Reset()
	}

	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)

		matched := false
		for _, alias := range fieldAliases {
			if strings.HasPrefix(lower, alias.prefix) {
				flush()
				current = alias.assign
				value.WriteString(strings.TrimSpace(trimmed[len(alias.prefix):]))
				matched = true
				break
			}
		}
		if !matched && current != nil && trimmed != "" {
			if value.Len() > 0 {
				value.WriteString(" ")
			}
			value.WriteString(trimmed)
		}
	}
	flush()
	return fields
}

// cleanValue drops placeholder answers the model uses for missing fields.
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(strings.Trim(v, "()[].")) {
	case "", "not found", "unknown", "n/a", "none":
		return ""
	}
	return v
}
