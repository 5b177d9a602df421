package notify

import "regexp"

// placeholderRe matches {{field}} placeholders, tolerating inner whitespace.
var placeholderRe = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Render substitutes {{field}} placeholders with event field values.
// Unresolved placeholders render as the empty string, never as the literal
// token.
func Render(tmpl string, ev *EventRecord) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		return ev.Fields[name]
	})
}
