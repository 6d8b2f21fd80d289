package dunning

import (
	"strings"

	"github.com/Maciej19820502/windykacja/internal/db"
)

// RenderText replaces every {name} token with the string value of name from
// the context. Unknown tokens stay verbatim; tokens are assumed
// non-overlapping and non-recursive, so replacement order does not matter.
func RenderText(text string, ctx map[string]string) string {
	if text == "" {
		return ""
	}
	result := text
	for key, val := range ctx {
		result = strings.ReplaceAll(result, "{"+key+"}", val)
	}
	return result
}

// Render fills a template's subject and body from the context.
func Render(tpl *db.Template, ctx map[string]string) (subject, body string) {
	return RenderText(tpl.Subject, ctx), RenderText(tpl.Body, ctx)
}
