package delivery

import (
	"regexp"
)

var placeholderRegex = regexp.MustCompile(`\$\{\s*([a-zA-Z0-9_]+)\s*\}|\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate replaces ${key} and {{key}} placeholders with params.
// Unknown keys are left as written.
func RenderTemplate(body string, params map[string]string) string {
	if body == "" || len(params) == 0 {
		return body
	}

	return placeholderRegex.ReplaceAllStringFunc(body, func(match string) string {
		sub := placeholderRegex.FindStringSubmatch(match)
		key := sub[1]
		if key == "" {
			key = sub[2]
		}
		if value, ok := params[key]; ok {
			return value
		}
		return match
	})
}
