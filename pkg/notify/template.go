package notify

import "regexp"

// Template is a delivery-method-specific notification template. Body is the
// message text; Subject is only meaningful for methods that have one, such as
// email.
type Template struct {
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Body    string `json:"body" yaml:"body"`
}

var placeholderRe = regexp.MustCompile(`\$\{([A-Za-z0-9_.\-]+)\}`)

// RenderTemplate substitutes ${key} placeholders in text with values from
// params. Placeholders without a matching key are left untouched.
func RenderTemplate(text string, params map[string]string) string {
	if len(params) == 0 {
		return text
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		key := match[2 : len(match)-1]
		if value, ok := params[key]; ok {
			return value
		}
		return match
	})
}
