package scriptrunner

import "regexp"

var placeholderPattern = regexp.MustCompile(`\$\{input:(\w+)\}`)

// SubstituteParameters replaces every "${input:name}" placeholder in
// content with params[name]. A placeholder whose name is absent from
// params is left unchanged rather than replaced with an empty string, so a
// caller can tell "no value given" apart from "value is empty".
func SubstituteParameters(content string, params map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := params[name]; ok {
			return v
		}
		return match
	})
}
