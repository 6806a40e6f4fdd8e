package edge

import (
	"regexp"
	"strings"
)

var baseURLRe = regexp.MustCompile(`const BASE_URL\s*=\s*".*?"`)

// PatchBaseURL points the script's BASE_URL constant at <base>/checklist/.
// It reports whether the constant was found.
func PatchBaseURL(script, base string) (string, bool) {
	if !baseURLRe.MatchString(script) {
		return script, false
	}
	repl := `const BASE_URL = "` + strings.TrimSuffix(base, "/") + `/checklist/"`
	return baseURLRe.ReplaceAllLiteralString(script, repl), true
}
