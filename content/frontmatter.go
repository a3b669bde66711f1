package content

import (
	"fmt"
	"regexp"
	"strings"
)

// Existing posts are not guaranteed to hold valid YAML, so title and date
// come from the first matching line rather than a frontmatter parser.
var (
	titleLine = regexp.MustCompile(`(?m)^title:[ \t]*(.*?)[ \t\r]*$`)
	dateLine  = regexp.MustCompile(`(?m)^date:[ \t]*(.*?)[ \t\r]*$`)
)

func firstMatch(re *regexp.Regexp, raw string) string {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return m[1]
}

func parseTitle(raw string) string { return firstMatch(titleLine, raw) }

func parseDate(raw string) string { return firstMatch(dateLine, raw) }

// formatPost renders a post file.
func formatPost(title, date, body string) string {
	return fmt.Sprintf("---\ntitle: %s\ndate: %s\n---\n\n%s", title, date, body)
}

// stripFrontmatter returns raw without a leading --- block and the one
// blank line formatPost writes after it. The body is returned byte for
// byte, line endings included.
func stripFrontmatter(raw string) string {
	first, rest, ok := cutLine(raw)
	if !ok || first != "---" {
		return raw
	}
	for {
		var line string
		line, rest, ok = cutLine(rest)
		if !ok {
			return raw
		}
		if line == "---" {
			break
		}
	}
	if line, next, ok := cutLine(rest); ok && line == "" {
		rest = next
	}
	return rest
}

// cutLine splits off the first line of s without its \n or \r\n
// terminator. ok is false once s is empty.
func cutLine(s string) (line, rest string, ok bool) {
	if s == "" {
		return "", "", false
	}
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return s, "", true
	}
	return strings.TrimSuffix(s[:i], "\r"), s[i+1:], true
}
