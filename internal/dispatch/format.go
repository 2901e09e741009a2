package dispatch

import (
	"fmt"
	"html"
)

// htmlRow renders an HTML anchor. The label is escaped; the URL is
// embedded as built, since it is already percent-encoded.
func htmlRow(url, label string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, url, html.EscapeString(label))
}

// orgRow renders an org-mode link. Org labels are embedded verbatim.
func orgRow(url, label string) string {
	return fmt.Sprintf("[[%s][%s]]", url, label)
}
