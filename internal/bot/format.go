package bot

import (
	"fmt"
	"strings"

	"squadbot/internal/model"
)

// FormatContributors formats the reply of the contribs command. Logins are
// listed once each in first-seen order.
func FormatContributors(contribs []model.Contributor) string {
	seen := make(map[string]bool, len(contribs))
	var logins []string
	for _, c := range contribs {
		if c.Login == "" || seen[c.Login] {
			continue
		}
		seen[c.Login] = true
		logins = append(logins, c.Login)
	}
	if len(logins) == 0 {
		return "No contributors found for monitored GitHub groups."
	}
	return "Contributing users to all monitored GitHub groups: " + strings.Join(logins, ", ")
}

// FormatItems formats a numbered list of item URLs. noun is "issues" or
// "pull requests".
func FormatItems(noun string, items []model.Item) string {
	if len(items) == 0 {
		return fmt.Sprintf("No %s found for monitored GitHub groups.", noun)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "There are currently %d %s open against all monitored GitHub groups:", len(items), noun)
	for i, it := range items {
		fmt.Fprintf(&b, "\n   %d: %s", i+1, it.URL)
	}
	return b.String()
}
