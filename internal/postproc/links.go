// Package postproc normalizes outgoing replies. Its single job today is the
// "Useful links" section: any model-written or stale link section is removed
// and a canonical one built from the curated registry is appended, so every
// link a user sees comes from the registry and never from the model.
package postproc

import (
	"strings"

	"github.com/user/evinav/internal/catalog"
)

const linksHeading = "useful links"

// Rewriter rebuilds reply link sections from the curated registry.
type Rewriter struct {
	cat *catalog.Catalog
}

func New(cat *catalog.Catalog) *Rewriter {
	return &Rewriter{cat: cat}
}

// Rewrite strips every existing links section from reply and appends a
// canonical one for the given categories. With no categories, or no registry
// entries for them, the reply carries no links section at all. Rewriting an
// already-rewritten reply with the same categories is a no-op.
func (r *Rewriter) Rewrite(reply string, categories []string) string {
	body := strings.TrimRight(stripLinkSections(reply), " \t\n")

	if len(categories) == 0 {
		return body
	}
	links := r.cat.Links(categories...)
	if len(links) == 0 {
		return body
	}

	var b strings.Builder
	b.WriteString(body)
	if body != "" {
		b.WriteString("\n\n")
	}
	b.WriteString("Useful links:\n")
	for _, link := range links {
		b.WriteString("- " + link.Title + ": " + link.URL + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// stripLinkSections removes each links section: its heading line and every
// following line up to the next blank line or end of text.
func stripLinkSections(reply string) string {
	lines := strings.Split(reply, "\n")
	var kept []string
	skipping := false
	for _, line := range lines {
		if skipping {
			if strings.TrimSpace(line) == "" {
				skipping = false
			}
			continue
		}
		if isLinksHeading(line) {
			skipping = true
			// Drop a blank line immediately above the heading.
			if n := len(kept); n > 0 && strings.TrimSpace(kept[n-1]) == "" {
				kept = kept[:n-1]
			}
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// isLinksHeading matches the heading in any decoration the model might use:
// "Useful links:", "## Useful Links", "**Useful links**" and so on.
func isLinksHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimLeft(trimmed, "#*- ")
	trimmed = strings.TrimRight(trimmed, "*: ")
	return strings.HasPrefix(strings.ToLower(trimmed), linksHeading)
}
