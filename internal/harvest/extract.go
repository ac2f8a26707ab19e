// Package harvest implements the producer side of the pipeline: one
// harvester per source kind, each returning cleaned text fragments for
// the orchestrator to route into an index.
package harvest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// chrome elements carry no harvestable text and are stripped wholesale.
var noiseSelectors = "script, style, nav, footer, header, aside, form, noscript, iframe"

// CleanText reduces an HTML document to its meaningful text: structural
// noise removed, lines trimmed, blank lines collapsed.
func CleanText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return cleanSelection(doc.Selection)
}

// cleanSelection extracts trimmed text from a goquery selection.
func cleanSelection(sel *goquery.Selection) string {
	sel.Find(noiseSelectors).Remove()

	raw := sel.Text()
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
