package nertagger

import (
	"fmt"
	"strings"
)

// entityNames gives the display name of each GMB entity type.
var entityNames = map[string]string{
	"geo": "Geographical Entity",
	"tim": "Time indicator",
	"org": "Organization",
	"gpe": "Geopolitical Entity",
	"per": "Person",
	"eve": "Event",
	"art": "Artifact",
	"nat": "Natural Phenomenon",
}

// Describe maps an IOB tag such as "B-geo" to a readable name. "O" becomes
// "no Label"; unknown tags are returned unchanged.
func Describe(tag string) string {
	if tag == "O" {
		return "no Label"
	}
	if i := strings.IndexByte(tag, '-'); i == 1 && (tag[0] == 'B' || tag[0] == 'I') {
		if name, ok := entityNames[tag[2:]]; ok {
			return name
		}
	}
	return tag
}

// Visualize renders one "word | label" table row per token, with a blank line
// after each text.
func Visualize(tokens, labels [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-15s | %-5s\n", "Word", "Pred")
	b.WriteString(strings.Repeat("=", 20))
	b.WriteString("\n")
	for i := range labels {
		for j, label := range labels[i] {
			if j >= len(tokens[i]) {
				break
			}
			fmt.Fprintf(&b, "%-15s | %-5s\n", tokens[i][j], Describe(label))
		}
		b.WriteString("\n")
	}
	return b.String()
}
