package extract

import (
	"regexp"
	"sort"
)

// labelLine finds "LABEL: value" pairs where the label is an upper-case run.
var labelLine = regexp.MustCompile(`([A-Z ./]+)\s*:\s*([^\n]+)`)

// DetectFields returns the distinct labels found across texts, sorted.
func DetectFields(texts []string) []string {
	seen := make(map[string]struct{})
	for _, text := range texts {
		for _, m := range labelLine.FindAllStringSubmatch(text, -1) {
			label := NormalizeLabel(m[1])
			if label == "" || label == "." || label == "/" {
				continue
			}
			seen[label] = struct{}{}
		}
	}

	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
