package question

import "sort"

// categoryIDs maps advertised topic labels to OpenTDB category ids. Topics
// missing from the map are fetched uncategorized and the upstream decides
// whether it knows them.
var categoryIDs = map[string]int{
	"General Knowledge": 9,
	"Science & Nature":  17,
	"Computers":         18,
	"Mathematics":       19,
	"Sports":            21,
	"Geography":         22,
	"History":           23,
	"Art":               25,
	"Celebrities":       26,
}

// CategoryID returns the upstream category id for a topic label, or 0 when
// the topic is not in the advertised set.
func CategoryID(topic string) int {
	return categoryIDs[topic]
}

// Topics lists the advertised topic labels in stable order.
func Topics() []string {
	names := make([]string, 0, len(categoryIDs))
	for name := range categoryIDs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
