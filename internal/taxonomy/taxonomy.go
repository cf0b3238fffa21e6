// Package taxonomy defines the fixed set of building-system categories and
// the heuristic classifier that assigns one to a manual page.
package taxonomy

import "strings"

// Default is the label assigned when no heuristic matches.
const Default = "General"

// Systems is the fixed taxonomy of building systems, in declared match order.
// Filename matching iterates this slice, so the order is load-bearing.
var Systems = []string{
	"HVAC",
	"Electrical",
	"Plumbing",
	"Fire-Safety",
	"Structural",
	Default,
}

// keywordEntry pairs a system label with the content keywords that imply it.
type keywordEntry struct {
	Label    string
	Keywords []string
}

// systemKeywords drives content-based classification. Entries are checked in
// order and the first label with any matching keyword wins.
var systemKeywords = []keywordEntry{
	{"HVAC", []string{"hvac", "heating", "cooling", "ventilation", "air conditioning", "ahu", "vav"}},
	{"Electrical", []string{"electrical", "voltage", "amperage", "circuit", "breaker", "wire", "panel"}},
	{"Plumbing", []string{"plumbing", "pipe", "valve", "drain", "water", "flow", "pump"}},
	{"Fire-Safety", []string{"fire", "smoke", "alarm", "sprinkler", "emergency", "evacuation"}},
	{"Structural", []string{"structural", "beam", "column", "foundation", "load", "concrete", "steel"}},
}

// Classify assigns a system label to a page. A non-empty hint is authoritative
// and returned unchanged. Otherwise the filename is checked for a label
// substring, then the page text for label keywords, both case-insensitive and
// in declared taxonomy order. Pure function, no I/O.
func Classify(text, filename, hint string) string {
	if hint != "" {
		return hint
	}

	filenameLower := strings.ToLower(filename)
	for _, system := range Systems {
		if strings.Contains(filenameLower, strings.ToLower(system)) {
			return system
		}
	}

	textLower := strings.ToLower(text)
	for _, entry := range systemKeywords {
		for _, keyword := range entry.Keywords {
			if strings.Contains(textLower, keyword) {
				return entry.Label
			}
		}
	}

	return Default
}

// Valid reports whether label is one of the fixed system categories.
func Valid(label string) bool {
	for _, system := range Systems {
		if system == label {
			return true
		}
	}
	return false
}
