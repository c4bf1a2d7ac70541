// Package logscan extracts downstream build identifiers from parent build
// console logs.
package logscan

import (
	"regexp"
	"strconv"
)

// buildStartPattern matches the line Jenkins prints when a parent pipeline
// triggers a downstream build, e.g. "Starting building: project Test-A #12".
var buildStartPattern = regexp.MustCompile(`Starting building.* (\S+) #(\d+)`)

// Match is one downstream build discovered in a console log.
type Match struct {
	Family string
	Number int
}

// ExclusionSet holds family names that should never be reported, such as
// notification-only pseudo-jobs.
type ExclusionSet map[string]struct{}

func NewExclusionSet(families ...string) ExclusionSet {
	set := ExclusionSet{}
	for _, family := range families {
		if family != "" {
			set[family] = struct{}{}
		}
	}
	return set
}

func (s ExclusionSet) Has(family string) bool {
	_, ok := s[family]
	return ok
}

// Scan returns every downstream build mentioned in text, in document order,
// with excluded families filtered out. Duplicates are preserved; deduplication
// is the store's concern. A text with no matches yields an empty slice, which
// is a legitimate outcome for a day without triggered builds.
func Scan(text string, exclude ExclusionSet) []Match {
	var matches []Match
	for _, groups := range buildStartPattern.FindAllStringSubmatch(text, -1) {
		family := groups[1]
		if exclude.Has(family) {
			continue
		}
		number, err := strconv.Atoi(groups[2])
		if err != nil {
			// \d+ always parses; only overflow can land here.
			continue
		}
		matches = append(matches, Match{Family: family, Number: number})
	}
	return matches
}
