package wikigraph

import (
	"regexp"
	"sort"
	"strings"
)

var linkRE *regexp.Regexp

func init() {
	linkRE = regexp.MustCompile(`\[\[([^\[\]]*)\]\]`)
}

// CountLinks counts the wikilink targets within an article body.
//
// For [[target|display]] only target counts; the display text goes
// away even if it has more pipes in it.  Targets are case sensitive.
// Brackets that don't form a flat [[...]] pair are ignored.
func CountLinks(text string) map[string]int {
	rv := map[string]int{}
	for _, m := range linkRE.FindAllStringSubmatch(text, -1) {
		target := m[1]
		if i := strings.IndexByte(target, '|'); i >= 0 {
			target = target[:i]
		}
		rv[target]++
	}
	return rv
}

// UnresolvedPolicy says what becomes of links to titles that aren't
// in the node index.
type UnresolvedPolicy int

const (
	// DropUnresolved silently forgets them.
	DropUnresolved UnresolvedPolicy = iota
	// RecordMissing points them all at MissingTarget.
	RecordMissing
)

// MissingTarget stands in for every unresolved title under
// RecordMissing.
const MissingTarget = "404"

func (p UnresolvedPolicy) String() string {
	switch p {
	case DropUnresolved:
		return "drop"
	case RecordMissing:
		return "missing"
	}
	return "unknown"
}

// ParseUnresolvedPolicy is the inverse of UnresolvedPolicy.String.
func ParseUnresolvedPolicy(s string) (UnresolvedPolicy, bool) {
	switch strings.ToLower(s) {
	case "", "drop":
		return DropUnresolved, true
	case "missing":
		return RecordMissing, true
	}
	return DropUnresolved, false
}

// ResolveLinks turns one article's link counts into edges.
//
// Only targets that are exact keys of the sealed index survive, unless
// the policy says to record them as missing, in which case their
// counts are pooled under MissingTarget (shared with a real "404"
// article, should the dump have one).  Edges come out sorted by
// target.  The number of unresolved references is returned too.
func ResolveLinks(source string, counts map[string]int, idx *NodeIndex,
	policy UnresolvedPolicy) ([]EdgeRecord, int) {

	weights := make(map[string]int, len(counts))
	unresolved := 0
	for target, n := range counts {
		switch {
		case idx.Has(target):
			weights[target] += n
		case policy == RecordMissing:
			unresolved += n
			weights[MissingTarget] += n
		default:
			unresolved += n
		}
	}

	rv := make([]EdgeRecord, 0, len(weights))
	for target, n := range weights {
		rv = append(rv, EdgeRecord{From: source, To: target, Weight: n})
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i].To < rv[j].To })
	return rv, unresolved
}
