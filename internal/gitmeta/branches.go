package gitmeta

import "strings"

// BranchPatternUnknown is reported when no branch matches a known naming rule.
const BranchPatternUnknown = "unknown"

var canonicalBranchNames = map[string]bool{
	"main":       true,
	"master":     true,
	"develop":    true,
	"dev":        true,
	"staging":    true,
	"production": true,
	"prod":       true,
}

// DetectBranchPattern infers the branch naming convention.
//
// Branches containing a slash are tallied by the prefix before the first slash;
// the most frequent prefix is reported as "<prefix>/*" and wins over literal
// names. Otherwise the most frequent canonical name (main, master, develop, dev,
// staging, production, prod) is returned. Ties go to the earliest branch in the
// list. With neither, the result is "unknown".
func DetectBranchPattern(branches []string) string {
	prefixCounts := make(map[string]int)
	var prefixOrder []string
	literalCounts := make(map[string]int)
	var literalOrder []string

	for _, branch := range branches {
		branch = strings.TrimSpace(branch)
		if branch == "" {
			continue
		}
		if prefix, _, found := strings.Cut(branch, "/"); found && prefix != "" {
			if prefixCounts[prefix] == 0 {
				prefixOrder = append(prefixOrder, prefix)
			}
			prefixCounts[prefix]++
			continue
		}
		if canonicalBranchNames[branch] {
			if literalCounts[branch] == 0 {
				literalOrder = append(literalOrder, branch)
			}
			literalCounts[branch]++
		}
	}

	if best := mostFrequent(prefixOrder, prefixCounts); best != "" {
		return best + "/*"
	}
	if best := mostFrequent(literalOrder, literalCounts); best != "" {
		return best
	}
	return BranchPatternUnknown
}

func mostFrequent(order []string, counts map[string]int) string {
	best, bestCount := "", 0
	for _, key := range order {
		if counts[key] > bestCount {
			best, bestCount = key, counts[key]
		}
	}
	return best
}
