package filter

import "strings"

// Set holds the parsed sender rules a message must match before it is
// dispatched. An empty set matches every sender.
//
// Three rule shapes are supported:
//
//   - a full address ("boss@example.com") matches exactly
//   - a leading @ ("@example.com") matches every address at that domain,
//     including subdomains
//   - a bare name ("example.com") is shorthand for the @ form
//
// All comparisons are case-insensitive and rules combine with OR.
type Set struct {
	rules []rule
}

type rule struct {
	pattern string
	exact   bool
}

// Parse builds a Set from a comma separated rule list. Blank entries are
// dropped.
func Parse(raw string) Set {
	return ParseList(strings.Split(raw, ","))
}

// ParseList builds a Set from individual rule entries.
func ParseList(entries []string) Set {
	var set Set
	for _, entry := range entries {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if domain, ok := strings.CutPrefix(entry, "@"); ok {
			if domain != "" {
				set.rules = append(set.rules, rule{pattern: domain})
			}
			continue
		}
		if at := strings.LastIndex(entry, "@"); at > 0 {
			set.rules = append(set.rules, rule{pattern: entry, exact: true})
			continue
		}
		set.rules = append(set.rules, rule{pattern: entry})
	}
	return set
}

// Empty reports whether the set carries no rules.
func (s Set) Empty() bool {
	return len(s.rules) == 0
}

// Rules returns the normalised rule patterns, mainly for logging.
func (s Set) Rules() []string {
	out := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		if r.exact {
			out = append(out, r.pattern)
			continue
		}
		out = append(out, "@"+r.pattern)
	}
	return out
}

// Match reports whether the sender address passes the set. An empty set
// passes everything.
func (s Set) Match(address string) bool {
	if len(s.rules) == 0 {
		return true
	}

	address = strings.ToLower(strings.TrimSpace(address))
	domain := ""
	if at := strings.LastIndex(address, "@"); at >= 0 {
		domain = address[at+1:]
	}

	for _, r := range s.rules {
		if r.exact {
			if address == r.pattern {
				return true
			}
			continue
		}
		if domain == "" {
			continue
		}
		if domain == r.pattern || strings.HasSuffix(domain, "."+r.pattern) {
			return true
		}
	}
	return false
}
