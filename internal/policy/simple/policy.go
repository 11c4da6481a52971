// Package simple holds the host admission policy applied before a candidate
// URL enters the frontier.
package simple

import "strings"

// Policy rejects hosts on a deny list. Patterns are exact hosts
// ("yelp.com") or suffix wildcards ("*.tripadvisor.com", ".facebook.com").
type Policy struct {
	exact    map[string]struct{}
	suffixes []string
}

// New builds a Policy from deny patterns. A nil or empty list allows all.
func New(patterns []string) *Policy {
	p := &Policy{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case value == "":
		case strings.HasPrefix(value, "*."):
			p.addSuffix(value[2:])
		case strings.HasPrefix(value, "."):
			p.addSuffix(value[1:])
		default:
			p.exact[value] = struct{}{}
		}
	}
	return p
}

func (p *Policy) addSuffix(suffix string) {
	if suffix == "" {
		return
	}
	for _, s := range p.suffixes {
		if s == suffix {
			return
		}
	}
	p.suffixes = append(p.suffixes, suffix)
}

// Allow reports whether host may be registered.
func (p *Policy) Allow(host string) bool {
	if p == nil {
		return true
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if _, ok := p.exact[host]; ok {
		return false
	}
	for _, suffix := range p.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return false
		}
	}
	return true
}
