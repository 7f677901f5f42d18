package guard

import "strings"

// DomainPolicy optionally narrows outbound network access for process
// hardening. It plays no part in Net's capability gate (spec §4.3's "no
// interception once granted" is satisfied by Net alone); it is enforced
// only by SocksProxy, for subprocesses routed through it.
type DomainPolicy struct {
	AllowedDomains []string
	DeniedDomains  []string
}

// hasWildcardAllowedDomain reports whether the policy allows every domain.
func (p DomainPolicy) hasWildcardAllowedDomain() bool {
	for _, d := range p.AllowedDomains {
		if d == "*" {
			return true
		}
	}
	return false
}

// Empty reports whether the policy imposes no restriction at all, meaning
// the caller can skip building a domain-aware proxy entirely.
func (p DomainPolicy) Empty() bool {
	return len(p.AllowedDomains) == 0 && len(p.DeniedDomains) == 0
}

// Allowed reports whether host may be reached under this policy. Denied
// domains take precedence over allowed ones; an empty allow-list with no
// wildcard means "allow anything not explicitly denied".
func (p DomainPolicy) Allowed(host string) bool {
	host = strings.ToLower(host)

	for _, d := range p.DeniedDomains {
		if domainMatches(d, host) {
			return false
		}
	}

	if p.hasWildcardAllowedDomain() || len(p.AllowedDomains) == 0 {
		return true
	}

	for _, d := range p.AllowedDomains {
		if domainMatches(d, host) {
			return true
		}
	}

	return false
}

// domainMatches supports exact match and a single leading "*." wildcard
// component, e.g. "*.example.com" matches "api.example.com" and
// "example.com".
func domainMatches(pattern, host string) bool {
	pattern = strings.ToLower(pattern)
	if pattern == "*" || pattern == host {
		return true
	}
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // ".example.com"
		return strings.HasSuffix(host, suffix) || host == suffix[1:]
	}
	return false
}
