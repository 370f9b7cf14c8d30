package types

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// PageTarget is one (label, URL) pair to be tested in a run.
type PageTarget struct {
	Label string `json:"label" yaml:"label"`
	URL   string `json:"url" yaml:"url"`
}

// Site identifies the website under test. It is derived from the first
// page target of a run and passed explicitly to every check.
type Site struct {
	// Origin is scheme://host/ with a trailing slash.
	Origin string `json:"origin"`

	// Domain is the origin without scheme, "www." prefix and trailing slash.
	// It prefixes every artifact file name.
	Domain string `json:"domain"`
}

var schemePrefix = regexp.MustCompile(`^https?://(www\.)?`)

// SiteFromTargets derives the Site from the first target.
func SiteFromTargets(targets []PageTarget) (Site, error) {
	if len(targets) == 0 {
		return Site{}, fmt.Errorf("no page targets")
	}
	return SiteFromURL(targets[0].URL)
}

// SiteFromURL derives the Site for a single page URL.
func SiteFromURL(raw string) (Site, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Site{}, fmt.Errorf("invalid page url %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Site{}, fmt.Errorf("page url %q must be absolute", raw)
	}

	origin := u.Scheme + "://" + u.Host + "/"
	return Site{
		Origin: origin,
		Domain: DomainName(origin),
	}, nil
}

// DomainName strips the scheme, an optional "www." and a trailing slash.
func DomainName(raw string) string {
	return strings.TrimSuffix(schemePrefix.ReplaceAllString(raw, ""), "/")
}

// SanitizeLabel removes whitespace and lower-cases a page label so it can be
// embedded in file names.
func SanitizeLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), ""))
}
