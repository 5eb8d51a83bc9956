package fetch

import (
	"log/slog"
	"net/url"
	"regexp"
)

// FilterLinks normalizes crawl candidates: fragments are stripped, duplicates
// dropped and exclusion patterns applied. When host is non-empty only links on
// that exact host are kept. Input order is preserved.
func FilterLinks(host string, links []string, exclusions []string) []string {
	var patterns []*regexp.Regexp
	for _, ex := range exclusions {
		re, err := regexp.Compile(ex)
		if err != nil {
			slog.Warn("ignoring invalid exclusion pattern", "pattern", ex, "error", err)
			continue
		}
		patterns = append(patterns, re)
	}

	var out []string
	seen := make(map[string]bool)

	for _, link := range links {
		// 1. External Check
		linkU, err := url.Parse(link)
		if err != nil {
			continue
		}
		if host != "" && linkU.Host != host {
			continue
		}

		// Normalize: Strip Fragment
		linkU.Fragment = ""
		normalized := linkU.String()

		// 2. Exclusion Check
		excluded := false
		for _, re := range patterns {
			if re.MatchString(normalized) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		if seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}
