package usecase

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	urlPattern  = regexp.MustCompile(`https?://\S+`)
	urlValidate = validator.New()
)

// ExtractURLs returns the http(s) URLs found in text, first occurrence
// order, without duplicates. Candidates that do not parse as an http URL
// with a host are dropped.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		u := strings.TrimSpace(m)
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		if err := urlValidate.Var(u, "required,http_url"); err != nil {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}
