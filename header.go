package telemetry

import (
	"regexp"
	"strings"
)

// HeaderAttributePrefix prefixes the attribute key of every extracted response header.
const HeaderAttributePrefix = "aih."

// headerExtractor finds the value of one header in a raw response header block.
type headerExtractor struct {
	name string
	re   *regexp.Regexp
}

func newHeaderExtractor(name string) headerExtractor {
	return headerExtractor{
		name: name,
		re:   regexp.MustCompile(`(?im)^` + regexp.QuoteMeta(name) + `:(.*)$`),
	}
}

func (h headerExtractor) key() string {
	return HeaderAttributePrefix + h.name
}

func (h headerExtractor) extract(raw string) (string, bool) {
	match := h.re.FindStringSubmatch(raw)
	if match == nil {
		return "", false
	}

	return strings.TrimSpace(match[1]), true
}

// ExtractHeader returns the trimmed value of the first line of raw whose header name matches name, ignoring case.
func ExtractHeader(raw, name string) (string, bool) {
	return newHeaderExtractor(name).extract(raw)
}
