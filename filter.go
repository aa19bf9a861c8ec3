package telemetry

import (
	"fmt"
	"regexp"
	"strings"
)

// SamplerListSeparator separates sampler names in a sampler list.
const SamplerListSeparator = ";"

// SamplerFilter decides which samples are forwarded, based on their label.
type SamplerFilter struct {
	// all is set when no sampler list was given; every label then matches.
	all bool

	pattern *regexp.Regexp
	names   map[string]struct{}
}

// NewSamplerFilter builds a filter from a sampler list.
// With useRegex the whole list is a pattern that must match the entire label;
// otherwise it is a list of exact labels separated by SamplerListSeparator.
func NewSamplerFilter(list string, useRegex bool) (*SamplerFilter, error) {
	list = strings.TrimSpace(list)

	if list == "" {
		return &SamplerFilter{all: true}, nil
	}

	if useRegex {
		pattern, err := regexp.Compile(`^(?:` + list + `)$`)
		if err != nil {
			return nil, fmt.Errorf("invalid sampler pattern %q: %w", list, err)
		}

		return &SamplerFilter{pattern: pattern}, nil
	}

	names := make(map[string]struct{})

	for _, name := range strings.Split(list, SamplerListSeparator) {
		if name != "" {
			names[name] = struct{}{}
		}
	}

	return &SamplerFilter{names: names}, nil
}

// Match reports whether samples with the given label should be forwarded.
func (f *SamplerFilter) Match(label string) bool {
	if f.all {
		return true
	}

	if f.pattern != nil {
		return f.pattern.MatchString(label)
	}

	_, ok := f.names[label]

	return ok
}

// Clear forgets the exact labels of the filter.
func (f *SamplerFilter) Clear() {
	f.names = make(map[string]struct{})
}
