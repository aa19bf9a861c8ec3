package telemetry_test

import (
	"testing"

	telemetry "github.com/darrensmithwtc/go-loadtest-telemetry"
	"github.com/stretchr/testify/require"
)

func TestSamplerFilter(t *testing.T) {
	tests := []struct {
		name     string
		list     string
		useRegex bool
		match    []string
		noMatch  []string
	}{
		{
			name:  "empty list matches everything",
			list:  "  ",
			match: []string{"login", "", "anything"},
		},
		{
			name:    "exact names",
			list:    "login;logout",
			match:   []string{"login", "logout"},
			noMatch: []string{"Login", "login2", "log"},
		},
		{
			name:     "regex matches whole label",
			list:     "log(in|out)",
			useRegex: true,
			match:    []string{"login", "logout"},
			noMatch:  []string{"xlogin", "login2"},
		},
		{
			name:     "regex list is one pattern",
			list:     "home;about",
			useRegex: true,
			match:    []string{"home;about"},
			noMatch:  []string{"home", "about"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := telemetry.NewSamplerFilter(tt.list, tt.useRegex)
			require.NoError(t, err)

			for _, label := range tt.match {
				require.True(t, f.Match(label), label)
			}

			for _, label := range tt.noMatch {
				require.False(t, f.Match(label), label)
			}
		})
	}
}

func TestSamplerFilter_InvalidPattern(t *testing.T) {
	_, err := telemetry.NewSamplerFilter("log(in", true)
	require.Error(t, err)
}

func TestSamplerFilter_Clear(t *testing.T) {
	f, err := telemetry.NewSamplerFilter("login", false)
	require.NoError(t, err)
	require.True(t, f.Match("login"))

	f.Clear()

	require.False(t, f.Match("login"))
}
