package telemetry_test

import (
	"testing"

	telemetry "github.com/darrensmithwtc/go-loadtest-telemetry"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
)

func TestDefaultParameters(t *testing.T) {
	require.Equal(t, map[string]string{
		"testName":               "jmeter",
		"connectionString":       "https://metric-api.eu.newrelic.com/metric/v1",
		"licenceKey":             "",
		"samplersList":           "",
		"useRegexForSamplerList": "false",
		"metricBatchSize":        "10",
	}, telemetry.DefaultParameters())
}

func TestParseConfig(t *testing.T) {
	cfg, err := telemetry.ParseConfig(map[string]string{
		"testName":               "test-1",
		"licenceKey":             "euABCXYZ",
		"samplersList":           "login;logout",
		"useRegexForSamplerList": "true",
		"metricBatchSize":        "25",
		"responseHeaders":        " X-Request-Id ;Content-Type;  ",
		"ai.env":                 "staging",
		"ai.region":              "eu",
		"unknown":                "ignored",
	})
	require.NoError(t, err)

	require.Equal(t, "test-1", cfg.TestName)
	require.Equal(t, telemetry.DefaultEndpoint, cfg.ConnectionString)
	require.Equal(t, "euABCXYZ", cfg.LicenceKey)
	require.Equal(t, "login;logout", cfg.SamplersList)
	require.True(t, cfg.UseRegexForSamplerList)
	require.Equal(t, 25, cfg.MetricBatchSize)
	require.Equal(t, telemetry.HeaderList{"x-request-id", "content-type"}, cfg.ResponseHeaders)
	require.Equal(t, telemetry.Attributes{"ai.env": "staging", "ai.region": "eu"}, cfg.CustomProperties)
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := telemetry.ParseConfig(map[string]string{"licenceKey": "key"})
	require.NoError(t, err)

	require.Equal(t, telemetry.DefaultTestName, cfg.TestName)
	require.Equal(t, telemetry.DefaultBatchSize, cfg.MetricBatchSize)
	require.False(t, cfg.UseRegexForSamplerList)
	require.Empty(t, cfg.ResponseHeaders)
	require.Empty(t, cfg.CustomProperties)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := telemetry.ParseConfig(map[string]string{
		"connectionString":       "not a url",
		"metricBatchSize":        "0",
		"samplersList":           "log(in",
		"useRegexForSamplerList": "true",
	})

	var cfgErr *telemetry.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	// Every problem is reported at once.
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 4)
}

func TestParseConfig_MalformedNumber(t *testing.T) {
	_, err := telemetry.ParseConfig(map[string]string{
		"licenceKey":      "key",
		"metricBatchSize": "ten",
	})

	var cfgErr *telemetry.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseHeaderList(t *testing.T) {
	require.Nil(t, telemetry.ParseHeaderList("   "))
	require.Equal(t, telemetry.HeaderList{"x-foo"}, telemetry.ParseHeaderList("X-Foo"))
	require.Equal(t, telemetry.HeaderList{"x-foo", "x-bar"}, telemetry.ParseHeaderList("X-Foo ; X-Bar"))
}

func TestParseConfig_Filter(t *testing.T) {
	cfg, err := telemetry.ParseConfig(map[string]string{
		"licenceKey":             "key",
		"samplersList":           "api-.*",
		"useRegexForSamplerList": "true",
	})
	require.NoError(t, err)

	filter := cfg.Filter()
	require.NotNil(t, filter)
	require.True(t, filter.Match("api-users"))
	require.False(t, filter.Match("static"))

	cfg, err = telemetry.ParseConfig(map[string]string{"licenceKey": "key"})
	require.NoError(t, err)
	require.True(t, cfg.Filter().Match("anything"))
}
