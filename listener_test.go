package telemetry_test

import (
	"context"
	"testing"

	telemetry "github.com/darrensmithwtc/go-loadtest-telemetry"
	"github.com/darrensmithwtc/go-loadtest-telemetry/server"
	"github.com/stretchr/testify/require"
)

func TestListener_Lifecycle(t *testing.T) {
	s := server.New(server.WithLicenseKeys(testLicenseKey))
	defer s.Close()

	l := telemetry.NewListener(telemetry.WithTransport(telemetry.InsecureTransport()))

	require.Equal(t, telemetry.DefaultParameters(), l.DefaultParameters())

	require.NoError(t, l.Setup(context.Background(), map[string]string{
		"testName":         "test-1",
		"connectionString": s.GetEndpoint(),
		"licenceKey":       testLicenseKey,
		"samplersList":     "login;logout",
		"metricBatchSize":  "2",
		"responseHeaders":  "X-Request-Id",
		"ai.env":           "staging",
	}))

	require.NoError(t, l.HandleSampleResults(context.Background(), []telemetry.Sample{
		{Label: "login", Elapsed: 100, ResponseHeaders: "X-Request-Id: r1"},
		{Label: "home", Elapsed: 200},
		{Label: "logout", Elapsed: 300, ResponseHeaders: "Content-Type: text/html"},
	}))

	// The two matching samples fill the first batch.
	require.Len(t, s.GetBatches(), 1)

	require.NoError(t, l.HandleSampleResults(context.Background(), []telemetry.Sample{
		{Label: "login", Elapsed: 400},
	}))

	require.NoError(t, l.Teardown(context.Background()))

	batches := s.GetBatches()
	require.Len(t, batches, 2)

	for _, batch := range batches {
		require.Equal(t, telemetry.Attributes{"ingestProvider": telemetry.IngestProvider}, batch.Common.Attributes)
	}

	metrics := s.GetMetrics()
	require.Len(t, metrics, 3)

	require.Equal(t, 100.0, metrics[0].Value)
	require.Equal(t, "login", metrics[0].Attributes["SampleLabel"])
	require.Equal(t, "test-1", metrics[0].Attributes["TestName"])
	require.Equal(t, "staging", metrics[0].Attributes["ai.env"])
	require.Equal(t, "r1", metrics[0].Attributes["aih.x-request-id"])

	require.Equal(t, 300.0, metrics[1].Value)
	require.NotContains(t, metrics[1].Attributes, "aih.x-request-id")

	require.Equal(t, 400.0, metrics[2].Value)

	require.Equal(t, telemetry.Stats{Recorded: 3, Sent: 3, Flushes: 2}, l.Forwarder().Stats())

	// Samples after the run ends are rejected.
	require.ErrorIs(t, l.HandleSampleResults(context.Background(), []telemetry.Sample{{Label: "login"}}), telemetry.ErrForwarderClosed)
}

func TestListener_NotSetUp(t *testing.T) {
	l := telemetry.NewListener()

	require.Nil(t, l.Forwarder())
	require.ErrorIs(t, l.HandleSampleResults(context.Background(), nil), telemetry.ErrListenerNotSetUp)
	require.ErrorIs(t, l.Teardown(context.Background()), telemetry.ErrListenerNotSetUp)
}

func TestListener_InvalidParameters(t *testing.T) {
	l := telemetry.NewListener()

	err := l.Setup(context.Background(), map[string]string{
		"connectionString": "https://metric-api.example.com/metric/v1",
	})

	var cfgErr *telemetry.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Nil(t, l.Forwarder())
}

func TestListener_RegexSamplerList(t *testing.T) {
	sink := &recordingSink{}

	l := telemetry.NewListener(telemetry.WithSink(sink))

	require.NoError(t, l.Setup(context.Background(), map[string]string{
		"licenceKey":             testLicenseKey,
		"samplersList":           "api-.*",
		"useRegexForSamplerList": "true",
	}))

	require.NoError(t, l.HandleSampleResults(context.Background(), []telemetry.Sample{
		{Label: "api-users"},
		{Label: "static"},
		{Label: "api-orders"},
	}))

	require.NoError(t, l.Teardown(context.Background()))

	batches := sink.getBatches()
	require.Len(t, batches, 1)
	require.Equal(t, []string{"api-users", "api-orders"}, labels(batches[0]))
}

func TestListener_SamplesAfterTeardown(t *testing.T) {
	tests := []struct {
		name     string
		samplers string
		regex    string
	}{
		{name: "exact list", samplers: "login;logout", regex: "false"},
		{name: "regex", samplers: "log.*", regex: "true"},
		{name: "empty list", samplers: "", regex: "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}

			l := telemetry.NewListener(telemetry.WithSink(sink))

			require.NoError(t, l.Setup(context.Background(), map[string]string{
				"licenceKey":             testLicenseKey,
				"samplersList":           tt.samplers,
				"useRegexForSamplerList": tt.regex,
			}))

			require.NoError(t, l.HandleSampleResults(context.Background(), []telemetry.Sample{{Label: "login"}}))
			require.NoError(t, l.Teardown(context.Background()))

			// Every filter mode rejects samples once the run has ended.
			require.ErrorIs(t, l.HandleSampleResults(context.Background(), []telemetry.Sample{{Label: "login"}}), telemetry.ErrForwarderClosed)
			require.ErrorIs(t, l.HandleSampleResults(context.Background(), []telemetry.Sample{{Label: "other"}}), telemetry.ErrForwarderClosed)

			require.Equal(t, 1, sink.countMetrics())
		})
	}
}

func TestListener_SetupTwice(t *testing.T) {
	first := &recordingSink{}

	l := telemetry.NewListener(telemetry.WithSink(first))

	params := map[string]string{
		"licenceKey":      testLicenseKey,
		"metricBatchSize": "10",
	}

	require.NoError(t, l.Setup(context.Background(), params))
	require.NoError(t, l.HandleSampleResults(context.Background(), []telemetry.Sample{{Label: "a"}, {Label: "b"}}))

	previous := l.Forwarder()

	require.NoError(t, l.Setup(context.Background(), params))

	// The unfinished run is closed, sending what it held.
	require.NotSame(t, previous, l.Forwarder())
	require.Equal(t, telemetry.Stats{Recorded: 2, Sent: 2, Flushes: 1}, previous.Stats())
	require.Len(t, first.getBatches(), 1)
	require.Equal(t, []string{"a", "b"}, labels(first.getBatches()[0]))

	require.NoError(t, l.HandleSampleResults(context.Background(), []telemetry.Sample{{Label: "c"}}))
	require.NoError(t, l.Teardown(context.Background()))

	require.Equal(t, telemetry.Stats{Recorded: 1, Sent: 1, Flushes: 1}, l.Forwarder().Stats())
}

func TestListener_SetupAfterTeardown(t *testing.T) {
	sink := &recordingSink{}

	l := telemetry.NewListener(telemetry.WithSink(sink))

	params := map[string]string{"licenceKey": testLicenseKey}

	require.NoError(t, l.Setup(context.Background(), params))
	require.NoError(t, l.Teardown(context.Background()))

	require.NoError(t, l.Setup(context.Background(), params))
	require.NoError(t, l.HandleSampleResults(context.Background(), []telemetry.Sample{{Label: "a"}}))
	require.NoError(t, l.Teardown(context.Background()))

	require.Equal(t, 1, sink.countMetrics())
}
