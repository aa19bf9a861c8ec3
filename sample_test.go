package telemetry_test

import (
	"testing"
	"time"

	telemetry "github.com/darrensmithwtc/go-loadtest-telemetry"
	"github.com/stretchr/testify/require"
)

func TestMapper_Map(t *testing.T) {
	start := time.UnixMilli(1_600_000_000_000)

	m := telemetry.NewMapper("test-1", start, telemetry.Attributes{"ai.env": "staging"}, []string{"x-foo", "x-missing"})

	before := time.Now().UnixMilli()

	obs := m.Map(telemetry.Sample{
		Label:           "login",
		ThreadName:      "Thread Group 1-1",
		URL:             "https://example.com/login",
		ResponseCode:    "200",
		ResponseHeaders: "HTTP/1.1 200 OK\nX-Foo: bar\nX-Baz: qux",
		Elapsed:         250,
		Bytes:           1024,
		SentBytes:       128,
		BodySize:        900,
		ConnectTime:     15,
		IdleTime:        3,
		Latency:         120,
		ErrorCount:      1,
		StartTime:       1_600_000_001_000,
		EndTime:         1_600_000_001_250,
		GroupThreads:    5,
		AllThreads:      10,
		SampleCount:     1,
	})

	require.Equal(t, telemetry.MetricName, obs.Name)
	require.Equal(t, 250.0, obs.Value)
	require.GreaterOrEqual(t, obs.Timestamp, before)
	require.LessOrEqual(t, obs.Timestamp, time.Now().UnixMilli())

	require.Equal(t, telemetry.Attributes{
		"ai.env":          "staging",
		"Bytes":           "1024",
		"SentBytes":       "128",
		"ConnectTime":     "15",
		"ErrorCount":      "1",
		"IdleTime":        "3.0",
		"Latency":         "120.0",
		"BodySize":        "900",
		"TestStartTime":   "1600000000000",
		"SampleStartTime": "1600000001000",
		"SampleEndTime":   "1600000001250",
		"SampleLabel":     "login",
		"ThreadName":      "Thread Group 1-1",
		"URL":             "https://example.com/login",
		"ResponseCode":    "200",
		"GrpThreads":      "5",
		"AllThreads":      "10",
		"SampleCount":     "1",
		"TestName":        "test-1",
		"aih.x-foo":       "bar",
	}, obs.Attributes)
}

func TestMapper_FixedFieldsOverrideCustomProperties(t *testing.T) {
	m := telemetry.NewMapper("test-1", time.Now(), telemetry.Attributes{"TestName": "custom"}, nil)

	obs := m.Map(telemetry.Sample{Label: "a"})

	require.Equal(t, "test-1", obs.Attributes["TestName"])
}

func TestMapper_ObservationsDoNotShareAttributes(t *testing.T) {
	m := telemetry.NewMapper("test-1", time.Now(), telemetry.Attributes{"ai.env": "staging"}, nil)

	a := m.Map(telemetry.Sample{Label: "a"})
	b := m.Map(telemetry.Sample{Label: "b"})

	a.Attributes["ai.env"] = "changed"

	require.Equal(t, "staging", b.Attributes["ai.env"])
	require.Equal(t, "b", b.Attributes["SampleLabel"])
}
