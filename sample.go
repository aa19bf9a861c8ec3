package telemetry

import (
	"strconv"
	"time"

	"github.com/bradenaw/juniper/xslices"
)

// MetricName is the name of every observation produced from a sample.
const MetricName = "wtc.loadtest.result"

// Sample is the raw measurement of a single request made by the load-testing tool.
type Sample struct {
	Label           string
	ThreadName      string
	URL             string
	ResponseCode    string
	ResponseHeaders string

	// Elapsed is the total time taken by the request, in milliseconds.
	Elapsed int64

	Bytes       int64
	SentBytes   int64
	BodySize    int64
	ConnectTime int64
	IdleTime    int64
	Latency     int64
	ErrorCount  int

	// StartTime and EndTime are in milliseconds since the Unix epoch.
	StartTime int64
	EndTime   int64

	GroupThreads int
	AllThreads   int
	SampleCount  int
}

// Mapper turns samples into observations.
type Mapper struct {
	testName      string
	testStartTime int64
	custom        Attributes
	headers       []headerExtractor
	now           func() time.Time
}

// NewMapper returns a mapper that tags every observation with the test name and start time,
// the given custom properties and the values of the given response headers.
func NewMapper(testName string, testStart time.Time, custom Attributes, headerNames []string) *Mapper {
	return &Mapper{
		testName:      testName,
		testStartTime: testStart.UnixMilli(),
		custom:        custom.Clone(),
		headers:       xslices.Map(headerNames, newHeaderExtractor),
		now:           time.Now,
	}
}

// Map builds the observation for a sample. Its value is the sample's elapsed time.
func (m *Mapper) Map(s Sample) Observation {
	attrs := m.custom.Clone()

	attrs["Bytes"] = strconv.FormatInt(s.Bytes, 10)
	attrs["SentBytes"] = strconv.FormatInt(s.SentBytes, 10)
	attrs["ConnectTime"] = strconv.FormatInt(s.ConnectTime, 10)
	attrs["ErrorCount"] = strconv.Itoa(s.ErrorCount)
	attrs["IdleTime"] = formatDecimal(s.IdleTime)
	attrs["Latency"] = formatDecimal(s.Latency)
	attrs["BodySize"] = strconv.FormatInt(s.BodySize, 10)
	attrs["TestStartTime"] = strconv.FormatInt(m.testStartTime, 10)
	attrs["SampleStartTime"] = strconv.FormatInt(s.StartTime, 10)
	attrs["SampleEndTime"] = strconv.FormatInt(s.EndTime, 10)
	attrs["SampleLabel"] = s.Label
	attrs["ThreadName"] = s.ThreadName
	attrs["URL"] = s.URL
	attrs["ResponseCode"] = s.ResponseCode
	attrs["GrpThreads"] = strconv.Itoa(s.GroupThreads)
	attrs["AllThreads"] = strconv.Itoa(s.AllThreads)
	attrs["SampleCount"] = strconv.Itoa(s.SampleCount)
	attrs["TestName"] = m.testName

	for _, header := range m.headers {
		if val, ok := header.extract(s.ResponseHeaders); ok {
			attrs[header.key()] = val
		}
	}

	return Observation{
		Name:       MetricName,
		Value:      float64(s.Elapsed),
		Timestamp:  m.now().UnixMilli(),
		Attributes: attrs,
	}
}

// formatDecimal renders a whole number of milliseconds with one decimal place, e.g. "12.0".
func formatDecimal(v int64) string {
	return strconv.FormatFloat(float64(v), 'f', 1, 64)
}
