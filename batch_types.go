package telemetry

import (
	"github.com/bradenaw/juniper/xslices"
	"golang.org/x/exp/maps"
)

// MetricType is the type of a metric as understood by the ingestion API.
type MetricType string

const (
	MetricTypeGauge MetricType = "gauge"
)

// Attributes is a set of string key/value pairs attached to a metric or a batch.
type Attributes map[string]string

// Clone returns a copy of the attributes that shares no state with the original.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}

	return maps.Clone(a)
}

// Observation is a single metric data point reported by a caller.
type Observation struct {
	Name       string
	Value      float64
	Timestamp  int64 // Milliseconds since the Unix epoch.
	Attributes Attributes
}

// MetricBatch is the payload sent to the ingestion API in a single request.
type MetricBatch struct {
	Common  MetricCommon `json:"common"`
	Metrics []Metric     `json:"metrics"`
}

type MetricCommon struct {
	Attributes Attributes `json:"attributes,omitempty"`
}

type Metric struct {
	Name       string     `json:"name"`
	Type       MetricType `json:"type"`
	Value      float64    `json:"value"`
	Timestamp  int64      `json:"timestamp"`
	Attributes Attributes `json:"attributes,omitempty"`
}

func newMetricBatch(common Attributes, obs []Observation) MetricBatch {
	return MetricBatch{
		Common: MetricCommon{Attributes: common},
		Metrics: xslices.Map(obs, func(o Observation) Metric {
			return Metric{
				Name:       o.Name,
				Type:       MetricTypeGauge,
				Value:      o.Value,
				Timestamp:  o.Timestamp,
				Attributes: o.Attributes,
			}
		}),
	}
}
