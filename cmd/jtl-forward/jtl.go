package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	telemetry "github.com/darrensmithwtc/go-loadtest-telemetry"
)

// Columns of a JMeter CSV results file. Only timeStamp, elapsed and label are required.
const (
	colTimeStamp    = "timeStamp"
	colElapsed      = "elapsed"
	colLabel        = "label"
	colResponseCode = "responseCode"
	colThreadName   = "threadName"
	colSuccess      = "success"
	colBytes        = "bytes"
	colSentBytes    = "sentBytes"
	colGrpThreads   = "grpThreads"
	colAllThreads   = "allThreads"
	colURL          = "URL"
	colLatency      = "Latency"
	colIdleTime     = "IdleTime"
	colConnect      = "Connect"
	colSampleCount  = "SampleCount"
	colErrorCount   = "ErrorCount"
)

// jtlReader reads samples from a JMeter CSV results file.
type jtlReader struct {
	r       *csv.Reader
	columns map[string]int
	line    int
}

func newJTLReader(r io.Reader) (*jtlReader, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))

	for i, name := range header {
		columns[name] = i
	}

	for _, name := range []string{colTimeStamp, colElapsed, colLabel} {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	return &jtlReader{r: cr, columns: columns, line: 1}, nil
}

// Read returns up to n samples, or io.EOF once the file is exhausted.
func (jr *jtlReader) Read(n int) ([]telemetry.Sample, error) {
	var samples []telemetry.Sample

	for len(samples) < n {
		record, err := jr.r.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}

		jr.line++

		sample, err := jr.parse(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", jr.line, err)
		}

		samples = append(samples, sample)
	}

	if len(samples) == 0 {
		return nil, io.EOF
	}

	return samples, nil
}

func (jr *jtlReader) parse(record []string) (telemetry.Sample, error) {
	p := fieldParser{record: record, columns: jr.columns}

	sample := telemetry.Sample{
		Label:        p.str(colLabel),
		ThreadName:   p.str(colThreadName),
		URL:          p.str(colURL),
		ResponseCode: p.str(colResponseCode),
		StartTime:    p.int(colTimeStamp, 0),
		Elapsed:      p.int(colElapsed, 0),
		Bytes:        p.int(colBytes, 0),
		SentBytes:    p.int(colSentBytes, 0),
		ConnectTime:  p.int(colConnect, 0),
		IdleTime:     p.int(colIdleTime, 0),
		Latency:      p.int(colLatency, 0),
		GroupThreads: int(p.int(colGrpThreads, 0)),
		AllThreads:   int(p.int(colAllThreads, 0)),
		SampleCount:  int(p.int(colSampleCount, 1)),
	}

	if p.err != nil {
		return telemetry.Sample{}, p.err
	}

	sample.EndTime = sample.StartTime + sample.Elapsed

	// The results file does not record the body size separately.
	sample.BodySize = sample.Bytes

	if _, ok := jr.columns[colErrorCount]; ok {
		sample.ErrorCount = int(p.int(colErrorCount, 0))
	} else if p.str(colSuccess) == "false" {
		sample.ErrorCount = 1
	}

	return sample, p.err
}

// fieldParser reads named fields from a record, remembering the first parse error.
type fieldParser struct {
	record  []string
	columns map[string]int
	err     error
}

func (p *fieldParser) str(name string) string {
	i, ok := p.columns[name]
	if !ok || i >= len(p.record) {
		return ""
	}

	return p.record[i]
}

func (p *fieldParser) int(name string, def int64) int64 {
	val := p.str(name)
	if val == "" {
		return def
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("column %q: %w", name, err)
	}

	return n
}
