package hec

import "github.com/kon-rad/hec-ingest/internal/serialize"

// Metadata carries the four HEC envelope metadata fields (host, source,
// sourcetype, index). An empty field falls back to the client's default
// metadata, field by field.
type Metadata = serialize.Metadata

// Event is a single log-line record: an arbitrary JSON-able body plus
// optional timestamp, metadata, and fields.
type Event struct {
	Body     any
	Time     any // time.Time, int64 (ms since epoch), or nil for "now is irrelevant, omit"
	Metadata Metadata
	Fields   map[string]any
}

func (Event) isRecord() {}

// Metric is a single named numeric measurement.
type Metric struct {
	Name     string
	Value    float64
	Time     any
	Metadata Metadata
	Fields   map[string]any
}

func (Metric) isRecord() {}

// MultiMetric carries several named measurements sharing one timestamp and
// metadata. A nil entry in Measurements is omitted rather than sent as
// zero.
type MultiMetric struct {
	Time         any
	Metadata     Metadata
	Fields       map[string]any
	Measurements map[string]*float64
}

func (MultiMetric) isRecord() {}

// record is the closed set of types Push accepts.
type record interface {
	isRecord()
}
