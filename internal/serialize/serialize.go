// Package serialize converts event, metric, and multi-metric records into
// the newline-delimited JSON envelopes the HEC wire protocol expects.
package serialize

import (
	"fmt"
	"math"
	"time"

	json "github.com/goccy/go-json"
)

// Message is one opaque, already newline-terminated wire envelope, ready
// to be appended into a request body. The multi-envelope case of
// MultiMetric returns one Message per envelope.
type Message struct {
	data []byte
}

// Len reports the byte length of the message.
func (m Message) Len() int { return len(m.data) }

// Bytes returns the message's bytes. Callers must not mutate the result.
func (m Message) Bytes() []byte { return m.data }

// Metadata carries the four HEC envelope metadata fields. A zero value
// field means "not set", letting the caller fall back to defaults.
type Metadata struct {
	Host       string
	Source     string
	SourceType string
	Index      string
}

// merge returns a copy of m with any empty field filled in from def.
func (m Metadata) merge(def Metadata) Metadata {
	out := m
	if out.Host == "" {
		out.Host = def.Host
	}
	if out.Source == "" {
		out.Source = def.Source
	}
	if out.SourceType == "" {
		out.SourceType = def.SourceType
	}
	if out.Index == "" {
		out.Index = def.Index
	}
	return out
}

// Defaults bundles the client-level default metadata and default fields
// applied beneath a record's own metadata/fields.
type Defaults struct {
	Metadata Metadata
	Fields   map[string]any
}

// EventInput is the shape serialize.Event needs from a caller's event
// record; it intentionally mirrors hec.Event without importing it, so
// this package stays a leaf with no dependency back on the client.
type EventInput struct {
	Body     any
	Time     any // time.Time, int64 (ms since epoch), or nil
	Metadata Metadata
	Fields   map[string]any
}

// MetricInput mirrors hec.Metric.
type MetricInput struct {
	Name     string
	Value    float64
	Time     any
	Metadata Metadata
	Fields   map[string]any
}

// MultiMetricInput mirrors hec.MultiMetric.
type MultiMetricInput struct {
	Time         any
	Metadata     Metadata
	Fields       map[string]any
	Measurements map[string]*float64
}

// ErrNonFiniteValue is returned when a metric value is NaN or +/-Inf; the
// HEC wire format has no representation for it.
var ErrNonFiniteValue = fmt.Errorf("metric value must be finite")

// kv is one ordered key/value pair of the emitted envelope.
type kv struct {
	key string
	val any
}

// orderedObject marshals as a JSON object preserving insertion order,
// which is what makes the byte-exact field ordering in the wire protocol
// possible: encoding/json on a map would alphabetize keys instead.
type orderedObject []kv

func (o orderedObject) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	for i, pair := range o {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyBytes, err := json.Marshal(pair.key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')
		valBytes, err := json.Marshal(pair.val)
		if err != nil {
			return nil, err
		}
		buf = append(buf, valBytes...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// coerceTime accepts a millisecond-since-epoch integer or a time.Time and
// returns seconds since epoch with millisecond precision, rounded to three
// decimal places. The second return is false when t is absent or
// unparseable, in which case the time field must be omitted entirely.
func coerceTime(t any) (float64, bool) {
	var ms int64
	switch v := t.(type) {
	case nil:
		return 0, false
	case time.Time:
		if v.IsZero() {
			return 0, false
		}
		ms = v.UnixMilli()
	case int64:
		ms = v
	case int:
		ms = int64(v)
	default:
		return 0, false
	}
	seconds := float64(ms) / 1000.0
	return math.Round(seconds*1000) / 1000, true
}

// mergeFields deep-merges overlay on top of base: nested maps recurse,
// any other value type is replaced wholesale by overlay's value.
func mergeFields(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		if baseVal, ok := out[k]; ok {
			baseMap, baseIsMap := baseVal.(map[string]any)
			overlayMap, overlayIsMap := v.(map[string]any)
			if baseIsMap && overlayIsMap {
				out[k] = mergeFields(baseMap, overlayMap)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// resolvedFields returns the deep-merged fields map (defaults then
// record), never nil, ready to receive metric injections.
func resolvedFields(defaults, record map[string]any) map[string]any {
	merged := mergeFields(defaults, record)
	if merged == nil {
		merged = make(map[string]any)
	}
	return merged
}

// envelopeHeader appends time/host/source/sourcetype/index to obj,
// omitting any field that resolves empty (or, for time, unresolvable).
func envelopeHeader(obj orderedObject, t any, meta, defMeta Metadata) orderedObject {
	if seconds, ok := coerceTime(t); ok {
		obj = append(obj, kv{"time", seconds})
	}
	resolved := meta.merge(defMeta)
	if resolved.Host != "" {
		obj = append(obj, kv{"host", resolved.Host})
	}
	if resolved.Source != "" {
		obj = append(obj, kv{"source", resolved.Source})
	}
	if resolved.SourceType != "" {
		obj = append(obj, kv{"sourcetype", resolved.SourceType})
	}
	if resolved.Index != "" {
		obj = append(obj, kv{"index", resolved.Index})
	}
	return obj
}

// Event serializes a single event record.
func Event(ev EventInput, def Defaults) (Message, error) {
	fields := resolvedFields(def.Fields, ev.Fields)

	obj := envelopeHeader(nil, ev.Time, ev.Metadata, def.Metadata)
	obj = append(obj, kv{"fields", fields})
	obj = append(obj, kv{"event", ev.Body})

	return marshalEnvelope(obj)
}

// Metric serializes a single metric record.
func Metric(m MetricInput, def Defaults) (Message, error) {
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return Message{}, ErrNonFiniteValue
	}

	fields := resolvedFields(def.Fields, m.Fields)
	fields["metric_name"] = m.Name
	fields["_value"] = m.Value

	obj := envelopeHeader(nil, m.Time, m.Metadata, def.Metadata)
	obj = append(obj, kv{"fields", fields})

	return marshalEnvelope(obj)
}

// MultiMetric serializes a multi-measurement record. When multiFormat is
// true, a single envelope is produced with fields["metric_name:<k>"] for
// every non-null measurement. When false, one single-metric envelope per
// non-null measurement is produced, sharing the timestamp and metadata.
func MultiMetric(mm MultiMetricInput, def Defaults, multiFormat bool) ([]Message, error) {
	if !multiFormat {
		out := make([]Message, 0, len(mm.Measurements))
		for name, val := range mm.Measurements {
			if val == nil {
				continue
			}
			msg, err := Metric(MetricInput{
				Name:     name,
				Value:    *val,
				Time:     mm.Time,
				Metadata: mm.Metadata,
				Fields:   mm.Fields,
			}, def)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		}
		return out, nil
	}

	fields := resolvedFields(def.Fields, mm.Fields)
	for name, val := range mm.Measurements {
		if val == nil {
			continue
		}
		if math.IsNaN(*val) || math.IsInf(*val, 0) {
			return nil, ErrNonFiniteValue
		}
		fields["metric_name:"+name] = *val
	}

	obj := envelopeHeader(nil, mm.Time, mm.Metadata, def.Metadata)
	obj = append(obj, kv{"fields", fields})

	msg, err := marshalEnvelope(obj)
	if err != nil {
		return nil, err
	}
	return []Message{msg}, nil
}

func marshalEnvelope(obj orderedObject) (Message, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return Message{}, fmt.Errorf("serialize envelope: %w", err)
	}
	data = append(data, '\n')
	return Message{data: data}, nil
}
