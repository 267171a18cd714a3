package main

import (
	"encoding/json"
	"net/http"

	"github.com/kon-rad/hec-ingest"
)

// eventRequest is the wire shape of a POST /v1/events body.
type eventRequest struct {
	Body       any            `json:"body"`
	Time       any            `json:"time,omitempty"`
	Host       string         `json:"host,omitempty"`
	Source     string         `json:"source,omitempty"`
	SourceType string         `json:"sourcetype,omitempty"`
	Index      string         `json:"index,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// metricRequest is the wire shape of a POST /v1/metrics body: either
// Name and Value or a non-empty Measurements must be set. When
// Measurements is non-empty it is used and Name/Value are ignored.
type metricRequest struct {
	Name         string             `json:"name,omitempty"`
	Value        *float64           `json:"value,omitempty"`
	Measurements map[string]*float64 `json:"measurements,omitempty"`
	Time         any                `json:"time,omitempty"`
	Host         string             `json:"host,omitempty"`
	Source       string             `json:"source,omitempty"`
	SourceType   string             `json:"sourcetype,omitempty"`
	Index        string             `json:"index,omitempty"`
	Fields       map[string]any     `json:"fields,omitempty"`
}

func (r eventRequest) metadata() hec.Metadata {
	return hec.Metadata{Host: r.Host, Source: r.Source, SourceType: r.SourceType, Index: r.Index}
}

func (r metricRequest) metadata() hec.Metadata {
	return hec.Metadata{Host: r.Host, Source: r.Source, SourceType: r.SourceType, Index: r.Index}
}

// Pusher is the subset of *hec.Client the front door needs, so handlers
// can be tested against a fake.
type Pusher interface {
	PushEvent(hec.Event) error
	PushMetric(hec.Metric) error
	PushMetrics(hec.MultiMetric) error
}

type IngestHandlers struct {
	client Pusher
}

func NewIngestHandlers(client Pusher) *IngestHandlers {
	return &IngestHandlers{client: client}
}

func (h *IngestHandlers) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Body == nil {
		http.Error(w, "body is required", http.StatusBadRequest)
		return
	}

	err := h.client.PushEvent(hec.Event{
		Body: req.Body, Time: req.Time, Metadata: req.metadata(), Fields: req.Fields,
	})
	writeAcceptedOrError(w, err)
}

func (h *IngestHandlers) PostMetric(w http.ResponseWriter, r *http.Request) {
	var req metricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var err error
	switch {
	case len(req.Measurements) > 0:
		err = h.client.PushMetrics(hec.MultiMetric{
			Time: req.Time, Metadata: req.metadata(), Fields: req.Fields, Measurements: req.Measurements,
		})
	case req.Name != "" && req.Value != nil:
		err = h.client.PushMetric(hec.Metric{
			Name: req.Name, Value: *req.Value, Time: req.Time, Metadata: req.metadata(), Fields: req.Fields,
		})
	default:
		http.Error(w, "either name+value or measurements is required", http.StatusBadRequest)
		return
	}
	writeAcceptedOrError(w, err)
}

func writeAcceptedOrError(w http.ResponseWriter, err error) {
	if err == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if _, ok := err.(*hec.ShutdownError); ok {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if _, ok := err.(*hec.SerializationError); ok {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
