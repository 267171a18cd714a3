package main

import (
	"net/http"
	"time"
)

func newServer(addr string, statsHandler http.HandlerFunc, ingest *IngestHandlers) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stats", statsHandler)
	mux.HandleFunc("POST /v1/events", ingest.PostEvent)
	mux.HandleFunc("POST /v1/metrics", ingest.PostMetric)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
