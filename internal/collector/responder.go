package collector

import (
	"net/http"

	"github.com/go-logr/logr"

	"github.com/rdara/mock-collector/internal/metrics"
)

const (
	// CollectorName is sent in the Name header of every response.
	CollectorName = "Offline Instrumentation Collector"

	methodParam = "method"
)

// Responder answers agent requests with the canned response of the requested method and counts the calls.
// The same Responder serves both transports.
type Responder struct {
	table    *ResponseTable
	counters *MethodCounters
	log      logr.Logger
}

func NewResponder(table *ResponseTable, counters *MethodCounters, log logr.Logger) *Responder {
	return &Responder{
		table:    table,
		counters: counters,
		log:      log,
	}
}

func (r *Responder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	name := req.FormValue(methodParam)
	method := ParseMethod(name)

	var count int64
	if name != "" {
		count = r.counters.Increment(name)
	}

	header := w.Header()
	header.Set("Name", CollectorName)
	header.Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(r.table.Body(method)); err != nil {
		r.log.V(1).Info("Failed to write response", "method", name, "error", err.Error())
	}

	tr := transport(req)
	metrics.RecordRequest(method.String(), tr)

	if name == "" {
		r.log.V(1).Info("Request without method answered with default response", "transport", tr)
		return
	}

	if method == MethodPreconnect {
		r.log.Info("Agent redirected to mock collector", "transport", tr)
	}

	r.log.Info("Method called", "method", name, "count", count, "transport", tr)
}

func transport(req *http.Request) string {
	if req.TLS != nil {
		return metrics.TransportHTTPS
	}

	return metrics.TransportHTTP
}
