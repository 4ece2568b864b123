package collector

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/rdara/mock-collector/internal/metrics"
)

func newTestResponder(t *testing.T) (*Responder, *MethodCounters) {
	t.Helper()

	table, err := NewResponseTable("")
	require.NoError(t, err)

	counters := &MethodCounters{}

	return NewResponder(table, counters, testr.New(t)), counters
}

func serve(r *Responder, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}

func TestResponderHeaders(t *testing.T) {
	responder, _ := newTestResponder(t)

	rec := serve(responder, httptest.NewRequest(http.MethodPost, "/agent_listener/invoke_raw_method?method=connect", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Offline Instrumentation Collector", rec.Header().Get("Name"))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestResponderCountsAndAnswers(t *testing.T) {
	responder, counters := newTestResponder(t)

	for i := 1; i <= 3; i++ {
		rec := serve(responder, httptest.NewRequest(http.MethodPost, "/?method=metric_data", nil))
		require.JSONEq(t, `{"return_value":[]}`, rec.Body.String())
		require.Equal(t, `{"return_value":[]}`, rec.Body.String())
		require.Equal(t, int64(i), counters.Count("metric_data"))
	}

	require.Equal(t, map[string]int64{"metric_data": 3}, counters.Snapshot())
}

func TestResponderDefaultResponse(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		wantCounted string
	}{
		{name: "absent method", target: "/agent_listener/invoke_raw_method"},
		{name: "empty method", target: "/?method="},
		{name: "unknown method", target: "/?method=shutdown", wantCounted: "shutdown"},
		{name: "malformed query", target: "/?method=%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responder, counters := newTestResponder(t)

			rec := serve(responder, httptest.NewRequest(http.MethodGet, tt.target, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, `{"return_value":""}`, rec.Body.String())

			if tt.wantCounted == "" {
				require.Empty(t, counters.Snapshot())
			} else {
				require.Equal(t, map[string]int64{tt.wantCounted: 1}, counters.Snapshot())
			}
		})
	}
}

func TestResponderReadsFormBody(t *testing.T) {
	responder, counters := newTestResponder(t)

	form := url.Values{"method": {"preconnect"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := serve(responder, req)

	require.Equal(t, `{"return_value":{"redirect_host":"localhost"}}`, rec.Body.String())
	require.Equal(t, int64(1), counters.Count("preconnect"))
}

func TestResponderIgnoresPayload(t *testing.T) {
	responder, _ := newTestResponder(t)

	req := httptest.NewRequest(http.MethodPost, "/?method=error_data", strings.NewReader(`[[{"not":"validated"}]]`))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(responder, req)

	require.Equal(t, `{"return_value":1000}`, rec.Body.String())
}

func TestResponderRecordsMetrics(t *testing.T) {
	table, err := NewResponseTable("")
	require.NoError(t, err)

	responder := NewResponder(table, &MethodCounters{}, logr.Discard())

	httpCounter := metrics.RequestsTotal.WithLabelValues("profile_data", metrics.TransportHTTP)
	httpsCounter := metrics.RequestsTotal.WithLabelValues("profile_data", metrics.TransportHTTPS)
	unknownCounter := metrics.RequestsTotal.WithLabelValues("unknown", metrics.TransportHTTP)

	httpBefore := testutil.ToFloat64(httpCounter)
	httpsBefore := testutil.ToFloat64(httpsCounter)
	unknownBefore := testutil.ToFloat64(unknownCounter)

	serve(responder, httptest.NewRequest(http.MethodPost, "/?method=profile_data", nil))

	tlsReq := httptest.NewRequest(http.MethodPost, "/?method=profile_data", nil)
	tlsReq.TLS = &tls.ConnectionState{}
	serve(responder, tlsReq)

	serve(responder, httptest.NewRequest(http.MethodPost, "/?method=made_up_"+t.Name(), nil))

	require.InDelta(t, httpBefore+1, testutil.ToFloat64(httpCounter), 0)
	require.InDelta(t, httpsBefore+1, testutil.ToFloat64(httpsCounter), 0)
	require.InDelta(t, unknownBefore+1, testutil.ToFloat64(unknownCounter), 0)
}

func TestResponderConcurrentCallers(t *testing.T) {
	const (
		callers           = 16
		requestsPerCaller = 100
	)

	table, err := NewResponseTable("")
	require.NoError(t, err)

	counters := &MethodCounters{}
	responder := NewResponder(table, counters, logr.Discard())
	want := string(table.Body(MethodConnect))

	var wg sync.WaitGroup
	errs := make(chan string, callers*requestsPerCaller)

	for range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for range requestsPerCaller {
				rec := serve(responder, httptest.NewRequest(http.MethodPost, "/?method=connect", nil))
				if rec.Body.String() != want {
					errs <- rec.Body.String()
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	require.Empty(t, errs)
	require.Equal(t, int64(callers*requestsPerCaller), counters.Count("connect"))
}
