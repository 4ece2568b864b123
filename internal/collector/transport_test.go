package collector_test

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rdara/mock-collector/internal/collector"
	"github.com/rdara/mock-collector/internal/keystore"
	"github.com/rdara/mock-collector/internal/testutils"
)

const (
	dialTimeout = time.Second
	stopTimeout = 5 * time.Second
)

func portOf(addr string) uint16 {
	_, port, err := net.SplitHostPort(addr)
	Expect(err).NotTo(HaveOccurred())

	p, err := strconv.ParseUint(port, 10, 16)
	Expect(err).NotTo(HaveOccurred())

	return uint16(p)
}

var _ = Describe("Collector", Ordered, func() {
	var (
		cert     tls.Certificate
		client   *http.Client
		c        *collector.Collector
		httpURL  string
		httpsURL string
	)

	BeforeAll(func() {
		var err error

		cert, err = keystore.Load("", keystore.DefaultPassword)
		Expect(err).NotTo(HaveOccurred())

		client, err = testutils.NewAgentClient(cert)
		Expect(err).NotTo(HaveOccurred())
	})

	BeforeEach(func() {
		var err error

		c, err = collector.New(collector.Config{
			Host:        "127.0.0.1",
			Certificate: cert,
		}, collector.WithLogger(logr.Discard()))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.State()).To(Equal(collector.StateRunning))

		httpURL = "http://" + c.HTTPAddr()
		httpsURL = "https://" + c.HTTPSAddr()

		DeferCleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()

			c.Stop(ctx)
		})
	})

	It("answers preconnect over HTTP and metric_data over HTTPS", func() {
		resp, err := testutils.CallMethod(client, httpURL, "preconnect")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Body).To(Equal(`{"return_value":{"redirect_host":"localhost"}}`))
		Expect(c.Counters().Count("preconnect")).To(Equal(int64(1)))

		for range 2 {
			resp, err = testutils.CallMethod(client, httpsURL, "metric_data")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Body).To(Equal(`{"return_value":[]}`))
		}

		Expect(c.Counters().Count("metric_data")).To(Equal(int64(2)))
		Expect(c.Counters().Snapshot()).To(Equal(map[string]int64{"preconnect": 1, "metric_data": 2}))
	})

	It("returns identical responses on both transports", func() {
		for _, method := range append(collector.KnownMethods(), collector.MethodUnknown) {
			plain, err := testutils.CallMethod(client, httpURL, method.String())
			Expect(err).NotTo(HaveOccurred())

			secure, err := testutils.CallMethod(client, httpsURL, method.String())
			Expect(err).NotTo(HaveOccurred())

			Expect(secure.Body).To(Equal(plain.Body), "method %s", method)
			Expect(secure.StatusCode).To(Equal(plain.StatusCode))
			Expect(secure.Header.Get("Name")).To(Equal(collector.CollectorName))
			Expect(plain.Header.Get("Name")).To(Equal(collector.CollectorName))
			Expect(plain.Header.Get("Content-Type")).To(Equal("application/json"))
		}
	})

	It("answers connect with the collector settings", func() {
		resp, err := testutils.CallMethod(client, httpsURL, "connect")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Body).To(MatchJSON(`{
			"return_value": {
				"agent_run_id": "1234567890",
				"collect_errors": true,
				"collect_traces": true,
				"data_report_period": 60,
				"url_rules": [{"each_segment": true}]
			}
		}`))
	})

	It("answers requests without a method with the default response", func() {
		resp, err := testutils.CallMethod(client, httpURL, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Body).To(Equal(`{"return_value":""}`))
		Expect(c.Counters().Snapshot()).To(BeEmpty())
	})

	It("does not lose counts under parallel agents", func() {
		const (
			agents          = 8
			callsPerAgent   = 25
			expectedPerPort = agents * callsPerAgent
		)

		var wg sync.WaitGroup
		for i := range agents {
			wg.Add(1)

			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				baseURL := httpURL
				if i%2 == 1 {
					baseURL = httpsURL
				}

				for range callsPerAgent {
					resp, err := testutils.CallMethod(client, baseURL, "analytic_event_data")
					Expect(err).NotTo(HaveOccurred())
					Expect(resp.Body).To(Equal(`{"return_value":""}`))
				}
			}()
		}
		wg.Wait()

		Expect(c.Counters().Count("analytic_event_data")).To(Equal(int64(expectedPerPort)))
	})

	It("stays inert when started on ports in use", func() {
		second, err := collector.New(collector.Config{
			Host:        "127.0.0.1",
			HTTPPort:    portOf(c.HTTPAddr()),
			HTTPSPort:   portOf(c.HTTPSAddr()),
			Certificate: cert,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(second.State()).To(Equal(collector.StatePortConflict))
		Expect(second.HTTPAddr()).To(BeEmpty())

		second.Stop(context.Background())

		resp, err := testutils.CallMethod(client, httpURL, "log_event_data")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Body).To(Equal(`{"return_value":""}`))
		Expect(c.Counters().Count("log_event_data")).To(Equal(int64(1)))
		Expect(second.Counters().Count("log_event_data")).To(BeZero())
	})

	It("refuses connections after stop", func() {
		c.Stop(context.Background())
		Expect(c.State()).To(Equal(collector.StateStopped))

		_, err := net.DialTimeout("tcp", c.HTTPAddr(), dialTimeout)
		Expect(err).To(HaveOccurred())

		_, err = net.DialTimeout("tcp", c.HTTPSAddr(), dialTimeout)
		Expect(err).To(HaveOccurred())

		_, err = testutils.CallMethod(client, httpsURL, "connect")
		Expect(err).To(HaveOccurred())

		Expect(func() { c.Stop(context.Background()) }).NotTo(Panic())
	})
})
