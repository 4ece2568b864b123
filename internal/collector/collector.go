// Package collector implements a mock of the remote collector an instrumentation agent reports to. It answers
// the agent's method-based protocol with canned responses over plaintext HTTP and HTTPS at the same time.
package collector

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/rdara/mock-collector/internal/errortypes"
	"github.com/rdara/mock-collector/internal/metrics"
)

const (
	DefaultHTTPPort  = 1121
	DefaultHTTPSPort = 1124

	readHeaderTimeout = 10 * time.Second
)

var ErrMissingCertificate = errors.New("TLS certificate and private key are required")

// Config is the immutable listener configuration of a Collector.
type Config struct {
	// Host to bind both listeners to. Empty binds all interfaces.
	Host string
	// HTTPPort and HTTPSPort are the plaintext and TLS ports. Port 0 picks an ephemeral port.
	HTTPPort  uint16
	HTTPSPort uint16
	// Certificate is presented by the TLS listener, usually loaded with keystore.Load.
	Certificate tls.Certificate
	// AgentRunID is returned by the connect method. Empty means DefaultAgentRunID.
	AgentRunID string
}

type Option func(*Collector)

func WithLogger(log logr.Logger) Option {
	return func(c *Collector) {
		c.log = log
	}
}

// WithErrorLog sets the logger net/http reports connection level errors to, such as failed TLS handshakes.
func WithErrorLog(errorLog *log.Logger) Option {
	return func(c *Collector) {
		c.errorLog = errorLog
	}
}

// Collector is a pair of plaintext and TLS listeners sharing one Responder.
//
// If any of the two ports is already bound when the Collector is created, it stays inert in StatePortConflict:
// another collector is assumed to serve the agent already. The caller owns the Collector and must call Stop
// to release the ports.
type Collector struct {
	config   Config
	log      logr.Logger
	errorLog *log.Logger

	counters  *MethodCounters
	responder *Responder

	mu          sync.Mutex
	state       State
	httpServer  *http.Server
	httpsServer *http.Server
	httpAddr    string
	httpsAddr   string
}

// New creates the collector and starts both listeners unless one of the ports is taken.
// A missing certificate or an unrenderable response table is a *errortypes.ConfigurationError.
func New(config Config, opts ...Option) (*Collector, error) {
	c := &Collector{
		config:   config,
		log:      logr.Discard(),
		counters: &MethodCounters{},
		state:    StateUnstarted,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.log = c.log.WithValues("collector", uuid.NewString())

	if len(config.Certificate.Certificate) == 0 || config.Certificate.PrivateKey == nil {
		return nil, &errortypes.ConfigurationError{Err: ErrMissingCertificate}
	}

	table, err := NewResponseTable(config.AgentRunID)
	if err != nil {
		return nil, &errortypes.ConfigurationError{Err: err}
	}

	c.responder = NewResponder(table, c.counters, c.log)

	c.start()

	return c, nil
}

func (c *Collector) start() {
	httpAddr := net.JoinHostPort(c.config.Host, strconv.Itoa(int(c.config.HTTPPort)))
	httpsAddr := net.JoinHostPort(c.config.Host, strconv.Itoa(int(c.config.HTTPSPort)))

	if !portAvailable(httpAddr) || !portAvailable(httpsAddr) {
		c.log.Info("Ports already in use, continuing without starting the collector",
			"httpAddr", httpAddr, "httpsAddr", httpsAddr)
		c.setPortConflict()

		return
	}

	// The ports may be taken between probe and bind. Losing that race is treated like a busy port.
	httpListener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		c.log.Info("Failed to bind HTTP listener, continuing without starting the collector", "addr", httpAddr, "error", err.Error())
		c.setPortConflict()

		return
	}

	httpsListener, err := net.Listen("tcp", httpsAddr)
	if err != nil {
		_ = httpListener.Close()

		c.log.Info("Failed to bind HTTPS listener, continuing without starting the collector", "addr", httpsAddr, "error", err.Error())
		c.setPortConflict()

		return
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{c.config.Certificate},
		MinVersion:   tls.VersionTLS12,
	}

	c.mu.Lock()
	c.httpServer = c.newServer()
	c.httpsServer = c.newServer()
	c.httpAddr = httpListener.Addr().String()
	c.httpsAddr = httpsListener.Addr().String()
	c.state = StateRunning
	c.mu.Unlock()

	go c.serve(c.httpServer, httpListener, metrics.TransportHTTP)
	go c.serve(c.httpsServer, tls.NewListener(httpsListener, tlsConfig), metrics.TransportHTTPS)

	metrics.RecordStart(StateRunning.String())
	c.log.Info("Collector started", "httpAddr", c.httpAddr, "httpsAddr", c.httpsAddr)
}

// newServer returns a server for one transport. TLS is terminated by the listener, so the TLS server needs
// no TLSConfig of its own.
func (c *Collector) newServer() *http.Server {
	return &http.Server{
		Handler:           c.responder,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          c.errorLog,
	}
}

func (c *Collector) serve(server *http.Server, listener net.Listener, transport string) {
	// When Stop calls Shutdown, Serve returns http.ErrServerClosed, do not log it as an error
	if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		c.log.Error(err, "Collector listener stopped unexpectedly", "transport", transport)
	}
}

func (c *Collector) setPortConflict() {
	c.mu.Lock()
	c.state = StatePortConflict
	c.mu.Unlock()

	metrics.RecordStart(StatePortConflict.String())
}

// Stop closes both listeners and waits for in-flight requests until ctx is done. It is safe to call it more
// than once and on a collector that never started. Failures are logged, never returned.
func (c *Collector) Stop(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return
	}

	c.state = StateStopped
	servers := []*http.Server{c.httpServer, c.httpsServer}
	c.mu.Unlock()

	var err error
	for _, server := range servers {
		err = multierr.Append(err, server.Shutdown(ctx))
	}

	if err != nil {
		metrics.ShutdownErrorsTotal.Inc()
		c.log.Error(&errortypes.ShutdownError{Err: err}, "Collector did not stop cleanly")

		return
	}

	c.log.Info("Collector stopped")
}

func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// HTTPAddr returns the bound address of the plaintext listener, or "" if the collector never started.
func (c *Collector) HTTPAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.httpAddr
}

// HTTPSAddr returns the bound address of the TLS listener, or "" if the collector never started.
func (c *Collector) HTTPSAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.httpsAddr
}

// Counters exposes the per-method call counts of this collector.
func (c *Collector) Counters() *MethodCounters {
	return c.counters
}

// Handler returns the responder shared by both listeners, for embedding the collector into another server.
func (c *Collector) Handler() http.Handler {
	return c.responder
}

func portAvailable(addr string) bool {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}

	_ = listener.Close()

	return true
}
