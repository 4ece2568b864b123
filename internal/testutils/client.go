package testutils

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rdara/mock-collector/internal/keystore"
)

const clientTimeout = 5 * time.Second

// AgentResponse is what an agent observes from one collector call.
type AgentResponse struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// NewAgentClient returns a client trusting cert. Keep-alives are disabled so that every call opens a new
// connection and observes the current listener state.
func NewAgentClient(cert tls.Certificate) (*http.Client, error) {
	pool, err := keystore.CertPool(cert)
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Timeout: clientTimeout,
		Transport: &http.Transport{
			DisableKeepAlives: true,
			TLSClientConfig: &tls.Config{
				RootCAs:    pool,
				ServerName: "localhost",
				MinVersion: tls.VersionTLS12,
			},
		},
	}, nil
}

// CallMethod invokes method the way the agent does: a POST with the method in the query string.
func CallMethod(client *http.Client, baseURL, method string) (AgentResponse, error) {
	query := url.Values{}
	if method != "" {
		query.Set("method", method)
	}

	query.Set("protocol_version", "17")
	query.Set("marshal_format", "json")

	req, err := http.NewRequest(http.MethodPost, baseURL+"/agent_listener/invoke_raw_method?"+query.Encode(), http.NoBody)
	if err != nil {
		return AgentResponse{}, err
	}

	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := client.Do(req)
	if err != nil {
		return AgentResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AgentResponse{}, err
	}

	return AgentResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       string(body),
	}, nil
}

// MustCallMethod is CallMethod failing the test on transport errors.
func MustCallMethod(t testing.TB, client *http.Client, baseURL, method string) AgentResponse {
	t.Helper()

	resp, err := CallMethod(client, baseURL, method)
	require.NoError(t, err)

	return resp
}
