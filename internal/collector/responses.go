package collector

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// DefaultAgentRunID is the run id handed out on connect unless configured otherwise.
const DefaultAgentRunID = "1234567890"

const agentRunIDPath = "return_value.agent_run_id"

const (
	bodyEmptyString = `{"return_value":""}`
	bodyEmptyArray  = `{"return_value":[]}`
	bodyNull        = `{"return_value":null}`
	bodyPingPeriod  = `{"return_value":1000}`
)

var errInvalidResponse = errors.New("canned response is not valid JSON")

//go:embed resources/connect_response.json
var connectTemplate []byte

type responseBuilder func(agentRunID string) ([]byte, error)

func literal(body string) responseBuilder {
	return func(string) ([]byte, error) {
		return []byte(body), nil
	}
}

func buildConnect(agentRunID string) ([]byte, error) {
	return sjson.SetBytes(pretty.Ugly(connectTemplate), agentRunIDPath, agentRunID)
}

var builders = [methodCount]responseBuilder{
	MethodUnknown:             literal(bodyEmptyString),
	MethodPreconnect:          literal(`{"return_value":{"redirect_host":"localhost"}}`),
	MethodGetRedirectHost:     literal(`{"return_value":"localhost"}`),
	MethodConnect:             buildConnect,
	MethodQueuePingCommand:    literal(bodyPingPeriod),
	MethodAgentCommandResults: literal(bodyNull),
	MethodErrorData:           literal(bodyPingPeriod),
	MethodGetAgentCommands:    literal(bodyEmptyArray),
	MethodProfileData:         literal(bodyEmptyArray),
	MethodMetricData:          literal(bodyEmptyArray),
	MethodAnalyticEventData:   literal(bodyEmptyString),
	MethodUpdateLoadedModules: literal(bodyEmptyArray),
	MethodLogEventData:        literal(bodyEmptyString),
}

// ResponseTable holds the canned body of every method. It is read-only once built and is shared by all
// concurrently handled requests.
type ResponseTable struct {
	bodies [methodCount][]byte
}

// NewResponseTable renders all canned responses. An empty agentRunID falls back to DefaultAgentRunID.
func NewResponseTable(agentRunID string) (*ResponseTable, error) {
	if agentRunID == "" {
		agentRunID = DefaultAgentRunID
	}

	var t ResponseTable

	for method, build := range builders {
		body, err := build(agentRunID)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s response: %w", Method(method), err)
		}

		if !gjson.ValidBytes(body) || !gjson.GetBytes(body, "return_value").Exists() {
			return nil, fmt.Errorf("%w: %s", errInvalidResponse, Method(method))
		}

		t.bodies[method] = body
	}

	return &t, nil
}

// Body returns the canned response of m. The returned slice must not be modified.
func (t *ResponseTable) Body(m Method) []byte {
	if m < 0 || m >= methodCount {
		m = MethodUnknown
	}

	return t.bodies[m]
}
