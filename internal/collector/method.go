package collector

// Method is a remote procedure the agent invokes on the collector, selected by the "method" request parameter.
type Method int

const (
	MethodUnknown Method = iota
	MethodPreconnect
	MethodGetRedirectHost
	MethodConnect
	MethodQueuePingCommand
	MethodAgentCommandResults
	MethodErrorData
	MethodGetAgentCommands
	MethodProfileData
	MethodMetricData
	MethodAnalyticEventData
	MethodUpdateLoadedModules
	MethodLogEventData

	methodCount
)

var methodNames = [methodCount]string{
	MethodUnknown:             "unknown",
	MethodPreconnect:          "preconnect",
	MethodGetRedirectHost:     "get_redirect_host",
	MethodConnect:             "connect",
	MethodQueuePingCommand:    "queue_ping_command",
	MethodAgentCommandResults: "agent_command_results",
	MethodErrorData:           "error_data",
	MethodGetAgentCommands:    "get_agent_commands",
	MethodProfileData:         "profile_data",
	MethodMetricData:          "metric_data",
	MethodAnalyticEventData:   "analytic_event_data",
	MethodUpdateLoadedModules: "update_loaded_modules",
	MethodLogEventData:        "log_event_data",
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, methodCount-1)
	for _, method := range KnownMethods() {
		m[methodNames[method]] = method
	}

	return m
}()

// ParseMethod maps a wire name to its Method. Names outside the protocol, including the empty name,
// map to MethodUnknown.
func ParseMethod(name string) Method {
	if method, ok := methodsByName[name]; ok {
		return method
	}

	return MethodUnknown
}

// KnownMethods returns every method of the protocol, MethodUnknown excluded.
func KnownMethods() []Method {
	methods := make([]Method, 0, methodCount-1)
	for m := MethodUnknown + 1; m < methodCount; m++ {
		methods = append(methods, m)
	}

	return methods
}

func (m Method) String() string {
	if m < 0 || m >= methodCount {
		return methodNames[MethodUnknown]
	}

	return methodNames[m]
}
