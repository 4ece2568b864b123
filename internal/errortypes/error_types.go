package errortypes

import "errors"

// ConfigurationError reports unusable collector configuration, such as a missing or unreadable
// keystore. It is fatal: no listener is started.
type ConfigurationError struct {
	Err error
}

func (c *ConfigurationError) Error() string {
	return "invalid collector configuration: " + c.Err.Error()
}

func (c *ConfigurationError) Unwrap() error {
	return c.Err
}

func IsConfigurationError(err error) bool {
	var configErr *ConfigurationError
	return errors.As(err, &configErr)
}

// ShutdownError wraps failures that occur while stopping the listeners. It is only ever logged.
type ShutdownError struct {
	Err error
}

func (s *ShutdownError) Error() string {
	return "failed to stop collector: " + s.Err.Error()
}

func (s *ShutdownError) Unwrap() error {
	return s.Err
}
